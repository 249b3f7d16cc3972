package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLimiter struct {
	mu     sync.Mutex
	hits   map[string]int64
	scopes []string
	err    error
}

func newCountingLimiter() *countingLimiter {
	return &countingLimiter{hits: map[string]int64{}}
}

func (c *countingLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, 0, c.err
	}
	c.hits[scope]++
	c.scopes = append(c.scopes, scope)
	return c.hits[scope] <= limit, c.hits[scope], nil
}

func loginRequest(email, addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"`+email+`","password":"secret"}`))
	req.RemoteAddr = addr
	return req
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestThrottleKeepsBodyReadable(t *testing.T) {
	limiter := newCountingLimiter()
	var seen string
	handler := Throttle(ThrottlePolicy{Name: "Login", Window: time.Minute, PerIP: 2, PerEmail: 2}, limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = string(body)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("Rider@Example.com", "1.2.3.4:5678"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, seen, `"email":"Rider@Example.com"`)
	require.Len(t, limiter.scopes, 2)
	assert.Equal(t, "login:ip:1.2.3.4", limiter.scopes[0])
	assert.True(t, strings.HasPrefix(limiter.scopes[1], "login:email:"))
	assert.NotContains(t, limiter.scopes[1], "rider@example.com")
}

func TestThrottleEmailWindowSpansAddresses(t *testing.T) {
	handler := Throttle(ThrottlePolicy{Name: "login", Window: time.Minute, PerEmail: 2}, newCountingLimiter(), nil)(okHandler())

	for i := range 3 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest("blocked@example.com", "10.0.0."+strconv.Itoa(i+1)+":80"))
		if i < 2 {
			require.Equal(t, http.StatusOK, rec.Code, "attempt %d", i)
			continue
		}
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), `"RATE_LIMIT_EXCEEDED"`)
	}
}

func TestThrottleBehindRealIP(t *testing.T) {
	handler := chimw.RealIP(Throttle(ThrottlePolicy{Name: "signup", Window: time.Minute, PerIP: 1}, newCountingLimiter(), nil)(okHandler()))

	first := loginRequest("a@example.com", "127.0.0.1:1")
	first.Header.Set("X-Real-IP", "5.6.7.8")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	second := loginRequest("b@example.com", "127.0.0.2:1")
	second.Header.Set("X-Real-IP", "5.6.7.8")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestThrottleSkipsBodiesWithoutEmail(t *testing.T) {
	limiter := newCountingLimiter()
	handler := Throttle(ThrottlePolicy{Name: "login", Window: time.Minute, PerEmail: 1}, limiter, nil)(okHandler())

	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Empty(t, limiter.scopes)
}

func TestThrottleLimiterFailure(t *testing.T) {
	limiter := newCountingLimiter()
	limiter.err = errors.New("redis down")
	handler := Throttle(ThrottlePolicy{Name: "login", Window: time.Minute, PerIP: 1, PerEmail: 1}, limiter, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("x@example.com", "1.1.1.1:1"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestThrottleDisabledPolicyPassesThrough(t *testing.T) {
	limiter := newCountingLimiter()
	for _, policy := range []ThrottlePolicy{
		{Name: "login", PerIP: 5, PerEmail: 5},
		{Name: "login", Window: time.Minute},
	} {
		rec := httptest.NewRecorder()
		Throttle(policy, limiter, nil)(okHandler()).ServeHTTP(rec, loginRequest("x@example.com", "1.1.1.1:1"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Empty(t, limiter.scopes)
}
