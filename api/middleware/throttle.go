package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/homechef-backend/api/responses"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
)

// maxThrottleBody caps how much of an auth body is buffered to find the email.
const maxThrottleBody = 64 << 10

// WindowLimiter counts hits for a scope inside a fixed window.
type WindowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// ThrottlePolicy limits one endpoint per client address and per account
// email. A zero limit switches that dimension off.
type ThrottlePolicy struct {
	Name     string
	Window   time.Duration
	PerIP    int
	PerEmail int
}

type throttleKey struct {
	dimension string
	limit     int
	// extract returns "" when the request carries nothing to count.
	extract func(r *http.Request, body []byte) string
}

func (p ThrottlePolicy) keys() []throttleKey {
	var keys []throttleKey
	if p.PerIP > 0 {
		keys = append(keys, throttleKey{dimension: "ip", limit: p.PerIP, extract: remoteHost})
	}
	if p.PerEmail > 0 {
		keys = append(keys, throttleKey{dimension: "email", limit: p.PerEmail, extract: emailDigest})
	}
	return keys
}

// Throttle answers RATE_LIMIT_EXCEEDED with a Retry-After header once any
// counter passes its limit. The client address comes from RemoteAddr, so
// chi's RealIP must run earlier when the API sits behind a proxy.
func Throttle(policy ThrottlePolicy, limiter WindowLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	name := strings.ToLower(strings.TrimSpace(policy.Name))
	if name == "" {
		name = "auth"
	}
	keys := policy.keys()

	return func(next http.Handler) http.Handler {
		if limiter == nil || policy.Window <= 0 || len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var body []byte
			if policy.PerEmail > 0 {
				var err error
				body, err = io.ReadAll(io.LimitReader(r.Body, maxThrottleBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			for _, key := range keys {
				value := key.extract(r, body)
				if value == "" {
					continue
				}
				allowed, hits, err := limiter.FixedWindowAllow(ctx, name+":"+key.dimension+":"+value, int64(key.limit), policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable"))
					return
				}
				if allowed {
					continue
				}
				logg.Warn(logg.WithFields(ctx, map[string]any{
					"policy":         name,
					"dimension":      key.dimension,
					"key":            value,
					"hits":           hits,
					"limit":          key.limit,
					"window_seconds": int(policy.Window.Seconds()),
				}), "auth request throttled")
				w.Header().Set("Retry-After", strconv.Itoa(max(int(policy.Window/time.Second), 1)))
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func remoteHost(r *http.Request, _ []byte) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// emailDigest keeps raw addresses out of counter keys and logs.
func emailDigest(_ *http.Request, body []byte) string {
	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:8])
}
