package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/homechef-backend/api/responses"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/homechef-backend/pkg/redis"
)

const (
	idempotencyHeader      = "Idempotency-Key"
	maxIdempotencyKeyLen   = 128
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
)

// idempotentRoute matches POST paths of the form prefix + {id} + suffix, or prefix
// alone when suffix is empty.
type idempotentRoute struct {
	prefix string
	suffix string
	exact  bool
	ttl    time.Duration
}

// Order lifecycle writes keep their replay for a week; creation endpoints for a day.
var idempotentRoutes = []idempotentRoute{
	{prefix: "/api/v1/auth/signup", exact: true, ttl: defaultIdempotencyTTL},
	{prefix: "/api/v1/cart", exact: true, ttl: defaultIdempotencyTTL},
	{prefix: "/api/v1/seller/foods", exact: true, ttl: defaultIdempotencyTTL},
	{prefix: "/api/v1/cart/confirm-all", exact: true, ttl: criticalIdempotencyTTL},
	{prefix: "/api/v1/cart/", suffix: "/confirm", ttl: criticalIdempotencyTTL},
	{prefix: "/api/v1/seller/order-items/", suffix: "/assign-rider", ttl: criticalIdempotencyTTL},
	{prefix: "/api/v1/rider/order-items/", suffix: "/deliver", ttl: criticalIdempotencyTTL},
}

func (rt idempotentRoute) matches(path string) bool {
	if rt.exact {
		return path == rt.prefix
	}
	if !strings.HasPrefix(path, rt.prefix) || !strings.HasSuffix(path, rt.suffix) {
		return false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(path, rt.prefix), rt.suffix)
	return id != "" && !strings.Contains(id, "/")
}

// routeTTL works on the raw path: middleware mounted on a parent chi router runs
// before the child route pattern is resolved.
func routeTTL(method, path string) (time.Duration, bool) {
	if method != http.MethodPost {
		return 0, false
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	for _, rt := range idempotentRoutes {
		if rt.matches(path) {
			return rt.ttl, true
		}
	}
	return 0, false
}

type replayRecord struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency requires an Idempotency-Key on the mutating routes above and replays the
// first successful response for the same caller, path and key. Failed attempts are not
// recorded, so a seller can retry an assignment with the same key once riders come online.
// Reusing a key with a different body is a CONFLICT.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := routeTTL(r.Method, r.URL.Path)
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if key == "" || len(key) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required (max 128 characters)"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			requestHash := hex.EncodeToString(sum[:])
			storeKey := store.IdempotencyKey(replayScope(r), key)

			raw, err := store.Get(ctx, storeKey)
			switch {
			case err == nil:
				var rec replayRecord
				if err := json.Unmarshal([]byte(raw), &rec); err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "corrupt idempotency record"))
					return
				}
				if rec.RequestHash != requestHash {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "idempotency key reused with different request body"))
					return
				}
				replay(w, rec)
				return
			case !errors.Is(err, redis.Nil):
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store unavailable"))
				return
			}

			capture := &responseCapture{statusRecorder: statusRecorder{ResponseWriter: w}}
			next.ServeHTTP(capture, r)

			status := capture.Status()
			if status < 200 || status >= 300 {
				return
			}
			payload, err := json.Marshal(replayRecord{
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				RequestHash: requestHash,
			})
			if err == nil {
				_, err = store.SetNX(ctx, storeKey, string(payload), ttl)
			}
			if err != nil && logg != nil {
				logg.Error(logg.WithField(ctx, "idempotency_key", key), "failed to record idempotent response", err)
			}
		})
	}
}

// replayScope isolates keys per caller and path so two users cannot collide on a key.
func replayScope(r *http.Request) string {
	return UserIDFromContext(r.Context()) + "|" + r.Method + "|" + strings.TrimSuffix(r.URL.Path, "/")
}

func replay(w http.ResponseWriter, rec replayRecord) {
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

type responseCapture struct {
	statusRecorder
	body bytes.Buffer
}

func (c *responseCapture) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.statusRecorder.Write(b)
}
