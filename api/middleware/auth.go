package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/homechef-backend/api/responses"
	pkgAuth "github.com/angelmondragon/homechef-backend/pkg/auth"
	"github.com/angelmondragon/homechef-backend/pkg/auth/session"
	"github.com/angelmondragon/homechef-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
)

var errMissingCredentials = pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")

// BearerToken extracts the token from the Authorization header. The "Bearer"
// scheme is optional and matched case-insensitively.
func BearerToken(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, rest, ok := strings.Cut(raw, " "); ok && strings.EqualFold(scheme, "bearer") {
		raw = strings.TrimSpace(rest)
	}
	if raw == "" {
		return "", errMissingCredentials
	}
	return raw, nil
}

// Auth verifies the access token and its backing session, then attaches the
// caller identity to the request context.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, err := BearerToken(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			switch {
			case errors.Is(err, jwt.ErrTokenExpired):
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "token expired"))
				return
			case err != nil:
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			case claims.ID == "":
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
				return
			}

			if verifier != nil {
				live, err := verifier.HasSession(ctx, claims.ID)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !live {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
					return
				}
			}

			userID := claims.UserID.String()
			ctx = WithIdentity(ctx, userID, claims.Email, string(claims.Role))
			ctx = logg.WithFields(ctx, map[string]any{"user_id": userID, "actor_role": string(claims.Role)})

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
