// Package auth mints and verifies the HS256 access tokens the API hands out.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/homechef-backend/pkg/config"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
)

// clockSkew tolerates small clock differences between API replicas.
const clockSkew = 30 * time.Second

var (
	signingMethod = jwt.SigningMethodHS256

	errNoSecret = errors.New("auth: jwt secret not configured")
)

// AccessTokenPayload is what a token is minted from. JTI doubles as the
// refresh session key; a random one is used when empty.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	Role   enums.UserRole
	JTI    string
}

// AccessTokenClaims is the verified content of an access token.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Email  string         `json:"email"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// MintAccessToken signs a token valid from now for cfg.ExpirationMinutes.
func MintAccessToken(cfg config.JWTConfig, now time.Time, p AccessTokenPayload) (string, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	switch {
	case cfg.Secret == "":
		return "", errNoSecret
	case cfg.Issuer == "":
		return "", errors.New("auth: jwt issuer not configured")
	case cfg.ExpirationMinutes <= 0:
		return "", errors.New("auth: jwt expiration must be positive")
	case !p.Role.IsValid():
		return "", fmt.Errorf("auth: role %q", p.Role)
	case email == "":
		return "", errors.New("auth: email required")
	}

	jti := strings.TrimSpace(p.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	ttl := cfg.AccessTTL()
	claims := AccessTokenClaims{
		UserID: p.UserID,
		Email:  email,
		Role:   p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    cfg.Issuer,
			Subject:   p.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("auth: sign: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry. Expired tokens fail
// with an error wrapping jwt.ErrTokenExpired.
func ParseAccessToken(cfg config.JWTConfig, token string) (*AccessTokenClaims, error) {
	return parse(cfg, token, jwt.WithLeeway(clockSkew), jwt.WithExpirationRequired())
}

// ParseAccessTokenAllowExpired verifies signature and issuer only, so a refresh
// can read the jti of a token that has run out.
func ParseAccessTokenAllowExpired(cfg config.JWTConfig, token string) (*AccessTokenClaims, error) {
	return parse(cfg, token, jwt.WithoutClaimsValidation())
}

func parse(cfg config.JWTConfig, token string, opts ...jwt.ParserOption) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errNoSecret
	}
	opts = append(opts,
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	)
	claims := new(AccessTokenClaims)
	if _, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, err
	}
	return claims, nil
}
