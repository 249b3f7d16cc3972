package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/homechef-backend/pkg/config"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
)

func jwtConfig(minutes int) config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "homechef", ExpirationMinutes: minutes}
}

func TestMintThenParse(t *testing.T) {
	cfg := jwtConfig(30)
	now := time.Now().UTC().Truncate(time.Second)
	userID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		UserID: userID,
		Email:  " Rider@Example.com ",
		Role:   enums.UserRoleRider,
		JTI:    "session-1",
	})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "rider@example.com", claims.Email)
	assert.Equal(t, enums.UserRoleRider, claims.Role)
	assert.Equal(t, "session-1", claims.ID)
	assert.Equal(t, "homechef", claims.Issuer)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.True(t, claims.ExpiresAt.Time.Equal(now.Add(30*time.Minute)))
}

func TestParseRejectsTampering(t *testing.T) {
	cfg := jwtConfig(10)
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Email: "seller@example.com", Role: enums.UserRoleSeller})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token+"x")
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	other := cfg
	other.Secret = "other"
	_, err = ParseAccessToken(other, token)
	assert.Error(t, err)

	other = cfg
	other.Issuer = "someone-else"
	_, err = ParseAccessToken(other, token)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, AccessTokenClaims{Email: "x@y.z", Role: enums.UserRoleSeller})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, unsigned)
	assert.Error(t, err)
}

func TestParseExpired(t *testing.T) {
	cfg := jwtConfig(15)
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{UserID: uuid.New(), Email: "customer@example.com", Role: enums.UserRoleCustomer})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	claims, err := ParseAccessTokenAllowExpired(cfg, token)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)
}

func TestParseToleratesSkew(t *testing.T) {
	cfg := jwtConfig(1)
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Minute-10*time.Second), AccessTokenPayload{UserID: uuid.New(), Email: "a@b.co", Role: enums.UserRoleRider})
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, token)
	assert.NoError(t, err)
}

func TestMintRejectsBadInput(t *testing.T) {
	cfg := jwtConfig(5)
	_, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Email: "a@b.c"})
	assert.Error(t, err, "missing role")
	_, err = MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleSeller})
	assert.Error(t, err, "missing email")
	_, err = MintAccessToken(config.JWTConfig{}, time.Now(), AccessTokenPayload{Email: "a@b.c", Role: enums.UserRoleSeller})
	assert.Error(t, err, "missing secret")
}
