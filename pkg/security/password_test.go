package security_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/homechef-backend/pkg/config"
	"github.com/angelmondragon/homechef-backend/pkg/security"
)

func cheapConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    32768,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := security.HashPassword("pasta-al-forno", cheapConfig())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=32768,t=1,p=1$"), hash)
	assert.NotContains(t, hash, "pasta-al-forno")

	ok, err := security.VerifyPassword("pasta-al-forno", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = security.VerifyPassword("pasta-al-dente", hash)
	require.NoError(t, err, "a wrong password is not an error")
	assert.False(t, ok)
}

func TestHashPasswordSaltsEachCall(t *testing.T) {
	first, err := security.HashPassword("same", cheapConfig())
	require.NoError(t, err)
	second, err := security.HashPassword("same", cheapConfig())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestHashPasswordClampsCosts(t *testing.T) {
	hash, err := security.HashPassword("pw", config.PasswordConfig{ArgonParallelism: 1000})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8,t=1,p=255$"), hash)
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := security.HashPassword("", cheapConfig())
	assert.ErrorIs(t, err, security.ErrEmptyPassword)
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	for _, encoded := range []string{
		"not-a-hash",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=16$m=8,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8,t=1,p=300$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8,t=1,p=1$c2FsdA$",
		"x$argon2id$v=19$m=8,t=1,p=1$c2FsdA$aGFzaA",
	} {
		_, err := security.VerifyPassword("irrelevant", encoded)
		assert.ErrorIs(t, err, security.ErrInvalidHash, encoded)
	}
}

func TestNeedsRehash(t *testing.T) {
	cfg := cheapConfig()
	hash, err := security.HashPassword("pw", cfg)
	require.NoError(t, err)
	assert.False(t, security.NeedsRehash(hash, cfg))

	cfg.ArgonSaltLen = 32
	assert.False(t, security.NeedsRehash(hash, cfg), "salt length alone does not force a rehash")

	cfg.ArgonTime = 2
	assert.True(t, security.NeedsRehash(hash, cfg))
	assert.True(t, security.NeedsRehash("garbage", cfg))
}
