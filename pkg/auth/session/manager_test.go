package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/homechef-backend/pkg/config"
)

type memStore struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memStore) AccessSessionKey(accessID string) string { return "sess:" + accessID }

func newTestManager(t *testing.T, store *memStore) *Manager {
	t.Helper()
	m, err := NewManager(store, config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60})
	require.NoError(t, err)
	return m
}

func TestNewManagerValidatesTTL(t *testing.T) {
	_, err := NewManager(newMemStore(), config.JWTConfig{ExpirationMinutes: 60, RefreshTokenTTLMinutes: 30})
	assert.Error(t, err)
	_, err = NewManager(nil, config.JWTConfig{ExpirationMinutes: 1, RefreshTokenTTLMinutes: 30})
	assert.Error(t, err)
}

func TestGenerateStoresDigestOnly(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store)

	token, err := m.Generate(context.Background(), "jti-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	stored := store.data["sess:jti-1"]
	assert.NotEqual(t, token, stored)
	assert.Equal(t, digest(token), stored)
	assert.Equal(t, time.Hour, store.ttls["sess:jti-1"])
}

func TestRotateRedeemsOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := newTestManager(t, store)

	token, err := m.Generate(ctx, "jti-1")
	require.NoError(t, err)

	newID, newToken, err := m.Rotate(ctx, "jti-1", token)
	require.NoError(t, err)
	assert.NotEqual(t, "jti-1", newID)
	assert.NotEqual(t, token, newToken)

	has, err := m.HasSession(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, has)
	has, err = m.HasSession(ctx, newID)
	require.NoError(t, err)
	assert.True(t, has)

	_, _, err = m.Rotate(ctx, "jti-1", token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRotateRejectsWrongToken(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := newTestManager(t, store)
	_, err := m.Generate(ctx, "jti-1")
	require.NoError(t, err)

	_, _, err = m.Rotate(ctx, "jti-1", "forged")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.Contains(t, store.data, "sess:jti-1", "a failed rotation keeps the session")

	_, _, err = m.Rotate(ctx, "", "x")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRevokeAndStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := newTestManager(t, store)
	_, err := m.Generate(ctx, "jti-1")
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, "jti-1"))
	has, err := m.HasSession(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, has)

	store.getErr = errors.New("redis down")
	_, err = m.HasSession(ctx, "jti-1")
	assert.Error(t, err)
	_, _, err = m.Rotate(ctx, "jti-1", "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidRefreshToken)
}
