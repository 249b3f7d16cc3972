package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/homechef-backend/pkg/config"
	pkgredis "github.com/angelmondragon/homechef-backend/pkg/redis"
)

const refreshTokenBytes = 32

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	errMissingAccessID     = errors.New("session: access id required")
)

// Store is the redis surface a Manager writes refresh sessions to.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

var _ Store = (*pkgredis.Client)(nil)

// AccessSessionChecker is what the auth middleware needs to reject revoked tokens.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// Manager keeps one refresh session per access token jti. Only a digest of the
// refresh token is stored.
type Manager struct {
	store Store
	ttl   time.Duration
}

func NewManager(store Store, cfg config.JWTConfig) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session: store required")
	}
	ttl := cfg.RefreshTokenTTL()
	access := cfg.AccessTTL()
	switch {
	case ttl <= 0:
		return nil, errors.New("session: refresh ttl must be positive")
	case ttl <= access:
		return nil, fmt.Errorf("session: refresh ttl %s must outlive access ttl %s", ttl, access)
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// NewAccessID mints the jti that doubles as the session key.
func NewAccessID() string {
	return uuid.NewString()
}

// Generate opens a session for accessID and returns the refresh token to hand out.
func (m *Manager) Generate(ctx context.Context, accessID string) (string, error) {
	if strings.TrimSpace(accessID) == "" {
		return "", errMissingAccessID
	}
	token, err := newRefreshToken()
	if err != nil {
		return "", err
	}
	if err := m.store.Set(ctx, m.store.AccessSessionKey(accessID), digest(token), m.ttl); err != nil {
		return "", fmt.Errorf("session: store: %w", err)
	}
	return token, nil
}

// Rotate exchanges a refresh token for a new session. The old session is
// removed before the new one is written, so a token can be redeemed once.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, refreshToken string) (string, string, error) {
	oldAccessID = strings.TrimSpace(oldAccessID)
	refreshToken = strings.TrimSpace(refreshToken)
	if oldAccessID == "" || refreshToken == "" {
		return "", "", ErrInvalidRefreshToken
	}

	oldKey := m.store.AccessSessionKey(oldAccessID)
	stored, err := m.store.Get(ctx, oldKey)
	if errors.Is(err, goredis.Nil) {
		return "", "", ErrInvalidRefreshToken
	}
	if err != nil {
		return "", "", fmt.Errorf("session: load: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(digest(refreshToken))) != 1 {
		return "", "", ErrInvalidRefreshToken
	}
	if err := m.store.Del(ctx, oldKey); err != nil {
		return "", "", fmt.Errorf("session: revoke previous: %w", err)
	}

	accessID := NewAccessID()
	token, err := m.Generate(ctx, accessID)
	if err != nil {
		return "", "", err
	}
	return accessID, token, nil
}

// Revoke ends the session; later HasSession calls for accessID report false.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errMissingAccessID
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, errMissingAccessID
	}
	_, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, goredis.Nil):
		return false, nil
	default:
		return false, err
	}
}

func newRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
