package redis

import "strings"

const defaultKeyPrefix = "hc"

// Keyspace builds the colon separated keys every homechef process shares.
// Empty segments are dropped so "hc:lock:" never appears.
type Keyspace struct {
	prefix string
}

func NewKeyspace(prefix string) Keyspace {
	prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return Keyspace{prefix: prefix}
}

func (k Keyspace) key(kind string, parts ...string) string {
	var b strings.Builder
	b.WriteString(k.prefixOrDefault())
	b.WriteByte(':')
	b.WriteString(kind)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

func (k Keyspace) prefixOrDefault() string {
	if k.prefix == "" {
		return defaultKeyPrefix
	}
	return k.prefix
}

// RateLimitKey holds a fixed window counter.
func (k Keyspace) RateLimitKey(scope string) string { return k.key("rate_limit", scope) }

// LockKey holds a worker lock token.
func (k Keyspace) LockKey(name string) string { return k.key("lock", name) }

// IdempotencyKey holds a replayable response for one caller scope and client key.
func (k Keyspace) IdempotencyKey(scope, id string) string { return k.key("idempotency", scope, id) }

// AccessSessionKey maps an access token jti to its refresh token.
func (k Keyspace) AccessSessionKey(accessID string) string {
	return k.key("session", "access", accessID)
}
