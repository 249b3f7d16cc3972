// Package pagination implements keyset paging over (created_at, id) ordered
// newest first. Cursors are opaque to clients.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

var ErrBadCursor = errors.New("pagination: malformed cursor")

type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the sort key of the last row already returned.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        uuid.UUID `json:"id"`
}

// Clamp maps a requested page size into [1, MaxLimit], using DefaultLimit for zero or less.
func Clamp(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// FetchLimit is the row count to fetch so a following page can be detected.
func FetchLimit(limit int) int {
	return Clamp(limit) + 1
}

// Trim cuts rows fetched with FetchLimit(limit) down to one page and returns the
// cursor of the next page, or nil on the last one.
func Trim[T any](rows []T, limit int, key func(T) Cursor) ([]T, *Cursor) {
	limit = Clamp(limit)
	if len(rows) <= limit {
		return rows, nil
	}
	rows = rows[:limit]
	next := key(rows[limit-1])
	return rows, &next
}

func (c Cursor) Encode() string {
	c.CreatedAt = c.CreatedAt.UTC()
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode returns nil for an empty token.
func Decode(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrBadCursor
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil || c.ID == uuid.Nil || c.CreatedAt.IsZero() {
		return nil, ErrBadCursor
	}
	return &c, nil
}
