package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
)

// StoreTimeout is the deadline applied to a single store round-trip.
// Zero disables the bound.
type StoreTimeout time.Duration

// Apply derives a context bounded by the timeout. An earlier parent deadline wins.
func (t StoreTimeout) Apply(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if t <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(t))
}

// Run executes fn under the timeout and maps deadline expiry to a dependency error.
func (t StoreTimeout) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := t.Apply(ctx)
	defer cancel()
	return MapTimeout(ctx, fn(ctx))
}

// MapTimeout converts driver errors caused by an expired store deadline into
// DEPENDENCY_ERROR. Typed errors and unrelated failures pass through untouched.
func MapTimeout(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || (ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store timeout")
	}
	return err
}

// Bind attaches ctx to conn for one statement chain. When conn is a
// transaction opened by Client.WithTx, its context carries the store deadline;
// that context is kept unless ctx expires sooner.
func Bind(ctx context.Context, conn *gorm.DB) *gorm.DB {
	if inner := txContext(conn); inner != nil && !expiresFirst(ctx, inner) {
		return conn.WithContext(inner)
	}
	return conn.WithContext(ctx)
}

func txContext(conn *gorm.DB) context.Context {
	if conn == nil || conn.Statement == nil || conn.Statement.Context == nil {
		return nil
	}
	if _, ok := conn.Statement.ConnPool.(gorm.TxCommitter); !ok {
		return nil
	}
	return conn.Statement.Context
}

// expiresFirst reports whether a has a deadline strictly before b's.
func expiresFirst(a, b context.Context) bool {
	da, ok := a.Deadline()
	if !ok {
		return false
	}
	dbl, ok := b.Deadline()
	return !ok || da.Before(dbl)
}
