package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
)

type widget struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func openSQLite(t *testing.T, cfg *gorm.Config) *gorm.DB {
	t.Helper()
	if cfg == nil {
		cfg = &gorm.Config{SkipDefaultTransaction: true}
	}
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), cfg)
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&widget{}))
	return conn
}

func countWidgets(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&widget{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	conn := openSQLite(t, nil)
	client := NewFromConn(conn, StoreTimeout(time.Second))
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&widget{Name: "kept"}).Error
	}))
	assert.EqualValues(t, 1, countWidgets(t, conn))

	boom := errors.New("boom")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&widget{Name: "dropped"}).Error)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 1, countWidgets(t, conn))
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	conn := openSQLite(t, nil)
	client := NewFromConn(conn, 0)

	assert.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			tx.Create(&widget{Name: "half-done"})
			panic("handler bug")
		})
	})
	assert.EqualValues(t, 0, countWidgets(t, conn))
}

func TestWithTxPassesTypedErrors(t *testing.T) {
	client := NewFromConn(openSQLite(t, nil), StoreTimeout(time.Second))
	typed := pkgerrors.New(pkgerrors.CodeStateConflict, "item already assigned")

	err := client.WithTx(context.Background(), func(*gorm.DB) error { return typed })
	assert.Same(t, typed, pkgerrors.As(err))
}

func TestPing(t *testing.T) {
	client := NewFromConn(openSQLite(t, nil), 0)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestIsUniqueViolationSQLite(t *testing.T) {
	conn := openSQLite(t, nil)
	require.NoError(t, conn.Create(&widget{Name: "dup"}).Error)

	err := conn.Create(&widget{Name: "dup"}).Error
	assert.True(t, IsUniqueViolation(err, ""))
	assert.False(t, IsUniqueViolation(errors.New("other"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}

func TestQueryLoggerReportsSlowAndFailedQueries(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf})
	conn := openSQLite(t, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 newQueryLogger(logg, time.Nanosecond),
	})

	require.NoError(t, conn.Create(&widget{Name: "a"}).Error)
	assert.Contains(t, buf.String(), "slow query")

	buf.Reset()
	_ = conn.Create(&widget{Name: "a"}).Error
	assert.Contains(t, buf.String(), "query failed")

	buf.Reset()
	var missing widget
	err := conn.Session(&gorm.Session{Logger: newQueryLogger(logg, 0)}).First(&missing, "name = ?", "nope").Error
	assert.True(t, IsNotFound(err))
	assert.Empty(t, buf.String(), "record not found is not logged")
}

func TestStoreTimeoutMapsDeadlineToDependency(t *testing.T) {
	err := StoreTimeout(10*time.Millisecond).Run(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStoreTimeoutKeepsEarlierParentDeadline(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	want, _ := parent.Deadline()

	ctx, done := StoreTimeout(time.Hour).Apply(parent)
	defer done()
	got, ok := ctx.Deadline()
	require.True(t, ok)
	assert.Equal(t, want, got)

	zero, stop := StoreTimeout(0).Apply(context.Background())
	defer stop()
	_, ok = zero.Deadline()
	assert.False(t, ok)
}

func TestBindKeepsTransactionDeadline(t *testing.T) {
	client := NewFromConn(openSQLite(t, nil), StoreTimeout(time.Minute))
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		txDeadline, ok := tx.Statement.Context.Deadline()
		require.True(t, ok, "WithTx attaches the store deadline")

		got, ok := Bind(ctx, tx).Statement.Context.Deadline()
		require.True(t, ok, "a caller context without deadline must not drop the transaction's")
		assert.Equal(t, txDeadline, got)

		sooner, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		want, _ := sooner.Deadline()
		got, _ = Bind(sooner, tx).Statement.Context.Deadline()
		assert.Equal(t, want, got)

		return Bind(ctx, tx).Create(&widget{Name: "bound"}).Error
	}))
	assert.EqualValues(t, 1, countWidgets(t, client.DB()))

	_, ok := Bind(ctx, client.DB()).Statement.Context.Deadline()
	assert.False(t, ok, "outside a transaction the caller context is used as is")
}
