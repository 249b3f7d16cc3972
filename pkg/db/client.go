package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/homechef-backend/pkg/config"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
)

const slowQueryThreshold = 250 * time.Millisecond

// Client owns the shared GORM pool and the per-call store timeout.
type Client struct {
	conn    *gorm.DB
	timeout StoreTimeout
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// New opens the configured driver. Postgres is the default; sqlite backs local
// development and single-node deployments.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}

	conn, err := gorm.Open(dialectorFor(cfg), &gorm.Config{
		Logger:                 newQueryLogger(logg, slowQueryThreshold),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}
	if err := tunePool(conn, cfg); err != nil {
		return nil, err
	}

	logg.Info(logg.WithField(ctx, "db_driver", cfg.Driver), "database connection established")
	return &Client{conn: conn, timeout: StoreTimeout(cfg.StoreTimeout)}, nil
}

// NewFromConn wraps an already opened connection, typically a test sqlite one.
func NewFromConn(conn *gorm.DB, timeout StoreTimeout) *Client {
	return &Client{conn: conn, timeout: timeout}
}

func dialectorFor(cfg config.DBConfig) gorm.Dialector {
	if cfg.IsSQLite() {
		return sqlite.Open(cfg.DSN)
	}
	return postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true})
}

func tunePool(conn *gorm.DB, cfg config.DBConfig) error {
	pool, err := conn.DB()
	if err != nil {
		return fmt.Errorf("getting sql db handle: %w", err)
	}
	if cfg.IsSQLite() {
		// one writer avoids SQLITE_BUSY
		pool.SetMaxOpenConns(1)
		return nil
	}
	if cfg.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	pool.SetConnMaxLifetime(max(cfg.ConnMaxLifetime, 0))
	pool.SetConnMaxIdleTime(max(cfg.ConnMaxIdleTime, 0))
	return nil
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) Timeout() StoreTimeout {
	return c.timeout
}

func (c *Client) Ping(ctx context.Context) error {
	return c.timeout.Run(ctx, func(ctx context.Context) error {
		pool, err := c.conn.DB()
		if err != nil {
			return err
		}
		return pool.PingContext(ctx)
	})
}

func (c *Client) Close() error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

// WithTx runs fn in one transaction under the store timeout. GORM rolls back
// when fn errors or panics.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.timeout.Run(ctx, func(ctx context.Context) error {
		return c.conn.WithContext(ctx).Transaction(fn)
	})
}

// queryLogger routes GORM's slow query and error reports into the service
// logger. Record-not-found is expected control flow and stays quiet.
type queryLogger struct {
	logg *logger.Logger
	slow time.Duration
}

func newQueryLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	return queryLogger{logg: logg, slow: slow}
}

func (q queryLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return q }

func (q queryLogger) Info(ctx context.Context, msg string, args ...any) {
	q.logg.Debug(ctx, fmt.Sprintf(msg, args...))
}

func (q queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	q.logg.Warn(ctx, fmt.Sprintf(msg, args...))
}

func (q queryLogger) Error(ctx context.Context, msg string, args ...any) {
	q.logg.Error(ctx, "gorm", errors.New(fmt.Sprintf(msg, args...)))
}

func (q queryLogger) Trace(ctx context.Context, begin time.Time, sql func() (string, int64), err error) {
	elapsed := time.Since(begin)
	isSlow := q.slow > 0 && elapsed > q.slow
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, context.Canceled)
	if !isSlow && !failed {
		return
	}
	stmt, rows := sql()
	ctx = q.logg.WithFields(ctx, map[string]any{
		"sql":         stmt,
		"rows":        rows,
		"duration_ms": elapsed.Milliseconds(),
	})
	if failed {
		q.logg.Warn(q.logg.WithField(ctx, "error", err.Error()), "query failed")
		return
	}
	q.logg.Warn(ctx, "slow query")
}
