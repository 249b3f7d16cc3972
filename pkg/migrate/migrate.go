package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migrations are written, relative to the repo root.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Source returns the migration files to apply: the copy compiled into the
// binary when dir is empty, otherwise the files on disk.
func Source(dir string) (fs.FS, error) {
	if dir != "" {
		return os.DirFS(dir), nil
	}
	return fs.Sub(embedded, "migrations")
}

// Runner applies goose migrations to postgres.
type Runner struct {
	provider *goose.Provider
}

func NewRunner(db *sql.DB, fsys fs.FS) (*Runner, error) {
	if db == nil {
		return nil, errors.New("migrate: db required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("migrate: provider: %w", err)
	}
	return &Runner{provider: provider}, nil
}

func (r *Runner) Up(ctx context.Context) ([]*goose.MigrationResult, error) {
	return r.provider.Up(ctx)
}

// Down rolls back the most recent migration only.
func (r *Runner) Down(ctx context.Context) ([]*goose.MigrationResult, error) {
	res, err := r.provider.Down(ctx)
	if res == nil {
		return nil, err
	}
	return []*goose.MigrationResult{res}, err
}

func (r *Runner) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	return r.provider.Status(ctx)
}

// To moves the schema up or down until target is the current version.
func (r *Runner) To(ctx context.Context, target int64) ([]*goose.MigrationResult, error) {
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate: current version: %w", err)
	}
	switch {
	case target > current:
		return r.provider.UpTo(ctx, target)
	case target < current:
		return r.provider.DownTo(ctx, target)
	default:
		return nil, nil
	}
}
