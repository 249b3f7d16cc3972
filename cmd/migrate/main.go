package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/homechef-backend/pkg/config"
	"github.com/angelmondragon/homechef-backend/pkg/db"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
	"github.com/angelmondragon/homechef-backend/pkg/migrate"
)

const usage = `usage: migrate [-dir path] <command>

commands:
  up               apply every pending migration
  down             roll back the latest migration
  status           list migrations and whether they are applied
  to <version>     migrate up or down to version
  create <name>    write an empty migration into -dir (default ` + migrate.DefaultDir + `)
  validate         check migration names and goose markers
`

func main() {
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	if err := run(context.Background(), logg, *dir, args[0], args[1:]); err != nil {
		logg.Error(context.Background(), "migrate "+args[0]+" failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger, dir, command string, args []string) error {
	switch command {
	case "create":
		if len(args) != 1 {
			return errors.New("create needs exactly one name")
		}
		if dir == "" {
			dir = migrate.DefaultDir
		}
		path, err := migrate.Create(dir, args[0], time.Now())
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	case "validate":
		fsys, err := migrate.Source(dir)
		if err != nil {
			return err
		}
		return migrate.Validate(fsys)
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.DB.IsSQLite() {
		return errors.New("sqlite schemas are migrated from the models at startup")
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "command": command})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return err
	}
	fsys, err := migrate.Source(dir)
	if err != nil {
		return err
	}
	runner, err := migrate.NewRunner(sqlDB, fsys)
	if err != nil {
		return err
	}

	var results []*goose.MigrationResult
	switch command {
	case "up":
		results, err = runner.Up(ctx)
	case "down":
		results, err = runner.Down(ctx)
	case "to":
		if len(args) != 1 {
			return errors.New("to needs a target version")
		}
		target, perr := strconv.ParseInt(args[0], 10, 64)
		if perr != nil {
			return fmt.Errorf("version %q: %w", args[0], perr)
		}
		results, err = runner.To(ctx, target)
	case "status":
		statuses, serr := runner.Status(ctx)
		if serr != nil {
			return serr
		}
		for _, s := range statuses {
			applied := "pending"
			if s.State == goose.StateApplied {
				applied = s.AppliedAt.Format(time.RFC3339)
			}
			fmt.Printf("%-16d %-28s %s\n", s.Source.Version, applied, s.Source.Path)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	for _, r := range results {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     r.Source.Version,
			"direction":   r.Direction,
			"duration_ms": r.Duration.Milliseconds(),
		}), "migration applied")
	}
	return err
}
