package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/homechef-backend/pkg/config"
	"github.com/angelmondragon/homechef-backend/pkg/db"
	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
)

// MaybeRunDev prepares the schema at process start. sqlite is always
// auto-migrated from the GORM models; postgres runs the embedded goose
// migrations only in dev with the auto-migrate flag on.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	ctx = logg.WithFields(ctx, map[string]any{"db_driver": cfg.DB.Driver, "env": cfg.App.Env})

	if cfg.DB.IsSQLite() {
		if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("sqlite auto-migrate: %w", err)
		}
		logg.Info(ctx, "sqlite schema migrated from models")
		return nil
	}
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	fsys, err := Source("")
	if err != nil {
		return err
	}
	runner, err := NewRunner(sqlDB, fsys)
	if err != nil {
		return err
	}
	applied, err := runner.Up(ctx)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	logg.Info(logg.WithField(ctx, "applied", len(applied)), "goose migrations applied")
	return nil
}
