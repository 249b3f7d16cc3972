package cron

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/pkg/enums"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
)

type activeAreaLister interface {
	ListActiveAreas(ctx context.Context, role enums.UserRole) ([]string, error)
}

type staleIndexDeleter interface {
	DeleteStale(ctx context.Context, tx *gorm.DB, activeAreas []string) (int64, error)
}

type RiderIndexPruneJobParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Areas   activeAreaLister
	Indexes staleIndexDeleter
}

// NewRiderIndexPruneJob builds the job that forgets round-robin cursors of
// areas left without active riders.
func NewRiderIndexPruneJob(params RiderIndexPruneJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Areas == nil {
		return nil, fmt.Errorf("area lister required")
	}
	if params.Indexes == nil {
		return nil, fmt.Errorf("index store required")
	}
	return &riderIndexPruneJob{
		logg:    params.Logger,
		db:      params.DB,
		areas:   params.Areas,
		indexes: params.Indexes,
	}, nil
}

type riderIndexPruneJob struct {
	logg    *logger.Logger
	db      txRunner
	areas   activeAreaLister
	indexes staleIndexDeleter
}

func (j *riderIndexPruneJob) Name() string { return "rider-index-prune" }

func (j *riderIndexPruneJob) Run(ctx context.Context) error {
	areas, err := j.areas.ListActiveAreas(ctx, enums.UserRoleRider)
	if err != nil {
		return fmt.Errorf("list active rider areas: %w", err)
	}

	var pruned int64
	err = j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		pruned, err = j.indexes.DeleteStale(ctx, tx, areas)
		return err
	})
	if err != nil {
		return fmt.Errorf("prune rider indexes: %w", err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"active_areas": len(areas),
		"rows_deleted": pruned,
	}), "rider index prune complete")
	return nil
}
