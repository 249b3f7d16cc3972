package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/pkg/logger"
)

const outboxRetentionDays = 30

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxRetentionRepo
	DLQ        dlqRetentionRepo
	Retention  int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

type dlqRetentionRepo interface {
	DeleteFailedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		dlq:       params.DLQ,
		retention: retention,
		now:       time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      outboxRetentionRepo
	dlq       dlqRetentionRepo
	retention int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run deletes published events and dead letters older than the retention
// window. Each table is cleaned in its own transaction.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)

	var (
		published, deadLetters int64
		errs                   error
	)
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		published, err = j.repo.DeletePublishedBefore(tx, cutoff)
		return err
	})
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("outbox retention: %w", err))
	}
	if j.dlq != nil {
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			deadLetters, err = j.dlq.DeleteFailedBefore(tx, cutoff)
			return err
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dlq retention: %w", err))
		}
	}
	if errs != nil {
		return errs
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":              cutoff,
		"retention_days":      j.retention,
		"rows_deleted":        published,
		"dead_letter_deleted": deadLetters,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return nil
}
