package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/homechef-backend/pkg/logger"
	"github.com/angelmondragon/homechef-backend/pkg/metrics"
)

const (
	defaultInterval   = time.Hour
	defaultJobTimeout = 5 * time.Minute
)

// ErrLocked is returned by RunOnce when another worker holds the cycle lock.
var ErrLocked = errors.New("cron: cycle lock held by another worker")

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// Service runs every registered job once per interval while holding a distributed lock,
// so only one cron worker replica does maintenance at a time.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("cron: logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("cron: lock required")
	}
	if params.Registry == nil {
		params.Registry = NewRegistry()
	}
	if params.Interval <= 0 {
		params.Interval = defaultInterval
	}
	if params.JobTimeout <= 0 {
		params.JobTimeout = defaultJobTimeout
	}
	return &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
	}, nil
}

// Run executes a cycle immediately, then one per interval until ctx is done.
// Cycle failures are logged and never stop the loop.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.RunOnce(ctx, ""); err != nil && !errors.Is(err, ErrLocked) {
			s.logg.Error(ctx, "cron cycle finished with errors", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs a single cycle. A non-empty only restricts the cycle to that job.
// Every selected job runs even if an earlier one failed; their errors are combined.
func (s *Service) RunOnce(ctx context.Context, only string) error {
	jobs := s.registry.Jobs()
	if only != "" {
		job, ok := s.registry.Lookup(only)
		if !ok {
			return fmt.Errorf("cron: unknown job %q", only)
		}
		jobs = []Job{job}
	}

	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("cron: acquire lock: %w", err)
	}
	if !acquired {
		s.logg.Info(ctx, "cron cycle skipped, lock held elsewhere")
		return ErrLocked
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "failed to release cron lock", err)
		}
	}()

	var errs error
	for _, job := range jobs {
		errs = multierr.Append(errs, s.runJob(ctx, job))
	}
	return errs
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	ctx = s.logg.WithField(ctx, "job", name)
	jobCtx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	started := time.Now()
	err := job.Run(jobCtx)
	elapsed := time.Since(started)
	s.metrics.Observe(name, elapsed, err)

	ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "cron job failed", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	s.logg.Info(ctx, "cron job completed")
	return nil
}
