package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/pkg/config"
	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
	"github.com/angelmondragon/homechef-backend/pkg/metrics"
	"github.com/angelmondragon/homechef-backend/pkg/outbox/registry"
)

const (
	fallbackBatchSize   = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10
	idleCeiling         = 10 * time.Second
	jitter              = 250 * time.Millisecond
)

// Outcome labels recorded per relayed row.
const (
	outcomePublished    = "published"
	outcomeRetry        = "retry"
	outcomeDeadLettered = "dead_lettered"
)

type store interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// RelayParams collects the collaborators of a Relay. Sender and Metrics are
// optional.
type RelayParams struct {
	Outbox  config.OutboxConfig
	Logger  *logger.Logger
	Store   store
	Broker  broker
	Events  outboxRepository
	DLQ     dlqRepository
	Routes  resolver
	Sender  sender
	Metrics *metrics.OutboxMetrics
}

// Relay moves committed outbox rows onto Pub/Sub. Rows stay locked for the
// length of their batch transaction, so two relays never claim the same row.
type Relay struct {
	logg    *logger.Logger
	store   store
	broker  broker
	events  outboxRepository
	dlq     dlqRepository
	routes  resolver
	send    sender
	metrics *metrics.OutboxMetrics

	batch       int
	maxAttempts int
	poll        time.Duration
	now         func() time.Time
}

func NewRelay(p RelayParams) (*Relay, error) {
	var missing []error
	for _, dep := range []struct {
		name string
		ok   bool
	}{
		{"logger", p.Logger != nil},
		{"store", p.Store != nil},
		{"broker", p.Broker != nil},
		{"outbox repo", p.Events != nil},
		{"dlq repo", p.DLQ != nil},
		{"event registry", p.Routes != nil},
	} {
		if !dep.ok {
			missing = append(missing, fmt.Errorf("%s is required", dep.name))
		}
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}

	send := p.Sender
	if send == nil {
		send = brokerSender{broker: p.Broker}
	}
	poll := p.Outbox.PollInterval()
	if poll <= 0 {
		poll = fallbackPoll
	}
	return &Relay{
		logg:        p.Logger,
		store:       p.Store,
		broker:      p.Broker,
		events:      p.Events,
		dlq:         p.DLQ,
		routes:      p.Routes,
		send:        send,
		metrics:     p.Metrics,
		batch:       atLeastOne(p.Outbox.BatchSize, fallbackBatchSize),
		maxAttempts: atLeastOne(p.Outbox.MaxAttempts, fallbackMaxAttempts),
		poll:        poll,
		now:         time.Now,
	}, nil
}

func atLeastOne(v, fallback int) int {
	if v < 1 {
		return fallback
	}
	return v
}

// Run drains the outbox until ctx ends. A full batch loops immediately, an
// empty one waits one poll interval and a failed one doubles the wait up to
// idleCeiling.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := r.broker.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	wait := r.poll
	for ctx.Err() == nil {
		claimed, err := r.drainOnce(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox batch failed", err)
			wait = doubled(wait, idleCeiling)
		case claimed:
			wait = r.poll
			continue
		default:
			wait = r.poll
		}
		if err := pause(ctx, wait+rand.N(jitter)); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// drainOnce relays one batch and reports whether any row was claimed.
func (r *Relay) drainOnce(ctx context.Context) (bool, error) {
	var claimed bool
	err := r.store.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.events.FetchUnpublishedForPublish(tx, r.batch, r.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(rows) > 0
		for _, row := range rows {
			if err := r.handle(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

// handle publishes one row and records what happened to it. Only storage
// failures are returned; publish failures become retries or DLQ entries.
func (r *Relay) handle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	resolved, err := r.routes.Resolve(row)
	if err != nil {
		return r.bury(ctx, tx, row, "", enums.OutboxDLQReasonNonRetryable, err)
	}
	topic := resolved.Descriptor.Topic
	ctx = r.logg.WithFields(ctx, rowFields(row, topic))

	sendErr := r.send.Send(ctx, topic, buildMessage(row, resolved.Envelope))
	switch {
	case sendErr == nil:
		if err := r.events.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		r.metrics.Inc(string(row.EventType), outcomePublished)
		r.logg.Debug(ctx, "outbox event published")
		return nil
	case registry.IsNonRetryable(sendErr):
		return r.bury(ctx, tx, row, topic, enums.OutboxDLQReasonNonRetryable, sendErr)
	case row.AttemptCount+1 >= r.maxAttempts:
		return r.bury(ctx, tx, row, topic, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", sendErr))
	}

	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"attempt_count": row.AttemptCount + 1,
		"error":         sendErr.Error(),
	}), "outbox publish failed, will retry")
	if err := r.events.MarkFailedTx(tx, row.ID, sendErr); err != nil {
		return fmt.Errorf("mark failure %s: %w", row.ID, err)
	}
	r.metrics.Inc(string(row.EventType), outcomeRetry)
	return nil
}

// bury copies the row into the DLQ and retires it from the outbox.
func (r *Relay) bury(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, topic string, reason enums.OutboxDLQErrorReason, cause error) error {
	ctx = r.logg.WithFields(ctx, rowFields(row, topic))
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	}), "outbox event moved to dlq")

	msg := cause.Error()
	if err := r.dlq.InsertTx(tx, models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      r.now().UTC(),
	}); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := r.events.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	r.metrics.Inc(string(row.EventType), outcomeDeadLettered)
	return nil
}

func rowFields(row models.OutboxEvent, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
	}
	if topic != "" {
		fields["topic"] = topic
	}
	return fields
}

func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func doubled(current, ceiling time.Duration) time.Duration {
	return min(max(current, time.Millisecond)*2, ceiling)
}
