package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/pkg/config"
	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
	"github.com/angelmondragon/homechef-backend/pkg/metrics"
	"github.com/angelmondragon/homechef-backend/pkg/outbox"
	"github.com/angelmondragon/homechef-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/homechef-backend/pkg/outbox/registry"
)

type relayFixture struct {
	relay   *Relay
	events  *memOutbox
	dlq     *memDLQ
	sender  *scriptedSender
	metrics *prometheus.Registry
}

func newRelayFixture(t *testing.T, rows []models.OutboxEvent, routes resolver, cfg config.OutboxConfig) relayFixture {
	t.Helper()
	f := relayFixture{
		events:  &memOutbox{rows: rows},
		dlq:     &memDLQ{},
		sender:  &scriptedSender{},
		metrics: prometheus.NewRegistry(),
	}
	relay, err := NewRelay(RelayParams{
		Outbox:  cfg,
		Logger:  logger.New(logger.Options{ServiceName: "relay-test", Output: io.Discard}),
		Store:   passthroughStore{},
		Broker:  idleBroker{},
		Events:  f.events,
		DLQ:     f.dlq,
		Routes:  routes,
		Sender:  f.sender,
		Metrics: metrics.NewOutboxMetrics(f.metrics),
	})
	require.NoError(t, err)
	relay.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	f.relay = relay
	return f
}

func assignedRow(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderItemAssigned,
		AggregateType: enums.AggregateOrderItem,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

func ordersRoute() *staticRoutes {
	return &staticRoutes{resolved: &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "orders-topic", AggregateType: enums.AggregateOrderItem},
		Payload:    &payloads.OrderItemAssignedEvent{},
	}}
}

func TestNewRelayListsMissingDependencies(t *testing.T) {
	_, err := NewRelay(RelayParams{Logger: logger.Nop()})
	require.Error(t, err)
	for _, want := range []string{"store", "broker", "outbox repo", "dlq repo", "event registry"} {
		assert.ErrorContains(t, err, want)
	}
	assert.NotContains(t, err.Error(), "logger")
}

func TestNewRelayFallsBackOnBadConfig(t *testing.T) {
	f := newRelayFixture(t, nil, ordersRoute(), config.OutboxConfig{BatchSize: -1, PollIntervalMS: 0, MaxAttempts: 0})
	assert.Equal(t, fallbackBatchSize, f.relay.batch)
	assert.Equal(t, fallbackMaxAttempts, f.relay.maxAttempts)
	assert.Equal(t, fallbackPoll, f.relay.poll)
}

func TestDrainOnceRetriesTransientFailureAndKeepsGoing(t *testing.T) {
	first, second := assignedRow(t, 0), assignedRow(t, 0)
	f := newRelayFixture(t, []models.OutboxEvent{first, second}, ordersRoute(), config.OutboxConfig{MaxAttempts: 5})
	f.sender.errs = []error{errors.New("unavailable"), nil}

	claimed, err := f.relay.drainOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, claimed)

	assert.Equal(t, []uuid.UUID{first.ID}, f.events.failed)
	assert.Equal(t, []uuid.UUID{second.ID}, f.events.published)
	assert.Empty(t, f.dlq.entries)
	assert.Equal(t, []string{"orders-topic", "orders-topic"}, f.sender.topics)

	assert.Equal(t, 1.0, outcomeValue(t, f.metrics, outcomeRetry))
	assert.Equal(t, 1.0, outcomeValue(t, f.metrics, outcomePublished))
}

func TestDrainOnceDeadLettersUnresolvableRow(t *testing.T) {
	row := assignedRow(t, 0)
	routes := &staticRoutes{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	f := newRelayFixture(t, []models.OutboxEvent{row}, routes, config.OutboxConfig{})

	_, err := f.relay.drainOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, f.dlq.entries, 1)
	entry := f.dlq.entries[0]
	assert.Equal(t, row.ID, entry.EventID)
	assert.JSONEq(t, string(row.Payload), string(entry.Payload))
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	assert.Equal(t, "invalid payload", *entry.ErrorMessage)
	assert.Equal(t, f.relay.now(), entry.FailedAt)
	assert.Equal(t, []uuid.UUID{row.ID}, f.events.terminal)
	assert.Empty(t, f.sender.topics, "unresolved rows are never sent")
}

func TestDrainOnceDeadLettersOnLastAttempt(t *testing.T) {
	row := assignedRow(t, 1)
	f := newRelayFixture(t, []models.OutboxEvent{row}, ordersRoute(), config.OutboxConfig{MaxAttempts: 2})
	f.sender.errs = []error{errors.New("unavailable")}

	_, err := f.relay.drainOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, f.dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, f.dlq.entries[0].ErrorReason)
	assert.Empty(t, f.events.failed, "terminal rows are not also marked failed")
	assert.Equal(t, 1.0, outcomeValue(t, f.metrics, outcomeDeadLettered))
}

func TestDrainOnceSurfacesStorageFailure(t *testing.T) {
	row := assignedRow(t, 0)
	f := newRelayFixture(t, []models.OutboxEvent{row}, ordersRoute(), config.OutboxConfig{})
	f.events.markErr = errors.New("connection reset")

	_, err := f.relay.drainOnce(context.Background())
	assert.ErrorContains(t, err, "mark published")
}

func TestDrainOnceEmptyBatch(t *testing.T) {
	f := newRelayFixture(t, nil, ordersRoute(), config.OutboxConfig{})
	claimed, err := f.relay.drainOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestRunStopsWhenContextEnds(t *testing.T) {
	f := newRelayFixture(t, nil, ordersRoute(), config.OutboxConfig{PollIntervalMS: 5})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := f.relay.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBrokerSenderWithoutPublisherIsNonRetryable(t *testing.T) {
	err := brokerSender{broker: idleBroker{}}.Send(context.Background(), "riders", &gcppubsub.Message{})
	require.Error(t, err)
	assert.True(t, registry.IsNonRetryable(err))
}

func TestBuildMessageAttributes(t *testing.T) {
	row := assignedRow(t, 0)
	occurred := time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	msg := buildMessage(row, outbox.PayloadEnvelope{EventID: "evt-1", OccurredAt: occurred})

	assert.Equal(t, []byte(row.Payload), msg.Data)
	assert.Equal(t, map[string]string{
		"event_id":       "evt-1",
		"event_type":     string(enums.EventOrderItemAssigned),
		"aggregate_type": string(enums.AggregateOrderItem),
		"aggregate_id":   row.AggregateID.String(),
		"occurred_at":    "2026-03-01T08:30:00Z",
	}, msg.Attributes)
}

func TestDoubledCapsAtCeiling(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, doubled(100*time.Millisecond, time.Second))
	assert.Equal(t, time.Second, doubled(800*time.Millisecond, time.Second))
	assert.Equal(t, 2*time.Millisecond, doubled(0, time.Second))
}

func outcomeValue(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != "homechef_outbox_events_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

type memOutbox struct {
	rows      []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
	markErr   error
}

func (m *memOutbox) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return m.rows, nil
}

func (m *memOutbox) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.published = append(m.published, id)
	return nil
}

func (m *memOutbox) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	m.failed = append(m.failed, id)
	return nil
}

func (m *memOutbox) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	m.terminal = append(m.terminal, id)
	return nil
}

type memDLQ struct {
	entries []models.OutboxDLQ
}

func (m *memDLQ) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	m.entries = append(m.entries, entry)
	return nil
}

type passthroughStore struct{}

func (passthroughStore) Ping(context.Context) error { return nil }

func (passthroughStore) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type idleBroker struct{}

func (idleBroker) Ping(context.Context) error { return nil }

func (idleBroker) Publisher(string) *gcppubsub.Publisher { return nil }

// scriptedSender returns errs in order, then succeeds.
type scriptedSender struct {
	errs   []error
	topics []string
}

func (s *scriptedSender) Send(_ context.Context, topic string, _ *gcppubsub.Message) error {
	s.topics = append(s.topics, topic)
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

type staticRoutes struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (s *staticRoutes) Resolve(row models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := *s.resolved
	out.Envelope = outbox.PayloadEnvelope{EventID: row.ID.String(), OccurredAt: time.Now()}
	return &out, nil
}
