package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
	"github.com/angelmondragon/homechef-backend/pkg/outbox"
)

type memDeadLetters struct {
	rows      []models.OutboxDLQ
	requeued  []uuid.UUID
	requeueFn func(uuid.UUID) error
}

func (m *memDeadLetters) Recent(_ context.Context, limit int) ([]models.OutboxDLQ, error) {
	return m.rows[:min(limit, len(m.rows))], nil
}

func (m *memDeadLetters) RequeueTx(_ *gorm.DB, id uuid.UUID) error {
	if m.requeueFn != nil {
		if err := m.requeueFn(id); err != nil {
			return err
		}
	}
	m.requeued = append(m.requeued, id)
	return nil
}

func TestPrintDeadLetters(t *testing.T) {
	msg := "no publisher for topic riders"
	id := uuid.New()
	dlq := &memDeadLetters{rows: []models.OutboxDLQ{{
		EventID:      id,
		EventType:    enums.EventRiderAvailabilityChanged,
		ErrorReason:  enums.OutboxDLQReasonNonRetryable,
		ErrorMessage: &msg,
		AttemptCount: 3,
		FailedAt:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}, {EventID: uuid.New()}}}

	var out bytes.Buffer
	require.NoError(t, printDeadLetters(context.Background(), &out, dlq, 1))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "EVENT ID")
	for _, want := range []string{id.String(), "rider_availability_changed", "non_retryable", "2026-03-01T09:00:00Z", msg} {
		assert.Contains(t, string(lines[1]), want)
	}
}

func TestRequeueDeadLetter(t *testing.T) {
	dlq := &memDeadLetters{}
	id := uuid.New()

	require.NoError(t, requeueDeadLetter(context.Background(), passthroughStore{}, dlq, id.String()))
	assert.Equal(t, []uuid.UUID{id}, dlq.requeued)

	assert.Error(t, requeueDeadLetter(context.Background(), passthroughStore{}, dlq, "not-a-uuid"))

	dlq.requeueFn = func(uuid.UUID) error { return outbox.ErrNotDeadLettered }
	err := requeueDeadLetter(context.Background(), passthroughStore{}, dlq, id.String())
	assert.ErrorIs(t, err, outbox.ErrNotDeadLettered)
}
