package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/pkg/db/dbtest"
	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
)

func TestEmitWritesEnvelopeInTransaction(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc := NewService(repo, logger.Nop())

	itemID := uuid.New()
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderItemDelivered,
			AggregateType: enums.AggregateOrderItem,
			AggregateID:   itemID,
			Actor:         &ActorRef{Email: "rider@example.com", Role: enums.UserRoleRider},
			Data:          map[string]string{"rider_phone": "555-0101"},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, itemID, rows[0].AggregateID)
	assert.Nil(t, rows[0].PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	assert.Equal(t, "rider@example.com", envelope.Actor.Email)
	assert.JSONEq(t, `{"rider_phone":"555-0101"}`, string(envelope.Data))
}

func TestEmitRollsBackWithCaller(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderItemAssigned,
			AggregateType: enums.AggregateOrderItem,
			AggregateID:   uuid.New(),
			Data:          struct{}{},
		}); err != nil {
			return err
		}
		return errors.New("assignment lost the race")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitRejectsUnknownTypes(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)

	err := svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.OutboxEventType("bogus"),
		AggregateType: enums.AggregateOrderItem,
	})
	assert.Error(t, err)
	assert.Error(t, svc.Emit(context.Background(), nil, DomainEvent{}))

	err = svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.EventOrderItemDelivered,
		AggregateType: enums.AggregateOrderItem,
	})
	assert.ErrorContains(t, err, "aggregate id")
}

func TestEmitKeepsCallerTimestamp(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.EventRiderAvailabilityChanged,
		AggregateType: enums.AggregateUser,
		AggregateID:   uuid.New(),
		Data:          map[string]bool{"active": true},
		Version:       2,
		OccurredAt:    at,
	}))

	var row models.OutboxEvent
	require.NoError(t, db.First(&row).Error)
	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &env))
	assert.Equal(t, 2, env.Version)
	assert.True(t, at.Equal(env.OccurredAt))
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)

	first := models.OutboxEvent{EventType: enums.EventOrderItemAssigned, AggregateType: enums.AggregateOrderItem, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	second := models.OutboxEvent{EventType: enums.EventOrderItemDelivered, AggregateType: enums.AggregateOrderItem, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), AttemptCount: 3}
	require.NoError(t, repo.Insert(db, first))
	require.NoError(t, repo.Insert(db, second))

	rows, err := repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1, "rows at max attempts are not fetched")

	require.NoError(t, repo.MarkFailedTx(db, rows[0].ID, errors.New("pubsub unavailable")))
	var reloaded models.OutboxEvent
	require.NoError(t, db.First(&reloaded, "id = ?", rows[0].ID).Error)
	assert.Equal(t, 1, reloaded.AttemptCount)
	require.NotNil(t, reloaded.LastError)
	assert.Equal(t, "pubsub unavailable", *reloaded.LastError)

	require.NoError(t, repo.MarkPublishedTx(db, rows[0].ID))
	rows, err = repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, rows)

	deleted, err := repo.DeletePublishedBefore(nil, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
