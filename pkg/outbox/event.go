package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
)

const envelopeVersion = 1

// ActorRef names the user whose request produced an event.
type ActorRef struct {
	UserID uuid.UUID      `json:"userId"`
	Email  string         `json:"email,omitempty"`
	Role   enums.UserRole `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and published as the message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DomainEvent is a state change to be published after its transaction commits.
// Zero Version and OccurredAt are filled in on emit.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

func (e DomainEvent) validate() error {
	switch {
	case !e.EventType.IsValid():
		return fmt.Errorf("outbox: unknown event type %q", e.EventType)
	case !e.AggregateType.IsValid():
		return fmt.Errorf("outbox: unknown aggregate type %q", e.AggregateType)
	case e.AggregateID == uuid.Nil:
		return fmt.Errorf("outbox: %s needs an aggregate id", e.EventType)
	}
	return nil
}

// row wraps the event data in an envelope and returns the outbox row to insert.
func (e DomainEvent) row(now time.Time) (models.OutboxEvent, PayloadEnvelope, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return models.OutboxEvent{}, PayloadEnvelope{}, fmt.Errorf("outbox: encode %s data: %w", e.EventType, err)
	}
	env := PayloadEnvelope{
		Version:    e.Version,
		EventID:    uuid.NewString(),
		OccurredAt: e.OccurredAt,
		Actor:      e.Actor,
		Data:       data,
	}
	if env.Version <= 0 {
		env.Version = envelopeVersion
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = now
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return models.OutboxEvent{}, PayloadEnvelope{}, fmt.Errorf("outbox: encode envelope: %w", err)
	}
	return models.OutboxEvent{
		EventType:     e.EventType,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		Payload:       payload,
	}, env, nil
}
