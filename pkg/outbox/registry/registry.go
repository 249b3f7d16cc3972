// Package registry maps outbox rows to their pub/sub topic and typed payload.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/homechef-backend/pkg/config"
	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
	"github.com/angelmondragon/homechef-backend/pkg/outbox"
	"github.com/angelmondragon/homechef-backend/pkg/outbox/payloads"
)

// EventDescriptor routes one event type.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string

	decode func(json.RawMessage) (any, error)
}

// ResolvedEvent is a validated outbox row with its payload decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that will fail the same way on every attempt.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable"
	}
	return "non-retryable: " + e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// IsNonRetryable reports whether err or anything it wraps is a NonRetryableError.
func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}

type EventRegistry struct {
	routes map[enums.OutboxEventType]EventDescriptor
}

// route builds a descriptor whose payload decodes into a fresh T.
func route[T any](event enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:     event,
		AggregateType: aggregate,
		Topic:         topic,
		decode: func(raw json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(raw, payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// NewEventRegistry sends order item lifecycle events to the orders topic and
// rider availability to the riders topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	orders := cfg.OrdersTopic
	if orders == "" {
		return nil, errors.New("registry: orders topic required")
	}
	riders := cfg.RidersTopic
	if riders == "" {
		riders = orders
	}

	descriptors := []EventDescriptor{
		route[payloads.OrderItemConfirmedEvent](enums.EventOrderItemConfirmed, enums.AggregateOrderItem, orders),
		route[payloads.OrderItemAssignedEvent](enums.EventOrderItemAssigned, enums.AggregateOrderItem, orders),
		route[payloads.OrderItemDeliveredEvent](enums.EventOrderItemDelivered, enums.AggregateOrderItem, orders),
		route[payloads.RiderAvailabilityChangedEvent](enums.EventRiderAvailabilityChanged, enums.AggregateUser, riders),
	}
	r := &EventRegistry{routes: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, d := range descriptors {
		r.routes[d.EventType] = d
	}
	return r, nil
}

// Topics returns the distinct topics in sorted order.
func (r *EventRegistry) Topics() []string {
	topics := make([]string, 0, len(r.routes))
	for _, d := range r.routes {
		topics = append(topics, d.Topic)
	}
	slices.Sort(topics)
	return slices.Compact(topics)
}

// Resolve checks the row against its route and decodes the payload. Every
// failure is non-retryable: the row itself is wrong.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	fail := func(format string, args ...any) (*ResolvedEvent, error) {
		return nil, NewNonRetryableError(fmt.Errorf(format, args...))
	}

	d, ok := r.routes[row.EventType]
	switch {
	case !ok:
		return fail("no route for event type %q", row.EventType)
	case d.AggregateType != row.AggregateType:
		return fail("%s expects aggregate %s, row has %s", row.EventType, d.AggregateType, row.AggregateType)
	case row.AggregateID == uuid.Nil:
		return fail("%s row has no aggregate id", row.EventType)
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		return fail("envelope: %w", err)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fail("%s envelope carries no data", row.EventType)
	}
	payload, err := d.decode(env.Data)
	if err != nil {
		return fail("%s payload: %w", row.EventType, err)
	}
	return &ResolvedEvent{Descriptor: d, Envelope: env, Payload: payload}, nil
}
