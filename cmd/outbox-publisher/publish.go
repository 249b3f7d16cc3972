package main

import (
	"context"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/outbox"
	"github.com/angelmondragon/homechef-backend/pkg/outbox/registry"
)

const publishTimeout = 15 * time.Second

// broker is the slice of pkg/pubsub.Client the relay needs.
type broker interface {
	Ping(context.Context) error
	Publisher(topic string) *gcppubsub.Publisher
}

// sender delivers one message to a topic and waits for the server ack.
type sender interface {
	Send(ctx context.Context, topic string, msg *gcppubsub.Message) error
}

type brokerSender struct {
	broker broker
}

func (b brokerSender) Send(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	pub := b.broker.Publisher(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	_, err := pub.Publish(ctx, msg).Get(ctx)
	return err
}

// buildMessage forwards the stored envelope as-is. Attributes let subscribers
// filter without decoding the body.
func buildMessage(row models.OutboxEvent, env outbox.PayloadEnvelope) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       env.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"occurred_at":    env.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}
}
