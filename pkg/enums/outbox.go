package enums

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregateOrderItem OutboxAggregateType = "order_item"
	AggregateUser      OutboxAggregateType = "user"
)

var aggregateTypes = []OutboxAggregateType{AggregateOrderItem, AggregateUser}

func (a OutboxAggregateType) IsValid() bool { return member(a, aggregateTypes) }

// OutboxEventType names a domain event emitted through the outbox.
type OutboxEventType string

const (
	EventOrderItemConfirmed       OutboxEventType = "order_item_confirmed"
	EventOrderItemAssigned        OutboxEventType = "order_item_assigned"
	EventOrderItemDelivered       OutboxEventType = "order_item_delivered"
	EventRiderAvailabilityChanged OutboxEventType = "rider_availability_changed"
)

var eventTypes = []OutboxEventType{
	EventOrderItemConfirmed,
	EventOrderItemAssigned,
	EventOrderItemDelivered,
	EventRiderAvailabilityChanged,
}

func (e OutboxEventType) IsValid() bool { return member(e, eventTypes) }

// OutboxDLQErrorReason records why the publisher gave up on an event.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return member(r, []OutboxDLQErrorReason{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable})
}
