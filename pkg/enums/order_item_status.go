package enums

import "slices"

// OrderItemStatus tracks an order item from the cart to the customer's door.
type OrderItemStatus string

const (
	OrderItemStatusCart            OrderItemStatus = "cart"
	OrderItemStatusConfirmed       OrderItemStatus = "confirmed"
	OrderItemStatusAssignedToRider OrderItemStatus = "assigned_to_rider"
	OrderItemStatusDelivered       OrderItemStatus = "delivered"
)

// ordered by lifecycle position
var validOrderItemStatuses = []OrderItemStatus{
	OrderItemStatusCart,
	OrderItemStatusConfirmed,
	OrderItemStatusAssignedToRider,
	OrderItemStatusDelivered,
}

func (s OrderItemStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderItemStatus.
func (s OrderItemStatus) IsValid() bool {
	return s.rank() >= 0
}

func ParseOrderItemStatus(value string) (OrderItemStatus, error) {
	return parseMember(value, "order item status", validOrderItemStatuses)
}

// CanTransitionTo reports whether next directly follows s in the lifecycle.
// Steps are never skipped and never reversed.
func (s OrderItemStatus) CanTransitionTo(next OrderItemStatus) bool {
	from, to := s.rank(), next.rank()
	return from >= 0 && to == from+1
}

// AtLeast reports whether s has reached other in the lifecycle.
func (s OrderItemStatus) AtLeast(other OrderItemStatus) bool {
	from, to := s.rank(), other.rank()
	return from >= 0 && to >= 0 && from >= to
}

// ReachedStatuses returns every status at or beyond from, for IN filters.
func ReachedStatuses(from OrderItemStatus) []OrderItemStatus {
	rank := from.rank()
	if rank < 0 {
		return nil
	}
	out := make([]OrderItemStatus, len(validOrderItemStatuses)-rank)
	copy(out, validOrderItemStatuses[rank:])
	return out
}

func (s OrderItemStatus) rank() int {
	return slices.Index(validOrderItemStatuses, s)
}
