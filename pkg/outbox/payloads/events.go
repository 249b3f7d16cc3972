package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/homechef-backend/pkg/enums"
)

// OrderItemConfirmedEvent is emitted when a customer checks an item out of the cart.
type OrderItemConfirmedEvent struct {
	OrderItemID uuid.UUID       `json:"order_item_id"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	FoodID      uuid.UUID       `json:"food_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	ConfirmedAt time.Time       `json:"confirmed_at"`
}

// OrderItemAssignedEvent is emitted once a rider is bound to an order item.
type OrderItemAssignedEvent struct {
	OrderItemID   uuid.UUID `json:"order_item_id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	FoodID        uuid.UUID `json:"food_id"`
	Area          string    `json:"area"`
	RiderEmail    string    `json:"rider_email"`
	RiderPhone    string    `json:"rider_phone"`
	SellerEmail   string    `json:"seller_email"`
	SellerAddress string    `json:"seller_address"`
	SellerPhone   string    `json:"seller_phone"`
	RiderIndex    int       `json:"rider_index"`
	AssignedAt    time.Time `json:"assigned_at"`
}

// OrderItemDeliveredEvent is emitted when the rider confirms the drop-off.
type OrderItemDeliveredEvent struct {
	OrderItemID uuid.UUID `json:"order_item_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	RiderPhone  string    `json:"rider_phone"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// RiderAvailabilityChangedEvent reports a rider going on or off duty.
type RiderAvailabilityChangedEvent struct {
	RiderID   uuid.UUID      `json:"rider_id"`
	Email     string         `json:"email"`
	Area      string         `json:"area"`
	Active    bool           `json:"active"`
	Role      enums.UserRole `json:"role"`
	ChangedAt time.Time      `json:"changed_at"`
}
