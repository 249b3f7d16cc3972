package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/pkg/enums"
)

// RiderUnassigned is stored in rider_phone until a rider takes the item.
const RiderUnassigned = "Not assigned to rider yet"

// BindableRiderPhone reports whether phone can identify a rider on an order
// item: it must be non-blank and differ from RiderUnassigned.
func BindableRiderPhone(phone string) bool {
	phone = strings.TrimSpace(phone)
	return phone != "" && phone != RiderUnassigned
}

// OrderItem is one food line owned by a customer. The food fields are a
// snapshot taken when the item entered the cart.
type OrderItem struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID    uuid.UUID             `gorm:"column:customer_id;type:uuid;not null;index"`
	FoodID        uuid.UUID             `gorm:"column:food_id;type:uuid;not null;index"`
	FoodName      string                `gorm:"column:food_name;not null"`
	FoodPicture   string                `gorm:"column:food_picture;not null;default:''"`
	FoodPrice     decimal.Decimal       `gorm:"column:food_price;type:numeric(10,2);not null"`
	SellerName    string                `gorm:"column:seller_name;not null;default:''"`
	Quantity      int                   `gorm:"column:quantity;not null"`
	Status        enums.OrderItemStatus `gorm:"column:status;type:text;not null;default:'cart'"`
	SellerAddress string                `gorm:"column:seller_address;not null;default:''"`
	SellerPhone   string                `gorm:"column:seller_phone;not null;default:''"`
	RiderPhone    string                `gorm:"column:rider_phone;not null;default:'Not assigned to rider yet';index"`
	ConfirmedAt   *time.Time            `gorm:"column:confirmed_at"`
	AssignedAt    *time.Time            `gorm:"column:assigned_at"`
	DeliveredAt   *time.Time            `gorm:"column:delivered_at"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *OrderItem) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.RiderPhone == "" {
		o.RiderPhone = RiderUnassigned
	}
	if o.Status == "" {
		o.Status = enums.OrderItemStatusCart
	}
	return nil
}

// IsRiderAssigned reports whether a rider has been bound to the item.
func (o OrderItem) IsRiderAssigned() bool {
	return BindableRiderPhone(o.RiderPhone)
}

// ConfirmedOrder is true once the customer confirmed the item.
func (o OrderItem) ConfirmedOrder() bool {
	return o.Status.AtLeast(enums.OrderItemStatusConfirmed)
}

// SentToRider is true once a rider was assigned.
func (o OrderItem) SentToRider() bool {
	return o.Status.AtLeast(enums.OrderItemStatusAssignedToRider)
}

// ConfirmedDelivery is true once the rider confirmed the drop-off.
func (o OrderItem) ConfirmedDelivery() bool {
	return o.Status == enums.OrderItemStatusDelivered
}
