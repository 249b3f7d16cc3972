package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
)

// Flags keeps the lifecycle vocabulary clients already understand. Every flag
// is derived from Status.
type Flags struct {
	ConfirmedOrder    bool `json:"confirmedOrder"`
	SentToRider       bool `json:"sentToRider"`
	ConfirmedDelivery bool `json:"confirmedDelivery"`
}

func flagsFor(status enums.OrderItemStatus) Flags {
	return Flags{
		ConfirmedOrder:    status.AtLeast(enums.OrderItemStatusConfirmed),
		SentToRider:       status.AtLeast(enums.OrderItemStatusAssignedToRider),
		ConfirmedDelivery: status == enums.OrderItemStatusDelivered,
	}
}

// CustomerContact is the delivery destination shown to riders and sellers.
type CustomerContact struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// RiderOrder is one order item bound to the requesting rider.
type RiderOrder struct {
	OrderItemID   uuid.UUID             `json:"orderItemId"`
	Customer      CustomerContact       `json:"customer"`
	FoodID        uuid.UUID             `json:"foodId"`
	FoodName      string                `json:"foodName"`
	FoodPicture   string                `json:"foodPicture"`
	Price         decimal.Decimal       `json:"price"`
	Quantity      int                   `json:"quantity"`
	SellerName    string                `json:"sellerName"`
	SellerAddress string                `json:"sellerAddress"`
	SellerPhone   string                `json:"sellerPhone"`
	Status        enums.OrderItemStatus `json:"status"`
	AssignedAt    *time.Time            `json:"assignedAt,omitempty"`
	Flags
}

// SellerOrder is one confirmed order item for a seller's food listing.
type SellerOrder struct {
	OrderItemID uuid.UUID             `json:"orderItemId"`
	FoodID      uuid.UUID             `json:"foodId"`
	Customer    CustomerContact       `json:"customer"`
	Quantity    int                   `json:"quantity"`
	Price       decimal.Decimal       `json:"price"`
	RiderPhone  string                `json:"riderPhone"`
	Status      enums.OrderItemStatus `json:"status"`
	ConfirmedAt *time.Time            `json:"confirmedAt,omitempty"`
	Flags
}

// DeliveryDTO is returned when a rider confirms a delivery.
type DeliveryDTO struct {
	OrderItemID uuid.UUID             `json:"orderItemId"`
	RiderPhone  string                `json:"riderPhone"`
	Status      enums.OrderItemStatus `json:"status"`
	DeliveredAt *time.Time            `json:"deliveredAt,omitempty"`
	Flags
}

func DeliveryFromModel(item *models.OrderItem) DeliveryDTO {
	return DeliveryDTO{
		OrderItemID: item.ID,
		RiderPhone:  item.RiderPhone,
		Status:      item.Status,
		DeliveredAt: item.DeliveredAt,
		Flags:       flagsFor(item.Status),
	}
}

// RiderBinding is the set of columns written when a rider takes an item.
type RiderBinding struct {
	RiderPhone    string
	SellerAddress string
	SellerPhone   string
	AssignedAt    time.Time
}

// ConfirmDeliveryInput identifies the item being delivered. RiderEmail, when
// set, must name the rider bound to the item.
type ConfirmDeliveryInput struct {
	OrderItemID uuid.UUID
	RiderEmail  string
}

// projectionRow is the flat shape scanned from the order_items/users join.
type projectionRow struct {
	ID              uuid.UUID
	CustomerName    string
	CustomerAddress string
	CustomerPhone   string
	FoodID          uuid.UUID
	FoodName        string
	FoodPicture     string
	FoodPrice       decimal.Decimal
	Quantity        int
	SellerName      string
	SellerAddress   string
	SellerPhone     string
	RiderPhone      string
	Status          enums.OrderItemStatus
	ConfirmedAt     *time.Time
	AssignedAt      *time.Time
}

func (r projectionRow) customer() CustomerContact {
	return CustomerContact{Name: r.CustomerName, Address: r.CustomerAddress, Phone: r.CustomerPhone}
}

func (r projectionRow) riderOrder() RiderOrder {
	return RiderOrder{
		OrderItemID:   r.ID,
		Customer:      r.customer(),
		FoodID:        r.FoodID,
		FoodName:      r.FoodName,
		FoodPicture:   r.FoodPicture,
		Price:         r.FoodPrice,
		Quantity:      r.Quantity,
		SellerName:    r.SellerName,
		SellerAddress: r.SellerAddress,
		SellerPhone:   r.SellerPhone,
		Status:        r.Status,
		AssignedAt:    r.AssignedAt,
		Flags:         flagsFor(r.Status),
	}
}

func (r projectionRow) sellerOrder() SellerOrder {
	return SellerOrder{
		OrderItemID: r.ID,
		FoodID:      r.FoodID,
		Customer:    r.customer(),
		Quantity:    r.Quantity,
		Price:       r.FoodPrice,
		RiderPhone:  r.RiderPhone,
		Status:      r.Status,
		ConfirmedAt: r.ConfirmedAt,
		Flags:       flagsFor(r.Status),
	}
}
