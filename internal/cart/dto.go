package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
)

// AddItemInput is the add-to-cart payload. Quantity defaults to 1.
type AddItemInput struct {
	FoodID   uuid.UUID `json:"foodId" validate:"required"`
	Quantity int       `json:"quantity" validate:"gte=0"`
}

// UpdateQuantityInput sets the quantity of an open cart line.
type UpdateQuantityInput struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// ItemDTO is a customer's order item as shown in the cart view.
type ItemDTO struct {
	ID                uuid.UUID             `json:"id"`
	FoodID            uuid.UUID             `json:"foodId"`
	FoodName          string                `json:"foodName"`
	FoodPicture       string                `json:"foodPicture"`
	FoodPrice         decimal.Decimal       `json:"foodPrice"`
	SellerName        string                `json:"sellerName"`
	Quantity          int                   `json:"quantity"`
	Status            enums.OrderItemStatus `json:"status"`
	RiderPhone        string                `json:"riderPhone"`
	ConfirmedOrder    bool                  `json:"confirmedOrder"`
	SentToRider       bool                  `json:"sentToRider"`
	ConfirmedDelivery bool                  `json:"confirmedDelivery"`
	CreatedAt         time.Time             `json:"createdAt"`
}

// ConfirmAllResult reports how many cart lines were confirmed.
type ConfirmAllResult struct {
	Confirmed int `json:"confirmed"`
	Skipped   int `json:"skipped"`
}

func FromModel(item *models.OrderItem) ItemDTO {
	return ItemDTO{
		ID:                item.ID,
		FoodID:            item.FoodID,
		FoodName:          item.FoodName,
		FoodPicture:       item.FoodPicture,
		FoodPrice:         item.FoodPrice,
		SellerName:        item.SellerName,
		Quantity:          item.Quantity,
		Status:            item.Status,
		RiderPhone:        item.RiderPhone,
		ConfirmedOrder:    item.ConfirmedOrder(),
		SentToRider:       item.SentToRider(),
		ConfirmedDelivery: item.ConfirmedDelivery(),
		CreatedAt:         item.CreatedAt,
	}
}

func fromModels(rows []models.OrderItem) []ItemDTO {
	out := make([]ItemDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out
}
