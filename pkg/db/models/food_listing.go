package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FoodListing is a dish a seller offers. Delivery and cut-off times are free text.
type FoodListing struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SellerEmail        string          `gorm:"column:seller_email;type:text;not null;index"`
	Name               string          `gorm:"column:name;not null"`
	Description        string          `gorm:"column:description;not null;default:''"`
	Price              decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	PictureURL         string          `gorm:"column:picture_url;not null;default:''"`
	Category           string          `gorm:"column:category;not null;default:''"`
	ExpectedDeliveryAt string          `gorm:"column:expected_delivery_at;not null;default:''"`
	LastOrderAt        string          `gorm:"column:last_order_at;not null;default:''"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (f *FoodListing) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	return nil
}
