package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/pkg/db/models"
)

// Repository defines the persistence surface required by the cart service.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.OrderItem) (*models.OrderItem, error)
	FindOwned(ctx context.Context, customerID, itemID uuid.UUID) (*models.OrderItem, error)
	FindOpenByFood(ctx context.Context, customerID, foodID uuid.UUID) (*models.OrderItem, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.OrderItem, error)
	ListOpen(ctx context.Context, customerID uuid.UUID) ([]models.OrderItem, error)
	AddQuantity(ctx context.Context, itemID uuid.UUID, delta int) error
	SetQuantity(ctx context.Context, customerID, itemID uuid.UUID, quantity int) (bool, error)
	DeleteOpen(ctx context.Context, customerID, itemID uuid.UUID) (bool, error)
	Confirm(ctx context.Context, itemID uuid.UUID, at time.Time) (bool, error)
}
