package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/pkg/db/models"
)

// Repository defines persistence operations for order items past the cart.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindItem(ctx context.Context, id uuid.UUID) (*models.OrderItem, error)
	BindRider(ctx context.Context, id uuid.UUID, binding RiderBinding) (bool, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListByRiderPhone(ctx context.Context, phone string) ([]RiderOrder, error)
	ListConfirmedByFood(ctx context.Context, foodID uuid.UUID) ([]SellerOrder, error)
}
