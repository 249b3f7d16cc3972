package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/pkg/db"
	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, item *models.OrderItem) (*models.OrderItem, error) {
	if err := db.Bind(ctx, r.db).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func (r *repository) FindOwned(ctx context.Context, customerID, itemID uuid.UUID) (*models.OrderItem, error) {
	var item models.OrderItem
	err := db.Bind(ctx, r.db).
		Where("id = ? AND customer_id = ?", itemID, customerID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindOpenByFood returns the customer's unconfirmed line for foodID, if any.
func (r *repository) FindOpenByFood(ctx context.Context, customerID, foodID uuid.UUID) (*models.OrderItem, error) {
	var item models.OrderItem
	err := db.Bind(ctx, r.db).
		Where("customer_id = ? AND food_id = ? AND status = ?", customerID, foodID, enums.OrderItemStatusCart).
		Order("created_at ASC").
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.OrderItem, error) {
	var rows []models.OrderItem
	err := db.Bind(ctx, r.db).
		Where("customer_id = ?", customerID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListOpen(ctx context.Context, customerID uuid.UUID) ([]models.OrderItem, error) {
	var rows []models.OrderItem
	err := db.Bind(ctx, r.db).
		Where("customer_id = ? AND status = ?", customerID, enums.OrderItemStatusCart).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) AddQuantity(ctx context.Context, itemID uuid.UUID, delta int) error {
	return db.Bind(ctx, r.db).
		Model(&models.OrderItem{}).
		Where("id = ?", itemID).
		Update("quantity", gorm.Expr("quantity + ?", delta)).Error
}

// SetQuantity changes the quantity of an open line and reports whether it matched.
func (r *repository) SetQuantity(ctx context.Context, customerID, itemID uuid.UUID, quantity int) (bool, error) {
	res := db.Bind(ctx, r.db).
		Model(&models.OrderItem{}).
		Where("id = ? AND customer_id = ? AND status = ?", itemID, customerID, enums.OrderItemStatusCart).
		Update("quantity", quantity)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) DeleteOpen(ctx context.Context, customerID, itemID uuid.UUID) (bool, error) {
	res := db.Bind(ctx, r.db).
		Where("id = ? AND customer_id = ? AND status = ?", itemID, customerID, enums.OrderItemStatusCart).
		Delete(&models.OrderItem{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Confirm moves a cart line to confirmed. It reports false when the line was
// no longer in the cart.
func (r *repository) Confirm(ctx context.Context, itemID uuid.UUID, at time.Time) (bool, error) {
	res := db.Bind(ctx, r.db).
		Model(&models.OrderItem{}).
		Where("id = ? AND status = ? AND quantity > 0", itemID, enums.OrderItemStatusCart).
		Updates(map[string]any{
			"status":       enums.OrderItemStatusConfirmed,
			"confirmed_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
