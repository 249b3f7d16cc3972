package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/pkg/db"
	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
)

const projectionColumns = `oi.id, oi.food_id, oi.food_name, oi.food_picture, oi.food_price, oi.quantity,
 oi.seller_name, oi.seller_address, oi.seller_phone, oi.rider_phone, oi.status, oi.confirmed_at, oi.assigned_at,
 u.name AS customer_name, u.address AS customer_address, u.phone AS customer_phone`

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindItem(ctx context.Context, id uuid.UUID) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := db.Bind(ctx, r.db).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// BindRider moves a confirmed, unassigned item to assigned_to_rider. It
// reports false when the guard did not match, meaning another assignment won.
func (r *repository) BindRider(ctx context.Context, id uuid.UUID, binding RiderBinding) (bool, error) {
	res := db.Bind(ctx, r.db).
		Model(&models.OrderItem{}).
		Where("id = ? AND rider_phone = ? AND status = ?", id, models.RiderUnassigned, enums.OrderItemStatusConfirmed).
		Updates(map[string]any{
			"status":         enums.OrderItemStatusAssignedToRider,
			"rider_phone":    binding.RiderPhone,
			"seller_address": binding.SellerAddress,
			"seller_phone":   binding.SellerPhone,
			"assigned_at":    binding.AssignedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkDelivered moves an assigned item to delivered and reports whether it did.
func (r *repository) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := db.Bind(ctx, r.db).
		Model(&models.OrderItem{}).
		Where("id = ? AND status = ?", id, enums.OrderItemStatusAssignedToRider).
		Updates(map[string]any{
			"status":       enums.OrderItemStatusDelivered,
			"delivered_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListByRiderPhone returns the items bound to phone. Unbindable phones match
// nothing, and lines that never reached a rider are never returned.
func (r *repository) ListByRiderPhone(ctx context.Context, phone string) ([]RiderOrder, error) {
	if !models.BindableRiderPhone(phone) {
		return []RiderOrder{}, nil
	}
	var rows []projectionRow
	err := r.projection(ctx).
		Where("oi.rider_phone = ? AND oi.status IN ?", phone, enums.ReachedStatuses(enums.OrderItemStatusAssignedToRider)).
		Order("oi.assigned_at ASC, oi.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]RiderOrder, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.riderOrder())
	}
	return out, nil
}

func (r *repository) ListConfirmedByFood(ctx context.Context, foodID uuid.UUID) ([]SellerOrder, error) {
	var rows []projectionRow
	err := r.projection(ctx).
		Where("oi.food_id = ? AND oi.status IN ?", foodID, enums.ReachedStatuses(enums.OrderItemStatusConfirmed)).
		Order("oi.confirmed_at ASC, oi.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]SellerOrder, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.sellerOrder())
	}
	return out, nil
}

func (r *repository) projection(ctx context.Context) *gorm.DB {
	return db.Bind(ctx, r.db).
		Table("order_items AS oi").
		Select(projectionColumns).
		Joins("JOIN users u ON u.id = oi.customer_id")
}
