package foods

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/pkg/db"
	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
	"github.com/angelmondragon/homechef-backend/pkg/pagination"
)

// Repository persists food listings.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, food *models.FoodListing) (*models.FoodListing, error) {
	if err := db.Bind(ctx, r.db).Create(food).Error; err != nil {
		return nil, err
	}
	return food, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.FoodListing, error) {
	var food models.FoodListing
	if err := db.Bind(ctx, r.db).First(&food, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &food, nil
}

func (r *Repository) ListBySeller(ctx context.Context, sellerEmail string) ([]models.FoodListing, error) {
	var rows []models.FoodListing
	err := db.Bind(ctx, r.db).
		Where("seller_email = ?", sellerEmail).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	return rows, err
}

// List returns one page ordered newest first plus the cursor of the next page.
func (r *Repository) List(ctx context.Context, params pagination.Params, cursor *pagination.Cursor) ([]models.FoodListing, *pagination.Cursor, error) {
	query := db.Bind(ctx, r.db).Model(&models.FoodListing{})
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.FoodListing
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.FetchLimit(params.Limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, params.Limit, func(f models.FoodListing) pagination.Cursor {
		return pagination.Cursor{CreatedAt: f.CreatedAt, ID: f.ID}
	})
	return page, next, nil
}

// Update writes cols and reports whether the listing exists.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, cols map[string]any) (bool, error) {
	if len(cols) == 0 {
		var count int64
		err := db.Bind(ctx, r.db).Model(&models.FoodListing{}).Where("id = ?", id).Count(&count).Error
		return count > 0, err
	}
	res := db.Bind(ctx, r.db).Model(&models.FoodListing{}).Where("id = ?", id).Updates(cols)
	return res.RowsAffected > 0, res.Error
}

type areaFoodRow struct {
	models.FoodListing
	SellerName string
}

// ListForArea returns listings whose seller email belongs to a seller in area.
func (r *Repository) ListForArea(ctx context.Context, area string) ([]AreaFood, error) {
	var rows []areaFoodRow
	err := db.Bind(ctx, r.db).
		Table("food_listings AS f").
		Select("f.*, u.name AS seller_name").
		Joins("JOIN users u ON u.email = f.seller_email AND u.role = ?", enums.UserRoleSeller).
		Where("u.area = ?", area).
		Order("f.created_at DESC, f.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]AreaFood, 0, len(rows))
	for i := range rows {
		out = append(out, AreaFood{FoodDTO: FromModel(&rows[i].FoodListing), SellerName: rows[i].SellerName})
	}
	return out, nil
}
