package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/pkg/db"
	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := db.Bind(ctx, r.db).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := db.Bind(ctx, r.db).Where("email = ?", NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmailAndRole retrieves the user only when it carries role.
func (r *Repository) FindByEmailAndRole(ctx context.Context, email string, role enums.UserRole) (*models.User, error) {
	var user models.User
	err := db.Bind(ctx, r.db).
		Where("email = ? AND role = ?", NormalizeEmail(email), role).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := db.Bind(ctx, r.db).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListActiveInArea returns active users with role in area, ordered by email.
func (r *Repository) ListActiveInArea(ctx context.Context, role enums.UserRole, area string) ([]models.User, error) {
	var rows []models.User
	err := db.Bind(ctx, r.db).
		Where("role = ? AND area = ? AND is_active = ?", role, area, true).
		Order("email ASC").
		Find(&rows).Error
	return rows, err
}

// ListActiveAreas returns the distinct areas that have at least one active user with role.
func (r *Repository) ListActiveAreas(ctx context.Context, role enums.UserRole) ([]string, error) {
	var areas []string
	err := db.Bind(ctx, r.db).
		Model(&models.User{}).
		Where("role = ? AND is_active = ?", role, true).
		Distinct("area").
		Order("area ASC").
		Pluck("area", &areas).Error
	return areas, err
}

// ErrPhoneLocked means a rider asked to change phone while items bound to the
// current phone are still out for delivery.
var ErrPhoneLocked = errors.New("users: rider phone bound to undelivered items")

// riderPhoneFree holds for non-riders and for riders with nothing in flight.
const riderPhoneFree = `(role <> ? OR NOT EXISTS (
	SELECT 1 FROM order_items oi WHERE oi.rider_phone = users.phone AND oi.status = ?
))`

// UpdateProfile writes the provided columns. A phone change is refused with
// ErrPhoneLocked while the rider still holds assigned items.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, in UpdateUserInput) error {
	cols := in.columns()
	if len(cols) == 0 {
		return nil
	}
	q := db.Bind(ctx, r.db).Model(&models.User{}).Where("id = ?", id)
	_, phoneChange := cols["phone"]
	if phoneChange {
		q = q.Where(riderPhoneFree, enums.UserRoleRider, enums.OrderItemStatusAssignedToRider)
	}
	res := q.Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if phoneChange && res.RowsAffected == 0 {
		return ErrPhoneLocked
	}
	return nil
}

// SetActive flips the is_active flag.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return db.Bind(ctx, r.db).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return db.Bind(ctx, r.db).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// UpdatePasswordHash replaces the stored hash, used when Argon2 parameters change.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return db.Bind(ctx, r.db).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("password_hash", hash).Error
}
