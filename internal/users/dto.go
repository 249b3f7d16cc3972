package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	Address     string         `json:"address"`
	Phone       string         `json:"phone"`
	Area        string         `json:"area"`
	Role        enums.UserRole `json:"role"`
	IsActive    bool           `json:"isActive"`
	LastLoginAt *time.Time     `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	Name         string
	Address      string
	Phone        string
	Area         string
	Role         enums.UserRole
}

// UpdateUserInput carries the editable profile fields. Nil fields are left untouched.
type UpdateUserInput struct {
	Name    *string
	Address *string
	Phone   *string
	Area    *string
}

func (in UpdateUserInput) columns() map[string]any {
	cols := map[string]any{}
	if in.Name != nil {
		cols["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Address != nil {
		cols["address"] = strings.TrimSpace(*in.Address)
	}
	if in.Phone != nil {
		cols["phone"] = NormalizePhone(*in.Phone)
	}
	if in.Area != nil {
		cols["area"] = NormalizeArea(*in.Area)
	}
	return cols
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Address:     u.Address,
		Phone:       u.Phone,
		Area:        u.Area,
		Role:        u.Role,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// ToModel builds a new, active user row.
func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		Email:        NormalizeEmail(c.Email),
		PasswordHash: c.PasswordHash,
		Name:         strings.TrimSpace(c.Name),
		Address:      strings.TrimSpace(c.Address),
		Phone:        NormalizePhone(c.Phone),
		Area:         NormalizeArea(c.Area),
		Role:         c.Role,
		IsActive:     true,
	}
}

// NormalizeEmail lower-cases and trims an email address. Emails are stored this way.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeArea trims an area name. Area matching stays case sensitive.
func NormalizeArea(area string) string {
	return strings.TrimSpace(area)
}
