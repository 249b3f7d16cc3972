package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/pkg/enums"
)

// User is the single identity row behind customers, sellers and riders.
// Role selects the variant; IsActive only matters for riders.
type User struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Email        string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash string         `gorm:"column:password_hash;not null"`
	Name         string         `gorm:"column:name;not null"`
	Address      string         `gorm:"column:address;not null;default:''"`
	Phone        string         `gorm:"column:phone;not null;default:'';uniqueIndex:idx_users_rider_phone,where:role = 'rider'"`
	Area         string         `gorm:"column:area;not null;default:'';index:idx_users_role_area_active,priority:2"`
	Role         enums.UserRole `gorm:"column:role;type:text;not null;index:idx_users_role_area_active,priority:1"`
	IsActive     bool           `gorm:"column:is_active;not null;index:idx_users_role_area_active,priority:3"`
	LastLoginAt  *time.Time     `gorm:"column:last_login_at"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
