package models

import "time"

// RiderIndex stores the last round-robin position handed out in an area.
type RiderIndex struct {
	Area         string    `gorm:"column:area;type:text;primaryKey"`
	CurrentIndex int       `gorm:"column:current_index;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (RiderIndex) TableName() string { return "rider_indexes" }
