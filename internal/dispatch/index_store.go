package dispatch

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/pkg/db"
	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
)

// advanceSQL creates the area cursor at 0 or moves it one step modulo the
// current rider count. Concurrent callers serialize on the area row.
const advanceSQL = `INSERT INTO rider_indexes (area, current_index, updated_at)
VALUES (?, 0, ?)
ON CONFLICT (area) DO UPDATE
SET current_index = (rider_indexes.current_index + 1) % ?, updated_at = excluded.updated_at
RETURNING current_index`

// IndexStore persists the per-area round-robin cursor.
type IndexStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewIndexStore(db *gorm.DB) *IndexStore {
	return &IndexStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *IndexStore) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// Advance returns the next rider position for area. The first call for an
// area returns 0. Later calls return (previous+1) mod riderCount, so the
// result is always a valid position in a list of riderCount riders.
func (s *IndexStore) Advance(ctx context.Context, tx *gorm.DB, area string, riderCount int) (int, error) {
	if riderCount <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "rider count must be positive")
	}
	if area == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "area is required")
	}
	var row struct {
		CurrentIndex int
	}
	err := db.Bind(ctx, s.conn(tx)).Raw(advanceSQL, area, s.now(), riderCount).Scan(&row).Error
	if err != nil {
		return 0, fmt.Errorf("advance rider index for %s: %w", area, err)
	}
	return row.CurrentIndex, nil
}

// Get returns the stored cursor for area.
func (s *IndexStore) Get(ctx context.Context, area string) (*models.RiderIndex, error) {
	var idx models.RiderIndex
	if err := db.Bind(ctx, s.db).First(&idx, "area = ?", area).Error; err != nil {
		return nil, err
	}
	return &idx, nil
}

// Reset forgets the cursor so the next assignment in area starts at 0.
func (s *IndexStore) Reset(ctx context.Context, tx *gorm.DB, area string) error {
	return db.Bind(ctx, s.conn(tx)).Where("area = ?", area).Delete(&models.RiderIndex{}).Error
}

// DeleteStale removes cursors for every area not listed in activeAreas.
func (s *IndexStore) DeleteStale(ctx context.Context, tx *gorm.DB, activeAreas []string) (int64, error) {
	q := db.Bind(ctx, s.conn(tx))
	if len(activeAreas) > 0 {
		q = q.Where("area NOT IN ?", activeAreas)
	} else {
		q = q.Where("1 = 1")
	}
	res := q.Delete(&models.RiderIndex{})
	return res.RowsAffected, res.Error
}
