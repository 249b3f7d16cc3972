package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/pkg/db"
	"github.com/angelmondragon/homechef-backend/pkg/db/models"
)

// ErrNotDeadLettered is returned when a replay names an event with no DLQ row.
var ErrNotDeadLettered = errors.New("event is not dead-lettered")

const defaultDLQPage = 50

// DLQRepository keeps the events the relay stopped retrying.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx stores entry in the relay's transaction. The error text is capped
// like outbox_events.last_error.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		entry.ErrorMessage = capMessage(*entry.ErrorMessage)
	}
	if entry.FailedAt.IsZero() {
		entry.FailedAt = time.Now().UTC()
	}
	return tx.Create(&entry).Error
}

// FindByEventID returns nil without error when the event was never
// dead-lettered.
func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var row models.OutboxDLQ
	err := db.Bind(ctx, r.db).Where("event_id = ?", eventID).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &row, nil
}

// Recent lists the newest failures first.
func (r *DLQRepository) Recent(ctx context.Context, limit int) ([]models.OutboxDLQ, error) {
	if limit <= 0 {
		limit = defaultDLQPage
	}
	var rows []models.OutboxDLQ
	err := db.Bind(ctx, r.db).Order("failed_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// RequeueTx drops the DLQ row for eventID and rearms the outbox row so the
// relay picks it up on its next poll.
func (r *DLQRepository) RequeueTx(tx *gorm.DB, eventID uuid.UUID) error {
	res := tx.Where("event_id = ?", eventID).Delete(&models.OutboxDLQ{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotDeadLettered
	}
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ? AND published_at IS NULL", eventID).
		Updates(map[string]any{"attempt_count": 0, "last_error": nil}).Error
}

// DeleteFailedBefore prunes entries older than cutoff. A nil tx uses the
// repository's own handle.
func (r *DLQRepository) DeleteFailedBefore(tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	res := tx.Where("failed_at < ?", cutoff).Delete(&models.OutboxDLQ{})
	return res.RowsAffected, res.Error
}
