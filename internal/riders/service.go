package riders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/internal/users"
	"github.com/angelmondragon/homechef-backend/pkg/db"
	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
	"github.com/angelmondragon/homechef-backend/pkg/outbox"
	"github.com/angelmondragon/homechef-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type riderRepository interface {
	FindByEmailAndRole(ctx context.Context, email string, role enums.UserRole) (*models.User, error)
}

// AvailabilityWriter flips a rider's active flag inside tx.
type AvailabilityWriter interface {
	SetActive(ctx context.Context, tx *gorm.DB, id uuid.UUID, active bool) error
}

type usersAvailabilityWriter struct{}

// UsersAvailabilityWriter writes availability through users.Repository.
func UsersAvailabilityWriter() AvailabilityWriter { return usersAvailabilityWriter{} }

func (usersAvailabilityWriter) SetActive(ctx context.Context, tx *gorm.DB, id uuid.UUID, active bool) error {
	return users.NewRepository(tx).SetActive(ctx, id, active)
}

// Service manages rider availability.
type Service interface {
	SetActiveStatus(ctx context.Context, riderEmail string, active bool) (*users.UserDTO, error)
}

type service struct {
	repo    riderRepository
	writer  AvailabilityWriter
	tx      txRunner
	outbox  outbox.Emitter
	timeout db.StoreTimeout
	logg    *logger.Logger
}

func NewService(repo riderRepository, writer AvailabilityWriter, tx txRunner, emitter outbox.Emitter, timeout db.StoreTimeout, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if writer == nil {
		return nil, fmt.Errorf("availability writer required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, writer: writer, tx: tx, outbox: emitter, timeout: timeout, logg: logg}, nil
}

// SetActiveStatus toggles whether the rider takes part in round robin for their area.
// Setting the current value again is accepted and emits no event.
func (s *service) SetActiveStatus(ctx context.Context, riderEmail string, active bool) (*users.UserDTO, error) {
	email := users.NormalizeEmail(riderEmail)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rider email is required")
	}

	var rider *models.User
	err := s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		rider, err = s.repo.FindByEmailAndRole(ctx, email, enums.UserRoleRider)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "rider not found")
		}
		return nil, wrapInternal(err, "load rider")
	}

	if rider.IsActive == active {
		return users.FromModel(rider), nil
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.writer.SetActive(ctx, tx, rider.ID, active); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRiderAvailabilityChanged,
			AggregateType: enums.AggregateUser,
			AggregateID:   rider.ID,
			Actor:         &outbox.ActorRef{UserID: rider.ID, Email: rider.Email, Role: enums.UserRoleRider},
			Data: payloads.RiderAvailabilityChangedEvent{
				RiderID:   rider.ID,
				Email:     rider.Email,
				Area:      rider.Area,
				Active:    active,
				Role:      enums.UserRoleRider,
				ChangedAt: now,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, wrapInternal(err, "update rider status")
	}

	rider.IsActive = active
	rider.UpdatedAt = now
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"rider_id": rider.ID.String(),
		"area":     rider.Area,
		"active":   active,
	})
	s.logg.Info(logCtx, "rider.availability_changed")
	return users.FromModel(rider), nil
}

func wrapInternal(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
