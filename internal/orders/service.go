package orders

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
	"github.com/angelmondragon/homechef-backend/pkg/metrics"
	"github.com/angelmondragon/homechef-backend/pkg/outbox"
	"github.com/angelmondragon/homechef-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type userLookup interface {
	FindByEmailAndRole(ctx context.Context, email string, role enums.UserRole) (*models.User, error)
}

// Service exposes the rider and seller views over order items plus delivery confirmation.
type Service interface {
	ListForRider(ctx context.Context, riderEmail string) ([]RiderOrder, error)
	ListConfirmedForFood(ctx context.Context, foodID uuid.UUID) ([]SellerOrder, error)
	ConfirmDelivery(ctx context.Context, input ConfirmDeliveryInput) (*models.OrderItem, error)
}

// ServiceParams groups the dependencies of the orders service.
type ServiceParams struct {
	Repo    Repository
	Users   userLookup
	Tx      txRunner
	Outbox  outboxPublisher
	Metrics *metrics.DispatchMetrics
	Timeout db.StoreTimeout
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	users   userLookup
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.DispatchMetrics
	timeout db.StoreTimeout
	logg    *logger.Logger
}

// NewService builds an orders service with the required dependencies.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Users == nil {
		return nil, fmt.Errorf("users lookup required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	return &service{
		repo:    p.Repo,
		users:   p.Users,
		tx:      p.Tx,
		outbox:  p.Outbox,
		metrics: p.Metrics,
		timeout: p.Timeout,
		logg:    p.Logger,
	}, nil
}

func (s *service) ListForRider(ctx context.Context, riderEmail string) ([]RiderOrder, error) {
	rider, err := s.loadRider(ctx, riderEmail)
	if err != nil {
		return nil, err
	}

	var list []RiderOrder
	err = s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		list, err = s.repo.ListByRiderPhone(ctx, rider.Phone)
		return err
	})
	if err != nil {
		return nil, wrapStore(err, "list rider orders")
	}
	if len(list) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNoOrdersFound, "no orders found for this rider")
	}
	return list, nil
}

func (s *service) ListConfirmedForFood(ctx context.Context, foodID uuid.UUID) ([]SellerOrder, error) {
	if foodID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "food id required")
	}

	var list []SellerOrder
	err := s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		list, err = s.repo.ListConfirmedByFood(ctx, foodID)
		return err
	})
	if err != nil {
		return nil, wrapStore(err, "list food orders")
	}
	if len(list) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNoOrdersFound, "no confirmed orders for this food item")
	}
	return list, nil
}

// ConfirmDelivery moves an assigned item to delivered. Items that never
// reached a rider are rejected, and a second confirmation is a conflict.
func (s *service) ConfirmDelivery(ctx context.Context, input ConfirmDeliveryInput) (*models.OrderItem, error) {
	if input.OrderItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order item id required")
	}

	var actor *outbox.ActorRef
	riderPhone := ""
	if input.RiderEmail != "" {
		rider, err := s.loadRider(ctx, input.RiderEmail)
		if err != nil {
			s.metrics.IncDelivery(metrics.OutcomeError)
			return nil, err
		}
		riderPhone = rider.Phone
		actor = &outbox.ActorRef{UserID: rider.ID, Email: rider.Email, Role: enums.UserRoleRider}
	}

	now := time.Now().UTC()
	var delivered *models.OrderItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItem(ctx, input.OrderItemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
		}
		if err := checkDeliverable(item, riderPhone); err != nil {
			return err
		}

		ok, err := repo.MarkDelivered(ctx, item.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark delivered")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already delivered")
		}

		item.Status = enums.OrderItemStatusDelivered
		item.DeliveredAt = &now
		delivered = item
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderItemDelivered,
			AggregateType: enums.AggregateOrderItem,
			AggregateID:   item.ID,
			Actor:         actor,
			Data: payloads.OrderItemDeliveredEvent{
				OrderItemID: item.ID,
				CustomerID:  item.CustomerID,
				RiderPhone:  item.RiderPhone,
				DeliveredAt: now,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		s.metrics.IncDelivery(deliveryOutcome(err))
		return nil, wrapStore(err, "confirm delivery")
	}

	s.metrics.IncDelivery(metrics.OutcomeDelivered)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_item_id": delivered.ID.String(),
		"rider_phone":   delivered.RiderPhone,
	})
	s.logg.Info(logCtx, "order_item.delivered")
	return delivered, nil
}

func checkDeliverable(item *models.OrderItem, riderPhone string) error {
	if item.ConfirmedDelivery() {
		return pkgerrors.New(pkgerrors.CodeConflict, "order already delivered")
	}
	if !item.Status.CanTransitionTo(enums.OrderItemStatusDelivered) || !item.IsRiderAssigned() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order item has not been sent to a rider").
			WithDetails(map[string]any{"status": item.Status})
	}
	if riderPhone != "" && item.RiderPhone != riderPhone {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order item is assigned to another rider")
	}
	return nil
}

func deliveryOutcome(err error) string {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeConflict:
		return metrics.OutcomeAlreadyDelivered
	case pkgerrors.CodeStateConflict, pkgerrors.CodeForbidden, pkgerrors.CodeNotFound:
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

func (s *service) loadRider(ctx context.Context, email string) (*models.User, error) {
	email = users.NormalizeEmail(email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rider email is required")
	}
	var rider *models.User
	err := s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		rider, err = s.users.FindByEmailAndRole(ctx, email, enums.UserRoleRider)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "rider not found")
		}
		return nil, wrapStore(err, "load rider")
	}
	if !models.BindableRiderPhone(rider.Phone) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "rider has no usable phone on file").
			WithDetails(map[string]any{"field": "phone"})
	}
	return rider, nil
}

func wrapStore(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
