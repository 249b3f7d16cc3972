package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/internal/orders"
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

type sellerLookup interface {
	FindByEmailAndRole(ctx context.Context, email string, role enums.UserRole) (*models.User, error)
}

type foodLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.FoodListing, error)
}

// RiderDirectory lists the active riders of an area in a stable order.
type RiderDirectory interface {
	ListActive(ctx context.Context, area string) ([]users.Rider, error)
}

// IndexAdvancer moves the round-robin cursor of an area inside tx.
type IndexAdvancer interface {
	Advance(ctx context.Context, tx *gorm.DB, area string, riderCount int) (int, error)
}

// errLostRace rolls back an assignment whose guarded update matched no row.
var errLostRace = errors.New("order item assigned concurrently")

// Assignment describes the rider bound to an order item.
type Assignment struct {
	OrderItemID     uuid.UUID             `json:"orderItemId"`
	Status          enums.OrderItemStatus `json:"status"`
	RiderPhone      string                `json:"riderPhone"`
	RiderEmail      string                `json:"riderEmail,omitempty"`
	RiderName       string                `json:"riderName,omitempty"`
	Area            string                `json:"area"`
	SellerAddress   string                `json:"sellerAddress"`
	SellerPhone     string                `json:"sellerPhone"`
	RiderIndex      *int                  `json:"riderIndex,omitempty"`
	AlreadyAssigned bool                  `json:"alreadyAssigned"`
	AssignedAt      *time.Time            `json:"assignedAt,omitempty"`
}

// Service binds order items to riders.
type Service interface {
	AssignRider(ctx context.Context, orderItemID uuid.UUID, sellerEmail string) (*Assignment, error)
}

// ServiceParams groups the dependencies of the dispatch service.
type ServiceParams struct {
	Sellers   sellerLookup
	Foods     foodLookup
	Items     orders.Repository
	Directory RiderDirectory
	Index     IndexAdvancer
	Tx        txRunner
	Outbox    outboxPublisher
	Metrics   *metrics.DispatchMetrics
	Timeout   db.StoreTimeout
	Logger    *logger.Logger
}

type service struct {
	sellers   sellerLookup
	foods     foodLookup
	items     orders.Repository
	directory RiderDirectory
	index     IndexAdvancer
	tx        txRunner
	outbox    outboxPublisher
	metrics   *metrics.DispatchMetrics
	timeout   db.StoreTimeout
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the dispatch service with the required dependencies.
func NewService(p ServiceParams) (Service, error) {
	if p.Sellers == nil {
		return nil, fmt.Errorf("seller lookup required")
	}
	if p.Foods == nil {
		return nil, fmt.Errorf("food lookup required")
	}
	if p.Items == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Directory == nil {
		return nil, fmt.Errorf("rider directory required")
	}
	if p.Index == nil {
		return nil, fmt.Errorf("index store required")
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
		sellers:   p.Sellers,
		foods:     p.Foods,
		items:     p.Items,
		directory: p.Directory,
		index:     p.Index,
		tx:        p.Tx,
		outbox:    p.Outbox,
		metrics:   p.Metrics,
		timeout:   p.Timeout,
		logg:      p.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// AssignRider binds the item to the next active rider in the seller's area.
// An item that already has a rider keeps it and the area cursor does not move.
func (s *service) AssignRider(ctx context.Context, orderItemID uuid.UUID, sellerEmail string) (*Assignment, error) {
	assignment, outcome, err := s.assign(ctx, orderItemID, sellerEmail)
	s.metrics.IncAssignment(outcome)
	if err != nil {
		if outcome == metrics.OutcomeError {
			s.logg.Error(ctx, "dispatch.assign_failed", err)
		}
		return nil, err
	}
	return assignment, nil
}

func (s *service) assign(ctx context.Context, orderItemID uuid.UUID, sellerEmail string) (*Assignment, string, error) {
	if orderItemID == uuid.Nil {
		return nil, metrics.OutcomeError, pkgerrors.New(pkgerrors.CodeValidation, "order item id required")
	}
	email := users.NormalizeEmail(sellerEmail)
	if email == "" {
		return nil, metrics.OutcomeError, pkgerrors.New(pkgerrors.CodeValidation, "seller email required")
	}

	seller, err := s.loadSeller(ctx, email)
	if err != nil {
		return nil, outcomeFor(err), err
	}
	ctx = s.logg.WithArea(ctx, seller.Area)

	item, err := s.loadItem(ctx, orderItemID)
	if err != nil {
		return nil, outcomeFor(err), err
	}
	if err := s.requireOwnFood(ctx, item, email); err != nil {
		return nil, outcomeFor(err), err
	}
	if item.IsRiderAssigned() || item.SentToRider() {
		return existingBinding(item, seller.Area), metrics.OutcomeAlreadyAssigned, nil
	}
	if !item.Status.CanTransitionTo(enums.OrderItemStatusAssignedToRider) {
		err := pkgerrors.New(pkgerrors.CodeStateConflict, "order item not confirmed").
			WithDetails(map[string]any{"status": item.Status})
		return nil, outcomeFor(err), err
	}

	var riders []users.Rider
	err = s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		riders, err = s.directory.ListActive(ctx, seller.Area)
		return err
	})
	if err != nil {
		err = wrapStore(err, "list active riders")
		return nil, outcomeFor(err), err
	}
	s.metrics.ObserveRiderPool(len(riders))
	if len(riders) == 0 {
		err := pkgerrors.New(pkgerrors.CodeNoRidersAvailable, "no available riders in the same area").
			WithDetails(map[string]any{"area": seller.Area})
		return nil, metrics.OutcomeNoRiders, err
	}

	now := s.now()
	var (
		chosen users.Rider
		index  int
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		idx, err := s.index.Advance(ctx, tx, seller.Area, len(riders))
		if err != nil {
			return wrapStore(err, "advance rider index")
		}
		if idx < 0 || idx >= len(riders) {
			return pkgerrors.New(pkgerrors.CodeInternal, "rider index out of range")
		}
		chosen, index = riders[idx], idx

		ok, err := s.items.WithTx(tx).BindRider(ctx, item.ID, orders.RiderBinding{
			RiderPhone:    chosen.Phone,
			SellerAddress: seller.Address,
			SellerPhone:   seller.Phone,
			AssignedAt:    now,
		})
		if err != nil {
			return wrapStore(err, "bind rider")
		}
		if !ok {
			return errLostRace
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderItemAssigned,
			AggregateType: enums.AggregateOrderItem,
			AggregateID:   item.ID,
			Actor:         &outbox.ActorRef{UserID: seller.ID, Email: seller.Email, Role: enums.UserRoleSeller},
			Data: payloads.OrderItemAssignedEvent{
				OrderItemID:   item.ID,
				CustomerID:    item.CustomerID,
				FoodID:        item.FoodID,
				Area:          seller.Area,
				RiderEmail:    chosen.Email,
				RiderPhone:    chosen.Phone,
				SellerEmail:   seller.Email,
				SellerAddress: seller.Address,
				SellerPhone:   seller.Phone,
				RiderIndex:    idx,
				AssignedAt:    now,
			},
			OccurredAt: now,
		})
	})
	if errors.Is(err, errLostRace) {
		return s.resolveLostRace(ctx, item.ID, seller.Area)
	}
	if err != nil {
		err = wrapStore(err, "assign rider")
		return nil, outcomeFor(err), err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_item_id": item.ID.String(),
		"rider_email":   chosen.Email,
		"rider_index":   index,
	})
	s.logg.Info(logCtx, "dispatch.rider_assigned")

	return &Assignment{
		OrderItemID:   item.ID,
		Status:        enums.OrderItemStatusAssignedToRider,
		RiderPhone:    chosen.Phone,
		RiderEmail:    chosen.Email,
		RiderName:     chosen.Name,
		Area:          seller.Area,
		SellerAddress: seller.Address,
		SellerPhone:   seller.Phone,
		RiderIndex:    &index,
		AssignedAt:    &now,
	}, metrics.OutcomeAssigned, nil
}

// resolveLostRace reports the binding written by the concurrent winner.
func (s *service) resolveLostRace(ctx context.Context, id uuid.UUID, area string) (*Assignment, string, error) {
	item, err := s.loadItem(ctx, id)
	if err != nil {
		return nil, outcomeFor(err), err
	}
	if !item.IsRiderAssigned() {
		err := pkgerrors.New(pkgerrors.CodeStateConflict, "order item changed during assignment").
			WithDetails(map[string]any{"status": item.Status})
		return nil, outcomeFor(err), err
	}
	s.logg.Warn(s.logg.WithField(ctx, "order_item_id", id.String()), "dispatch.assignment_race_lost")
	return existingBinding(item, area), metrics.OutcomeAlreadyAssigned, nil
}

func (s *service) loadSeller(ctx context.Context, email string) (*models.User, error) {
	var seller *models.User
	err := s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		seller, err = s.sellers.FindByEmailAndRole(ctx, email, enums.UserRoleSeller)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
		}
		return nil, wrapStore(err, "load seller")
	}
	return seller, nil
}

func (s *service) loadItem(ctx context.Context, id uuid.UUID) (*models.OrderItem, error) {
	var item *models.OrderItem
	err := s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.items.FindItem(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
		}
		return nil, wrapStore(err, "load order item")
	}
	return item, nil
}

// requireOwnFood refuses items ordered from another seller's listing.
func (s *service) requireOwnFood(ctx context.Context, item *models.OrderItem, sellerEmail string) error {
	var food *models.FoodListing
	err := s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		food, err = s.foods.FindByID(ctx, item.FoodID)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "food not found")
		}
		return wrapStore(err, "load food")
	}
	if users.NormalizeEmail(food.SellerEmail) != sellerEmail {
		return pkgerrors.New(pkgerrors.CodeForbidden, "food belongs to another seller")
	}
	return nil
}

func existingBinding(item *models.OrderItem, area string) *Assignment {
	return &Assignment{
		OrderItemID:     item.ID,
		Status:          item.Status,
		RiderPhone:      item.RiderPhone,
		Area:            area,
		SellerAddress:   item.SellerAddress,
		SellerPhone:     item.SellerPhone,
		AlreadyAssigned: true,
		AssignedAt:      item.AssignedAt,
	}
}

func outcomeFor(err error) string {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeNoRidersAvailable:
		return metrics.OutcomeNoRiders
	default:
		return metrics.OutcomeError
	}
}

func wrapStore(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
