package cart

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

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type userLookup interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByEmailAndRole(ctx context.Context, email string, role enums.UserRole) (*models.User, error)
}

type foodLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.FoodListing, error)
}

// Service exposes the customer cart and checkout confirmation.
type Service interface {
	Add(ctx context.Context, customerEmail string, input AddItemInput) (*ItemDTO, error)
	List(ctx context.Context, customerEmail string) ([]ItemDTO, error)
	Remove(ctx context.Context, customerEmail string, itemID uuid.UUID) error
	UpdateQuantity(ctx context.Context, customerEmail string, itemID uuid.UUID, quantity int) (*ItemDTO, error)
	Confirm(ctx context.Context, customerEmail string, itemID uuid.UUID) (*ItemDTO, error)
	ConfirmAll(ctx context.Context, customerEmail string) (*ConfirmAllResult, error)
}

// ServiceParams groups the dependencies of the cart service.
type ServiceParams struct {
	Repo    Repository
	Users   userLookup
	Foods   foodLookup
	Tx      txRunner
	Outbox  outboxPublisher
	Timeout db.StoreTimeout
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	users   userLookup
	foods   foodLookup
	tx      txRunner
	outbox  outboxPublisher
	timeout db.StoreTimeout
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if p.Users == nil {
		return nil, fmt.Errorf("users lookup required")
	}
	if p.Foods == nil {
		return nil, fmt.Errorf("food lookup required")
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
		foods:   p.Foods,
		tx:      p.Tx,
		outbox:  p.Outbox,
		timeout: p.Timeout,
		logg:    p.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Add snapshots the food into the customer's cart. An open line for the same
// food grows instead of a second line being created.
func (s *service) Add(ctx context.Context, customerEmail string, input AddItemInput) (*ItemDTO, error) {
	if input.FoodID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "food id required")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a non-negative integer")
	}
	quantity := input.Quantity
	if quantity == 0 {
		quantity = 1
	}

	customer, err := s.loadCustomer(ctx, customerEmail)
	if err != nil {
		return nil, err
	}
	food, sellerName, err := s.loadFood(ctx, input.FoodID)
	if err != nil {
		return nil, err
	}

	var itemID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindOpenByFood(ctx, customer.ID, food.ID)
		switch {
		case err == nil:
			itemID = existing.ID
			return repo.AddQuantity(ctx, existing.ID, quantity)
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		created, err := repo.Create(ctx, &models.OrderItem{
			CustomerID:  customer.ID,
			FoodID:      food.ID,
			FoodName:    food.Name,
			FoodPicture: food.PictureURL,
			FoodPrice:   food.Price,
			SellerName:  sellerName,
			Quantity:    quantity,
			Status:      enums.OrderItemStatusCart,
		})
		if err != nil {
			return err
		}
		itemID = created.ID
		return nil
	})
	if err != nil {
		return nil, wrapStore(err, "add to cart")
	}
	return s.get(ctx, customer.ID, itemID)
}

func (s *service) List(ctx context.Context, customerEmail string) ([]ItemDTO, error) {
	customer, err := s.loadCustomer(ctx, customerEmail)
	if err != nil {
		return nil, err
	}
	var rows []models.OrderItem
	err = s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		rows, err = s.repo.ListByCustomer(ctx, customer.ID)
		return err
	})
	if err != nil {
		return nil, wrapStore(err, "list cart")
	}
	return fromModels(rows), nil
}

// Remove deletes an open cart line. Confirmed lines are orders and stay.
func (s *service) Remove(ctx context.Context, customerEmail string, itemID uuid.UUID) error {
	customer, item, err := s.ownedItem(ctx, customerEmail, itemID)
	if err != nil {
		return err
	}
	if item.Status != enums.OrderItemStatusCart {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order item already confirmed").
			WithDetails(map[string]any{"status": item.Status})
	}

	var removed bool
	err = s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		removed, err = s.repo.DeleteOpen(ctx, customer.ID, itemID)
		return err
	})
	if err != nil {
		return wrapStore(err, "remove cart item")
	}
	if !removed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return nil
}

func (s *service) UpdateQuantity(ctx context.Context, customerEmail string, itemID uuid.UUID, quantity int) (*ItemDTO, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a non-negative integer")
	}
	customer, item, err := s.ownedItem(ctx, customerEmail, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != enums.OrderItemStatusCart {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order item already confirmed").
			WithDetails(map[string]any{"status": item.Status})
	}

	var updated bool
	err = s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.SetQuantity(ctx, customer.ID, itemID, quantity)
		return err
	})
	if err != nil {
		return nil, wrapStore(err, "update quantity")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order item changed concurrently")
	}
	return s.get(ctx, customer.ID, itemID)
}

// Confirm checks one line out of the cart. A line that is already confirmed
// is returned unchanged. A line with quantity 0 cannot be confirmed.
func (s *service) Confirm(ctx context.Context, customerEmail string, itemID uuid.UUID) (*ItemDTO, error) {
	customer, item, err := s.ownedItem(ctx, customerEmail, itemID)
	if err != nil {
		return nil, err
	}
	switch item.Status {
	case enums.OrderItemStatusConfirmed:
		dto := FromModel(item)
		return &dto, nil
	case enums.OrderItemStatusCart:
		if item.Quantity <= 0 {
			return nil, errEmptyLine()
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order item cannot be confirmed").
			WithDetails(map[string]any{"status": item.Status})
	}

	now := s.now()
	var confirmed bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		confirmed, err = s.confirmLine(ctx, tx, item, customer, now)
		return err
	})
	if err != nil {
		return nil, wrapStore(err, "confirm order item")
	}

	dto, err := s.get(ctx, customer.ID, itemID)
	if err != nil {
		return nil, err
	}
	if !confirmed && dto.Status != enums.OrderItemStatusConfirmed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order item cannot be confirmed").
			WithDetails(map[string]any{"status": dto.Status})
	}
	if confirmed {
		s.logg.Info(s.logg.WithField(ctx, "order_item_id", itemID.String()), "cart.item_confirmed")
	}
	return dto, nil
}

// ConfirmAll confirms every open line of the customer. An empty cart confirms
// zero. Lines with quantity 0 stay in the cart and are counted as skipped.
func (s *service) ConfirmAll(ctx context.Context, customerEmail string) (*ConfirmAllResult, error) {
	customer, err := s.loadCustomer(ctx, customerEmail)
	if err != nil {
		return nil, err
	}

	now := s.now()
	count, skipped := 0, 0
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		open, err := s.repo.WithTx(tx).ListOpen(ctx, customer.ID)
		if err != nil {
			return err
		}
		for i := range open {
			if open[i].Quantity <= 0 {
				skipped++
				continue
			}
			ok, err := s.confirmLine(ctx, tx, &open[i], customer, now)
			if err != nil {
				return err
			}
			if ok {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapStore(err, "confirm cart")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"customer_id": customer.ID.String(),
		"confirmed":   count,
		"skipped":     skipped,
	}), "cart.confirmed_all")
	return &ConfirmAllResult{Confirmed: count, Skipped: skipped}, nil
}

func errEmptyLine() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1 to confirm").
		WithDetails(map[string]any{"field": "quantity"})
}

func (s *service) confirmLine(ctx context.Context, tx *gorm.DB, item *models.OrderItem, customer *models.User, now time.Time) (bool, error) {
	ok, err := s.repo.WithTx(tx).Confirm(ctx, item.ID, now)
	if err != nil || !ok {
		return false, err
	}
	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderItemConfirmed,
		AggregateType: enums.AggregateOrderItem,
		AggregateID:   item.ID,
		Actor:         &outbox.ActorRef{UserID: customer.ID, Email: customer.Email, Role: enums.UserRoleCustomer},
		Data: payloads.OrderItemConfirmedEvent{
			OrderItemID: item.ID,
			CustomerID:  customer.ID,
			FoodID:      item.FoodID,
			Quantity:    item.Quantity,
			UnitPrice:   item.FoodPrice,
			ConfirmedAt: now,
		},
		OccurredAt: now,
	})
	return err == nil, err
}

func (s *service) get(ctx context.Context, customerID, itemID uuid.UUID) (*ItemDTO, error) {
	var item *models.OrderItem
	err := s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.repo.FindOwned(ctx, customerID, itemID)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, wrapStore(err, "load cart item")
	}
	dto := FromModel(item)
	return &dto, nil
}

func (s *service) ownedItem(ctx context.Context, customerEmail string, itemID uuid.UUID) (*models.User, *models.OrderItem, error) {
	if itemID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	customer, err := s.loadCustomer(ctx, customerEmail)
	if err != nil {
		return nil, nil, err
	}
	var item *models.OrderItem
	err = s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.repo.FindOwned(ctx, customer.ID, itemID)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, nil, wrapStore(err, "load cart item")
	}
	return customer, item, nil
}

func (s *service) loadCustomer(ctx context.Context, email string) (*models.User, error) {
	email = users.NormalizeEmail(email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email required")
	}
	var customer *models.User
	err := s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		customer, err = s.users.FindByEmailAndRole(ctx, email, enums.UserRoleCustomer)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, wrapStore(err, "load customer")
	}
	return customer, nil
}

// loadFood returns the listing plus the display name of its seller. A seller
// that no longer resolves leaves the name blank.
func (s *service) loadFood(ctx context.Context, id uuid.UUID) (*models.FoodListing, string, error) {
	var food *models.FoodListing
	err := s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		food, err = s.foods.FindByID(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "food not found")
		}
		return nil, "", wrapStore(err, "load food")
	}

	var seller *models.User
	err = s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		seller, err = s.users.FindByEmail(ctx, food.SellerEmail)
		return err
	})
	switch {
	case err == nil:
		return food, seller.Name, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return food, "", nil
	default:
		return nil, "", wrapStore(err, "load seller")
	}
}

func wrapStore(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
