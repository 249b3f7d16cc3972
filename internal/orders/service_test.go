package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
	"github.com/angelmondragon/homechef-backend/pkg/outbox"
)

type stubOrdersRepo struct {
	items       map[uuid.UUID]*models.OrderItem
	riderOrders []RiderOrder
	foodOrders  []SellerOrder
	lastPhone   string
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrdersRepo) FindItem(ctx context.Context, id uuid.UUID) (*models.OrderItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *item
	return &clone, nil
}

func (s *stubOrdersRepo) BindRider(ctx context.Context, id uuid.UUID, binding RiderBinding) (bool, error) {
	return false, nil
}

func (s *stubOrdersRepo) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	item, ok := s.items[id]
	if !ok || item.Status != enums.OrderItemStatusAssignedToRider {
		return false, nil
	}
	item.Status = enums.OrderItemStatusDelivered
	item.DeliveredAt = &at
	return true, nil
}

func (s *stubOrdersRepo) ListByRiderPhone(ctx context.Context, phone string) ([]RiderOrder, error) {
	s.lastPhone = phone
	return s.riderOrders, nil
}

func (s *stubOrdersRepo) ListConfirmedByFood(ctx context.Context, foodID uuid.UUID) ([]SellerOrder, error) {
	return s.foodOrders, nil
}

type stubUsers struct {
	users map[string]*models.User
}

func (s stubUsers) FindByEmailAndRole(ctx context.Context, email string, role enums.UserRole) (*models.User, error) {
	user, ok := s.users[email]
	if !ok || user.Role != role {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func newTestService(t *testing.T, repo *stubOrdersRepo, pub *stubOutboxPublisher) Service {
	t.Helper()
	rider := &models.User{ID: uuid.New(), Email: "r1@example.com", Phone: "555-R1", Role: enums.UserRoleRider}
	seller := &models.User{ID: uuid.New(), Email: "s@example.com", Phone: "555-S", Role: enums.UserRoleSeller}
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Users:  stubUsers{users: map[string]*models.User{rider.Email: rider, seller.Email: seller}},
		Tx:     stubTxRunner{},
		Outbox: pub,
	})
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func TestListForRiderUsesRiderPhone(t *testing.T) {
	repo := &stubOrdersRepo{riderOrders: []RiderOrder{{OrderItemID: uuid.New()}}}
	svc := newTestService(t, repo, &stubOutboxPublisher{})

	list, err := svc.ListForRider(context.Background(), "R1@example.com")
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(list) != 1 || repo.lastPhone != "555-R1" {
		t.Fatalf("unexpected result %+v phone=%s", list, repo.lastPhone)
	}
}

func TestListForRiderEmptyIsNoOrders(t *testing.T) {
	svc := newTestService(t, &stubOrdersRepo{}, &stubOutboxPublisher{})

	_, err := svc.ListForRider(context.Background(), "r1@example.com")
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeNoOrdersFound {
		t.Fatalf("expected NO_ORDERS_FOUND got %s", code)
	}

	_, err = svc.ListForRider(context.Background(), "s@example.com")
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND for non-rider got %s", code)
	}
}

func TestRiderWithoutUsablePhoneSeesNothing(t *testing.T) {
	repo := &stubOrdersRepo{riderOrders: []RiderOrder{{OrderItemID: uuid.New()}}}
	ghost := &models.User{ID: uuid.New(), Email: "ghost@example.com", Phone: models.RiderUnassigned, Role: enums.UserRoleRider}
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Users:  stubUsers{users: map[string]*models.User{ghost.Email: ghost}},
		Tx:     stubTxRunner{},
		Outbox: &stubOutboxPublisher{},
	})
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}

	_, err = svc.ListForRider(context.Background(), ghost.Email)
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT got %s", code)
	}
	if repo.lastPhone != "" {
		t.Fatalf("repository queried with %q", repo.lastPhone)
	}
}

func TestListConfirmedForFoodEmptyIsNoOrders(t *testing.T) {
	svc := newTestService(t, &stubOrdersRepo{}, &stubOutboxPublisher{})
	_, err := svc.ListConfirmedForFood(context.Background(), uuid.New())
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeNoOrdersFound {
		t.Fatalf("expected NO_ORDERS_FOUND got %s", code)
	}
}

func TestConfirmDeliveryLifecycle(t *testing.T) {
	assigned := &models.OrderItem{ID: uuid.New(), Status: enums.OrderItemStatusAssignedToRider, RiderPhone: "555-R1"}
	confirmed := &models.OrderItem{ID: uuid.New(), Status: enums.OrderItemStatusConfirmed, RiderPhone: models.RiderUnassigned}
	repo := &stubOrdersRepo{items: map[uuid.UUID]*models.OrderItem{assigned.ID: assigned, confirmed.ID: confirmed}}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, pub)
	ctx := context.Background()

	_, err := svc.ConfirmDelivery(ctx, ConfirmDeliveryInput{OrderItemID: confirmed.ID})
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT for unassigned item got %s", code)
	}
	if confirmed.Status != enums.OrderItemStatusConfirmed {
		t.Fatal("unassigned item must not change")
	}

	item, err := svc.ConfirmDelivery(ctx, ConfirmDeliveryInput{OrderItemID: assigned.ID, RiderEmail: "r1@example.com"})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if !item.ConfirmedDelivery() || item.DeliveredAt == nil {
		t.Fatalf("expected delivered item got %+v", item)
	}
	if len(pub.events) != 1 || pub.events[0].EventType != enums.EventOrderItemDelivered {
		t.Fatalf("expected one delivered event got %+v", pub.events)
	}

	_, err = svc.ConfirmDelivery(ctx, ConfirmDeliveryInput{OrderItemID: assigned.ID})
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeConflict {
		t.Fatalf("expected CONFLICT on second delivery got %s", code)
	}

	_, err = svc.ConfirmDelivery(ctx, ConfirmDeliveryInput{OrderItemID: uuid.New()})
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND got %s", code)
	}
}

func TestConfirmDeliveryRejectsOtherRider(t *testing.T) {
	item := &models.OrderItem{ID: uuid.New(), Status: enums.OrderItemStatusAssignedToRider, RiderPhone: "555-R2"}
	repo := &stubOrdersRepo{items: map[uuid.UUID]*models.OrderItem{item.ID: item}}
	svc := newTestService(t, repo, &stubOutboxPublisher{})

	_, err := svc.ConfirmDelivery(context.Background(), ConfirmDeliveryInput{OrderItemID: item.ID, RiderEmail: "r1@example.com"})
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeForbidden {
		t.Fatalf("expected FORBIDDEN got %s", code)
	}
}
