package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/homechef-backend/api/middleware"
	"github.com/angelmondragon/homechef-backend/internal/foods"
	"github.com/angelmondragon/homechef-backend/internal/orders"
	"github.com/angelmondragon/homechef-backend/internal/riders"
	"github.com/angelmondragon/homechef-backend/internal/users"
	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
	"github.com/angelmondragon/homechef-backend/pkg/pagination"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func withActor(req *http.Request, email string, role enums.UserRole, params map[string]string) *http.Request {
	ctx := middleware.WithIdentity(req.Context(), uuid.NewString(), email, string(role))
	routeCtx := chi.NewRouteContext()
	for k, v := range params {
		routeCtx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	return req.WithContext(ctx)
}

type stubRiders struct {
	email  string
	active bool
}

func (s *stubRiders) SetActiveStatus(_ context.Context, email string, active bool) (*users.UserDTO, error) {
	s.email, s.active = email, active
	return &users.UserDTO{Email: email, Role: enums.UserRoleRider, IsActive: active}, nil
}

var _ riders.Service = (*stubRiders)(nil)

func TestRiderSetStatus(t *testing.T) {
	logg := testLogger()

	t.Run("missing active flag", func(t *testing.T) {
		req := withActor(httptest.NewRequest(http.MethodPut, "/api/v1/rider/status", strings.NewReader(`{}`)), "r@example.com", enums.UserRoleRider, nil)
		rec := httptest.NewRecorder()
		RiderSetStatus(&stubRiders{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})

	t.Run("deactivates by token email", func(t *testing.T) {
		stub := &stubRiders{active: true}
		req := withActor(httptest.NewRequest(http.MethodPut, "/api/v1/rider/status", strings.NewReader(`{"active":false}`)), "r@example.com", enums.UserRoleRider, nil)
		rec := httptest.NewRecorder()
		RiderSetStatus(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.email != "r@example.com" || stub.active {
			t.Fatalf("unexpected call email=%s active=%v", stub.email, stub.active)
		}
	})

	t.Run("missing identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/rider/status", strings.NewReader(`{"active":true}`))
		rec := httptest.NewRecorder()
		RiderSetStatus(&stubRiders{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 got %d", rec.Code)
		}
	})
}

type stubFoods struct {
	foods.Service
	ownerErr error
	page     pagination.Params
}

func (s *stubFoods) RequireOwner(context.Context, string, uuid.UUID) error { return s.ownerErr }

func (s *stubFoods) ListAll(_ context.Context, p pagination.Params) (*foods.ListResult, error) {
	s.page = p
	return &foods.ListResult{Items: []foods.FoodDTO{}}, nil
}

type stubOrders struct {
	orders.Service
	listed    bool
	delivered orders.ConfirmDeliveryInput
}

func (s *stubOrders) ListConfirmedForFood(context.Context, uuid.UUID) ([]orders.SellerOrder, error) {
	s.listed = true
	return nil, pkgerrors.New(pkgerrors.CodeNoOrdersFound, "no confirmed orders for this food item")
}

func (s *stubOrders) ConfirmDelivery(_ context.Context, in orders.ConfirmDeliveryInput) (*models.OrderItem, error) {
	s.delivered = in
	return &models.OrderItem{ID: in.OrderItemID, Status: enums.OrderItemStatusDelivered, RiderPhone: "0801"}, nil
}

func TestSellerFoodOrdersChecksOwnershipFirst(t *testing.T) {
	logg := testLogger()
	foodID := uuid.NewString()

	foodSvc := &stubFoods{ownerErr: pkgerrors.New(pkgerrors.CodeForbidden, "food belongs to another seller")}
	orderSvc := &stubOrders{}
	req := withActor(httptest.NewRequest(http.MethodGet, "/", nil), "s@example.com", enums.UserRoleSeller, map[string]string{"foodId": foodID})
	rec := httptest.NewRecorder()
	SellerFoodOrders(foodSvc, orderSvc, logg).ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
	if orderSvc.listed {
		t.Fatal("orders must not be listed for a foreign listing")
	}

	foodSvc.ownerErr = nil
	rec = httptest.NewRecorder()
	SellerFoodOrders(foodSvc, orderSvc, logg).ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeNoOrdersFound) {
		t.Fatalf("expected NO_ORDERS_FOUND got %s", body.Error.Code)
	}
}

func TestRiderDeliverReturnsFlags(t *testing.T) {
	itemID := uuid.New()
	orderSvc := &stubOrders{}
	req := withActor(httptest.NewRequest(http.MethodPost, "/", nil), "r@example.com", enums.UserRoleRider, map[string]string{"orderItemId": itemID.String()})
	rec := httptest.NewRecorder()
	RiderDeliver(orderSvc, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if orderSvc.delivered.OrderItemID != itemID || orderSvc.delivered.RiderEmail != "r@example.com" {
		t.Fatalf("unexpected input %+v", orderSvc.delivered)
	}
	var body struct {
		Data orders.DeliveryDTO `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Data.ConfirmedDelivery || !body.Data.SentToRider || !body.Data.ConfirmedOrder {
		t.Fatalf("delivered item must carry every flag, got %+v", body.Data.Flags)
	}
}

func TestFoodsListParsesPagination(t *testing.T) {
	foodSvc := &stubFoods{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/foods?limit=10&cursor=abc", nil)
	rec := httptest.NewRecorder()
	FoodsList(foodSvc, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if foodSvc.page.Limit != 10 || foodSvc.page.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", foodSvc.page)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/foods?limit=0", nil)
	rec = httptest.NewRecorder()
	FoodsList(foodSvc, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit 0 got %d", rec.Code)
	}
}
