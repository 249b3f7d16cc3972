package foods

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/homechef-backend/internal/users"
	"github.com/angelmondragon/homechef-backend/pkg/db/dbtest"
	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
	"github.com/angelmondragon/homechef-backend/pkg/pagination"
)

type foodsFixture struct {
	repo  *Repository
	users *users.Repository
	svc   Service
}

func newFoodsFixture(t *testing.T) foodsFixture {
	t.Helper()
	gdb := dbtest.Open(t)
	userRepo := users.NewRepository(gdb)
	repo := NewRepository(gdb)
	svc, err := NewService(repo, userRepo, 0)
	require.NoError(t, err)

	for _, u := range []struct {
		email, area string
		role        enums.UserRole
	}{
		{"ada@example.com", "uptown", enums.UserRoleSeller},
		{"bola@example.com", "downtown", enums.UserRoleSeller},
		{"cust@example.com", "uptown", enums.UserRoleCustomer},
	} {
		_, err := userRepo.Create(context.Background(), users.CreateUserDTO{
			Email: u.email, PasswordHash: "h", Name: "Name " + u.email, Area: u.area, Role: u.role,
		})
		require.NoError(t, err)
	}
	return foodsFixture{repo: repo, users: userRepo, svc: svc}
}

func TestCreateRequiresSellerAndValidPrice(t *testing.T) {
	f := newFoodsFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "cust@example.com", CreateFoodInput{Name: "Suya", Price: decimal.NewFromInt(5)})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	_, err = f.svc.Create(ctx, "ada@example.com", CreateFoodInput{Name: "Suya", Price: decimal.NewFromInt(-1)})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	food, err := f.svc.Create(ctx, "ADA@example.com", CreateFoodInput{Name: " Suya ", Price: decimal.RequireFromString("7.499")})
	require.NoError(t, err)
	assert.Equal(t, "Suya", food.Name)
	assert.Equal(t, "ada@example.com", food.SellerEmail)
	assert.True(t, food.Price.Equal(decimal.RequireFromString("7.50")))
}

func TestUpdateChecksOwnership(t *testing.T) {
	f := newFoodsFixture(t)
	ctx := context.Background()
	food, err := f.svc.Create(ctx, "ada@example.com", CreateFoodInput{Name: "Suya", Price: decimal.NewFromInt(5)})
	require.NoError(t, err)

	name := "Beef Suya"
	_, err = f.svc.Update(ctx, "bola@example.com", food.ID, UpdateFoodInput{Name: &name})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	_, err = f.svc.Update(ctx, "ada@example.com", uuid.New(), UpdateFoodInput{Name: &name})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	price := decimal.NewFromInt(8)
	updated, err := f.svc.Update(ctx, "ada@example.com", food.ID, UpdateFoodInput{Name: &name, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "Beef Suya", updated.Name)
	assert.True(t, updated.Price.Equal(price))
}

func TestListForAreaMatchesSellerArea(t *testing.T) {
	f := newFoodsFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, "ada@example.com", CreateFoodInput{Name: "Suya", Price: decimal.NewFromInt(5)})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, "bola@example.com", CreateFoodInput{Name: "Moi Moi", Price: decimal.NewFromInt(3)})
	require.NoError(t, err)
	// a listing whose seller email is not a seller never shows up
	_, err = f.repo.Create(ctx, &models.FoodListing{SellerEmail: "cust@example.com", Name: "Stray", Price: decimal.NewFromInt(1)})
	require.NoError(t, err)

	list, err := f.svc.ListForArea(ctx, "cust@example.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Suya", list[0].Name)
	assert.Equal(t, "Name ada@example.com", list[0].SellerName)

	unknown, err := f.svc.ListForArea(ctx, "ghost@example.com")
	require.NoError(t, err)
	assert.Empty(t, unknown)
}

func TestListAllPaginates(t *testing.T) {
	f := newFoodsFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := f.repo.Create(ctx, &models.FoodListing{
			SellerEmail: "ada@example.com",
			Name:        "dish",
			Price:       decimal.NewFromInt(int64(i)),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	seen := map[uuid.UUID]bool{}
	cursor := ""
	pages := 0
	for {
		page, err := f.svc.ListAll(ctx, pagination.Params{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		pages++
		for _, item := range page.Items {
			assert.False(t, seen[item.ID], "duplicate across pages")
			seen[item.ID] = true
		}
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}
	assert.Len(t, seen, 5)
	assert.Equal(t, 3, pages)

	_, err := f.svc.ListAll(ctx, pagination.Params{Cursor: "%%%"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
