package foods

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/internal/users"
	"github.com/angelmondragon/homechef-backend/pkg/db"
	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
	"github.com/angelmondragon/homechef-backend/pkg/pagination"
)

type userLookup interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByEmailAndRole(ctx context.Context, email string, role enums.UserRole) (*models.User, error)
}

// Service manages seller food listings and the browse views.
type Service interface {
	Create(ctx context.Context, sellerEmail string, in CreateFoodInput) (*FoodDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*FoodDTO, error)
	ListBySeller(ctx context.Context, sellerEmail string) ([]FoodDTO, error)
	ListAll(ctx context.Context, params pagination.Params) (*ListResult, error)
	Update(ctx context.Context, sellerEmail string, id uuid.UUID, in UpdateFoodInput) (*FoodDTO, error)
	ListForArea(ctx context.Context, userEmail string) ([]AreaFood, error)
	RequireOwner(ctx context.Context, sellerEmail string, id uuid.UUID) error
}

type service struct {
	repo    *Repository
	users   userLookup
	timeout db.StoreTimeout
}

func NewService(repo *Repository, users userLookup, timeout db.StoreTimeout) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("foods repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("users lookup required")
	}
	return &service{repo: repo, users: users, timeout: timeout}, nil
}

func (s *service) Create(ctx context.Context, sellerEmail string, in CreateFoodInput) (*FoodDTO, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	seller, err := s.seller(ctx, sellerEmail)
	if err != nil {
		return nil, err
	}

	var food *models.FoodListing
	err = s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		food, err = s.repo.Create(ctx, in.toModel(seller.Email))
		return err
	})
	if err != nil {
		return nil, wrapStore(err, "create food")
	}
	dto := FromModel(food)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*FoodDTO, error) {
	food, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(food)
	return &dto, nil
}

func (s *service) ListBySeller(ctx context.Context, sellerEmail string) ([]FoodDTO, error) {
	email := users.NormalizeEmail(sellerEmail)
	var rows []models.FoodListing
	err := s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		rows, err = s.repo.ListBySeller(ctx, email)
		return err
	})
	if err != nil {
		return nil, wrapStore(err, "list seller foods")
	}
	return fromModels(rows), nil
}

func (s *service) ListAll(ctx context.Context, params pagination.Params) (*ListResult, error) {
	cursor, err := pagination.Decode(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	var (
		rows []models.FoodListing
		next *pagination.Cursor
	)
	err = s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		rows, next, err = s.repo.List(ctx, params, cursor)
		return err
	})
	if err != nil {
		return nil, wrapStore(err, "list foods")
	}

	result := &ListResult{Items: fromModels(rows)}
	if next != nil {
		result.Cursor = next.Encode()
	}
	return result, nil
}

func (s *service) Update(ctx context.Context, sellerEmail string, id uuid.UUID, in UpdateFoodInput) (*FoodDTO, error) {
	cols, err := in.columns()
	if err != nil {
		return nil, err
	}
	if err := s.RequireOwner(ctx, sellerEmail, id); err != nil {
		return nil, err
	}

	var found bool
	err = s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		found, err = s.repo.Update(ctx, id, cols)
		return err
	})
	if err != nil {
		return nil, wrapStore(err, "update food")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "food not found")
	}
	return s.Get(ctx, id)
}

// ListForArea shows the listings of sellers sharing the user's area. An
// unknown user sees an empty list.
func (s *service) ListForArea(ctx context.Context, userEmail string) ([]AreaFood, error) {
	var user *models.User
	err := s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.FindByEmail(ctx, users.NormalizeEmail(userEmail))
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []AreaFood{}, nil
		}
		return nil, wrapStore(err, "load user")
	}

	var list []AreaFood
	err = s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		list, err = s.repo.ListForArea(ctx, user.Area)
		return err
	})
	if err != nil {
		return nil, wrapStore(err, "list area foods")
	}
	return list, nil
}

// RequireOwner fails unless the listing exists and belongs to sellerEmail.
func (s *service) RequireOwner(ctx context.Context, sellerEmail string, id uuid.UUID) error {
	food, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if food.SellerEmail != users.NormalizeEmail(sellerEmail) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "food belongs to another seller")
	}
	return nil
}

func (s *service) find(ctx context.Context, id uuid.UUID) (*models.FoodListing, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "food id required")
	}
	var food *models.FoodListing
	err := s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		food, err = s.repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "food not found")
		}
		return nil, wrapStore(err, "load food")
	}
	return food, nil
}

func (s *service) seller(ctx context.Context, email string) (*models.User, error) {
	email = users.NormalizeEmail(email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller email required")
	}
	var seller *models.User
	err := s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		seller, err = s.users.FindByEmailAndRole(ctx, email, enums.UserRoleSeller)
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

func wrapStore(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
