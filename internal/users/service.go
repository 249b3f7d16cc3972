package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/pkg/db"
	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
)

type profileRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, in UpdateUserInput) error
}

// Service exposes profile reads and updates keyed by email.
type Service interface {
	GetUser(ctx context.Context, email string) (*UserDTO, error)
	UpdateUser(ctx context.Context, email string, in UpdateUserInput) (*UserDTO, error)
}

type service struct {
	repo    profileRepository
	timeout db.StoreTimeout
}

// NewService builds the profile service. Every store call runs under timeout.
func NewService(repo profileRepository, timeout db.StoreTimeout) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &service{repo: repo, timeout: timeout}, nil
}

func (s *service) GetUser(ctx context.Context, email string) (*UserDTO, error) {
	user, err := s.load(ctx, email)
	if err != nil {
		return nil, err
	}
	return FromModel(user), nil
}

func (s *service) UpdateUser(ctx context.Context, email string, in UpdateUserInput) (*UserDTO, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
	}
	if in.Phone != nil {
		if err := CheckPhone(*in.Phone); err != nil {
			return nil, err
		}
	}
	user, err := s.load(ctx, email)
	if err != nil {
		return nil, err
	}
	if in.Phone != nil && NormalizePhone(*in.Phone) == user.Phone {
		in.Phone = nil
	}
	err = s.timeout.Run(ctx, func(ctx context.Context) error {
		return s.repo.UpdateProfile(ctx, user.ID, in)
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrPhoneLocked):
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "phone cannot change while deliveries are in progress")
	case IsRiderPhoneTaken(err):
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "phone already registered to another rider")
	case pkgerrors.As(err) != nil:
		return nil, err
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update user")
	}
	return s.GetUser(ctx, email)
}

func (s *service) load(ctx context.Context, email string) (*models.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	var user *models.User
	err := s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.repo.FindByEmail(ctx, email)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return user, nil
}
