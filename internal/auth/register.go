package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/internal/users"
	"github.com/angelmondragon/homechef-backend/pkg/config"
	"github.com/angelmondragon/homechef-backend/pkg/db"
	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
	"github.com/angelmondragon/homechef-backend/pkg/security"
)

// RegisterService creates customer, seller and rider accounts.
type RegisterService interface {
	SignUp(ctx context.Context, req SignUpRequest) (*users.UserDTO, error)
}

type userCreator interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	Users          userCreator
	PasswordConfig config.PasswordConfig
	Timeout        db.StoreTimeout
	Logger         *logger.Logger
}

type registerService struct {
	users       userCreator
	passwordCfg config.PasswordConfig
	timeout     db.StoreTimeout
	logg        *logger.Logger
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &registerService{
		users:       params.Users,
		passwordCfg: params.PasswordConfig,
		timeout:     params.Timeout,
		logg:        params.Logger,
	}, nil
}

func (s *registerService) SignUp(ctx context.Context, req SignUpRequest) (*users.UserDTO, error) {
	email := users.NormalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if err := users.CheckPhone(req.Phone); err != nil {
		return nil, err
	}
	if !req.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role").
			WithDetails(map[string]any{"role": req.Role})
	}
	if req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password is required")
	}

	err := s.timeout.Run(ctx, func(ctx context.Context) error {
		_, err := s.users.FindByEmail(ctx, email)
		return err
	})
	switch {
	case err == nil:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, wrapStore(err, "check user email")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var user *models.User
	err = s.timeout.Run(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			Name:         strings.TrimSpace(req.Name),
			Address:      strings.TrimSpace(req.Address),
			Phone:        users.NormalizePhone(req.Phone),
			Area:         req.Area,
			Role:         req.Role,
		})
		return err
	})
	if err != nil {
		switch {
		case users.IsRiderPhoneTaken(err):
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "phone already registered to another rider")
		case db.IsUniqueViolation(err, ""):
			// a concurrent sign-up can pass the lookup above
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, wrapStore(err, "create user")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"user_id": user.ID.String(),
		"role":    string(user.Role),
	}), "auth.signup")

	return users.FromModel(user), nil
}

func wrapStore(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
