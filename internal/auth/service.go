package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/internal/users"
	pkgAuth "github.com/angelmondragon/homechef-backend/pkg/auth"
	"github.com/angelmondragon/homechef-backend/pkg/auth/session"
	"github.com/angelmondragon/homechef-backend/pkg/config"
	"github.com/angelmondragon/homechef-backend/pkg/db"
	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
	"github.com/angelmondragon/homechef-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, accessID string) error
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Timeout        db.StoreTimeout
	Logger         *logger.Logger
}

type service struct {
	users       userRepository
	session     sessionManager
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	timeout     db.StoreTimeout
	logg        *logger.Logger
	now         func() time.Time
}

// NewService wires the login, refresh and logout flows.
func NewService(params ServiceParams) (Service, error) {
	var missing []error
	if params.UserRepo == nil {
		missing = append(missing, errors.New("auth: user repository required"))
	}
	if params.SessionManager == nil {
		missing = append(missing, errors.New("auth: session manager required"))
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		users:       params.UserRepo,
		session:     params.SessionManager,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		timeout:     params.Timeout,
		logg:        logg,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	s.upgradeHash(ctx, user, req.Password)

	now := s.now()
	if err := s.timeout.Run(ctx, func(ctx context.Context) error {
		return s.users.UpdateLastLogin(ctx, user.ID, now)
	}); err != nil {
		return nil, wrapStore(err, "update last login")
	}
	user.LastLoginAt = &now

	pair, err := s.issue(ctx, user, now, session.NewAccessID(), "")
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "auth.login")
	return &LoginResponse{TokenPair: *pair, User: users.FromModel(user)}, nil
}

// Refresh rotates the session bound to accessToken's jti. The access token may
// be expired but must carry a valid signature.
func (s *service) Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, strings.TrimSpace(accessToken))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token")
	}

	user, err := s.lookup(ctx, claims.Email)
	if err != nil {
		return nil, err
	}

	newAccessID, newRefresh, err := s.session.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	return s.issue(ctx, user, s.now(), newAccessID, newRefresh)
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid session")
	}
	if err := s.session.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

// issue mints an access token for accessID. An empty refresh token means a
// new session is stored for it.
func (s *service) issue(ctx context.Context, user *models.User, now time.Time, accessID, refresh string) (*TokenPair, error) {
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	if refresh == "" {
		refresh, err = s.session.Generate(ctx, accessID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
		}
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refresh}, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	valid, err := security.VerifyPassword(password, user.PasswordHash)
	switch {
	case errors.Is(err, security.ErrInvalidHash), err == nil && !valid:
		// a corrupt stored hash looks like a wrong password to the caller
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	return user, nil
}

func (s *service) lookup(ctx context.Context, email string) (*models.User, error) {
	email = users.NormalizeEmail(email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	var user *models.User
	err := s.timeout.Run(ctx, func(ctx context.Context) (err error) {
		user, err = s.users.FindByEmail(ctx, email)
		return err
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	case err != nil:
		return nil, wrapStore(err, "lookup user")
	}
	return user, nil
}

// upgradeHash re-hashes with the current parameters. Failures are logged and
// do not fail the login.
func (s *service) upgradeHash(ctx context.Context, user *models.User, password string) {
	if !security.NeedsRehash(user.PasswordHash, s.passwordCfg) {
		return
	}
	hash, err := security.HashPassword(password, s.passwordCfg)
	if err == nil {
		err = s.timeout.Run(ctx, func(ctx context.Context) error {
			return s.users.UpdatePasswordHash(ctx, user.ID, hash)
		})
	}
	if err != nil {
		s.logg.Error(s.logg.WithUserID(ctx, user.ID.String()), "auth.rehash_failed", err)
		return
	}
	user.PasswordHash = hash
}
