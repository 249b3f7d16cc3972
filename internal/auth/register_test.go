package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homechef-backend/internal/users"
	pkgmodels "github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
	"github.com/angelmondragon/homechef-backend/pkg/security"
)

type stubUserRepository struct {
	data      map[string]*pkgmodels.User
	created   *pkgmodels.User
	createErr error
}

func newStubUserRepository() *stubUserRepository {
	return &stubUserRepository{data: map[string]*pkgmodels.User{}}
}

func (s *stubUserRepository) FindByEmail(ctx context.Context, email string) (*pkgmodels.User, error) {
	if user, ok := s.data[email]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepository) Create(ctx context.Context, dto users.CreateUserDTO) (*pkgmodels.User, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	user := dto.ToModel()
	user.ID = uuid.New()
	s.data[user.Email] = user
	s.created = user
	return user, nil
}

func validSignUp() SignUpRequest {
	return SignUpRequest{
		Name:     "Ada",
		Email:    "Ada@Example.com",
		Password: "supersecret",
		Address:  "1 Marina",
		Area:     "Lekki",
		Phone:    "0800",
		Role:     enums.UserRoleSeller,
	}
}

func newTestRegisterService(t *testing.T, repo *stubUserRepository) RegisterService {
	t.Helper()
	svc, err := NewRegisterService(RegisterServiceParams{Users: repo})
	if err != nil {
		t.Fatalf("build register service: %v", err)
	}
	return svc
}

func TestSignUpHashesPasswordAndNormalizesEmail(t *testing.T) {
	repo := newStubUserRepository()
	svc := newTestRegisterService(t, repo)

	dto, err := svc.SignUp(context.Background(), validSignUp())
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if dto.Email != "ada@example.com" || dto.Role != enums.UserRoleSeller || !dto.IsActive {
		t.Fatalf("unexpected dto %+v", dto)
	}
	if repo.created.PasswordHash == "supersecret" {
		t.Fatalf("password stored in plaintext")
	}
	ok, err := security.VerifyPassword("supersecret", repo.created.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestSignUpDuplicateEmailConflicts(t *testing.T) {
	repo := newStubUserRepository()
	svc := newTestRegisterService(t, repo)
	if _, err := svc.SignUp(context.Background(), validSignUp()); err != nil {
		t.Fatalf("first sign up: %v", err)
	}

	_, err := svc.SignUp(context.Background(), validSignUp())
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict got %s", code)
	}

	racing := newStubUserRepository()
	racing.createErr = errors.New("UNIQUE constraint failed: users.email")
	_, err = newTestRegisterService(t, racing).SignUp(context.Background(), validSignUp())
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict from unique violation got %s", code)
	}
}

func TestSignUpValidatesRole(t *testing.T) {
	req := validSignUp()
	req.Role = enums.UserRole("admin")
	_, err := newTestRegisterService(t, newStubUserRepository()).SignUp(context.Background(), req)
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %s", code)
	}
}

func TestSignUpRejectsUnusablePhones(t *testing.T) {
	for _, phone := range []string{"", "   ", pkgmodels.RiderUnassigned, "\t" + pkgmodels.RiderUnassigned + " "} {
		repo := newStubUserRepository()
		req := validSignUp()
		req.Role = enums.UserRoleRider
		req.Phone = phone

		_, err := newTestRegisterService(t, repo).SignUp(context.Background(), req)
		if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeValidation {
			t.Fatalf("phone %q: expected validation error got %s", phone, code)
		}
		if repo.created != nil {
			t.Fatalf("phone %q: user was created", phone)
		}
	}
}

func TestSignUpRiderPhoneClash(t *testing.T) {
	for _, msg := range []string{
		"UNIQUE constraint failed: users.phone",
		`ERROR: duplicate key value violates unique constraint "idx_users_rider_phone" (SQLSTATE 23505)`,
	} {
		repo := newStubUserRepository()
		repo.createErr = errors.New(msg)
		req := validSignUp()
		req.Role = enums.UserRoleRider

		_, err := newTestRegisterService(t, repo).SignUp(context.Background(), req)
		appErr := pkgerrors.As(err)
		if appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
			t.Fatalf("%s: expected conflict got %v", msg, err)
		}
		if !strings.Contains(appErr.Error(), "phone") {
			t.Fatalf("%s: conflict should name the phone, got %q", msg, appErr.Error())
		}
	}
}
