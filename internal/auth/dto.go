package auth

import (
	"github.com/angelmondragon/homechef-backend/internal/users"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
)

// SignUpRequest is the registration payload shared by all three account kinds.
type SignUpRequest struct {
	Name     string         `json:"name" validate:"required,max=200"`
	Email    string         `json:"email" validate:"required,email"`
	Password string         `json:"password" validate:"required,min=8,max=256"`
	Address  string         `json:"address" validate:"max=500"`
	Area     string         `json:"area" validate:"required,max=100"`
	Phone    string         `json:"phone" validate:"required,max=50"`
	Role     enums.UserRole `json:"role" validate:"required"`
}

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest exchanges a refresh token for a new token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResponse contains the tokens and the user produced by a successful login.
type LoginResponse struct {
	TokenPair
	User *users.UserDTO `json:"user"`
}
