package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrUserExists         = errors.New("user_exists")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrInvalidSession     = errors.New("invalid_session")
	ErrSessionExpired     = errors.New("session_expired")
)

type Service interface {
	Signup(ctx context.Context, req SignupRequest) (*LoginResult, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	Authenticate(ctx context.Context, rawToken string) (*Identity, error)
}

type SignupRequest struct {
	Email    string
	Name     string
	Password string
}

type LoginRequest struct {
	Email    string
	Password string
}

type LoginResult struct {
	User     *User
	RawToken string
	Session  snowflake.ID
}
