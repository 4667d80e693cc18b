package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	CreateUser(ctx context.Context, user *User) error
	FindUserByID(ctx context.Context, id snowflake.ID) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	CreateSession(ctx context.Context, session *Session) error
	FindSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	DeleteSession(ctx context.Context, id snowflake.ID) error
}
