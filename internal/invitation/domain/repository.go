package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, invitation *Invitation) error
	GetByID(ctx context.Context, id snowflake.ID) (*Invitation, error)
	GetByToken(ctx context.Context, token string) (*Invitation, error)
	Update(ctx context.Context, invitation *Invitation) error
	Delete(ctx context.Context, id snowflake.ID) error

	// FindPendingByEmailAndTarget returns (nil, nil) when absent.
	FindPendingByEmailAndTarget(ctx context.Context, email string, target Target) (*Invitation, error)

	// ExpirePendingByTarget flips every pending invitation for the target
	// whose expiry has passed to EXPIRED.
	ExpirePendingByTarget(ctx context.Context, target Target, now time.Time) error

	// ListByTarget returns non-accepted invitations, newest first.
	ListByTarget(ctx context.Context, target Target) ([]Invitation, error)
	// ListPendingByEmail returns pending invitations expiring after now,
	// newest first.
	ListPendingByEmail(ctx context.Context, email string, now time.Time) ([]Invitation, error)
}
