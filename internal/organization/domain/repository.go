package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type OrganizationWithRole struct {
	ID        snowflake.ID
	Name      string
	Role      string
	CreatedAt time.Time
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, org Organization) error
	GetByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationWithRole, error)
}
