package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, workspace Workspace) error
	GetByID(ctx context.Context, id snowflake.ID) (*Workspace, error)
	ListByOrg(ctx context.Context, orgID snowflake.ID) ([]Workspace, error)
}
