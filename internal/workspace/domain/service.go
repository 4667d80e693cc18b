package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidName = errors.New("invalid_name")
	ErrNotFound    = errors.New("workspace_not_found")
	ErrForbidden   = errors.New("forbidden")
)

type Service interface {
	Create(ctx context.Context, requesterID, orgID snowflake.ID, req CreateWorkspaceRequest) (*WorkspaceResponse, error)
	GetByID(ctx context.Context, id snowflake.ID) (*WorkspaceResponse, error)
	ListByOrg(ctx context.Context, orgID snowflake.ID) ([]WorkspaceResponse, error)
}

type CreateWorkspaceRequest struct {
	Name string
}

type WorkspaceResponse struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}
