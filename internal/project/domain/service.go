package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidName = errors.New("invalid_name")
	ErrNotFound    = errors.New("project_not_found")
	ErrForbidden   = errors.New("forbidden")
)

type Service interface {
	Create(ctx context.Context, requesterID, workspaceID snowflake.ID, req CreateProjectRequest) (*ProjectResponse, error)
	GetByID(ctx context.Context, id snowflake.ID) (*ProjectResponse, error)
	ListByWorkspace(ctx context.Context, workspaceID snowflake.ID) ([]ProjectResponse, error)
}

type CreateProjectRequest struct {
	Name string
}

type ProjectResponse struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
}
