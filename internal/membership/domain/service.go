package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// UserSummary is attached to member views for display purposes.
type UserSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// MemberView is a membership row joined with its user.
type MemberView struct {
	ID       string      `json:"id"`
	EntityID string      `json:"entity_id"`
	Role     Role        `json:"role"`
	JoinedAt time.Time   `json:"joined_at"`
	User     UserSummary `json:"user"`
}

type CreateOrganizationMemberRequest struct {
	OrgID  snowflake.ID
	UserID snowflake.ID
	Role   Role
	// RequesterID is nil for trusted internal callers (e.g. invitation
	// acceptance); permission checks are skipped in that case.
	RequesterID *snowflake.ID
}

type CreateWorkspaceMemberRequest struct {
	WorkspaceID snowflake.ID
	UserID      snowflake.ID
	Role        Role
	RequesterID *snowflake.ID
}

type CreateProjectMemberRequest struct {
	ProjectID   snowflake.ID
	UserID      snowflake.ID
	Role        Role
	RequesterID *snowflake.ID
}

// Service manages memberships across the organization → workspace → project
// hierarchy and owns the cascade rules between levels. All writes triggered
// by one call commit in a single transaction.
type Service interface {
	CreateOrganizationMember(ctx context.Context, req CreateOrganizationMemberRequest) (*MemberView, error)
	UpdateOrganizationMember(ctx context.Context, memberID snowflake.ID, role Role, requesterID snowflake.ID) (*MemberView, error)
	RemoveOrganizationMember(ctx context.Context, memberID snowflake.ID, requesterID snowflake.ID) error
	ListOrganizationMembers(ctx context.Context, orgID snowflake.ID) ([]MemberView, error)

	CreateWorkspaceMember(ctx context.Context, req CreateWorkspaceMemberRequest) (*MemberView, error)
	UpdateWorkspaceMember(ctx context.Context, memberID snowflake.ID, role Role, requesterID snowflake.ID) (*MemberView, error)
	RemoveWorkspaceMember(ctx context.Context, memberID snowflake.ID, requesterID snowflake.ID) error
	ListWorkspaceMembers(ctx context.Context, workspaceID snowflake.ID) ([]MemberView, error)

	CreateProjectMember(ctx context.Context, req CreateProjectMemberRequest) (*MemberView, error)
	UpdateProjectMember(ctx context.Context, memberID snowflake.ID, role Role, requesterID snowflake.ID) (*MemberView, error)
	RemoveProjectMember(ctx context.Context, memberID snowflake.ID, requesterID snowflake.ID) error
	ListProjectMembers(ctx context.Context, projectID snowflake.ID) ([]MemberView, error)

	// Side-effect-free lookups. A nil member with nil error means absent.
	FindByUserAndOrganization(ctx context.Context, userID, orgID snowflake.ID) (*OrganizationMember, error)
	FindByUserAndWorkspace(ctx context.Context, userID, workspaceID snowflake.ID) (*WorkspaceMember, error)
	FindByUserAndProject(ctx context.Context, userID, projectID snowflake.ID) (*ProjectMember, error)

	// CanManageOrganization reports whether the user may manage memberships
	// under the organization (super-admin, owner, or MANAGER/OWNER member).
	CanManageOrganization(ctx context.Context, userID, orgID snowflake.ID) (bool, error)

	// Ensure* materialize a membership inside the caller's transaction,
	// creating it (with creation cascade) only when absent. Used by
	// invitation acceptance; no permission checks are applied.
	EnsureOrganizationMember(ctx context.Context, tx *gorm.DB, orgID, userID snowflake.ID, role Role) error
	EnsureWorkspaceMember(ctx context.Context, tx *gorm.DB, workspaceID, userID snowflake.ID, role Role) error
	EnsureProjectMember(ctx context.Context, tx *gorm.DB, projectID, userID snowflake.ID, role Role) error
}
