package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrganizationMember(ctx context.Context, member *OrganizationMember) error
	GetOrganizationMember(ctx context.Context, id snowflake.ID) (*OrganizationMember, error)
	FindOrganizationMember(ctx context.Context, orgID, userID snowflake.ID) (*OrganizationMember, error)
	UpdateOrganizationMemberRole(ctx context.Context, id snowflake.ID, role Role) error
	DeleteOrganizationMember(ctx context.Context, id snowflake.ID) error
	ListOrganizationMembers(ctx context.Context, orgID snowflake.ID) ([]OrganizationMember, error)

	CreateWorkspaceMember(ctx context.Context, member *WorkspaceMember) error
	GetWorkspaceMember(ctx context.Context, id snowflake.ID) (*WorkspaceMember, error)
	FindWorkspaceMember(ctx context.Context, workspaceID, userID snowflake.ID) (*WorkspaceMember, error)
	UpsertWorkspaceMember(ctx context.Context, member *WorkspaceMember) error
	UpdateWorkspaceMemberRole(ctx context.Context, id snowflake.ID, role Role) error
	DeleteWorkspaceMember(ctx context.Context, id snowflake.ID) error
	DeleteWorkspaceMembersByOrgAndUser(ctx context.Context, orgID, userID snowflake.ID) error
	ListWorkspaceMembers(ctx context.Context, workspaceID snowflake.ID) ([]WorkspaceMember, error)

	CreateProjectMember(ctx context.Context, member *ProjectMember) error
	GetProjectMember(ctx context.Context, id snowflake.ID) (*ProjectMember, error)
	FindProjectMember(ctx context.Context, projectID, userID snowflake.ID) (*ProjectMember, error)
	UpsertProjectMember(ctx context.Context, member *ProjectMember) error
	UpdateProjectMemberRole(ctx context.Context, id snowflake.ID, role Role) error
	DeleteProjectMember(ctx context.Context, id snowflake.ID) error
	DeleteProjectMembersByWorkspaceAndUser(ctx context.Context, workspaceID, userID snowflake.ID) error
	DeleteProjectMembersByOrgAndUser(ctx context.Context, orgID, userID snowflake.ID) error
	ListProjectMembers(ctx context.Context, projectID snowflake.ID) ([]ProjectMember, error)

	UpdateWorkspaceRolesByOrgAndUser(ctx context.Context, orgID, userID snowflake.ID, role Role) error
	UpdateProjectRolesByWorkspaceAndUser(ctx context.Context, workspaceID, userID snowflake.ID, role Role) error

	ListWorkspaceIDsByOrg(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error)
	ListProjectIDsByWorkspace(ctx context.Context, workspaceID snowflake.ID) ([]snowflake.ID, error)

	ListUserSummaries(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]UserSummary, error)
}
