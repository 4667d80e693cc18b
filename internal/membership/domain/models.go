// Package domain contains models and contracts for hierarchy memberships.
package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Role is a membership role shared by all three hierarchy levels.
type Role string

const (
	RoleOwner   Role = "OWNER"
	RoleManager Role = "MANAGER"
	RoleMember  Role = "MEMBER"
	RoleViewer  Role = "VIEWER"
)

// ParseRole validates a raw role string.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleOwner:
		return RoleOwner, nil
	case RoleManager:
		return RoleManager, nil
	case RoleMember:
		return RoleMember, nil
	case RoleViewer:
		return RoleViewer, nil
	default:
		return "", ErrInvalidRole
	}
}

// Elevated reports whether the role fans out to the level below on creation.
func (r Role) Elevated() bool {
	return r == RoleOwner || r == RoleManager
}

// OrganizationMember links a user to an organization.
type OrganizationMember struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"column:org_id;not null;index;uniqueIndex:ux_org_members_org_user,priority:1" json:"org_id"`
	UserID    snowflake.ID `gorm:"column:user_id;not null;index;uniqueIndex:ux_org_members_org_user,priority:2" json:"user_id"`
	Role      Role         `gorm:"type:text;not null" json:"role"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"joined_at"`
}

// TableName sets the database table name.
func (OrganizationMember) TableName() string { return "organization_members" }

// WorkspaceMember links a user to a workspace. It may exist only while the
// user is also a member of the workspace's owning organization.
type WorkspaceMember struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	WorkspaceID snowflake.ID `gorm:"column:workspace_id;not null;index;uniqueIndex:ux_ws_members_ws_user,priority:1" json:"workspace_id"`
	UserID      snowflake.ID `gorm:"column:user_id;not null;index;uniqueIndex:ux_ws_members_ws_user,priority:2" json:"user_id"`
	Role        Role         `gorm:"type:text;not null" json:"role"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"joined_at"`
}

// TableName sets the database table name.
func (WorkspaceMember) TableName() string { return "workspace_members" }

// ProjectMember links a user to a project, contingent on workspace membership.
type ProjectMember struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	ProjectID snowflake.ID `gorm:"column:project_id;not null;index;uniqueIndex:ux_project_members_project_user,priority:1" json:"project_id"`
	UserID    snowflake.ID `gorm:"column:user_id;not null;index;uniqueIndex:ux_project_members_project_user,priority:2" json:"user_id"`
	Role      Role         `gorm:"type:text;not null" json:"role"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"joined_at"`
}

// TableName sets the database table name.
func (ProjectMember) TableName() string { return "project_members" }

var (
	ErrInvalidRole        = errors.New("invalid_role")
	ErrForbidden          = errors.New("forbidden")
	ErrAlreadyMember      = errors.New("already_member")
	ErrMemberNotFound     = errors.New("member_not_found")
	ErrOwnerImmutable     = errors.New("owner_immutable")
	ErrNotOrgMember       = errors.New("not_org_member")
	ErrNotWorkspaceMember = errors.New("not_workspace_member")
)
