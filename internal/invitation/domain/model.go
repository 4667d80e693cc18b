// Package domain contains models and contracts for the invitation lifecycle.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	membershipdomain "github.com/smallbiznis/crewplan/internal/membership/domain"
)

// Status is an invitation lifecycle state.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusDeclined Status = "DECLINED"
	StatusExpired  Status = "EXPIRED"
)

// Level identifies which hierarchy level an invitation targets.
type Level string

const (
	LevelOrganization Level = "organization"
	LevelWorkspace    Level = "workspace"
	LevelProject      Level = "project"
)

// Target is the single entity an invitation points at, resolved once at the
// boundary so the rest of the engine never re-checks which id column is set.
type Target struct {
	Level Level
	ID    snowflake.ID
}

// NewTarget builds a Target from the raw id columns. Exactly one id must be
// set.
func NewTarget(orgID, workspaceID, projectID *snowflake.ID) (Target, error) {
	set := 0
	var target Target
	if orgID != nil {
		set++
		target = Target{Level: LevelOrganization, ID: *orgID}
	}
	if workspaceID != nil {
		set++
		target = Target{Level: LevelWorkspace, ID: *workspaceID}
	}
	if projectID != nil {
		set++
		target = Target{Level: LevelProject, ID: *projectID}
	}
	if set != 1 {
		return Target{}, ErrSingleTarget
	}
	return target, nil
}

// Invitation is a pending-or-settled invite to join one hierarchy entity.
type Invitation struct {
	ID          snowflake.ID          `gorm:"primaryKey" json:"id"`
	InviterID   snowflake.ID          `gorm:"column:inviter_id;not null" json:"inviter_id"`
	Email       string                `gorm:"type:text;not null;index" json:"email"`
	OrgID       *snowflake.ID         `gorm:"column:org_id;index" json:"org_id,omitempty"`
	WorkspaceID *snowflake.ID         `gorm:"column:workspace_id;index" json:"workspace_id,omitempty"`
	ProjectID   *snowflake.ID         `gorm:"column:project_id;index" json:"project_id,omitempty"`
	Role        membershipdomain.Role `gorm:"type:text;not null" json:"role"`
	Token       string                `gorm:"type:text;not null;uniqueIndex:ux_invitations_token" json:"-"`
	Status      Status                `gorm:"type:text;not null;index" json:"status"`
	ExpiresAt   time.Time             `gorm:"not null" json:"expires_at"`
	CreatedAt   time.Time             `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time             `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "invitations" }

// Target returns the invitation's resolved target.
func (i Invitation) Target() (Target, error) {
	return NewTarget(i.OrgID, i.WorkspaceID, i.ProjectID)
}

var (
	ErrNotFound           = errors.New("invitation_not_found")
	ErrSingleTarget       = errors.New("invitation_single_target")
	ErrInvitationExpired  = errors.New("invitation_expired")
	ErrAlreadyProcessed   = errors.New("invitation_already_processed")
	ErrAlreadyDeclined    = errors.New("invitation_already_declined")
	ErrEmailMismatch      = errors.New("invitation_email_mismatch")
	ErrInvalidEmail       = errors.New("invitation_invalid_email")
	ErrPendingExists      = errors.New("invitation_pending_exists")
	ErrInviteeIsMember    = errors.New("invitee_already_member")
	ErrEmailNotConfigured = errors.New("email_not_configured")
	ErrForbidden          = errors.New("forbidden")
)
