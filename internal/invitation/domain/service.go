package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	membershipdomain "github.com/smallbiznis/crewplan/internal/membership/domain"
)

// CreateInvitationRequest asks for either an invitation or a direct add.
// Exactly one of OrgID/WorkspaceID/ProjectID must be set.
type CreateInvitationRequest struct {
	Email       string
	OrgID       *snowflake.ID
	WorkspaceID *snowflake.ID
	ProjectID   *snowflake.ID
	Role        membershipdomain.Role
	InviterID   snowflake.ID
}

const (
	ResultTypeInvitation = "invitation"
	ResultTypeDirectAdd  = "direct_add"
)

// CreateInvitationResult reports the taken path. Email delivery is best
// effort: a failed send surfaces as EmailSent=false plus EmailError, never as
// a hard error.
type CreateInvitationResult struct {
	Type       string                       `json:"type"`
	Invitation *InvitationView              `json:"invitation,omitempty"`
	Member     *membershipdomain.MemberView `json:"member,omitempty"`
	EmailSent  bool                         `json:"email_sent"`
	EmailError string                       `json:"email_error,omitempty"`
}

// ResendResult mirrors CreateInvitationResult's delivery semantics.
type ResendResult struct {
	Invitation *InvitationView `json:"invitation"`
	EmailSent  bool            `json:"email_sent"`
	EmailError string          `json:"email_error,omitempty"`
}

// InvitationView is the external representation of an invitation.
type InvitationView struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	EntityType Level     `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Role       string    `json:"role"`
	Status     Status    `json:"status"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// VerifyResult is the read-only pre-acceptance view rendered behind an
// invitation link.
type VerifyResult struct {
	IsValid       bool      `json:"is_valid"`
	IsExpired     bool      `json:"is_expired"`
	CanRespond    bool      `json:"can_respond"`
	Email         string    `json:"email"`
	AccountExists bool      `json:"account_exists"`
	EntityType    Level     `json:"entity_type"`
	EntityName    string    `json:"entity_name"`
	Role          string    `json:"role"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Service drives the invitation state machine. Acceptance materializes
// memberships through the hierarchy manager inside one transaction; email
// delivery always happens after commit.
type Service interface {
	Create(ctx context.Context, req CreateInvitationRequest) (*CreateInvitationResult, error)
	Accept(ctx context.Context, token string, userID snowflake.ID) (*InvitationView, error)
	Decline(ctx context.Context, token string, userID snowflake.ID) (*InvitationView, error)
	Resend(ctx context.Context, id snowflake.ID, requesterID snowflake.ID) (*ResendResult, error)
	Delete(ctx context.Context, id snowflake.ID, requesterID snowflake.ID) error
	Verify(ctx context.Context, token string) (*VerifyResult, error)

	// ListForEntity sweeps lazy expiry for the entity first, then returns
	// non-accepted invitations newest-first.
	ListForEntity(ctx context.Context, target Target) ([]InvitationView, error)
	// ListForUser returns pending, unexpired invitations for an email
	// without sweeping.
	ListForUser(ctx context.Context, email string) ([]InvitationView, error)
}
