package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/crewplan/internal/auth/domain"
	"github.com/smallbiznis/crewplan/internal/clock"
	"github.com/smallbiznis/crewplan/internal/config"
	"github.com/smallbiznis/crewplan/internal/events"
	"github.com/smallbiznis/crewplan/internal/invitation/domain"
	membershipdomain "github.com/smallbiznis/crewplan/internal/membership/domain"
	organizationdomain "github.com/smallbiznis/crewplan/internal/organization/domain"
	projectdomain "github.com/smallbiznis/crewplan/internal/project/domain"
	"github.com/smallbiznis/crewplan/internal/providers/email"
	workspacedomain "github.com/smallbiznis/crewplan/internal/workspace/domain"
	"github.com/smallbiznis/crewplan/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	invitationTTL = 7 * 24 * time.Hour
	tokenBytes    = 32
)

type service struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       config.Config
	repo      domain.Repository
	members   membershipdomain.Service
	orgRepo   organizationdomain.Repository
	wsRepo    workspacedomain.Repository
	projRepo  projectdomain.Repository
	userRepo  authdomain.Repository
	mailer    email.Provider
	genID     *snowflake.Node
	clk       clock.Clock
	publisher events.Publisher
}

func NewService(
	gdb *gorm.DB,
	log *zap.Logger,
	cfg config.Config,
	repo domain.Repository,
	members membershipdomain.Service,
	orgRepo organizationdomain.Repository,
	wsRepo workspacedomain.Repository,
	projRepo projectdomain.Repository,
	userRepo authdomain.Repository,
	mailer email.Provider,
	genID *snowflake.Node,
	clk clock.Clock,
	publisher events.Publisher,
) domain.Service {
	return &service{
		db:        gdb,
		log:       log.Named("invitation.service"),
		cfg:       cfg,
		repo:      repo,
		members:   members,
		orgRepo:   orgRepo,
		wsRepo:    wsRepo,
		projRepo:  projRepo,
		userRepo:  userRepo,
		mailer:    mailer,
		genID:     genID,
		clk:       clk,
		publisher: publisher,
	}
}

// resolvedTarget carries the invitation target's entity row plus its owning
// organization, resolved once per operation.
type resolvedTarget struct {
	target     domain.Target
	org        *organizationdomain.Organization
	workspace  *workspacedomain.Workspace
	project    *projectdomain.Project
	entityName string
}

func (s *service) resolveTarget(ctx context.Context, target domain.Target) (*resolvedTarget, error) {
	rt := &resolvedTarget{target: target}

	switch target.Level {
	case domain.LevelOrganization:
		org, err := s.orgRepo.GetByID(ctx, target.ID)
		if err != nil {
			return nil, err
		}
		rt.org = org
		rt.entityName = org.Name

	case domain.LevelWorkspace:
		ws, err := s.wsRepo.GetByID(ctx, target.ID)
		if err != nil {
			return nil, err
		}
		org, err := s.orgRepo.GetByID(ctx, ws.OrgID)
		if err != nil {
			return nil, err
		}
		rt.workspace = ws
		rt.org = org
		rt.entityName = ws.Name

	case domain.LevelProject:
		proj, err := s.projRepo.GetByID(ctx, target.ID)
		if err != nil {
			return nil, err
		}
		ws, err := s.wsRepo.GetByID(ctx, proj.WorkspaceID)
		if err != nil {
			return nil, err
		}
		org, err := s.orgRepo.GetByID(ctx, ws.OrgID)
		if err != nil {
			return nil, err
		}
		rt.project = proj
		rt.workspace = ws
		rt.org = org
		rt.entityName = proj.Name

	default:
		return nil, domain.ErrSingleTarget
	}

	return rt, nil
}

func (s *service) Create(ctx context.Context, req domain.CreateInvitationRequest) (*domain.CreateInvitationResult, error) {
	addr := strings.ToLower(strings.TrimSpace(req.Email))
	if addr == "" {
		return nil, domain.ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(addr); err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if _, err := membershipdomain.ParseRole(string(req.Role)); err != nil {
		return nil, err
	}

	target, err := domain.NewTarget(req.OrgID, req.WorkspaceID, req.ProjectID)
	if err != nil {
		return nil, err
	}

	if !s.mailer.Configured() && !s.cfg.IsDevelopment() {
		return nil, domain.ErrEmailNotConfigured
	}

	rt, err := s.resolveTarget(ctx, target)
	if err != nil {
		return nil, err
	}

	invitee, err := s.findUserByEmail(ctx, addr)
	if err != nil {
		return nil, err
	}

	if invitee != nil {
		isMember, err := s.isMemberOfTarget(ctx, invitee.ID, rt)
		if err != nil {
			return nil, err
		}
		if isMember {
			return nil, domain.ErrInviteeIsMember
		}

		if target.Level != domain.LevelOrganization {
			orgMember, err := s.members.FindByUserAndOrganization(ctx, invitee.ID, rt.org.ID)
			if err != nil {
				return nil, err
			}
			if orgMember != nil {
				return s.directAdd(ctx, invitee, rt, req.Role)
			}
		}
	}

	existing, err := s.repo.FindPendingByEmailAndTarget(ctx, addr, target)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrPendingExists
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}

	now := s.clk.Now().UTC()
	invitation := &domain.Invitation{
		ID:          s.genID.Generate(),
		InviterID:   req.InviterID,
		Email:       addr,
		OrgID:       req.OrgID,
		WorkspaceID: req.WorkspaceID,
		ProjectID:   req.ProjectID,
		Role:        req.Role,
		Token:       token,
		Status:      domain.StatusPending,
		ExpiresAt:   now.Add(invitationTTL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, invitation); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrPendingExists
		}
		return nil, err
	}

	result := &domain.CreateInvitationResult{
		Type:       domain.ResultTypeInvitation,
		Invitation: toView(invitation),
		EmailSent:  true,
	}
	if err := email.SendInvitation(ctx, s.mailer, addr, email.InvitationData{
		EntityName: rt.entityName,
		EntityType: string(target.Level),
		Role:       string(req.Role),
		InviteURL:  fmt.Sprintf("%s/invite?token=%s", s.cfg.InviteBaseURL, token),
	}); err != nil {
		s.log.Warn("invitation email delivery failed",
			zap.String("invitation_id", invitation.ID.String()), zap.Error(err))
		result.EmailSent = false
		result.EmailError = err.Error()
	}

	return result, nil
}

// directAdd skips the invitation flow for invitees who already hold
// organization standing, materializing the lower-level membership directly.
func (s *service) directAdd(ctx context.Context, invitee *authdomain.User, rt *resolvedTarget, role membershipdomain.Role) (*domain.CreateInvitationResult, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch rt.target.Level {
		case domain.LevelWorkspace:
			return s.members.EnsureWorkspaceMember(ctx, tx, rt.workspace.ID, invitee.ID, role)
		case domain.LevelProject:
			if err := s.members.EnsureWorkspaceMember(ctx, tx, rt.workspace.ID, invitee.ID, membershipdomain.RoleMember); err != nil {
				return err
			}
			return s.members.EnsureProjectMember(ctx, tx, rt.project.ID, invitee.ID, role)
		default:
			return domain.ErrSingleTarget
		}
	})
	if err != nil {
		return nil, err
	}

	view, err := s.directAddView(ctx, invitee, rt)
	if err != nil {
		return nil, err
	}

	result := &domain.CreateInvitationResult{
		Type:      domain.ResultTypeDirectAdd,
		Member:    view,
		EmailSent: true,
	}
	if err := email.SendDirectAdd(ctx, s.mailer, invitee.Email, email.InvitationData{
		EntityName: rt.entityName,
		EntityType: string(rt.target.Level),
		Role:       string(role),
		InviteURL:  s.cfg.InviteBaseURL,
	}); err != nil {
		s.log.Warn("direct-add email delivery failed",
			zap.String("user_id", invitee.ID.String()), zap.Error(err))
		result.EmailSent = false
		result.EmailError = err.Error()
	}

	return result, nil
}

func (s *service) directAddView(ctx context.Context, invitee *authdomain.User, rt *resolvedTarget) (*membershipdomain.MemberView, error) {
	summary := membershipdomain.UserSummary{
		ID:    invitee.ID.String(),
		Email: invitee.Email,
		Name:  invitee.Name,
	}

	switch rt.target.Level {
	case domain.LevelWorkspace:
		member, err := s.members.FindByUserAndWorkspace(ctx, invitee.ID, rt.workspace.ID)
		if err != nil {
			return nil, err
		}
		return &membershipdomain.MemberView{
			ID:       member.ID.String(),
			EntityID: member.WorkspaceID.String(),
			Role:     member.Role,
			JoinedAt: member.CreatedAt,
			User:     summary,
		}, nil
	default:
		member, err := s.members.FindByUserAndProject(ctx, invitee.ID, rt.project.ID)
		if err != nil {
			return nil, err
		}
		return &membershipdomain.MemberView{
			ID:       member.ID.String(),
			EntityID: member.ProjectID.String(),
			Role:     member.Role,
			JoinedAt: member.CreatedAt,
			User:     summary,
		}, nil
	}
}

func (s *service) Accept(ctx context.Context, token string, userID snowflake.ID) (*domain.InvitationView, error) {
	invitation, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if invitation.Status != domain.StatusPending {
		return nil, domain.ErrAlreadyProcessed
	}

	now := s.clk.Now().UTC()
	if now.After(invitation.ExpiresAt) {
		if err := s.expire(ctx, invitation, now); err != nil {
			return nil, err
		}
		return nil, domain.ErrInvitationExpired
	}

	user, err := s.userRepo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(user.Email, invitation.Email) {
		return nil, domain.ErrEmailMismatch
	}

	target, err := invitation.Target()
	if err != nil {
		return nil, err
	}
	rt, err := s.resolveTarget(ctx, target)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch target.Level {
		case domain.LevelOrganization:
			if err := s.members.EnsureOrganizationMember(ctx, tx, rt.org.ID, userID, invitation.Role); err != nil {
				return err
			}
		case domain.LevelWorkspace:
			if err := s.members.EnsureOrganizationMember(ctx, tx, rt.org.ID, userID, membershipdomain.RoleMember); err != nil {
				return err
			}
			if err := s.members.EnsureWorkspaceMember(ctx, tx, rt.workspace.ID, userID, invitation.Role); err != nil {
				return err
			}
		case domain.LevelProject:
			if err := s.members.EnsureOrganizationMember(ctx, tx, rt.org.ID, userID, membershipdomain.RoleMember); err != nil {
				return err
			}
			if err := s.members.EnsureWorkspaceMember(ctx, tx, rt.workspace.ID, userID, membershipdomain.RoleMember); err != nil {
				return err
			}
			if err := s.members.EnsureProjectMember(ctx, tx, rt.project.ID, userID, invitation.Role); err != nil {
				return err
			}
		}

		invitation.Status = domain.StatusAccepted
		invitation.UpdatedAt = now
		if err := s.repo.WithTx(tx).Update(ctx, invitation); err != nil {
			return err
		}
		return s.emitAccepted(ctx, tx, invitation, userID)
	})
	if err != nil {
		return nil, err
	}

	return toView(invitation), nil
}

func (s *service) Decline(ctx context.Context, token string, userID snowflake.ID) (*domain.InvitationView, error) {
	invitation, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if invitation.Status != domain.StatusPending {
		return nil, domain.ErrAlreadyProcessed
	}

	now := s.clk.Now().UTC()
	if now.After(invitation.ExpiresAt) {
		if err := s.expire(ctx, invitation, now); err != nil {
			return nil, err
		}
		return nil, domain.ErrInvitationExpired
	}

	user, err := s.userRepo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(user.Email, invitation.Email) {
		return nil, domain.ErrEmailMismatch
	}

	invitation.Status = domain.StatusDeclined
	invitation.UpdatedAt = now
	if err := s.repo.Update(ctx, invitation); err != nil {
		return nil, err
	}

	return toView(invitation), nil
}

func (s *service) Resend(ctx context.Context, id snowflake.ID, requesterID snowflake.ID) (*domain.ResendResult, error) {
	invitation, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if invitation.Status == domain.StatusDeclined {
		return nil, domain.ErrAlreadyDeclined
	}

	target, err := invitation.Target()
	if err != nil {
		return nil, err
	}
	rt, err := s.resolveTarget(ctx, target)
	if err != nil {
		return nil, err
	}

	if err := s.requireInvitationManager(ctx, requesterID, invitation, rt); err != nil {
		return nil, err
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}

	now := s.clk.Now().UTC()
	invitation.Token = token
	invitation.Status = domain.StatusPending
	invitation.ExpiresAt = now.Add(invitationTTL)
	invitation.InviterID = requesterID
	invitation.UpdatedAt = now
	if err := s.repo.Update(ctx, invitation); err != nil {
		return nil, err
	}

	result := &domain.ResendResult{
		Invitation: toView(invitation),
		EmailSent:  true,
	}
	if err := email.SendInvitation(ctx, s.mailer, invitation.Email, email.InvitationData{
		EntityName: rt.entityName,
		EntityType: string(target.Level),
		Role:       string(invitation.Role),
		InviteURL:  fmt.Sprintf("%s/invite?token=%s", s.cfg.InviteBaseURL, token),
	}); err != nil {
		s.log.Warn("invitation email delivery failed",
			zap.String("invitation_id", invitation.ID.String()), zap.Error(err))
		result.EmailSent = false
		result.EmailError = err.Error()
	}

	return result, nil
}

func (s *service) Delete(ctx context.Context, id snowflake.ID, requesterID snowflake.ID) error {
	invitation, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if invitation.Status != domain.StatusPending {
		return domain.ErrAlreadyProcessed
	}

	target, err := invitation.Target()
	if err != nil {
		return err
	}
	rt, err := s.resolveTarget(ctx, target)
	if err != nil {
		return err
	}

	if err := s.requireInvitationManager(ctx, requesterID, invitation, rt); err != nil {
		return err
	}

	return s.repo.Delete(ctx, id)
}

func (s *service) Verify(ctx context.Context, token string) (*domain.VerifyResult, error) {
	invitation, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	target, err := invitation.Target()
	if err != nil {
		return nil, err
	}
	rt, err := s.resolveTarget(ctx, target)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now().UTC()
	isExpired := invitation.Status == domain.StatusExpired ||
		(invitation.Status == domain.StatusPending && now.After(invitation.ExpiresAt))
	isValid := invitation.Status == domain.StatusPending && !isExpired

	account, err := s.findUserByEmail(ctx, invitation.Email)
	if err != nil {
		return nil, err
	}

	return &domain.VerifyResult{
		IsValid:       isValid,
		IsExpired:     isExpired,
		CanRespond:    isValid,
		Email:         invitation.Email,
		AccountExists: account != nil,
		EntityType:    target.Level,
		EntityName:    rt.entityName,
		Role:          string(invitation.Role),
		ExpiresAt:     invitation.ExpiresAt,
	}, nil
}

func (s *service) ListForEntity(ctx context.Context, target domain.Target) ([]domain.InvitationView, error) {
	if _, err := s.resolveTarget(ctx, target); err != nil {
		return nil, err
	}

	// Lazy expiry: reading an entity's invitations is the only place pending
	// rows past their expiry get flipped.
	if err := s.repo.ExpirePendingByTarget(ctx, target, s.clk.Now().UTC()); err != nil {
		return nil, err
	}

	invitations, err := s.repo.ListByTarget(ctx, target)
	if err != nil {
		return nil, err
	}

	views := make([]domain.InvitationView, 0, len(invitations))
	for i := range invitations {
		views = append(views, *toView(&invitations[i]))
	}
	return views, nil
}

func (s *service) ListForUser(ctx context.Context, addr string) ([]domain.InvitationView, error) {
	addr = strings.ToLower(strings.TrimSpace(addr))

	invitations, err := s.repo.ListPendingByEmail(ctx, addr, s.clk.Now().UTC())
	if err != nil {
		return nil, err
	}

	views := make([]domain.InvitationView, 0, len(invitations))
	for i := range invitations {
		views = append(views, *toView(&invitations[i]))
	}
	return views, nil
}

// requireInvitationManager allows the original inviter or anyone with manage
// standing on the owning organization.
func (s *service) requireInvitationManager(ctx context.Context, requesterID snowflake.ID, invitation *domain.Invitation, rt *resolvedTarget) error {
	if requesterID == invitation.InviterID {
		return nil
	}
	ok, err := s.members.CanManageOrganization(ctx, requesterID, rt.org.ID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrForbidden
	}
	return nil
}

func (s *service) isMemberOfTarget(ctx context.Context, userID snowflake.ID, rt *resolvedTarget) (bool, error) {
	switch rt.target.Level {
	case domain.LevelOrganization:
		member, err := s.members.FindByUserAndOrganization(ctx, userID, rt.org.ID)
		return member != nil, err
	case domain.LevelWorkspace:
		member, err := s.members.FindByUserAndWorkspace(ctx, userID, rt.workspace.ID)
		return member != nil, err
	default:
		member, err := s.members.FindByUserAndProject(ctx, userID, rt.project.ID)
		return member != nil, err
	}
}

func (s *service) findUserByEmail(ctx context.Context, addr string) (*authdomain.User, error) {
	user, err := s.userRepo.FindUserByEmail(ctx, addr)
	if errors.Is(err, authdomain.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *service) expire(ctx context.Context, invitation *domain.Invitation, now time.Time) error {
	invitation.Status = domain.StatusExpired
	invitation.UpdatedAt = now
	return s.repo.Update(ctx, invitation)
}

func (s *service) emitAccepted(ctx context.Context, tx *gorm.DB, invitation *domain.Invitation, userID snowflake.ID) error {
	target, err := invitation.Target()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]string{
		"invitation_id": invitation.ID.String(),
		"user_id":       userID.String(),
		"entity_type":   string(target.Level),
		"entity_id":     target.ID.String(),
		"role":          string(invitation.Role),
	})
	if err != nil {
		return err
	}
	return s.publisher.WithTx(tx).Publish(ctx, events.TopicInvitationAccepted, payload)
}

func toView(invitation *domain.Invitation) *domain.InvitationView {
	target, err := invitation.Target()
	if err != nil {
		target = domain.Target{}
	}
	return &domain.InvitationView{
		ID:         invitation.ID.String(),
		Email:      invitation.Email,
		EntityType: target.Level,
		EntityID:   target.ID.String(),
		Role:       string(invitation.Role),
		Status:     invitation.Status,
		ExpiresAt:  invitation.ExpiresAt,
		CreatedAt:  invitation.CreatedAt,
	}
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
