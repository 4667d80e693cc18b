package service

import (
	"context"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/crewplan/internal/auth/domain"
	"github.com/smallbiznis/crewplan/internal/clock"
	"github.com/smallbiznis/crewplan/internal/events"
	"github.com/smallbiznis/crewplan/internal/membership/domain"
	organizationdomain "github.com/smallbiznis/crewplan/internal/organization/domain"
	projectdomain "github.com/smallbiznis/crewplan/internal/project/domain"
	workspacedomain "github.com/smallbiznis/crewplan/internal/workspace/domain"
	"github.com/smallbiznis/crewplan/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      domain.Repository
	orgRepo   organizationdomain.Repository
	wsRepo    workspacedomain.Repository
	projRepo  projectdomain.Repository
	userRepo  authdomain.Repository
	genID     *snowflake.Node
	clk       clock.Clock
	publisher events.Publisher
}

func NewService(
	gdb *gorm.DB,
	log *zap.Logger,
	repo domain.Repository,
	orgRepo organizationdomain.Repository,
	wsRepo workspacedomain.Repository,
	projRepo projectdomain.Repository,
	userRepo authdomain.Repository,
	genID *snowflake.Node,
	clk clock.Clock,
	publisher events.Publisher,
) domain.Service {
	return &service{
		db:        gdb,
		log:       log.Named("membership.service"),
		repo:      repo,
		orgRepo:   orgRepo,
		wsRepo:    wsRepo,
		projRepo:  projRepo,
		userRepo:  userRepo,
		genID:     genID,
		clk:       clk,
		publisher: publisher,
	}
}

// --- organization members ---

func (s *service) CreateOrganizationMember(ctx context.Context, req domain.CreateOrganizationMemberRequest) (*domain.MemberView, error) {
	if _, err := domain.ParseRole(string(req.Role)); err != nil {
		return nil, err
	}

	org, err := s.orgRepo.GetByID(ctx, req.OrgID)
	if err != nil {
		return nil, err
	}

	if _, err := s.userRepo.FindUserByID(ctx, req.UserID); err != nil {
		return nil, err
	}

	if req.RequesterID != nil {
		if err := s.requireOrganizationManager(ctx, *req.RequesterID, org); err != nil {
			return nil, err
		}
	}

	existing, err := s.repo.FindOrganizationMember(ctx, req.OrgID, req.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAlreadyMember
	}

	member := &domain.OrganizationMember{
		ID:        s.genID.Generate(),
		OrgID:     req.OrgID,
		UserID:    req.UserID,
		Role:      req.Role,
		CreatedAt: s.clk.Now().UTC(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrganizationMember(ctx, member); err != nil {
			return err
		}
		if err := s.cascadeOrganizationCreate(ctx, repo, req.OrgID, req.UserID, req.Role); err != nil {
			return err
		}
		return s.emitMembershipChanged(ctx, tx, "organization", member.OrgID, member.UserID, string(member.Role), "created")
	})
	if db.IsDuplicateKeyErr(err) {
		return nil, domain.ErrAlreadyMember
	}
	if err != nil {
		return nil, err
	}

	return s.organizationMemberView(ctx, member)
}

func (s *service) UpdateOrganizationMember(ctx context.Context, memberID snowflake.ID, role domain.Role, requesterID snowflake.ID) (*domain.MemberView, error) {
	if _, err := domain.ParseRole(string(role)); err != nil {
		return nil, err
	}

	member, err := s.repo.GetOrganizationMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	org, err := s.orgRepo.GetByID(ctx, member.OrgID)
	if err != nil {
		return nil, err
	}

	if err := s.requireOrganizationManager(ctx, requesterID, org); err != nil {
		return nil, err
	}

	if member.UserID == org.OwnerID {
		return nil, domain.ErrOwnerImmutable
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateOrganizationMemberRole(ctx, memberID, role); err != nil {
			return err
		}
		// Role changes follow the user into workspaces they already joined
		// but never grant new workspace memberships.
		if err := repo.UpdateWorkspaceRolesByOrgAndUser(ctx, member.OrgID, member.UserID, role); err != nil {
			return err
		}
		return s.emitMembershipChanged(ctx, tx, "organization", member.OrgID, member.UserID, string(role), "updated")
	})
	if err != nil {
		return nil, err
	}

	member.Role = role

	return s.organizationMemberView(ctx, member)
}

func (s *service) RemoveOrganizationMember(ctx context.Context, memberID snowflake.ID, requesterID snowflake.ID) error {
	member, err := s.repo.GetOrganizationMember(ctx, memberID)
	if err != nil {
		return err
	}

	org, err := s.orgRepo.GetByID(ctx, member.OrgID)
	if err != nil {
		return err
	}

	if requesterID != member.UserID {
		if err := s.requireOrganizationManager(ctx, requesterID, org); err != nil {
			return err
		}
	}

	if member.UserID == org.OwnerID {
		return domain.ErrOwnerImmutable
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteProjectMembersByOrgAndUser(ctx, member.OrgID, member.UserID); err != nil {
			return err
		}
		if err := repo.DeleteWorkspaceMembersByOrgAndUser(ctx, member.OrgID, member.UserID); err != nil {
			return err
		}
		if err := repo.DeleteOrganizationMember(ctx, memberID); err != nil {
			return err
		}
		return s.emitMembershipChanged(ctx, tx, "organization", member.OrgID, member.UserID, string(member.Role), "removed")
	})
}

func (s *service) ListOrganizationMembers(ctx context.Context, orgID snowflake.ID) ([]domain.MemberView, error) {
	if _, err := s.orgRepo.GetByID(ctx, orgID); err != nil {
		return nil, err
	}

	members, err := s.repo.ListOrganizationMembers(ctx, orgID)
	if err != nil {
		return nil, err
	}

	views := make([]domain.MemberView, 0, len(members))
	userIDs := make([]snowflake.ID, 0, len(members))
	for _, m := range members {
		userIDs = append(userIDs, m.UserID)
	}
	summaries, err := s.repo.ListUserSummaries(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		views = append(views, domain.MemberView{
			ID:       m.ID.String(),
			EntityID: m.OrgID.String(),
			Role:     m.Role,
			JoinedAt: m.CreatedAt,
			User:     summaries[m.UserID],
		})
	}
	return views, nil
}

// --- workspace members ---

func (s *service) CreateWorkspaceMember(ctx context.Context, req domain.CreateWorkspaceMemberRequest) (*domain.MemberView, error) {
	if _, err := domain.ParseRole(string(req.Role)); err != nil {
		return nil, err
	}

	ws, err := s.wsRepo.GetByID(ctx, req.WorkspaceID)
	if err != nil {
		return nil, err
	}

	if _, err := s.userRepo.FindUserByID(ctx, req.UserID); err != nil {
		return nil, err
	}

	orgMember, err := s.repo.FindOrganizationMember(ctx, ws.OrgID, req.UserID)
	if err != nil {
		return nil, err
	}
	if orgMember == nil {
		return nil, domain.ErrNotOrgMember
	}

	if req.RequesterID != nil {
		if err := s.requireWorkspaceManager(ctx, *req.RequesterID, ws); err != nil {
			return nil, err
		}
	}

	existing, err := s.repo.FindWorkspaceMember(ctx, req.WorkspaceID, req.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAlreadyMember
	}

	member := &domain.WorkspaceMember{
		ID:          s.genID.Generate(),
		WorkspaceID: req.WorkspaceID,
		UserID:      req.UserID,
		Role:        req.Role,
		CreatedAt:   s.clk.Now().UTC(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateWorkspaceMember(ctx, member); err != nil {
			return err
		}
		if err := s.cascadeWorkspaceCreate(ctx, repo, req.WorkspaceID, req.UserID, req.Role); err != nil {
			return err
		}
		return s.emitMembershipChanged(ctx, tx, "workspace", member.WorkspaceID, member.UserID, string(member.Role), "created")
	})
	if db.IsDuplicateKeyErr(err) {
		return nil, domain.ErrAlreadyMember
	}
	if err != nil {
		return nil, err
	}

	return s.workspaceMemberView(ctx, member)
}

func (s *service) UpdateWorkspaceMember(ctx context.Context, memberID snowflake.ID, role domain.Role, requesterID snowflake.ID) (*domain.MemberView, error) {
	if _, err := domain.ParseRole(string(role)); err != nil {
		return nil, err
	}

	member, err := s.repo.GetWorkspaceMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	ws, err := s.wsRepo.GetByID(ctx, member.WorkspaceID)
	if err != nil {
		return nil, err
	}

	if err := s.requireWorkspaceManager(ctx, requesterID, ws); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateWorkspaceMemberRole(ctx, memberID, role); err != nil {
			return err
		}
		if role.Elevated() {
			if err := s.cascadeWorkspaceCreate(ctx, repo, member.WorkspaceID, member.UserID, role); err != nil {
				return err
			}
		} else if err := repo.UpdateProjectRolesByWorkspaceAndUser(ctx, member.WorkspaceID, member.UserID, role); err != nil {
			return err
		}
		return s.emitMembershipChanged(ctx, tx, "workspace", member.WorkspaceID, member.UserID, string(role), "updated")
	})
	if err != nil {
		return nil, err
	}

	member.Role = role

	return s.workspaceMemberView(ctx, member)
}

func (s *service) RemoveWorkspaceMember(ctx context.Context, memberID snowflake.ID, requesterID snowflake.ID) error {
	member, err := s.repo.GetWorkspaceMember(ctx, memberID)
	if err != nil {
		return err
	}

	ws, err := s.wsRepo.GetByID(ctx, member.WorkspaceID)
	if err != nil {
		return err
	}

	if requesterID != member.UserID {
		if err := s.requireWorkspaceManager(ctx, requesterID, ws); err != nil {
			return err
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteProjectMembersByWorkspaceAndUser(ctx, member.WorkspaceID, member.UserID); err != nil {
			return err
		}
		if err := repo.DeleteWorkspaceMember(ctx, memberID); err != nil {
			return err
		}
		return s.emitMembershipChanged(ctx, tx, "workspace", member.WorkspaceID, member.UserID, string(member.Role), "removed")
	})
}

func (s *service) ListWorkspaceMembers(ctx context.Context, workspaceID snowflake.ID) ([]domain.MemberView, error) {
	if _, err := s.wsRepo.GetByID(ctx, workspaceID); err != nil {
		return nil, err
	}

	members, err := s.repo.ListWorkspaceMembers(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	userIDs := make([]snowflake.ID, 0, len(members))
	for _, m := range members {
		userIDs = append(userIDs, m.UserID)
	}
	summaries, err := s.repo.ListUserSummaries(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	views := make([]domain.MemberView, 0, len(members))
	for _, m := range members {
		views = append(views, domain.MemberView{
			ID:       m.ID.String(),
			EntityID: m.WorkspaceID.String(),
			Role:     m.Role,
			JoinedAt: m.CreatedAt,
			User:     summaries[m.UserID],
		})
	}
	return views, nil
}

// --- project members ---

func (s *service) CreateProjectMember(ctx context.Context, req domain.CreateProjectMemberRequest) (*domain.MemberView, error) {
	if _, err := domain.ParseRole(string(req.Role)); err != nil {
		return nil, err
	}

	proj, err := s.projRepo.GetByID(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	if _, err := s.userRepo.FindUserByID(ctx, req.UserID); err != nil {
		return nil, err
	}

	wsMember, err := s.repo.FindWorkspaceMember(ctx, proj.WorkspaceID, req.UserID)
	if err != nil {
		return nil, err
	}
	if wsMember == nil {
		return nil, domain.ErrNotWorkspaceMember
	}

	if req.RequesterID != nil {
		if err := s.requireProjectManager(ctx, *req.RequesterID, proj); err != nil {
			return nil, err
		}
	}

	existing, err := s.repo.FindProjectMember(ctx, req.ProjectID, req.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAlreadyMember
	}

	member := &domain.ProjectMember{
		ID:        s.genID.Generate(),
		ProjectID: req.ProjectID,
		UserID:    req.UserID,
		Role:      req.Role,
		CreatedAt: s.clk.Now().UTC(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateProjectMember(ctx, member); err != nil {
			return err
		}
		return s.emitMembershipChanged(ctx, tx, "project", member.ProjectID, member.UserID, string(member.Role), "created")
	})
	if db.IsDuplicateKeyErr(err) {
		return nil, domain.ErrAlreadyMember
	}
	if err != nil {
		return nil, err
	}

	return s.projectMemberView(ctx, member)
}

func (s *service) UpdateProjectMember(ctx context.Context, memberID snowflake.ID, role domain.Role, requesterID snowflake.ID) (*domain.MemberView, error) {
	if _, err := domain.ParseRole(string(role)); err != nil {
		return nil, err
	}

	member, err := s.repo.GetProjectMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	proj, err := s.projRepo.GetByID(ctx, member.ProjectID)
	if err != nil {
		return nil, err
	}

	if err := s.requireProjectManager(ctx, requesterID, proj); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).UpdateProjectMemberRole(ctx, memberID, role); err != nil {
			return err
		}
		return s.emitMembershipChanged(ctx, tx, "project", member.ProjectID, member.UserID, string(role), "updated")
	})
	if err != nil {
		return nil, err
	}

	member.Role = role

	return s.projectMemberView(ctx, member)
}

func (s *service) RemoveProjectMember(ctx context.Context, memberID snowflake.ID, requesterID snowflake.ID) error {
	member, err := s.repo.GetProjectMember(ctx, memberID)
	if err != nil {
		return err
	}

	proj, err := s.projRepo.GetByID(ctx, member.ProjectID)
	if err != nil {
		return err
	}

	if requesterID != member.UserID {
		if err := s.requireProjectManager(ctx, requesterID, proj); err != nil {
			return err
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).DeleteProjectMember(ctx, memberID); err != nil {
			return err
		}
		return s.emitMembershipChanged(ctx, tx, "project", member.ProjectID, member.UserID, string(member.Role), "removed")
	})
}

func (s *service) ListProjectMembers(ctx context.Context, projectID snowflake.ID) ([]domain.MemberView, error) {
	if _, err := s.projRepo.GetByID(ctx, projectID); err != nil {
		return nil, err
	}

	members, err := s.repo.ListProjectMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}

	userIDs := make([]snowflake.ID, 0, len(members))
	for _, m := range members {
		userIDs = append(userIDs, m.UserID)
	}
	summaries, err := s.repo.ListUserSummaries(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	views := make([]domain.MemberView, 0, len(members))
	for _, m := range members {
		views = append(views, domain.MemberView{
			ID:       m.ID.String(),
			EntityID: m.ProjectID.String(),
			Role:     m.Role,
			JoinedAt: m.CreatedAt,
			User:     summaries[m.UserID],
		})
	}
	return views, nil
}

// --- lookups ---

func (s *service) FindByUserAndOrganization(ctx context.Context, userID, orgID snowflake.ID) (*domain.OrganizationMember, error) {
	return s.repo.FindOrganizationMember(ctx, orgID, userID)
}

func (s *service) FindByUserAndWorkspace(ctx context.Context, userID, workspaceID snowflake.ID) (*domain.WorkspaceMember, error) {
	return s.repo.FindWorkspaceMember(ctx, workspaceID, userID)
}

func (s *service) FindByUserAndProject(ctx context.Context, userID, projectID snowflake.ID) (*domain.ProjectMember, error) {
	return s.repo.FindProjectMember(ctx, projectID, userID)
}

func (s *service) CanManageOrganization(ctx context.Context, userID, orgID snowflake.ID) (bool, error) {
	org, err := s.orgRepo.GetByID(ctx, orgID)
	if err != nil {
		return false, err
	}
	return s.canManageOrganization(ctx, userID, org)
}

// --- permission checks ---

func (s *service) canManageOrganization(ctx context.Context, userID snowflake.ID, org *organizationdomain.Organization) (bool, error) {
	user, err := s.userRepo.FindUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if user.IsSuperAdmin || org.OwnerID == userID {
		return true, nil
	}

	member, err := s.repo.FindOrganizationMember(ctx, org.ID, userID)
	if err != nil {
		return false, err
	}
	return member != nil && member.Role.Elevated(), nil
}

func (s *service) requireOrganizationManager(ctx context.Context, userID snowflake.ID, org *organizationdomain.Organization) error {
	ok, err := s.canManageOrganization(ctx, userID, org)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrForbidden
	}
	return nil
}

func (s *service) requireWorkspaceManager(ctx context.Context, userID snowflake.ID, ws *workspacedomain.Workspace) error {
	org, err := s.orgRepo.GetByID(ctx, ws.OrgID)
	if err != nil {
		return err
	}
	ok, err := s.canManageOrganization(ctx, userID, org)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	member, err := s.repo.FindWorkspaceMember(ctx, ws.ID, userID)
	if err != nil {
		return err
	}
	if member != nil && member.Role.Elevated() {
		return nil
	}
	return domain.ErrForbidden
}

func (s *service) requireProjectManager(ctx context.Context, userID snowflake.ID, proj *projectdomain.Project) error {
	ws, err := s.wsRepo.GetByID(ctx, proj.WorkspaceID)
	if err != nil {
		return err
	}
	if err := s.requireWorkspaceManager(ctx, userID, ws); err == nil {
		return nil
	} else if err != domain.ErrForbidden {
		return err
	}

	member, err := s.repo.FindProjectMember(ctx, proj.ID, userID)
	if err != nil {
		return err
	}
	if member != nil && member.Role.Elevated() {
		return nil
	}
	return domain.ErrForbidden
}

// --- views ---

func (s *service) organizationMemberView(ctx context.Context, member *domain.OrganizationMember) (*domain.MemberView, error) {
	summary, err := s.userSummary(ctx, member.UserID)
	if err != nil {
		return nil, err
	}
	return &domain.MemberView{
		ID:       member.ID.String(),
		EntityID: member.OrgID.String(),
		Role:     member.Role,
		JoinedAt: member.CreatedAt,
		User:     summary,
	}, nil
}

func (s *service) workspaceMemberView(ctx context.Context, member *domain.WorkspaceMember) (*domain.MemberView, error) {
	summary, err := s.userSummary(ctx, member.UserID)
	if err != nil {
		return nil, err
	}
	return &domain.MemberView{
		ID:       member.ID.String(),
		EntityID: member.WorkspaceID.String(),
		Role:     member.Role,
		JoinedAt: member.CreatedAt,
		User:     summary,
	}, nil
}

func (s *service) projectMemberView(ctx context.Context, member *domain.ProjectMember) (*domain.MemberView, error) {
	summary, err := s.userSummary(ctx, member.UserID)
	if err != nil {
		return nil, err
	}
	return &domain.MemberView{
		ID:       member.ID.String(),
		EntityID: member.ProjectID.String(),
		Role:     member.Role,
		JoinedAt: member.CreatedAt,
		User:     summary,
	}, nil
}

func (s *service) userSummary(ctx context.Context, userID snowflake.ID) (domain.UserSummary, error) {
	summaries, err := s.repo.ListUserSummaries(ctx, []snowflake.ID{userID})
	if err != nil {
		return domain.UserSummary{}, err
	}
	return summaries[userID], nil
}

func (s *service) emitMembershipChanged(ctx context.Context, tx *gorm.DB, level string, entityID, userID snowflake.ID, role, action string) error {
	payload, err := json.Marshal(map[string]string{
		"level":     level,
		"entity_id": entityID.String(),
		"user_id":   userID.String(),
		"role":      role,
		"action":    action,
	})
	if err != nil {
		return err
	}
	return s.publisher.WithTx(tx).Publish(ctx, events.TopicMembershipChanged, payload)
}
