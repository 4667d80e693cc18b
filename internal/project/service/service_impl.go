package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewplan/internal/clock"
	membershipdomain "github.com/smallbiznis/crewplan/internal/membership/domain"
	"github.com/smallbiznis/crewplan/internal/project/domain"
	workspacedomain "github.com/smallbiznis/crewplan/internal/workspace/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	wsRepo  workspacedomain.Repository
	members membershipdomain.Service
	genID   *snowflake.Node
	clk     clock.Clock
}

func NewService(
	gdb *gorm.DB,
	log *zap.Logger,
	repo domain.Repository,
	wsRepo workspacedomain.Repository,
	members membershipdomain.Service,
	genID *snowflake.Node,
	clk clock.Clock,
) domain.Service {
	return &service{
		db:      gdb,
		log:     log.Named("project.service"),
		repo:    repo,
		wsRepo:  wsRepo,
		members: members,
		genID:   genID,
		clk:     clk,
	}
}

func (s *service) Create(ctx context.Context, requesterID, workspaceID snowflake.ID, req domain.CreateProjectRequest) (*domain.ProjectResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	ws, err := s.wsRepo.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	if err := s.requireWorkspaceManager(ctx, requesterID, ws); err != nil {
		return nil, err
	}

	project := domain.Project{
		ID:          s.genID.Generate(),
		WorkspaceID: workspaceID,
		Name:        name,
		CreatedAt:   s.clk.Now().UTC(),
	}
	if err := s.repo.Create(ctx, project); err != nil {
		return nil, err
	}

	return toResponse(project), nil
}

func (s *service) GetByID(ctx context.Context, id snowflake.ID) (*domain.ProjectResponse, error) {
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toResponse(*project), nil
}

func (s *service) ListByWorkspace(ctx context.Context, workspaceID snowflake.ID) ([]domain.ProjectResponse, error) {
	if _, err := s.wsRepo.GetByID(ctx, workspaceID); err != nil {
		return nil, err
	}

	projects, err := s.repo.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.ProjectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, *toResponse(p))
	}
	return resp, nil
}

func (s *service) requireWorkspaceManager(ctx context.Context, userID snowflake.ID, ws *workspacedomain.Workspace) error {
	ok, err := s.members.CanManageOrganization(ctx, userID, ws.OrgID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	member, err := s.members.FindByUserAndWorkspace(ctx, userID, ws.ID)
	if err != nil {
		return err
	}
	if member != nil && member.Role.Elevated() {
		return nil
	}
	return domain.ErrForbidden
}

func toResponse(p domain.Project) *domain.ProjectResponse {
	return &domain.ProjectResponse{
		ID:          p.ID.String(),
		WorkspaceID: p.WorkspaceID.String(),
		Name:        p.Name,
		CreatedAt:   p.CreatedAt,
	}
}
