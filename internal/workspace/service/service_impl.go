package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/crewplan/internal/clock"
	membershipdomain "github.com/smallbiznis/crewplan/internal/membership/domain"
	organizationdomain "github.com/smallbiznis/crewplan/internal/organization/domain"
	"github.com/smallbiznis/crewplan/internal/workspace/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	orgRepo organizationdomain.Repository
	members membershipdomain.Service
	genID   *snowflake.Node
	clk     clock.Clock
}

func NewService(
	gdb *gorm.DB,
	log *zap.Logger,
	repo domain.Repository,
	orgRepo organizationdomain.Repository,
	members membershipdomain.Service,
	genID *snowflake.Node,
	clk clock.Clock,
) domain.Service {
	return &service{
		db:      gdb,
		log:     log.Named("workspace.service"),
		repo:    repo,
		orgRepo: orgRepo,
		members: members,
		genID:   genID,
		clk:     clk,
	}
}

func (s *service) Create(ctx context.Context, requesterID, orgID snowflake.ID, req domain.CreateWorkspaceRequest) (*domain.WorkspaceResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	if _, err := s.orgRepo.GetByID(ctx, orgID); err != nil {
		return nil, err
	}

	ok, err := s.members.CanManageOrganization(ctx, requesterID, orgID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrForbidden
	}

	workspace := domain.Workspace{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Name:      name,
		Slug:      slug.Make(name),
		CreatedAt: s.clk.Now().UTC(),
	}
	if err := s.repo.Create(ctx, workspace); err != nil {
		return nil, err
	}

	return toResponse(workspace), nil
}

func (s *service) GetByID(ctx context.Context, id snowflake.ID) (*domain.WorkspaceResponse, error) {
	workspace, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toResponse(*workspace), nil
}

func (s *service) ListByOrg(ctx context.Context, orgID snowflake.ID) ([]domain.WorkspaceResponse, error) {
	if _, err := s.orgRepo.GetByID(ctx, orgID); err != nil {
		return nil, err
	}

	workspaces, err := s.repo.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.WorkspaceResponse, 0, len(workspaces))
	for _, ws := range workspaces {
		resp = append(resp, *toResponse(ws))
	}
	return resp, nil
}

func toResponse(ws domain.Workspace) *domain.WorkspaceResponse {
	return &domain.WorkspaceResponse{
		ID:        ws.ID.String(),
		OrgID:     ws.OrgID.String(),
		Name:      ws.Name,
		Slug:      ws.Slug,
		CreatedAt: ws.CreatedAt,
	}
}
