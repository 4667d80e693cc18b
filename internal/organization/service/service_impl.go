package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/crewplan/internal/clock"
	"github.com/smallbiznis/crewplan/internal/events"
	membershipdomain "github.com/smallbiznis/crewplan/internal/membership/domain"
	"github.com/smallbiznis/crewplan/internal/organization/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       domain.Repository
	memberRepo membershipdomain.Repository
	genID      *snowflake.Node
	clk        clock.Clock
	publisher  events.Publisher
}

func NewService(db *gorm.DB, log *zap.Logger, repo domain.Repository, memberRepo membershipdomain.Repository, genID *snowflake.Node, clk clock.Clock, publisher events.Publisher) domain.Service {
	return &service{
		db:         db,
		log:        log.Named("organization.service"),
		repo:       repo,
		memberRepo: memberRepo,
		genID:      genID,
		clk:        clk,
		publisher:  publisher,
	}
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateOrganizationRequest) (*domain.OrganizationResponse, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := s.clk.Now().UTC()
	org := domain.Organization{
		ID:        s.genID.Generate(),
		Name:      name,
		Slug:      slug.Make(name),
		OwnerID:   userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, org); err != nil {
			return err
		}

		member := &membershipdomain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     org.ID,
			UserID:    userID,
			Role:      membershipdomain.RoleOwner,
			CreatedAt: now,
		}
		if err := s.memberRepo.WithTx(tx).CreateOrganizationMember(ctx, member); err != nil {
			return err
		}
		return s.emitOrganizationCreated(ctx, tx, org)
	})
	if err != nil {
		return nil, err
	}

	return &domain.OrganizationResponse{
		ID:      org.ID.String(),
		Name:    org.Name,
		Slug:    org.Slug,
		OwnerID: org.OwnerID.String(),
	}, nil
}

func (s *service) GetByID(ctx context.Context, id snowflake.ID) (*domain.OrganizationResponse, error) {
	org, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &domain.OrganizationResponse{
		ID:      org.ID.String(),
		Name:    org.Name,
		Slug:    org.Slug,
		OwnerID: org.OwnerID.String(),
	}, nil
}

func (s *service) ListByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListItem, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.OrganizationListItem, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.OrganizationListItem{
			ID:        item.ID.String(),
			Name:      item.Name,
			Role:      item.Role,
			CreatedAt: item.CreatedAt,
		})
	}

	return resp, nil
}

func (s *service) emitOrganizationCreated(ctx context.Context, tx *gorm.DB, org domain.Organization) error {
	payload, err := json.Marshal(map[string]string{
		"organization_id": org.ID.String(),
		"owner_user_id":   org.OwnerID.String(),
		"created_at":      org.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return s.publisher.WithTx(tx).Publish(ctx, events.TopicOrganizationCreated, payload)
}
