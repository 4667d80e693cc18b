package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewplan/internal/workspace/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, workspace domain.Workspace) error {
	return r.db.WithContext(ctx).Create(&workspace).Error
}

func (r *repository) GetByID(ctx context.Context, id snowflake.ID) (*domain.Workspace, error) {
	var workspace domain.Workspace
	err := r.db.WithContext(ctx).First(&workspace, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &workspace, nil
}

func (r *repository) ListByOrg(ctx context.Context, orgID snowflake.ID) ([]domain.Workspace, error) {
	var workspaces []domain.Workspace
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&workspaces).Error
	return workspaces, err
}
