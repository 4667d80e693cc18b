package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewplan/internal/project/domain"
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

func (r *repository) Create(ctx context.Context, project domain.Project) error {
	return r.db.WithContext(ctx).Create(&project).Error
}

func (r *repository) GetByID(ctx context.Context, id snowflake.ID) (*domain.Project, error) {
	var project domain.Project
	err := r.db.WithContext(ctx).First(&project, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *repository) ListByWorkspace(ctx context.Context, workspaceID snowflake.ID) ([]domain.Project, error) {
	var projects []domain.Project
	err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC").
		Find(&projects).Error
	return projects, err
}
