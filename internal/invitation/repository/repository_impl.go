package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewplan/internal/invitation/domain"
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

func (r *repository) Create(ctx context.Context, invitation *domain.Invitation) error {
	return r.db.WithContext(ctx).Create(invitation).Error
}

func (r *repository) GetByID(ctx context.Context, id snowflake.ID) (*domain.Invitation, error) {
	var invitation domain.Invitation
	err := r.db.WithContext(ctx).First(&invitation, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

func (r *repository) GetByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	var invitation domain.Invitation
	err := r.db.WithContext(ctx).First(&invitation, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

func (r *repository) Update(ctx context.Context, invitation *domain.Invitation) error {
	return r.db.WithContext(ctx).Save(invitation).Error
}

func (r *repository) Delete(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Delete(&domain.Invitation{}, "id = ?", id).Error
}

func (r *repository) FindPendingByEmailAndTarget(ctx context.Context, email string, target domain.Target) (*domain.Invitation, error) {
	var invitation domain.Invitation
	err := r.db.WithContext(ctx).
		Where("email = ? AND status = ?", email, domain.StatusPending).
		Where(targetColumn(target.Level)+" = ?", target.ID).
		First(&invitation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

func (r *repository) ExpirePendingByTarget(ctx context.Context, target domain.Target, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.Invitation{}).
		Where(targetColumn(target.Level)+" = ?", target.ID).
		Where("status = ? AND expires_at < ?", domain.StatusPending, now).
		Updates(map[string]interface{}{"status": domain.StatusExpired, "updated_at": now}).Error
}

func (r *repository) ListByTarget(ctx context.Context, target domain.Target) ([]domain.Invitation, error) {
	var invitations []domain.Invitation
	err := r.db.WithContext(ctx).
		Where(targetColumn(target.Level)+" = ?", target.ID).
		Where("status <> ?", domain.StatusAccepted).
		Order("created_at DESC").
		Find(&invitations).Error
	return invitations, err
}

func (r *repository) ListPendingByEmail(ctx context.Context, email string, now time.Time) ([]domain.Invitation, error) {
	var invitations []domain.Invitation
	err := r.db.WithContext(ctx).
		Where("email = ? AND status = ? AND expires_at > ?", email, domain.StatusPending, now).
		Order("created_at DESC").
		Find(&invitations).Error
	return invitations, err
}

func targetColumn(level domain.Level) string {
	switch level {
	case domain.LevelWorkspace:
		return "workspace_id"
	case domain.LevelProject:
		return "project_id"
	default:
		return "org_id"
	}
}
