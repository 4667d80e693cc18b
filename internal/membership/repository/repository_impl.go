package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewplan/internal/membership/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
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

func (r *repository) CreateOrganizationMember(ctx context.Context, member *domain.OrganizationMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *repository) GetOrganizationMember(ctx context.Context, id snowflake.ID) (*domain.OrganizationMember, error) {
	var member domain.OrganizationMember
	err := r.db.WithContext(ctx).First(&member, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) FindOrganizationMember(ctx context.Context, orgID, userID snowflake.ID) (*domain.OrganizationMember, error) {
	var member domain.OrganizationMember
	err := r.db.WithContext(ctx).First(&member, "org_id = ? AND user_id = ?", orgID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) UpdateOrganizationMemberRole(ctx context.Context, id snowflake.ID, role domain.Role) error {
	return r.db.WithContext(ctx).
		Model(&domain.OrganizationMember{}).
		Where("id = ?", id).
		Update("role", role).Error
}

func (r *repository) DeleteOrganizationMember(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Delete(&domain.OrganizationMember{}, "id = ?", id).Error
}

func (r *repository) ListOrganizationMembers(ctx context.Context, orgID snowflake.ID) ([]domain.OrganizationMember, error) {
	var members []domain.OrganizationMember
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&members).Error
	return members, err
}

func (r *repository) CreateWorkspaceMember(ctx context.Context, member *domain.WorkspaceMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *repository) GetWorkspaceMember(ctx context.Context, id snowflake.ID) (*domain.WorkspaceMember, error) {
	var member domain.WorkspaceMember
	err := r.db.WithContext(ctx).First(&member, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) FindWorkspaceMember(ctx context.Context, workspaceID, userID snowflake.ID) (*domain.WorkspaceMember, error) {
	var member domain.WorkspaceMember
	err := r.db.WithContext(ctx).First(&member, "workspace_id = ? AND user_id = ?", workspaceID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) UpsertWorkspaceMember(ctx context.Context, member *domain.WorkspaceMember) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "workspace_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"role": member.Role}),
	}).Create(member).Error
}

func (r *repository) UpdateWorkspaceMemberRole(ctx context.Context, id snowflake.ID, role domain.Role) error {
	return r.db.WithContext(ctx).
		Model(&domain.WorkspaceMember{}).
		Where("id = ?", id).
		Update("role", role).Error
}

func (r *repository) DeleteWorkspaceMember(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Delete(&domain.WorkspaceMember{}, "id = ?", id).Error
}

func (r *repository) DeleteWorkspaceMembersByOrgAndUser(ctx context.Context, orgID, userID snowflake.ID) error {
	return r.db.WithContext(ctx).Exec(
		`DELETE FROM workspace_members
		 WHERE user_id = ?
		   AND workspace_id IN (SELECT id FROM workspaces WHERE org_id = ?)`,
		userID, orgID,
	).Error
}

func (r *repository) ListWorkspaceMembers(ctx context.Context, workspaceID snowflake.ID) ([]domain.WorkspaceMember, error) {
	var members []domain.WorkspaceMember
	err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC").
		Find(&members).Error
	return members, err
}

func (r *repository) CreateProjectMember(ctx context.Context, member *domain.ProjectMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *repository) GetProjectMember(ctx context.Context, id snowflake.ID) (*domain.ProjectMember, error) {
	var member domain.ProjectMember
	err := r.db.WithContext(ctx).First(&member, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) FindProjectMember(ctx context.Context, projectID, userID snowflake.ID) (*domain.ProjectMember, error) {
	var member domain.ProjectMember
	err := r.db.WithContext(ctx).First(&member, "project_id = ? AND user_id = ?", projectID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) UpsertProjectMember(ctx context.Context, member *domain.ProjectMember) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"role": member.Role}),
	}).Create(member).Error
}

func (r *repository) UpdateProjectMemberRole(ctx context.Context, id snowflake.ID, role domain.Role) error {
	return r.db.WithContext(ctx).
		Model(&domain.ProjectMember{}).
		Where("id = ?", id).
		Update("role", role).Error
}

func (r *repository) DeleteProjectMember(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Delete(&domain.ProjectMember{}, "id = ?", id).Error
}

func (r *repository) DeleteProjectMembersByWorkspaceAndUser(ctx context.Context, workspaceID, userID snowflake.ID) error {
	return r.db.WithContext(ctx).Exec(
		`DELETE FROM project_members
		 WHERE user_id = ?
		   AND project_id IN (SELECT id FROM projects WHERE workspace_id = ?)`,
		userID, workspaceID,
	).Error
}

func (r *repository) DeleteProjectMembersByOrgAndUser(ctx context.Context, orgID, userID snowflake.ID) error {
	return r.db.WithContext(ctx).Exec(
		`DELETE FROM project_members
		 WHERE user_id = ?
		   AND project_id IN (
			SELECT p.id FROM projects p
			JOIN workspaces w ON w.id = p.workspace_id
			WHERE w.org_id = ?)`,
		userID, orgID,
	).Error
}

func (r *repository) ListProjectMembers(ctx context.Context, projectID snowflake.ID) ([]domain.ProjectMember, error) {
	var members []domain.ProjectMember
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&members).Error
	return members, err
}

func (r *repository) UpdateWorkspaceRolesByOrgAndUser(ctx context.Context, orgID, userID snowflake.ID, role domain.Role) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE workspace_members SET role = ?
		 WHERE user_id = ?
		   AND workspace_id IN (SELECT id FROM workspaces WHERE org_id = ?)`,
		role, userID, orgID,
	).Error
}

func (r *repository) UpdateProjectRolesByWorkspaceAndUser(ctx context.Context, workspaceID, userID snowflake.ID, role domain.Role) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE project_members SET role = ?
		 WHERE user_id = ?
		   AND project_id IN (SELECT id FROM projects WHERE workspace_id = ?)`,
		role, userID, workspaceID,
	).Error
}

func (r *repository) ListWorkspaceIDsByOrg(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).
		Table("workspaces").
		Select("id").
		Where("org_id = ?", orgID).
		Scan(&ids).Error
	return ids, err
}

func (r *repository) ListProjectIDsByWorkspace(ctx context.Context, workspaceID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).
		Table("projects").
		Select("id").
		Where("workspace_id = ?", workspaceID).
		Scan(&ids).Error
	return ids, err
}

func (r *repository) ListUserSummaries(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]domain.UserSummary, error) {
	summaries := make(map[snowflake.ID]domain.UserSummary, len(ids))
	if len(ids) == 0 {
		return summaries, nil
	}

	var rows []struct {
		ID    snowflake.ID
		Email string
		Name  string
	}
	err := r.db.WithContext(ctx).
		Table("users").
		Select("id, email, name").
		Where("id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		summaries[row.ID] = domain.UserSummary{
			ID:    row.ID.String(),
			Email: row.Email,
			Name:  row.Name,
		}
	}
	return summaries, nil
}
