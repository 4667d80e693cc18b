package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewplan/internal/membership/domain"
	"gorm.io/gorm"
)

// cascadeOrganizationCreate fans an elevated organization role out to every
// workspace under the organization. Lower roles do not cascade, and the fan
// out stops at the workspace level.
func (s *service) cascadeOrganizationCreate(ctx context.Context, repo domain.Repository, orgID, userID snowflake.ID, role domain.Role) error {
	if !role.Elevated() {
		return nil
	}

	workspaceIDs, err := repo.ListWorkspaceIDsByOrg(ctx, orgID)
	if err != nil {
		return err
	}

	for _, wsID := range workspaceIDs {
		member := &domain.WorkspaceMember{
			ID:          s.genID.Generate(),
			WorkspaceID: wsID,
			UserID:      userID,
			Role:        role,
			CreatedAt:   s.clk.Now().UTC(),
		}
		if err := repo.UpsertWorkspaceMember(ctx, member); err != nil {
			return err
		}
	}
	return nil
}

// cascadeWorkspaceCreate fans an elevated workspace role out to every project
// under the workspace.
func (s *service) cascadeWorkspaceCreate(ctx context.Context, repo domain.Repository, workspaceID, userID snowflake.ID, role domain.Role) error {
	if !role.Elevated() {
		return nil
	}

	projectIDs, err := repo.ListProjectIDsByWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}

	for _, projID := range projectIDs {
		member := &domain.ProjectMember{
			ID:        s.genID.Generate(),
			ProjectID: projID,
			UserID:    userID,
			Role:      role,
			CreatedAt: s.clk.Now().UTC(),
		}
		if err := repo.UpsertProjectMember(ctx, member); err != nil {
			return err
		}
	}
	return nil
}

// EnsureOrganizationMember creates an organization membership inside the
// caller's transaction when absent. An existing row is left untouched so a
// replayed call stays idempotent.
func (s *service) EnsureOrganizationMember(ctx context.Context, tx *gorm.DB, orgID, userID snowflake.ID, role domain.Role) error {
	repo := s.repo.WithTx(tx)

	existing, err := repo.FindOrganizationMember(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	member := &domain.OrganizationMember{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		UserID:    userID,
		Role:      role,
		CreatedAt: s.clk.Now().UTC(),
	}
	if err := repo.CreateOrganizationMember(ctx, member); err != nil {
		return err
	}
	return s.cascadeOrganizationCreate(ctx, repo, orgID, userID, role)
}

// EnsureWorkspaceMember creates a workspace membership inside the caller's
// transaction when absent. Callers are responsible for materializing the
// organization membership first.
func (s *service) EnsureWorkspaceMember(ctx context.Context, tx *gorm.DB, workspaceID, userID snowflake.ID, role domain.Role) error {
	repo := s.repo.WithTx(tx)

	existing, err := repo.FindWorkspaceMember(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	member := &domain.WorkspaceMember{
		ID:          s.genID.Generate(),
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
		CreatedAt:   s.clk.Now().UTC(),
	}
	if err := repo.CreateWorkspaceMember(ctx, member); err != nil {
		return err
	}
	return s.cascadeWorkspaceCreate(ctx, repo, workspaceID, userID, role)
}

// EnsureProjectMember creates a project membership inside the caller's
// transaction when absent.
func (s *service) EnsureProjectMember(ctx context.Context, tx *gorm.DB, projectID, userID snowflake.ID, role domain.Role) error {
	repo := s.repo.WithTx(tx)

	existing, err := repo.FindProjectMember(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	member := &domain.ProjectMember{
		ID:        s.genID.Generate(),
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		CreatedAt: s.clk.Now().UTC(),
	}
	return repo.CreateProjectMember(ctx, member)
}
