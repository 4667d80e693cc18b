package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	authdomain "github.com/smallbiznis/crewplan/internal/auth/domain"
	authrepository "github.com/smallbiznis/crewplan/internal/auth/repository"
	"github.com/smallbiznis/crewplan/internal/clock"
	"github.com/smallbiznis/crewplan/internal/events"
	"github.com/smallbiznis/crewplan/internal/membership/domain"
	"github.com/smallbiznis/crewplan/internal/membership/repository"
	organizationdomain "github.com/smallbiznis/crewplan/internal/organization/domain"
	organizationrepository "github.com/smallbiznis/crewplan/internal/organization/repository"
	projectdomain "github.com/smallbiznis/crewplan/internal/project/domain"
	projectrepository "github.com/smallbiznis/crewplan/internal/project/repository"
	workspacedomain "github.com/smallbiznis/crewplan/internal/workspace/domain"
	workspacerepository "github.com/smallbiznis/crewplan/internal/workspace/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	clk     *clock.FakeClock
	service domain.Service
}

func setupMembershipService(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&authdomain.User{},
		&organizationdomain.Organization{},
		&workspacedomain.Workspace{},
		&projectdomain.Project{},
		&domain.OrganizationMember{},
		&domain.WorkspaceMember{},
		&domain.ProjectMember{},
		&events.OutboxEvent{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	svc := NewService(
		db,
		zap.NewNop(),
		repository.NewRepository(db),
		organizationrepository.NewRepository(db),
		workspacerepository.NewRepository(db),
		projectrepository.NewRepository(db),
		authrepository.NewRepository(db),
		node,
		clk,
		events.NewOutboxPublisher(db, node),
	)

	return &fixture{db: db, node: node, clk: clk, service: svc}
}

func (f *fixture) createUser(t *testing.T, email string) *authdomain.User {
	t.Helper()
	user := &authdomain.User{
		ID:           f.node.Generate(),
		Email:        email,
		Name:         email,
		PasswordHash: "x",
	}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f *fixture) createOrg(t *testing.T, owner *authdomain.User) *organizationdomain.Organization {
	t.Helper()
	org := &organizationdomain.Organization{
		ID:      f.node.Generate(),
		Name:    "Acme",
		Slug:    fmt.Sprintf("acme-%d", f.node.Generate()),
		OwnerID: owner.ID,
	}
	require.NoError(t, f.db.Create(org).Error)
	require.NoError(t, f.db.Create(&domain.OrganizationMember{
		ID:     f.node.Generate(),
		OrgID:  org.ID,
		UserID: owner.ID,
		Role:   domain.RoleOwner,
	}).Error)
	return org
}

func (f *fixture) createWorkspace(t *testing.T, org *organizationdomain.Organization, name string) *workspacedomain.Workspace {
	t.Helper()
	ws := &workspacedomain.Workspace{
		ID:    f.node.Generate(),
		OrgID: org.ID,
		Name:  name,
		Slug:  name,
	}
	require.NoError(t, f.db.Create(ws).Error)
	return ws
}

func (f *fixture) createProject(t *testing.T, ws *workspacedomain.Workspace, name string) *projectdomain.Project {
	t.Helper()
	proj := &projectdomain.Project{
		ID:          f.node.Generate(),
		WorkspaceID: ws.ID,
		Name:        name,
	}
	require.NoError(t, f.db.Create(proj).Error)
	return proj
}

func (f *fixture) addOrgMember(t *testing.T, org *organizationdomain.Organization, user *authdomain.User, role domain.Role) *domain.OrganizationMember {
	t.Helper()
	member := &domain.OrganizationMember{
		ID:     f.node.Generate(),
		OrgID:  org.ID,
		UserID: user.ID,
		Role:   role,
	}
	require.NoError(t, f.db.Create(member).Error)
	return member
}

func (f *fixture) addWorkspaceMember(t *testing.T, ws *workspacedomain.Workspace, user *authdomain.User, role domain.Role) *domain.WorkspaceMember {
	t.Helper()
	member := &domain.WorkspaceMember{
		ID:          f.node.Generate(),
		WorkspaceID: ws.ID,
		UserID:      user.ID,
		Role:        role,
	}
	require.NoError(t, f.db.Create(member).Error)
	return member
}

func TestCreateOrganizationMemberManagerCascadesToWorkspaces(t *testing.T) {
	f := setupMembershipService(t)
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)
	w1 := f.createWorkspace(t, org, "w1")
	w2 := f.createWorkspace(t, org, "w2")

	user := f.createUser(t, "manager@acme.test")
	view, err := f.service.CreateOrganizationMember(ctx, domain.CreateOrganizationMemberRequest{
		OrgID:       org.ID,
		UserID:      user.ID,
		Role:        domain.RoleManager,
		RequesterID: &owner.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, view.Role)
	assert.Equal(t, user.Email, view.User.Email)

	for _, ws := range []*workspacedomain.Workspace{w1, w2} {
		member, err := f.service.FindByUserAndWorkspace(ctx, user.ID, ws.ID)
		require.NoError(t, err)
		require.NotNil(t, member, "workspace %s should have a cascaded membership", ws.Name)
		assert.Equal(t, domain.RoleManager, member.Role)
	}
}

func TestCreateOrganizationMemberViewerDoesNotCascade(t *testing.T) {
	f := setupMembershipService(t)
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)
	ws := f.createWorkspace(t, org, "w1")

	user := f.createUser(t, "viewer@acme.test")
	_, err := f.service.CreateOrganizationMember(ctx, domain.CreateOrganizationMemberRequest{
		OrgID:       org.ID,
		UserID:      user.ID,
		Role:        domain.RoleViewer,
		RequesterID: &owner.ID,
	})
	require.NoError(t, err)

	member, err := f.service.FindByUserAndWorkspace(ctx, user.ID, ws.ID)
	require.NoError(t, err)
	assert.Nil(t, member)
}

func TestCreateOrganizationMemberDuplicateConflicts(t *testing.T) {
	f := setupMembershipService(t)
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)
	user := f.createUser(t, "dup@acme.test")
	f.addOrgMember(t, org, user, domain.RoleMember)

	_, err := f.service.CreateOrganizationMember(ctx, domain.CreateOrganizationMemberRequest{
		OrgID:       org.ID,
		UserID:      user.ID,
		Role:        domain.RoleMember,
		RequesterID: &owner.ID,
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyMember)
}

func TestCreateOrganizationMemberForbiddenForPlainMember(t *testing.T) {
	f := setupMembershipService(t)
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)
	requester := f.createUser(t, "member@acme.test")
	f.addOrgMember(t, org, requester, domain.RoleMember)

	target := f.createUser(t, "target@acme.test")
	_, err := f.service.CreateOrganizationMember(ctx, domain.CreateOrganizationMemberRequest{
		OrgID:       org.ID,
		UserID:      target.ID,
		Role:        domain.RoleMember,
		RequesterID: &requester.ID,
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

// Promotion updates workspace rows the user already holds but never grants
// new ones; creating a project afterwards also gains nothing until the
// workspace membership itself is re-saved with an elevated role.
func TestUpdateOrganizationMemberCascadeUpdatesExistingRowsOnly(t *testing.T) {
	f := setupMembershipService(t)
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)
	joined := f.createWorkspace(t, org, "joined")
	other := f.createWorkspace(t, org, "other")

	user := f.createUser(t, "promoted@acme.test")
	orgMember := f.addOrgMember(t, org, user, domain.RoleMember)
	f.addWorkspaceMember(t, joined, user, domain.RoleMember)

	view, err := f.service.UpdateOrganizationMember(ctx, orgMember.ID, domain.RoleManager, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, view.Role)

	joinedMember, err := f.service.FindByUserAndWorkspace(ctx, user.ID, joined.ID)
	require.NoError(t, err)
	require.NotNil(t, joinedMember)
	assert.Equal(t, domain.RoleManager, joinedMember.Role)

	otherMember, err := f.service.FindByUserAndWorkspace(ctx, user.ID, other.ID)
	require.NoError(t, err)
	assert.Nil(t, otherMember, "update cascade must not create workspace rows")

	proj := f.createProject(t, joined, "p1")
	projMember, err := f.service.FindByUserAndProject(ctx, user.ID, proj.ID)
	require.NoError(t, err)
	assert.Nil(t, projMember, "org-level promotion must not reach projects")

	wsMember, err := f.service.FindByUserAndWorkspace(ctx, user.ID, joined.ID)
	require.NoError(t, err)
	_, err = f.service.UpdateWorkspaceMember(ctx, wsMember.ID, domain.RoleManager, owner.ID)
	require.NoError(t, err)

	projMember, err = f.service.FindByUserAndProject(ctx, user.ID, proj.ID)
	require.NoError(t, err)
	require.NotNil(t, projMember, "workspace-level elevation cascades to projects")
	assert.Equal(t, domain.RoleManager, projMember.Role)
}

func TestOwnerRoleIsImmutable(t *testing.T) {
	f := setupMembershipService(t)
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)

	ownerMember, err := f.service.FindByUserAndOrganization(ctx, owner.ID, org.ID)
	require.NoError(t, err)
	require.NotNil(t, ownerMember)

	_, err = f.service.UpdateOrganizationMember(ctx, ownerMember.ID, domain.RoleMember, owner.ID)
	assert.ErrorIs(t, err, domain.ErrOwnerImmutable)

	err = f.service.RemoveOrganizationMember(ctx, ownerMember.ID, owner.ID)
	assert.ErrorIs(t, err, domain.ErrOwnerImmutable)
}

func TestRemoveOrganizationMemberCascadesAllLevels(t *testing.T) {
	f := setupMembershipService(t)
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)
	ws := f.createWorkspace(t, org, "w1")
	proj := f.createProject(t, ws, "p1")

	user := f.createUser(t, "leaver@acme.test")
	orgMember := f.addOrgMember(t, org, user, domain.RoleMember)
	f.addWorkspaceMember(t, ws, user, domain.RoleMember)
	require.NoError(t, f.db.Create(&domain.ProjectMember{
		ID:        f.node.Generate(),
		ProjectID: proj.ID,
		UserID:    user.ID,
		Role:      domain.RoleMember,
	}).Error)

	require.NoError(t, f.service.RemoveOrganizationMember(ctx, orgMember.ID, owner.ID))

	om, err := f.service.FindByUserAndOrganization(ctx, user.ID, org.ID)
	require.NoError(t, err)
	assert.Nil(t, om)

	wm, err := f.service.FindByUserAndWorkspace(ctx, user.ID, ws.ID)
	require.NoError(t, err)
	assert.Nil(t, wm)

	pm, err := f.service.FindByUserAndProject(ctx, user.ID, proj.ID)
	require.NoError(t, err)
	assert.Nil(t, pm)
}

func TestRemoveOrganizationMemberSelfLeaveAllowed(t *testing.T) {
	f := setupMembershipService(t)
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)
	user := f.createUser(t, "self@acme.test")
	orgMember := f.addOrgMember(t, org, user, domain.RoleViewer)

	require.NoError(t, f.service.RemoveOrganizationMember(ctx, orgMember.ID, user.ID))

	om, err := f.service.FindByUserAndOrganization(ctx, user.ID, org.ID)
	require.NoError(t, err)
	assert.Nil(t, om)
}

func TestCreateWorkspaceMemberRequiresOrgMembership(t *testing.T) {
	f := setupMembershipService(t)
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)
	ws := f.createWorkspace(t, org, "w1")

	outsider := f.createUser(t, "outsider@acme.test")
	_, err := f.service.CreateWorkspaceMember(ctx, domain.CreateWorkspaceMemberRequest{
		WorkspaceID: ws.ID,
		UserID:      outsider.ID,
		Role:        domain.RoleMember,
		RequesterID: &owner.ID,
	})
	assert.ErrorIs(t, err, domain.ErrNotOrgMember)
}

func TestCreateWorkspaceMemberManagerCascadesToProjects(t *testing.T) {
	f := setupMembershipService(t)
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)
	ws := f.createWorkspace(t, org, "w1")
	p1 := f.createProject(t, ws, "p1")
	p2 := f.createProject(t, ws, "p2")

	user := f.createUser(t, "wsmanager@acme.test")
	f.addOrgMember(t, org, user, domain.RoleMember)

	_, err := f.service.CreateWorkspaceMember(ctx, domain.CreateWorkspaceMemberRequest{
		WorkspaceID: ws.ID,
		UserID:      user.ID,
		Role:        domain.RoleManager,
		RequesterID: &owner.ID,
	})
	require.NoError(t, err)

	for _, proj := range []*projectdomain.Project{p1, p2} {
		member, err := f.service.FindByUserAndProject(ctx, user.ID, proj.ID)
		require.NoError(t, err)
		require.NotNil(t, member)
		assert.Equal(t, domain.RoleManager, member.Role)
	}
}

func TestRemoveWorkspaceMemberCascadesToProjects(t *testing.T) {
	f := setupMembershipService(t)
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)
	ws := f.createWorkspace(t, org, "w1")
	proj := f.createProject(t, ws, "p1")

	user := f.createUser(t, "wsleaver@acme.test")
	f.addOrgMember(t, org, user, domain.RoleMember)
	wsMember := f.addWorkspaceMember(t, ws, user, domain.RoleMember)
	require.NoError(t, f.db.Create(&domain.ProjectMember{
		ID:        f.node.Generate(),
		ProjectID: proj.ID,
		UserID:    user.ID,
		Role:      domain.RoleMember,
	}).Error)

	require.NoError(t, f.service.RemoveWorkspaceMember(ctx, wsMember.ID, owner.ID))

	pm, err := f.service.FindByUserAndProject(ctx, user.ID, proj.ID)
	require.NoError(t, err)
	assert.Nil(t, pm)

	om, err := f.service.FindByUserAndOrganization(ctx, user.ID, org.ID)
	require.NoError(t, err)
	assert.NotNil(t, om, "removal never cascades upward")
}

func TestListOrganizationMembersIncludesUserSummaries(t *testing.T) {
	f := setupMembershipService(t)
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)
	user := f.createUser(t, "listed@acme.test")
	f.addOrgMember(t, org, user, domain.RoleViewer)

	members, err := f.service.ListOrganizationMembers(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	emails := []string{members[0].User.Email, members[1].User.Email}
	assert.Contains(t, emails, "owner@acme.test")
	assert.Contains(t, emails, "listed@acme.test")
}

func TestCreateOrganizationMemberWritesOutboxRowAtomically(t *testing.T) {
	f := setupMembershipService(t)
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)

	first := f.createUser(t, "first@acme.test")
	_, err := f.service.CreateOrganizationMember(ctx, domain.CreateOrganizationMemberRequest{
		OrgID:  org.ID,
		UserID: first.ID,
		Role:   domain.RoleMember,
	})
	require.NoError(t, err)

	var rows []events.OutboxEvent
	require.NoError(t, f.db.Where("topic = ?", events.TopicMembershipChanged).Find(&rows).Error)
	require.Len(t, rows, 1)

	// Once the outbox table is gone the event insert fails and the member
	// write must roll back with it.
	require.NoError(t, f.db.Migrator().DropTable(&events.OutboxEvent{}))

	second := f.createUser(t, "second@acme.test")
	_, err = f.service.CreateOrganizationMember(ctx, domain.CreateOrganizationMemberRequest{
		OrgID:  org.ID,
		UserID: second.ID,
		Role:   domain.RoleMember,
	})
	require.Error(t, err)

	member, err := f.service.FindByUserAndOrganization(ctx, second.ID, org.ID)
	require.NoError(t, err)
	assert.Nil(t, member)
}
