package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	authdomain "github.com/smallbiznis/crewplan/internal/auth/domain"
	authrepository "github.com/smallbiznis/crewplan/internal/auth/repository"
	"github.com/smallbiznis/crewplan/internal/clock"
	"github.com/smallbiznis/crewplan/internal/config"
	"github.com/smallbiznis/crewplan/internal/events"
	"github.com/smallbiznis/crewplan/internal/invitation/domain"
	"github.com/smallbiznis/crewplan/internal/invitation/repository"
	membershipdomain "github.com/smallbiznis/crewplan/internal/membership/domain"
	membershiprepository "github.com/smallbiznis/crewplan/internal/membership/repository"
	membershipservice "github.com/smallbiznis/crewplan/internal/membership/service"
	organizationdomain "github.com/smallbiznis/crewplan/internal/organization/domain"
	organizationrepository "github.com/smallbiznis/crewplan/internal/organization/repository"
	projectdomain "github.com/smallbiznis/crewplan/internal/project/domain"
	projectrepository "github.com/smallbiznis/crewplan/internal/project/repository"
	"github.com/smallbiznis/crewplan/internal/providers/email"
	workspacedomain "github.com/smallbiznis/crewplan/internal/workspace/domain"
	workspacerepository "github.com/smallbiznis/crewplan/internal/workspace/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type failingProvider struct{}

func (p *failingProvider) Configured() bool { return true }

func (p *failingProvider) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	return errors.New("smtp connection refused")
}

type fixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	clk     *clock.FakeClock
	cfg     config.Config
	members membershipdomain.Service
	service domain.Service
}

func setupInvitationService(t *testing.T, cfg config.Config, mailer email.Provider) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&authdomain.User{},
		&organizationdomain.Organization{},
		&workspacedomain.Workspace{},
		&projectdomain.Project{},
		&membershipdomain.OrganizationMember{},
		&membershipdomain.WorkspaceMember{},
		&membershipdomain.ProjectMember{},
		&domain.Invitation{},
		&events.OutboxEvent{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	publisher := events.NewOutboxPublisher(db, node)

	orgRepo := organizationrepository.NewRepository(db)
	wsRepo := workspacerepository.NewRepository(db)
	projRepo := projectrepository.NewRepository(db)
	userRepo := authrepository.NewRepository(db)

	members := membershipservice.NewService(
		db, log, membershiprepository.NewRepository(db),
		orgRepo, wsRepo, projRepo, userRepo, node, clk, publisher,
	)

	svc := NewService(
		db, log, cfg, repository.NewRepository(db), members,
		orgRepo, wsRepo, projRepo, userRepo, mailer, node, clk, publisher,
	)

	return &fixture{db: db, node: node, clk: clk, cfg: cfg, members: members, service: svc}
}

func devConfig() config.Config {
	return config.Config{
		Environment:   "test",
		InviteBaseURL: "https://app.crewplan.test",
	}
}

func (f *fixture) createUser(t *testing.T, addr string) *authdomain.User {
	t.Helper()
	user := &authdomain.User{
		ID:           f.node.Generate(),
		Email:        addr,
		Name:         addr,
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
	require.NoError(t, f.db.Create(&membershipdomain.OrganizationMember{
		ID:     f.node.Generate(),
		OrgID:  org.ID,
		UserID: owner.ID,
		Role:   membershipdomain.RoleOwner,
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

func (f *fixture) addOrgMember(t *testing.T, org *organizationdomain.Organization, user *authdomain.User, role membershipdomain.Role) {
	t.Helper()
	require.NoError(t, f.db.Create(&membershipdomain.OrganizationMember{
		ID:     f.node.Generate(),
		OrgID:  org.ID,
		UserID: user.ID,
		Role:   role,
	}).Error)
}

func (f *fixture) invitationRow(t *testing.T, id string) *domain.Invitation {
	t.Helper()
	parsed, err := snowflake.ParseString(id)
	require.NoError(t, err)
	var row domain.Invitation
	require.NoError(t, f.db.First(&row, "id = ?", parsed).Error)
	return &row
}

func TestCreateInvitationRequiresExactlyOneTarget(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)
	ws := f.createWorkspace(t, org, "w1")

	_, err := f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:     "new@acme.test",
		Role:      membershipdomain.RoleMember,
		InviterID: owner.ID,
	})
	assert.ErrorIs(t, err, domain.ErrSingleTarget)

	_, err = f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:       "new@acme.test",
		OrgID:       &org.ID,
		WorkspaceID: &ws.ID,
		Role:        membershipdomain.RoleMember,
		InviterID:   owner.ID,
	})
	assert.ErrorIs(t, err, domain.ErrSingleTarget)
}

func TestCreateInvitationRejectsInvalidEmail(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)

	for _, addr := range []string{"", "   ", "not-an-email", "missing@domain@twice"} {
		_, err := f.service.Create(ctx, domain.CreateInvitationRequest{
			Email:     addr,
			OrgID:     &org.ID,
			Role:      membershipdomain.RoleMember,
			InviterID: owner.ID,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidEmail, "email %q", addr)
	}
}

func TestCreateInvitationPending(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)
	ws := f.createWorkspace(t, org, "w1")

	result, err := f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:       "New@Acme.Test",
		WorkspaceID: &ws.ID,
		Role:        membershipdomain.RoleMember,
		InviterID:   owner.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultTypeInvitation, result.Type)
	assert.True(t, result.EmailSent)
	require.NotNil(t, result.Invitation)
	assert.Equal(t, "new@acme.test", result.Invitation.Email)
	assert.Equal(t, domain.StatusPending, result.Invitation.Status)
	assert.Equal(t, domain.LevelWorkspace, result.Invitation.EntityType)
	assert.Equal(t, f.clk.Now().Add(7*24*time.Hour), result.Invitation.ExpiresAt)

	row := f.invitationRow(t, result.Invitation.ID)
	assert.Len(t, row.Token, 64)
}

func TestCreateInvitationDuplicatePending(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)

	req := domain.CreateInvitationRequest{
		Email:     "new@acme.test",
		OrgID:     &org.ID,
		Role:      membershipdomain.RoleMember,
		InviterID: owner.ID,
	}
	_, err := f.service.Create(ctx, req)
	require.NoError(t, err)

	_, err = f.service.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrPendingExists)
}

func TestCreateInvitationInviteeAlreadyMember(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)
	member := f.createUser(t, "member@acme.test")
	f.addOrgMember(t, org, member, membershipdomain.RoleMember)

	_, err := f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:     member.Email,
		OrgID:     &org.ID,
		Role:      membershipdomain.RoleMember,
		InviterID: owner.ID,
	})
	assert.ErrorIs(t, err, domain.ErrInviteeIsMember)
}

func TestCreateInvitationRequiresEmailChannelInProduction(t *testing.T) {
	cfg := devConfig()
	cfg.Environment = "production"
	f := setupInvitationService(t, cfg, &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)

	_, err := f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:     "new@acme.test",
		OrgID:     &org.ID,
		Role:      membershipdomain.RoleMember,
		InviterID: owner.ID,
	})
	assert.ErrorIs(t, err, domain.ErrEmailNotConfigured)
}

func TestCreateInvitationSurvivesEmailFailure(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &failingProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)

	result, err := f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:     "new@acme.test",
		OrgID:     &org.ID,
		Role:      membershipdomain.RoleMember,
		InviterID: owner.ID,
	})
	require.NoError(t, err)
	assert.False(t, result.EmailSent)
	assert.Contains(t, result.EmailError, "smtp connection refused")

	row := f.invitationRow(t, result.Invitation.ID)
	assert.Equal(t, domain.StatusPending, row.Status)
}

func TestCreateInvitationDirectAddForOrgMember(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)
	ws := f.createWorkspace(t, org, "w1")
	member := f.createUser(t, "member@acme.test")
	f.addOrgMember(t, org, member, membershipdomain.RoleMember)

	result, err := f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:       member.Email,
		WorkspaceID: &ws.ID,
		Role:        membershipdomain.RoleManager,
		InviterID:   owner.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultTypeDirectAdd, result.Type)
	assert.Nil(t, result.Invitation)
	require.NotNil(t, result.Member)
	assert.Equal(t, membershipdomain.RoleManager, result.Member.Role)

	wsMember, err := f.members.FindByUserAndWorkspace(ctx, member.ID, ws.ID)
	require.NoError(t, err)
	require.NotNil(t, wsMember)
	assert.Equal(t, membershipdomain.RoleManager, wsMember.Role)

	var count int64
	require.NoError(t, f.db.Model(&domain.Invitation{}).Count(&count).Error)
	assert.Zero(t, count, "direct add must not persist an invitation row")
}

func TestCreateInvitationDirectAddToProjectBackfillsWorkspace(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)
	ws := f.createWorkspace(t, org, "w1")
	proj := f.createProject(t, ws, "p1")
	member := f.createUser(t, "member@acme.test")
	f.addOrgMember(t, org, member, membershipdomain.RoleMember)

	result, err := f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:     member.Email,
		ProjectID: &proj.ID,
		Role:      membershipdomain.RoleMember,
		InviterID: owner.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultTypeDirectAdd, result.Type)

	wsMember, err := f.members.FindByUserAndWorkspace(ctx, member.ID, ws.ID)
	require.NoError(t, err)
	require.NotNil(t, wsMember)
	assert.Equal(t, membershipdomain.RoleMember, wsMember.Role)

	projMember, err := f.members.FindByUserAndProject(ctx, member.ID, proj.ID)
	require.NoError(t, err)
	require.NotNil(t, projMember)
}

func TestAcceptMaterializesHierarchyBottomUp(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)
	ws := f.createWorkspace(t, org, "w1")
	proj := f.createProject(t, ws, "p1")

	invitee := f.createUser(t, "new@acme.test")
	result, err := f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:     invitee.Email,
		ProjectID: &proj.ID,
		Role:      membershipdomain.RoleManager,
		InviterID: owner.ID,
	})
	require.NoError(t, err)

	row := f.invitationRow(t, result.Invitation.ID)
	view, err := f.service.Accept(ctx, row.Token, invitee.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, view.Status)

	orgMember, err := f.members.FindByUserAndOrganization(ctx, invitee.ID, org.ID)
	require.NoError(t, err)
	require.NotNil(t, orgMember)
	assert.Equal(t, membershipdomain.RoleMember, orgMember.Role)

	wsMember, err := f.members.FindByUserAndWorkspace(ctx, invitee.ID, ws.ID)
	require.NoError(t, err)
	require.NotNil(t, wsMember)
	assert.Equal(t, membershipdomain.RoleMember, wsMember.Role)

	projMember, err := f.members.FindByUserAndProject(ctx, invitee.ID, proj.ID)
	require.NoError(t, err)
	require.NotNil(t, projMember)
	assert.Equal(t, membershipdomain.RoleManager, projMember.Role)

	var rows []events.OutboxEvent
	require.NoError(t, f.db.Where("topic = ?", events.TopicInvitationAccepted).Find(&rows).Error)
	require.Len(t, rows, 1)
}

func TestAcceptTwiceFails(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)

	invitee := f.createUser(t, "new@acme.test")
	result, err := f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:     invitee.Email,
		OrgID:     &org.ID,
		Role:      membershipdomain.RoleMember,
		InviterID: owner.ID,
	})
	require.NoError(t, err)

	token := f.invitationRow(t, result.Invitation.ID).Token
	_, err = f.service.Accept(ctx, token, invitee.ID)
	require.NoError(t, err)

	_, err = f.service.Accept(ctx, token, invitee.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
}

func TestAcceptRejectsMismatchedEmail(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)

	result, err := f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:     "invited@acme.test",
		OrgID:     &org.ID,
		Role:      membershipdomain.RoleMember,
		InviterID: owner.ID,
	})
	require.NoError(t, err)

	other := f.createUser(t, "someone-else@acme.test")
	token := f.invitationRow(t, result.Invitation.ID).Token
	_, err = f.service.Accept(ctx, token, other.ID)
	assert.ErrorIs(t, err, domain.ErrEmailMismatch)
}

func TestAcceptExpiredInvitationFlipsStatus(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)

	invitee := f.createUser(t, "new@acme.test")
	result, err := f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:     invitee.Email,
		OrgID:     &org.ID,
		Role:      membershipdomain.RoleMember,
		InviterID: owner.ID,
	})
	require.NoError(t, err)

	f.clk.Advance(8 * 24 * time.Hour)

	token := f.invitationRow(t, result.Invitation.ID).Token
	_, err = f.service.Accept(ctx, token, invitee.ID)
	assert.ErrorIs(t, err, domain.ErrInvitationExpired)

	row := f.invitationRow(t, result.Invitation.ID)
	assert.Equal(t, domain.StatusExpired, row.Status)

	orgMember, err := f.members.FindByUserAndOrganization(ctx, invitee.ID, org.ID)
	require.NoError(t, err)
	assert.Nil(t, orgMember)
}

func TestDecline(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)

	invitee := f.createUser(t, "new@acme.test")
	result, err := f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:     invitee.Email,
		OrgID:     &org.ID,
		Role:      membershipdomain.RoleMember,
		InviterID: owner.ID,
	})
	require.NoError(t, err)

	token := f.invitationRow(t, result.Invitation.ID).Token
	view, err := f.service.Decline(ctx, token, invitee.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeclined, view.Status)

	orgMember, err := f.members.FindByUserAndOrganization(ctx, invitee.ID, org.ID)
	require.NoError(t, err)
	assert.Nil(t, orgMember)
}

func TestResendIssuesFreshToken(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)

	result, err := f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:     "new@acme.test",
		OrgID:     &org.ID,
		Role:      membershipdomain.RoleMember,
		InviterID: owner.ID,
	})
	require.NoError(t, err)

	before := f.invitationRow(t, result.Invitation.ID)
	f.clk.Advance(8 * 24 * time.Hour)

	resent, err := f.service.Resend(ctx, before.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, before.ID.String(), resent.Invitation.ID)
	assert.Equal(t, domain.StatusPending, resent.Invitation.Status)
	assert.Equal(t, f.clk.Now().Add(7*24*time.Hour), resent.Invitation.ExpiresAt)

	after := f.invitationRow(t, result.Invitation.ID)
	assert.NotEqual(t, before.Token, after.Token)
	assert.Len(t, after.Token, 64)
}

func TestResendDeclinedFails(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)

	invitee := f.createUser(t, "new@acme.test")
	result, err := f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:     invitee.Email,
		OrgID:     &org.ID,
		Role:      membershipdomain.RoleMember,
		InviterID: owner.ID,
	})
	require.NoError(t, err)

	row := f.invitationRow(t, result.Invitation.ID)
	_, err = f.service.Decline(ctx, row.Token, invitee.ID)
	require.NoError(t, err)

	_, err = f.service.Resend(ctx, row.ID, owner.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyDeclined)
}

func TestResendForbiddenForUnrelatedUser(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)
	stranger := f.createUser(t, "stranger@other.test")

	result, err := f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:     "new@acme.test",
		OrgID:     &org.ID,
		Role:      membershipdomain.RoleMember,
		InviterID: owner.ID,
	})
	require.NoError(t, err)

	id := f.invitationRow(t, result.Invitation.ID).ID
	_, err = f.service.Resend(ctx, id, stranger.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestDeleteRequiresPending(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)

	invitee := f.createUser(t, "new@acme.test")
	result, err := f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:     invitee.Email,
		OrgID:     &org.ID,
		Role:      membershipdomain.RoleMember,
		InviterID: owner.ID,
	})
	require.NoError(t, err)
	row := f.invitationRow(t, result.Invitation.ID)

	_, err = f.service.Accept(ctx, row.Token, invitee.ID)
	require.NoError(t, err)

	err = f.service.Delete(ctx, row.ID, owner.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
}

func TestDeletePendingInvitation(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)

	result, err := f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:     "new@acme.test",
		OrgID:     &org.ID,
		Role:      membershipdomain.RoleMember,
		InviterID: owner.ID,
	})
	require.NoError(t, err)
	row := f.invitationRow(t, result.Invitation.ID)

	require.NoError(t, f.service.Delete(ctx, row.ID, owner.ID))

	var count int64
	require.NoError(t, f.db.Model(&domain.Invitation{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestVerify(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)
	ws := f.createWorkspace(t, org, "design")

	result, err := f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:       "new@acme.test",
		WorkspaceID: &ws.ID,
		Role:        membershipdomain.RoleViewer,
		InviterID:   owner.ID,
	})
	require.NoError(t, err)
	token := f.invitationRow(t, result.Invitation.ID).Token

	verify, err := f.service.Verify(ctx, token)
	require.NoError(t, err)
	assert.True(t, verify.IsValid)
	assert.False(t, verify.IsExpired)
	assert.True(t, verify.CanRespond)
	assert.Equal(t, "new@acme.test", verify.Email)
	assert.False(t, verify.AccountExists)
	assert.Equal(t, domain.LevelWorkspace, verify.EntityType)
	assert.Equal(t, "design", verify.EntityName)
	assert.Equal(t, string(membershipdomain.RoleViewer), verify.Role)

	f.createUser(t, "new@acme.test")
	f.clk.Advance(8 * 24 * time.Hour)

	verify, err = f.service.Verify(ctx, token)
	require.NoError(t, err)
	assert.False(t, verify.IsValid)
	assert.True(t, verify.IsExpired)
	assert.False(t, verify.CanRespond)
	assert.True(t, verify.AccountExists)
}

func TestListForEntitySweepsExpiry(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)

	_, err := f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:     "stale@acme.test",
		OrgID:     &org.ID,
		Role:      membershipdomain.RoleMember,
		InviterID: owner.ID,
	})
	require.NoError(t, err)

	f.clk.Advance(8 * 24 * time.Hour)

	_, err = f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:     "fresh@acme.test",
		OrgID:     &org.ID,
		Role:      membershipdomain.RoleMember,
		InviterID: owner.ID,
	})
	require.NoError(t, err)

	views, err := f.service.ListForEntity(ctx, domain.Target{Level: domain.LevelOrganization, ID: org.ID})
	require.NoError(t, err)
	require.Len(t, views, 2)

	byEmail := map[string]domain.Status{}
	for _, v := range views {
		byEmail[v.Email] = v.Status
	}
	assert.Equal(t, domain.StatusExpired, byEmail["stale@acme.test"])
	assert.Equal(t, domain.StatusPending, byEmail["fresh@acme.test"])
}

func TestListForUserSkipsExpired(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)
	ws := f.createWorkspace(t, org, "w1")

	_, err := f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:     "new@acme.test",
		OrgID:     &org.ID,
		Role:      membershipdomain.RoleMember,
		InviterID: owner.ID,
	})
	require.NoError(t, err)

	f.clk.Advance(8 * 24 * time.Hour)

	_, err = f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:       "new@acme.test",
		WorkspaceID: &ws.ID,
		Role:        membershipdomain.RoleMember,
		InviterID:   owner.ID,
	})
	require.NoError(t, err)

	views, err := f.service.ListForUser(ctx, "New@Acme.Test")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.LevelWorkspace, views[0].EntityType)
}

func TestAcceptKeepsExistingRole(t *testing.T) {
	f := setupInvitationService(t, devConfig(), &email.NoOpProvider{})
	ctx := context.Background()

	owner := f.createUser(t, "owner@acme.test")
	org := f.createOrg(t, owner)
	ws := f.createWorkspace(t, org, "w1")

	invitee := f.createUser(t, "new@acme.test")
	result, err := f.service.Create(ctx, domain.CreateInvitationRequest{
		Email:       invitee.Email,
		WorkspaceID: &ws.ID,
		Role:        membershipdomain.RoleViewer,
		InviterID:   owner.ID,
	})
	require.NoError(t, err)
	token := f.invitationRow(t, result.Invitation.ID).Token

	// The invitee gains org standing before accepting. Acceptance must not
	// rewrite the membership they already hold.
	f.addOrgMember(t, org, invitee, membershipdomain.RoleManager)

	_, err = f.service.Accept(ctx, token, invitee.ID)
	require.NoError(t, err)

	orgMember, err := f.members.FindByUserAndOrganization(ctx, invitee.ID, org.ID)
	require.NoError(t, err)
	require.NotNil(t, orgMember)
	assert.Equal(t, membershipdomain.RoleManager, orgMember.Role)

	wsMember, err := f.members.FindByUserAndWorkspace(ctx, invitee.ID, ws.ID)
	require.NoError(t, err)
	require.NotNil(t, wsMember)
	assert.Equal(t, membershipdomain.RoleViewer, wsMember.Role)
}
