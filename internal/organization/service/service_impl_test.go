package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	authdomain "github.com/smallbiznis/crewplan/internal/auth/domain"
	"github.com/smallbiznis/crewplan/internal/clock"
	"github.com/smallbiznis/crewplan/internal/events"
	membershipdomain "github.com/smallbiznis/crewplan/internal/membership/domain"
	membershiprepository "github.com/smallbiznis/crewplan/internal/membership/repository"
	"github.com/smallbiznis/crewplan/internal/organization/domain"
	"github.com/smallbiznis/crewplan/internal/organization/repository"
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

func setupOrganizationService(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&authdomain.User{},
		&domain.Organization{},
		&membershipdomain.OrganizationMember{},
		&events.OutboxEvent{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	svc := NewService(
		db,
		zap.NewNop(),
		repository.NewRepository(db),
		membershiprepository.NewRepository(db),
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

func TestCreateOrganization(t *testing.T) {
	f := setupOrganizationService(t)
	ctx := context.Background()

	owner := f.createUser(t, "founder@acme.test")

	resp, err := f.service.Create(ctx, owner.ID, domain.CreateOrganizationRequest{Name: "Acme Corp"})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", resp.Name)
	assert.Equal(t, "acme-corp", resp.Slug)
	assert.Equal(t, owner.ID.String(), resp.OwnerID)

	var org domain.Organization
	require.NoError(t, f.db.First(&org, "slug = ?", "acme-corp").Error)
	assert.Equal(t, f.clk.Now().UTC(), org.CreatedAt.UTC())

	member, err := membershiprepository.NewRepository(f.db).FindOrganizationMember(ctx, org.ID, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, member)
	assert.Equal(t, membershipdomain.RoleOwner, member.Role)

	var rows []events.OutboxEvent
	require.NoError(t, f.db.Where("topic = ?", events.TopicOrganizationCreated).Find(&rows).Error)
	require.Len(t, rows, 1)
}

func TestCreateOrganizationValidatesInput(t *testing.T) {
	f := setupOrganizationService(t)
	ctx := context.Background()

	owner := f.createUser(t, "founder@acme.test")

	_, err := f.service.Create(ctx, owner.ID, domain.CreateOrganizationRequest{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = f.service.Create(ctx, 0, domain.CreateOrganizationRequest{Name: "Acme"})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}

func TestCreateOrganizationRollsBackWhenOutboxWriteFails(t *testing.T) {
	f := setupOrganizationService(t)
	ctx := context.Background()

	owner := f.createUser(t, "founder@acme.test")

	require.NoError(t, f.db.Migrator().DropTable(&events.OutboxEvent{}))

	_, err := f.service.Create(ctx, owner.ID, domain.CreateOrganizationRequest{Name: "Acme Corp"})
	require.Error(t, err)

	var count int64
	require.NoError(t, f.db.Model(&domain.Organization{}).Count(&count).Error)
	assert.Zero(t, count)
}
