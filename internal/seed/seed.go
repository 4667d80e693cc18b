// Package seed bootstraps a default organization and admin user so local and
// self-hosted environments are usable out of the box.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/crewplan/internal/auth/domain"
	"github.com/smallbiznis/crewplan/internal/auth/password"
	membershipdomain "github.com/smallbiznis/crewplan/internal/membership/domain"
	organizationdomain "github.com/smallbiznis/crewplan/internal/organization/domain"
	"gorm.io/gorm"
)

const (
	defaultOrgName       = "Main"
	defaultOrgSlug       = "main"
	defaultAdminEmail    = "admin@crewplan.dev"
	defaultAdminPassword = "admin"
	defaultAdminDisplay  = "CrewPlan Admin"
)

// EnsureDefaultOrgAndAdmin seeds the default admin user, organization and the
// owner membership. Safe to run on every startup.
func EnsureDefaultOrgAndAdmin(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		admin, err := ensureAdminTx(ctx, tx, node)
		if err != nil {
			return err
		}
		org, err := ensureMainOrgTx(ctx, tx, node, admin.ID)
		if err != nil {
			return err
		}
		return ensureOwnerMembershipTx(ctx, tx, node, org.ID, admin.ID)
	})
}

func ensureAdminTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (*authdomain.User, error) {
	var user authdomain.User
	err := tx.WithContext(ctx).First(&user, "LOWER(email) = ?", defaultAdminEmail).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := password.Hash(defaultAdminPassword)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user = authdomain.User{
		ID:           node.Generate(),
		Email:        defaultAdminEmail,
		Name:         defaultAdminDisplay,
		PasswordHash: hash,
		IsSuperAdmin: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func ensureMainOrgTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, ownerID snowflake.ID) (*organizationdomain.Organization, error) {
	var org organizationdomain.Organization
	err := tx.WithContext(ctx).First(&org, "slug = ?", defaultOrgSlug).Error
	if err == nil {
		return &org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	org = organizationdomain.Organization{
		ID:        node.Generate(),
		Name:      defaultOrgName,
		Slug:      defaultOrgSlug,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

func ensureOwnerMembershipTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, orgID, userID snowflake.ID) error {
	var member membershipdomain.OrganizationMember
	err := tx.WithContext(ctx).First(&member, "org_id = ? AND user_id = ?", orgID, userID).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	member = membershipdomain.OrganizationMember{
		ID:        node.Generate(),
		OrgID:     orgID,
		UserID:    userID,
		Role:      membershipdomain.RoleOwner,
		CreatedAt: time.Now().UTC(),
	}
	return tx.WithContext(ctx).Create(&member).Error
}
