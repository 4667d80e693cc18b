package migration

import (
	authdomain "github.com/smallbiznis/crewplan/internal/auth/domain"
	"github.com/smallbiznis/crewplan/internal/config"
	"github.com/smallbiznis/crewplan/internal/events"
	invitationdomain "github.com/smallbiznis/crewplan/internal/invitation/domain"
	membershipdomain "github.com/smallbiznis/crewplan/internal/membership/domain"
	organizationdomain "github.com/smallbiznis/crewplan/internal/organization/domain"
	projectdomain "github.com/smallbiznis/crewplan/internal/project/domain"
	"github.com/smallbiznis/crewplan/internal/seed"
	workspacedomain "github.com/smallbiznis/crewplan/internal/workspace/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// Non-postgres stores (sqlite/mysql dev setups) use gorm's
			// schema sync; versioned SQL only targets postgres.
			if err := conn.AutoMigrate(
				&authdomain.User{},
				&authdomain.Session{},
				&organizationdomain.Organization{},
				&workspacedomain.Workspace{},
				&projectdomain.Project{},
				&membershipdomain.OrganizationMember{},
				&membershipdomain.WorkspaceMember{},
				&membershipdomain.ProjectMember{},
				&invitationdomain.Invitation{},
				&events.OutboxEvent{},
			); err != nil {
				return err
			}
		}

		if cfg.IsDevelopment() {
			return seed.EnsureDefaultOrgAndAdmin(conn)
		}
		return nil
	}),
)
