package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/crewplan/internal/auth"
	authdomain "github.com/smallbiznis/crewplan/internal/auth/domain"
	"github.com/smallbiznis/crewplan/internal/config"
	"github.com/smallbiznis/crewplan/internal/events"
	"github.com/smallbiznis/crewplan/internal/invitation"
	invitationdomain "github.com/smallbiznis/crewplan/internal/invitation/domain"
	"github.com/smallbiznis/crewplan/internal/membership"
	membershipdomain "github.com/smallbiznis/crewplan/internal/membership/domain"
	obslogger "github.com/smallbiznis/crewplan/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/crewplan/internal/observability/metrics"
	obstracing "github.com/smallbiznis/crewplan/internal/observability/tracing"
	"github.com/smallbiznis/crewplan/internal/organization"
	organizationdomain "github.com/smallbiznis/crewplan/internal/organization/domain"
	"github.com/smallbiznis/crewplan/internal/project"
	projectdomain "github.com/smallbiznis/crewplan/internal/project/domain"
	"github.com/smallbiznis/crewplan/internal/providers/email"
	"github.com/smallbiznis/crewplan/internal/workspace"
	workspacedomain "github.com/smallbiznis/crewplan/internal/workspace/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	events.Module,
	auth.Module,
	email.Module,
	organization.Module,
	workspace.Module,
	project.Module,
	membership.Module,
	invitation.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(httpMetrics.Registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(log, httpMetrics)
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	authSvc         authdomain.Service
	organizationSvc organizationdomain.Service
	workspaceSvc    workspacedomain.Service
	projectSvc      projectdomain.Service
	membershipSvc   membershipdomain.Service
	invitationSvc   invitationdomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	AuthSvc         authdomain.Service
	OrganizationSvc organizationdomain.Service
	WorkspaceSvc    workspacedomain.Service
	ProjectSvc      projectdomain.Service
	MembershipSvc   membershipdomain.Service
	InvitationSvc   invitationdomain.Service
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		authSvc:         p.AuthSvc,
		organizationSvc: p.OrganizationSvc,
		workspaceSvc:    p.WorkspaceSvc,
		projectSvc:      p.ProjectSvc,
		membershipSvc:   p.MembershipSvc,
		invitationSvc:   p.InvitationSvc,
	}

	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/signup", s.Signup)
		authGroup.POST("/login", s.Login)
		authGroup.POST("/logout", s.AuthRequired(), s.Logout)
	}

	me := v1.Group("/me", s.AuthRequired())
	{
		me.GET("", s.Me)
		me.GET("/invitations", s.ListMyInvitations)
	}

	orgs := v1.Group("/organizations", s.AuthRequired())
	{
		orgs.POST("", s.CreateOrganization)
		orgs.GET("", s.ListOrganizations)
		orgs.GET("/:id", s.GetOrganization)

		orgs.POST("/:id/workspaces", s.CreateWorkspace)
		orgs.GET("/:id/workspaces", s.ListWorkspaces)

		orgs.POST("/:id/members", s.CreateOrganizationMember)
		orgs.GET("/:id/members", s.ListOrganizationMembers)
		orgs.PATCH("/:id/members/:memberId", s.UpdateOrganizationMember)
		orgs.DELETE("/:id/members/:memberId", s.RemoveOrganizationMember)

		orgs.GET("/:id/invitations", s.listEntityInvitations(invitationdomain.LevelOrganization))
	}

	workspaces := v1.Group("/workspaces", s.AuthRequired())
	{
		workspaces.GET("/:id", s.GetWorkspace)

		workspaces.POST("/:id/projects", s.CreateProject)
		workspaces.GET("/:id/projects", s.ListProjects)

		workspaces.POST("/:id/members", s.CreateWorkspaceMember)
		workspaces.GET("/:id/members", s.ListWorkspaceMembers)
		workspaces.PATCH("/:id/members/:memberId", s.UpdateWorkspaceMember)
		workspaces.DELETE("/:id/members/:memberId", s.RemoveWorkspaceMember)

		workspaces.GET("/:id/invitations", s.listEntityInvitations(invitationdomain.LevelWorkspace))
	}

	projects := v1.Group("/projects", s.AuthRequired())
	{
		projects.GET("/:id", s.GetProject)

		projects.POST("/:id/members", s.CreateProjectMember)
		projects.GET("/:id/members", s.ListProjectMembers)
		projects.PATCH("/:id/members/:memberId", s.UpdateProjectMember)
		projects.DELETE("/:id/members/:memberId", s.RemoveProjectMember)

		projects.GET("/:id/invitations", s.listEntityInvitations(invitationdomain.LevelProject))
	}

	invitations := v1.Group("/invitations")
	{
		invitations.GET("/verify", s.VerifyInvitation)

		invitations.POST("", s.AuthRequired(), s.CreateInvitation)
		invitations.POST("/accept", s.AuthRequired(), s.AcceptInvitation)
		invitations.POST("/decline", s.AuthRequired(), s.DeclineInvitation)
		invitations.POST("/:id/resend", s.AuthRequired(), s.ResendInvitation)
		invitations.DELETE("/:id", s.AuthRequired(), s.DeleteInvitation)
	}
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
