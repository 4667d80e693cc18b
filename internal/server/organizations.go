package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	organizationdomain "github.com/smallbiznis/crewplan/internal/organization/domain"
	workspacedomain "github.com/smallbiznis/crewplan/internal/workspace/domain"
)

type createOrganizationRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) CreateOrganization(c *gin.Context) {
	identity := currentIdentity(c)

	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	org, err := s.organizationSvc.Create(c.Request.Context(), identity.UserID, organizationdomain.CreateOrganizationRequest{
		Name: req.Name,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, org)
}

func (s *Server) GetOrganization(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	org, err := s.organizationSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, org)
}

func (s *Server) ListOrganizations(c *gin.Context) {
	identity := currentIdentity(c)

	orgs, err := s.organizationSvc.ListByUser(c.Request.Context(), identity.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"organizations": orgs})
}

type createWorkspaceRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) CreateWorkspace(c *gin.Context) {
	identity := currentIdentity(c)

	orgID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req createWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	workspace, err := s.workspaceSvc.Create(c.Request.Context(), identity.UserID, orgID, workspacedomain.CreateWorkspaceRequest{
		Name: req.Name,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, workspace)
}

func (s *Server) ListWorkspaces(c *gin.Context) {
	orgID, ok := pathID(c, "id")
	if !ok {
		return
	}

	workspaces, err := s.workspaceSvc.ListByOrg(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"workspaces": workspaces})
}
