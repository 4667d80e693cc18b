package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	projectdomain "github.com/smallbiznis/crewplan/internal/project/domain"
)

func (s *Server) GetWorkspace(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	workspace, err := s.workspaceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, workspace)
}

type createProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) CreateProject(c *gin.Context) {
	identity := currentIdentity(c)

	workspaceID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	project, err := s.projectSvc.Create(c.Request.Context(), identity.UserID, workspaceID, projectdomain.CreateProjectRequest{
		Name: req.Name,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, project)
}

func (s *Server) ListProjects(c *gin.Context) {
	workspaceID, ok := pathID(c, "id")
	if !ok {
		return
	}

	projects, err := s.projectSvc.ListByWorkspace(c.Request.Context(), workspaceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"projects": projects})
}
