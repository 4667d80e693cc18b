package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetProject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	project, err := s.projectSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, project)
}
