package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	invitationdomain "github.com/smallbiznis/crewplan/internal/invitation/domain"
	membershipdomain "github.com/smallbiznis/crewplan/internal/membership/domain"
)

type createInvitationRequest struct {
	Email       string `json:"email" binding:"required"`
	Role        string `json:"role" binding:"required"`
	OrgID       string `json:"org_id"`
	WorkspaceID string `json:"workspace_id"`
	ProjectID   string `json:"project_id"`
}

type invitationTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

func (s *Server) CreateInvitation(c *gin.Context) {
	identity := currentIdentity(c)

	var req createInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	role, err := membershipdomain.ParseRole(req.Role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	orgID, err := optionalID(req.OrgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	workspaceID, err := optionalID(req.WorkspaceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	projectID, err := optionalID(req.ProjectID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.invitationSvc.Create(c.Request.Context(), invitationdomain.CreateInvitationRequest{
		Email:       req.Email,
		OrgID:       orgID,
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		Role:        role,
		InviterID:   identity.UserID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Server) AcceptInvitation(c *gin.Context) {
	identity := currentIdentity(c)

	var req invitationTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	invitation, err := s.invitationSvc.Accept(c.Request.Context(), req.Token, identity.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, invitation)
}

func (s *Server) DeclineInvitation(c *gin.Context) {
	identity := currentIdentity(c)

	var req invitationTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	invitation, err := s.invitationSvc.Decline(c.Request.Context(), req.Token, identity.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, invitation)
}

func (s *Server) VerifyInvitation(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.invitationSvc.Verify(c.Request.Context(), token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) ResendInvitation(c *gin.Context) {
	identity := currentIdentity(c)

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := s.invitationSvc.Resend(c.Request.Context(), id, identity.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) DeleteInvitation(c *gin.Context) {
	identity := currentIdentity(c)

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := s.invitationSvc.Delete(c.Request.Context(), id, identity.UserID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ListMyInvitations(c *gin.Context) {
	identity := currentIdentity(c)

	invitations, err := s.invitationSvc.ListForUser(c.Request.Context(), identity.Email)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invitations": invitations})
}

func (s *Server) listEntityInvitations(level invitationdomain.Level) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		invitations, err := s.invitationSvc.ListForEntity(c.Request.Context(), invitationdomain.Target{
			Level: level,
			ID:    id,
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"invitations": invitations})
	}
}

func optionalID(raw string) (*snowflake.ID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return nil, ErrInvalidRequest
	}
	return &id, nil
}
