package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	membershipdomain "github.com/smallbiznis/crewplan/internal/membership/domain"
)

type createMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required"`
}

type updateMemberRequest struct {
	Role string `json:"role" binding:"required"`
}

func (req createMemberRequest) parse() (snowflake.ID, membershipdomain.Role, error) {
	userID, err := snowflake.ParseString(req.UserID)
	if err != nil {
		return 0, "", ErrInvalidRequest
	}
	role, err := membershipdomain.ParseRole(req.Role)
	if err != nil {
		return 0, "", err
	}
	return userID, role, nil
}

// --- organization members ---

func (s *Server) CreateOrganizationMember(c *gin.Context) {
	identity := currentIdentity(c)

	orgID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req createMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	userID, role, err := req.parse()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	requesterID := identity.UserID
	member, err := s.membershipSvc.CreateOrganizationMember(c.Request.Context(), membershipdomain.CreateOrganizationMemberRequest{
		OrgID:       orgID,
		UserID:      userID,
		Role:        role,
		RequesterID: &requesterID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, member)
}

func (s *Server) UpdateOrganizationMember(c *gin.Context) {
	identity := currentIdentity(c)

	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}

	var req updateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	role, err := membershipdomain.ParseRole(req.Role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	member, err := s.membershipSvc.UpdateOrganizationMember(c.Request.Context(), memberID, role, identity.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, member)
}

func (s *Server) RemoveOrganizationMember(c *gin.Context) {
	identity := currentIdentity(c)

	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}

	if err := s.membershipSvc.RemoveOrganizationMember(c.Request.Context(), memberID, identity.UserID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ListOrganizationMembers(c *gin.Context) {
	orgID, ok := pathID(c, "id")
	if !ok {
		return
	}

	members, err := s.membershipSvc.ListOrganizationMembers(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

// --- workspace members ---

func (s *Server) CreateWorkspaceMember(c *gin.Context) {
	identity := currentIdentity(c)

	workspaceID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req createMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	userID, role, err := req.parse()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	requesterID := identity.UserID
	member, err := s.membershipSvc.CreateWorkspaceMember(c.Request.Context(), membershipdomain.CreateWorkspaceMemberRequest{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
		RequesterID: &requesterID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, member)
}

func (s *Server) UpdateWorkspaceMember(c *gin.Context) {
	identity := currentIdentity(c)

	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}

	var req updateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	role, err := membershipdomain.ParseRole(req.Role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	member, err := s.membershipSvc.UpdateWorkspaceMember(c.Request.Context(), memberID, role, identity.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, member)
}

func (s *Server) RemoveWorkspaceMember(c *gin.Context) {
	identity := currentIdentity(c)

	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}

	if err := s.membershipSvc.RemoveWorkspaceMember(c.Request.Context(), memberID, identity.UserID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ListWorkspaceMembers(c *gin.Context) {
	workspaceID, ok := pathID(c, "id")
	if !ok {
		return
	}

	members, err := s.membershipSvc.ListWorkspaceMembers(c.Request.Context(), workspaceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

// --- project members ---

func (s *Server) CreateProjectMember(c *gin.Context) {
	identity := currentIdentity(c)

	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req createMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	userID, role, err := req.parse()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	requesterID := identity.UserID
	member, err := s.membershipSvc.CreateProjectMember(c.Request.Context(), membershipdomain.CreateProjectMemberRequest{
		ProjectID:   projectID,
		UserID:      userID,
		Role:        role,
		RequesterID: &requesterID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, member)
}

func (s *Server) UpdateProjectMember(c *gin.Context) {
	identity := currentIdentity(c)

	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}

	var req updateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	role, err := membershipdomain.ParseRole(req.Role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	member, err := s.membershipSvc.UpdateProjectMember(c.Request.Context(), memberID, role, identity.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, member)
}

func (s *Server) RemoveProjectMember(c *gin.Context) {
	identity := currentIdentity(c)

	memberID, ok := pathID(c, "memberId")
	if !ok {
		return
	}

	if err := s.membershipSvc.RemoveProjectMember(c.Request.Context(), memberID, identity.UserID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ListProjectMembers(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	members, err := s.membershipSvc.ListProjectMembers(c.Request.Context(), projectID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}
