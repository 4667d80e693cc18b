package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/crewplan/internal/auth/domain"
)

type signupRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type sessionResponse struct {
	Token string      `json:"token"`
	User  userPayload `json:"user"`
}

func (s *Server) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.authSvc.Signup(c.Request.Context(), authdomain.SignupRequest{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toSessionResponse(result))
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.authSvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(result))
}

func (s *Server) Logout(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.authSvc.Logout(c.Request.Context(), token); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Me(c *gin.Context) {
	identity := currentIdentity(c)
	if identity == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, userPayload{
		ID:    identity.UserID.String(),
		Email: identity.Email,
		Name:  identity.Name,
	})
}

func toSessionResponse(result *authdomain.LoginResult) sessionResponse {
	return sessionResponse{
		Token: result.RawToken,
		User: userPayload{
			ID:    result.User.ID.String(),
			Email: result.User.Email,
			Name:  result.User.Name,
		},
	}
}
