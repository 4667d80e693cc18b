package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/crewplan/internal/auth/domain"
	invitationdomain "github.com/smallbiznis/crewplan/internal/invitation/domain"
	membershipdomain "github.com/smallbiznis/crewplan/internal/membership/domain"
	organizationdomain "github.com/smallbiznis/crewplan/internal/organization/domain"
	projectdomain "github.com/smallbiznis/crewplan/internal/project/domain"
	workspacedomain "github.com/smallbiznis/crewplan/internal/workspace/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
)

// ErrorHandlingMiddleware converts errors attached to the gin context into a
// JSON error response with the mapped status code.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionExpired):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isForbiddenError(err):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, membershipdomain.ErrAlreadyMember),
		errors.Is(err, authdomain.ErrUserExists):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}
	case errors.Is(err, invitationdomain.ErrEmailNotConfigured):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "email delivery is not configured",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, membershipdomain.ErrInvalidRole),
		errors.Is(err, membershipdomain.ErrOwnerImmutable),
		errors.Is(err, membershipdomain.ErrNotOrgMember),
		errors.Is(err, membershipdomain.ErrNotWorkspaceMember),
		errors.Is(err, organizationdomain.ErrInvalidName),
		errors.Is(err, organizationdomain.ErrInvalidUser),
		errors.Is(err, workspacedomain.ErrInvalidName),
		errors.Is(err, projectdomain.ErrInvalidName),
		errors.Is(err, invitationdomain.ErrSingleTarget),
		errors.Is(err, invitationdomain.ErrInvitationExpired),
		errors.Is(err, invitationdomain.ErrAlreadyProcessed),
		errors.Is(err, invitationdomain.ErrAlreadyDeclined),
		errors.Is(err, invitationdomain.ErrEmailMismatch),
		errors.Is(err, invitationdomain.ErrInvalidEmail),
		errors.Is(err, invitationdomain.ErrPendingExists),
		errors.Is(err, invitationdomain.ErrInviteeIsMember):
		return true
	default:
		return false
	}
}

func isForbiddenError(err error) bool {
	switch {
	case errors.Is(err, membershipdomain.ErrForbidden),
		errors.Is(err, workspacedomain.ErrForbidden),
		errors.Is(err, projectdomain.ErrForbidden),
		errors.Is(err, invitationdomain.ErrForbidden):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, organizationdomain.ErrNotFound),
		errors.Is(err, workspacedomain.ErrNotFound),
		errors.Is(err, projectdomain.ErrNotFound),
		errors.Is(err, invitationdomain.ErrNotFound),
		errors.Is(err, membershipdomain.ErrMemberNotFound),
		errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}
