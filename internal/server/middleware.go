package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/crewplan/internal/auth/domain"
)

const identityKey = "identity"

// AuthRequired authenticates the bearer session token and stores the caller's
// identity on the request context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		identity, err := s.authSvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func currentIdentity(c *gin.Context) *authdomain.Identity {
	value, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, ok := value.(*authdomain.Identity)
	if !ok {
		return nil
	}
	return identity
}
