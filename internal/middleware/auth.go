package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/service"
)

const identityKey = "current_identity"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (service.Identity, error)
}

// Auth resolves the bearer token to an identity. Every failure is reported
// with the same message.
func Auth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing token"})
			return
		}

		tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		identity, err := auth.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

func CurrentIdentity(c *gin.Context) (service.Identity, bool) {
	val, exists := c.Get(identityKey)
	if !exists {
		return service.Identity{}, false
	}
	identity, ok := val.(service.Identity)
	return identity, ok
}
