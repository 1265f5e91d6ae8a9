package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/example/fieldserv/backend/internal/auth"
	"github.com/example/fieldserv/backend/internal/models"
)

const principalKey = "principal"

// authRequired verifies the bearer token and stores the resulting principal in
// the request context. Unauthenticated requests never reach the core.
func authRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		principal, err := auth.ParseToken(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

// requireRole gates a route group to one role.
func requireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if principalFrom(c).Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

func principalFrom(c *gin.Context) auth.Principal {
	v, _ := c.Get(principalKey)
	principal, _ := v.(auth.Principal)
	return principal
}
