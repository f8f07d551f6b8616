package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"breederhub/api/internal/models"
	"breederhub/api/internal/services"
	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyPrincipal holds the authenticated *models.Principal in Gin context.
	ContextKeyPrincipal = "principal"
)

// AuthMiddleware creates a Gin middleware that resolves the bearer token to a principal.
// Requests without a valid session are rejected with 401.
func AuthMiddleware(identity services.IIdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		principal, err := identity.ResolveCurrentUser(c.Request.Context(), parts[1])
		if err != nil {
			abortAuth(c, err)
			return
		}

		c.Set(ContextKeyPrincipal, principal)
		c.Next()
	}
}

// OptionalAuthMiddleware resolves the principal when a token is present and otherwise lets the
// request through as a guest. A bad token is treated as no token.
func OptionalAuthMiddleware(identity services.IIdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			principal, err := identity.ResolveCurrentUser(c.Request.Context(), authHeader)
			if err == nil {
				c.Set(ContextKeyPrincipal, principal)
			} else {
				log.Printf("DEBUG: ignoring optional auth token on %s: %v", c.FullPath(), err)
			}
		}
		c.Next()
	}
}

// AdminMiddleware creates a Gin middleware to check for admin privileges.
// Assumes AuthMiddleware runs first.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := CurrentPrincipal(c)
		if !ok || !principal.Role.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Administrator privileges required"})
			return
		}
		c.Next()
	}
}

// CurrentPrincipal returns the principal stored by the auth middlewares.
func CurrentPrincipal(c *gin.Context) (*models.Principal, bool) {
	v, exists := c.Get(ContextKeyPrincipal)
	if !exists {
		return nil, false
	}
	principal, ok := v.(*models.Principal)
	return principal, ok && principal != nil
}

func abortAuth(c *gin.Context, err error) {
	if errors.Is(err, services.ErrUnauthenticated) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": services.PublicMessage(err)})
		return
	}
	log.Printf("ERROR: resolving session: %v", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify session"})
}
