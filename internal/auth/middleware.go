package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pulseboard/pulseboard/internal/logging"
)

const (
	// ContextKeyUser is the key for storing the authenticated user in gin context
	ContextKeyUser = "authUser"
	// ContextKeyOrgID is the key for storing the caller's organization ID
	ContextKeyOrgID = "authOrgID"
)

// Middleware resolves a bearer token to an admin user and attaches the user
// and organization ID to the request. Missing token, invalid token, and
// unknown user all collapse to the same generic 401 so callers cannot probe
// which accounts exist.
func Middleware(tokens *TokenManager, store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			unauthorized(c)
			return
		}

		userID, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			unauthorized(c)
			return
		}

		user, err := store.Get(c.Request.Context(), userID)
		if err != nil {
			unauthorized(c)
			return
		}

		c.Set(ContextKeyUser, user)
		c.Set(ContextKeyOrgID, user.OrganizationID)

		ctx := logging.WithOrgID(c.Request.Context(), user.OrganizationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   "unauthorized",
	})
}

// GetUser returns the authenticated user from context.
func GetUser(c *gin.Context) (*User, bool) {
	v, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil, false
	}
	return v.(*User), true
}

// GetOrgID returns the authenticated caller's organization ID, or "" when
// the request is unauthenticated.
func GetOrgID(c *gin.Context) string {
	v, exists := c.Get(ContextKeyOrgID)
	if !exists {
		return ""
	}
	return v.(string)
}
