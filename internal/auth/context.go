package auth

import "github.com/gin-gonic/gin"

const (
	ctxUserID   = "userID"
	ctxTenantID = "tenantID"
	ctxRole     = "role"
)

// GetUserID returns the authenticated user's ID or empty string.
func GetUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// GetTenantID returns the tenant the authenticated user acts for, or empty string.
func GetTenantID(c *gin.Context) string {
	return c.GetString(ctxTenantID)
}

// GetRole returns the authenticated user's role.
func GetRole(c *gin.Context) Role {
	return Role(c.GetString(ctxRole))
}
