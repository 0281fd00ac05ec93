package auth

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tistis/secure-booking/internal/pkg/response"
)

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, response.ErrorResponse{Error: message, Code: code})
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthRequired validates the bearer token and stores user, tenant and role on the context.
func AuthRequired(jwtManager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing Authorization header")
			return
		}

		tokenStr, ok := bearerToken(header)
		if !ok {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid Authorization header format")
			return
		}

		claims, err := jwtManager.ParseAndValidate(tokenStr)
		if err != nil {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxTenantID, claims.TenantID)
		c.Set(ctxRole, string(claims.Role))

		c.Next()
	}
}

// RequireRole ensures the authenticated user holds one of roles.
// It MUST be used after AuthRequired.
func RequireRole(roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetTenantID(c) == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
			return
		}
		if !slices.Contains(roles, GetRole(c)) {
			abort(c, http.StatusForbidden, "FORBIDDEN", "forbidden: insufficient role")
			return
		}
		c.Next()
	}
}
