package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers trust score routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, staffMiddleware gin.HandlerFunc) {
	group := g.Group("/customers")

	// === Staff Routes ===
	group.Use(authMiddleware, staffMiddleware)
	{
		group.GET("/:fingerprint/trust", h.Get)
	}
}
