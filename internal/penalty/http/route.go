package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers penalty and block routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, staffMiddleware, adminMiddleware gin.HandlerFunc) {
	customers := g.Group("/customers")
	customers.Use(authMiddleware)
	{
		customers.GET("/:fingerprint/block", staffMiddleware, h.CheckBlock)
		customers.GET("/:fingerprint/penalties", staffMiddleware, h.ListPenalties)
		customers.POST("/:fingerprint/penalties", adminMiddleware, h.RecordPenalty)
	}

	// === Admin Routes ===
	blocks := g.Group("/blocks")
	blocks.Use(authMiddleware, adminMiddleware)
	{
		blocks.POST("/:id/lift", h.LiftBlock)
	}
}
