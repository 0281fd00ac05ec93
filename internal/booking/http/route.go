package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, staffMiddleware gin.HandlerFunc) {
	group := g.Group("/bookings")

	// === Staff Routes ===
	group.Use(authMiddleware, staffMiddleware)
	{
		group.GET("", h.List)
		group.GET("/:id", h.Get)
		group.POST("/:id/outcome", h.RecordOutcome)
	}
}
