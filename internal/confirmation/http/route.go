package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, staffMiddleware, systemMiddleware gin.HandlerFunc) {
	g.POST("/holds/:id/confirmations", authMiddleware, staffMiddleware, h.Request)

	group := g.Group("/confirmations")
	group.Use(authMiddleware)
	{
		group.POST("/inbound", systemMiddleware, h.Inbound)
		group.GET("/:id", staffMiddleware, h.Get)
		group.POST("/:id/response", staffMiddleware, h.RecordResponse)
	}
}
