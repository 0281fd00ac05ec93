package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, staffMiddleware gin.HandlerFunc) {
	group := g.Group("/holds")

	// === Staff Routes ===
	group.Use(authMiddleware, staffMiddleware)
	{
		group.POST("", h.Acquire)
		group.GET("", h.List)
		group.GET("/:id", h.Get)
		group.POST("/:id/extend", h.Extend)
		group.POST("/:id/release", h.Release)
		group.POST("/:id/convert", h.Convert)
	}
}
