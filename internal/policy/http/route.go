package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, staffMiddleware, adminMiddleware gin.HandlerFunc) {
	group := g.Group("/policies")
	group.Use(authMiddleware)
	{
		group.GET("/:vertical", staffMiddleware, h.Get)

		// === Admin Routes ===
		group.PUT("/:vertical", adminMiddleware, h.Put)
	}
}
