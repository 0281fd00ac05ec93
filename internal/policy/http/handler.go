package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tistis/secure-booking/internal/auth"
	"github.com/tistis/secure-booking/internal/pkg/response"
	"github.com/tistis/secure-booking/internal/policy"
)

type Handler struct {
	service policy.Service
	logger  *zap.Logger
}

func NewHandler(service policy.Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// GET /v1/policies/:vertical
func (h *Handler) Get(c *gin.Context) {
	var req ByVerticalRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid vertical", err)
		return
	}

	p, err := h.service.GetPolicy(c.Request.Context(), auth.GetTenantID(c), policy.Vertical(req.Vertical))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, NewPolicyResponse(p))
}

// PUT /v1/policies/:vertical
func (h *Handler) Put(c *gin.Context) {
	var req ByVerticalRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid vertical", err)
		return
	}
	var body PolicyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	p, err := h.service.Save(c.Request.Context(), body.toPolicy(auth.GetTenantID(c), policy.Vertical(req.Vertical)))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	h.logger.Info("booking policy updated",
		zap.String("tenant_id", p.TenantID),
		zap.String("vertical", string(p.Vertical)),
		zap.String("user_id", auth.GetUserID(c)),
	)
	c.JSON(http.StatusOK, NewPolicyResponse(p))
}
