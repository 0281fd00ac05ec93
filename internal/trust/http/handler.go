package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tistis/secure-booking/internal/auth"
	"github.com/tistis/secure-booking/internal/pkg/request"
	"github.com/tistis/secure-booking/internal/pkg/response"
	"github.com/tistis/secure-booking/internal/policy"
	"github.com/tistis/secure-booking/internal/trust"
)

type Handler struct {
	service trust.Service
	logger  *zap.Logger
}

func NewHandler(service trust.Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// GET /v1/customers/:fingerprint/trust
func (h *Handler) Get(c *gin.Context) {
	var uri request.ByFingerprintRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid fingerprint", err)
		return
	}
	var query GetTrustQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	view, err := h.service.GetScore(c.Request.Context(), auth.GetTenantID(c), policy.Vertical(query.Vertical), uri.Fingerprint)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, NewTrustScoreResponse(view))
}
