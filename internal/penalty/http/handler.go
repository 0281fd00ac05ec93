package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tistis/secure-booking/internal/auth"
	"github.com/tistis/secure-booking/internal/penalty"
	"github.com/tistis/secure-booking/internal/pkg/clock"
	"github.com/tistis/secure-booking/internal/pkg/request"
	"github.com/tistis/secure-booking/internal/pkg/response"
	"github.com/tistis/secure-booking/internal/policy"
)

type Handler struct {
	service penalty.Service
	clock   clock.Clock
	logger  *zap.Logger
}

func NewHandler(service penalty.Service, clk clock.Clock, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		clock:   clk,
		logger:  logger,
	}
}

// GET /v1/customers/:fingerprint/block
func (h *Handler) CheckBlock(c *gin.Context) {
	var uri request.ByFingerprintRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid fingerprint", err)
		return
	}

	res, err := h.service.CheckBlock(c.Request.Context(), auth.GetTenantID(c), uri.Fingerprint)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, NewCheckBlockResponse(res))
}

// GET /v1/customers/:fingerprint/penalties
func (h *Handler) ListPenalties(c *gin.Context) {
	var uri request.ByFingerprintRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid fingerprint", err)
		return
	}
	var params request.ListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	penalties, err := h.service.ListPenalties(c.Request.Context(), auth.GetTenantID(c), uri.Fingerprint)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	// The ledger per customer is short; page in memory.
	c.JSON(http.StatusOK, response.Paginate(penalties, params.Page, params.PageSize, NewPenaltyResponse))
}

// POST /v1/customers/:fingerprint/penalties
// Admin only. Used for manual fraud signals.
func (h *Handler) RecordPenalty(c *gin.Context) {
	var uri request.ByFingerprintRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid fingerprint", err)
		return
	}
	var body RecordPenaltyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	res, err := h.service.RecordPenalty(c.Request.Context(), penalty.RecordPenaltyRequest{
		TenantID:            auth.GetTenantID(c),
		Vertical:            policy.Vertical(body.Vertical),
		CustomerFingerprint: uri.Fingerprint,
		ViolationType:       penalty.ViolationType(body.ViolationType),
		RelatedHoldID:       body.RelatedHoldID,
	})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, RecordPenaltyResponse{
		PenaltyID:       res.PenaltyID,
		NewBlockCreated: res.NewBlockCreated,
		BlockExtended:   res.BlockExtended,
		BlockID:         res.BlockID,
	})
}

// POST /v1/blocks/:id/lift
func (h *Handler) LiftBlock(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid block id", err)
		return
	}

	b, err := h.service.LiftBlock(c.Request.Context(), auth.GetTenantID(c), req.ID, auth.GetUserID(c))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, NewBlockResponse(b, h.clock.Now()))
}
