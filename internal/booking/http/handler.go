package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tistis/secure-booking/internal/auth"
	"github.com/tistis/secure-booking/internal/booking"
	"github.com/tistis/secure-booking/internal/pkg/request"
	"github.com/tistis/secure-booking/internal/pkg/response"
)

type Handler struct {
	service booking.Service
	logger  *zap.Logger
}

func NewHandler(service booking.Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// GET /v1/bookings
func (h *Handler) List(c *gin.Context) {
	var req ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, h.logger, err)
		return
	}

	filter := booking.Filter{
		TenantID:            auth.GetTenantID(c),
		ResourceID:          req.ResourceID,
		CustomerFingerprint: req.CustomerFingerprint,
		Status:              req.Status,
		StartTime:           req.StartTimeFrom,
		EndTime:             req.StartTimeTo,
		Page:                req.Page,
		PageSize:            req.PageSize,
		SortBy:              req.SortBy,
		SortOrder:           req.SortOrder,
	}

	records, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	items := make([]BookingResponse, len(records))
	for i, b := range records {
		items[i] = NewBookingResponse(b)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

// GET /v1/bookings/:id
func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid booking id", err)
		return
	}

	b, err := h.service.GetByID(c.Request.Context(), auth.GetTenantID(c), req.ID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

// POST /v1/bookings/:id/outcome
func (h *Handler) RecordOutcome(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid booking id", err)
		return
	}
	var body RecordOutcomeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	res, err := h.service.RecordOutcome(c.Request.Context(), auth.GetTenantID(c), req.ID, booking.Outcome(body.Outcome))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, NewOutcomeResponse(res))
}
