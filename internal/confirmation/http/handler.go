package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tistis/secure-booking/internal/auth"
	"github.com/tistis/secure-booking/internal/confirmation"
	"github.com/tistis/secure-booking/internal/pkg/request"
	"github.com/tistis/secure-booking/internal/pkg/response"
)

type Handler struct {
	service confirmation.Service
	logger  *zap.Logger
}

func NewHandler(service confirmation.Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// POST /v1/holds/:id/confirmations
func (h *Handler) Request(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid hold id", err)
		return
	}
	var body RequestConfirmationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	conf, err := h.service.Request(c.Request.Context(), confirmation.RequestInput{
		TenantID:  auth.GetTenantID(c),
		HoldID:    req.ID,
		Channel:   confirmation.Channel(body.Channel),
		Recipient: body.CustomerPhone,
	})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, NewConfirmationResponse(conf))
}

// GET /v1/confirmations/:id
func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid confirmation id", err)
		return
	}

	conf, err := h.service.Get(c.Request.Context(), auth.GetTenantID(c), req.ID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, NewConfirmationResponse(conf))
}

// POST /v1/confirmations/:id/response
func (h *Handler) RecordResponse(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid confirmation id", err)
		return
	}
	var body RecordResponseBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	conf, err := h.service.RecordResponse(c.Request.Context(), auth.GetTenantID(c), req.ID, confirmation.Response(body.Response))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, NewConfirmationResponse(conf))
}

// POST /v1/confirmations/inbound
// Called by the messaging gateway with a system token. The tenant comes from the body.
func (h *Handler) Inbound(c *gin.Context) {
	var body InboundReplyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	conf, err := h.service.RecordReply(c.Request.Context(), confirmation.ReplyInput{
		TenantID: body.TenantID,
		Channel:  confirmation.Channel(body.Channel),
		From:     body.From,
		Text:     body.Text,
	})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, NewConfirmationResponse(conf))
}
