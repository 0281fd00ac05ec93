package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tistis/secure-booking/internal/auth"
	bookingHttp "github.com/tistis/secure-booking/internal/booking/http"
	"github.com/tistis/secure-booking/internal/hold"
	"github.com/tistis/secure-booking/internal/pkg/fingerprint"
	"github.com/tistis/secure-booking/internal/pkg/request"
	"github.com/tistis/secure-booking/internal/pkg/response"
	"github.com/tistis/secure-booking/internal/policy"
)

const acquireRetries = 3

type Handler struct {
	service    hold.Service
	hasher     *fingerprint.Hasher
	logger     *zap.Logger
	newBackOff func() backoff.BackOff
}

func NewHandler(service hold.Service, hasher *fingerprint.Hasher, logger *zap.Logger) *Handler {
	return &Handler{
		service:    service,
		hasher:     hasher,
		logger:     logger,
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 400 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return backoff.WithMaxRetries(b, acquireRetries)
}

// acquire retries LOCK_TIMEOUT rejections. Conflicts and blocks are final.
func (h *Handler) acquire(ctx context.Context, req hold.AcquireRequest) (*hold.AcquireResult, error) {
	var res *hold.AcquireResult
	op := func() error {
		r, err := h.service.Acquire(ctx, req)
		if err != nil {
			return backoff.Permanent(err)
		}
		res = r
		if r.ErrorCode == hold.CodeLockTimeout {
			return hold.ErrLockTimeout
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		h.logger.Debug("retrying hold acquisition",
			zap.String("resource_id", req.ResourceID),
			zap.Duration("wait", wait),
		)
	}
	err := backoff.RetryNotify(op, backoff.WithContext(h.newBackOff(), ctx), notify)
	if err != nil && !errors.Is(err, hold.ErrLockTimeout) {
		return nil, err
	}
	return res, nil
}

// POST /v1/holds
func (h *Handler) Acquire(c *gin.Context) {
	var body AcquireHoldBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}
	if err := body.Validate(); err != nil {
		response.Error(c, h.logger, err)
		return
	}

	fp := body.CustomerFingerprint
	if body.CustomerPhone != "" {
		var err error
		fp, err = h.hasher.FromPhone(body.CustomerPhone)
		if err != nil {
			response.BadRequest(c, "invalid customer phone", err)
			return
		}
	}

	res, err := h.acquire(c.Request.Context(), hold.AcquireRequest{
		TenantID:            auth.GetTenantID(c),
		Vertical:            policy.Vertical(body.Vertical),
		ResourceID:          body.ResourceID,
		HoldType:            hold.Type(body.HoldType),
		WindowStart:         body.WindowStart,
		WindowEnd:           body.WindowEnd,
		CustomerFingerprint: fp,
		TTLMinutes:          body.TTLMinutes,
	})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if !res.Success {
		response.Error(c, h.logger, res.ErrorCode.Err())
		return
	}

	c.JSON(http.StatusCreated, NewHoldResponse(res.Hold))
}

// GET /v1/holds
func (h *Handler) List(c *gin.Context) {
	var req ListHoldsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	holds, total, err := h.service.List(c.Request.Context(), hold.Filter{
		TenantID:            auth.GetTenantID(c),
		ResourceID:          req.ResourceID,
		CustomerFingerprint: req.CustomerFingerprint,
		Status:              req.Status,
		Page:                req.Page,
		PageSize:            req.PageSize,
	})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	items := make([]HoldResponse, len(holds))
	for i, hd := range holds {
		items[i] = NewHoldResponse(hd)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

// GET /v1/holds/:id
func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid hold id", err)
		return
	}

	hd, err := h.service.Get(c.Request.Context(), auth.GetTenantID(c), req.ID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, NewHoldResponse(hd))
}

// POST /v1/holds/:id/extend
func (h *Handler) Extend(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid hold id", err)
		return
	}
	var body ExtendHoldBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	hd, err := h.service.Extend(c.Request.Context(), auth.GetTenantID(c), req.ID, body.AdditionalMinutes)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, NewHoldResponse(hd))
}

// POST /v1/holds/:id/release
func (h *Handler) Release(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid hold id", err)
		return
	}

	hd, err := h.service.Release(c.Request.Context(), auth.GetTenantID(c), req.ID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, NewHoldResponse(hd))
}

// POST /v1/holds/:id/convert
func (h *Handler) Convert(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid hold id", err)
		return
	}

	b, err := h.service.Convert(c.Request.Context(), auth.GetTenantID(c), req.ID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, bookingHttp.NewBookingResponse(b))
}
