package http

import (
	"time"

	"github.com/tistis/secure-booking/internal/hold"
	"github.com/tistis/secure-booking/internal/pkg/request"
)

// AcquireHoldBody identifies the customer by raw phone or by a precomputed fingerprint.
type AcquireHoldBody struct {
	Vertical            string    `json:"vertical" binding:"omitempty,oneof=restaurant dental retail general"`
	ResourceID          string    `json:"resource_id" binding:"required,max=128"`
	HoldType            string    `json:"hold_type" binding:"required,oneof=table appointment_slot delivery_slot"`
	WindowStart         time.Time `json:"window_start" binding:"required"`
	WindowEnd           time.Time `json:"window_end" binding:"required"`
	CustomerPhone       string    `json:"customer_phone" binding:"required_without=CustomerFingerprint,max=32"`
	CustomerFingerprint string    `json:"customer_fingerprint" binding:"omitempty,max=128"`
	TTLMinutes          int       `json:"ttl_minutes" binding:"omitempty,min=1,max=1440"`
}

// Validate performs custom validation for AcquireHoldBody.
func (b *AcquireHoldBody) Validate() error {
	if !b.WindowStart.Before(b.WindowEnd) {
		return hold.ErrInvalidWindow
	}
	return nil
}

type ListHoldsRequest struct {
	request.ListParams
	ResourceID          string `form:"resource_id" binding:"omitempty,max=128"`
	CustomerFingerprint string `form:"customer_fingerprint" binding:"omitempty,max=128"`
	Status              string `form:"status" binding:"omitempty,oneof=active expired converted released"`
}

type ExtendHoldBody struct {
	AdditionalMinutes int `json:"additional_minutes" binding:"required,min=1,max=1440"`
}

type HoldResponse struct {
	ID                  string    `json:"id"`
	Vertical            string    `json:"vertical"`
	ResourceID          string    `json:"resource_id"`
	HoldType            string    `json:"hold_type"`
	WindowStart         time.Time `json:"window_start"`
	WindowEnd           time.Time `json:"window_end"`
	Status              string    `json:"status"`
	CustomerFingerprint string    `json:"customer_fingerprint"`
	ExpiresAt           time.Time `json:"expires_at"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func NewHoldResponse(h *hold.Hold) HoldResponse {
	return HoldResponse{
		ID:                  h.ID,
		Vertical:            string(h.Vertical),
		ResourceID:          h.ResourceID,
		HoldType:            string(h.HoldType),
		WindowStart:         h.WindowStart,
		WindowEnd:           h.WindowEnd,
		Status:              string(h.Status),
		CustomerFingerprint: h.CustomerFingerprint,
		ExpiresAt:           h.ExpiresAt,
		CreatedAt:           h.CreatedAt,
		UpdatedAt:           h.UpdatedAt,
	}
}
