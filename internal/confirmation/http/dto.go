package http

import (
	"time"

	"github.com/tistis/secure-booking/internal/confirmation"
)

type RequestConfirmationBody struct {
	Channel       string `json:"channel" binding:"required,oneof=sms_reply whatsapp_reply link_click"`
	CustomerPhone string `json:"customer_phone" binding:"required_unless=Channel link_click,max=32"`
}

type RecordResponseBody struct {
	Response string `json:"response" binding:"required,oneof=confirmed declined"`
}

// InboundReplyBody is posted by the messaging gateway for every customer reply.
type InboundReplyBody struct {
	TenantID string `json:"tenant_id" binding:"required,max=64"`
	Channel  string `json:"channel" binding:"required,oneof=sms_reply whatsapp_reply"`
	From     string `json:"from" binding:"required,max=32"`
	Text     string `json:"text" binding:"required,max=1600"`
}

type ConfirmationResponse struct {
	ID          string     `json:"id"`
	HoldID      string     `json:"hold_id"`
	Channel     string     `json:"channel"`
	Status      string     `json:"status"`
	SentAt      time.Time  `json:"sent_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
}

func NewConfirmationResponse(c *confirmation.Confirmation) ConfirmationResponse {
	return ConfirmationResponse{
		ID:          c.ID,
		HoldID:      c.HoldID,
		Channel:     string(c.Channel),
		Status:      string(c.Status),
		SentAt:      c.SentAt,
		RespondedAt: c.RespondedAt,
		ExpiresAt:   c.ExpiresAt,
	}
}
