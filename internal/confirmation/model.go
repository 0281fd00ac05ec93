package confirmation

import (
	"net/http"
	"time"

	"github.com/tistis/secure-booking/internal/pkg/apperror"
)

var (
	ErrNotFound            = apperror.New(http.StatusNotFound, "CONFIRMATION_NOT_FOUND", "confirmation not found")
	ErrHoldNotActive       = apperror.New(http.StatusConflict, "HOLD_NOT_ACTIVE", "hold is not active")
	ErrConfirmationPending = apperror.New(http.StatusConflict, "CONFIRMATION_PENDING", "a confirmation is already pending for this hold")
	ErrConfirmationExpired = apperror.New(http.StatusGone, "CONFIRMATION_EXPIRED", "the confirmation window has closed")
	ErrAlreadyResponded    = apperror.New(http.StatusConflict, "ALREADY_RESPONDED", "confirmation was already answered")
	ErrInvalidChannel      = apperror.New(http.StatusBadRequest, "INVALID_CHANNEL", "invalid confirmation channel")
	ErrInvalidResponse     = apperror.New(http.StatusBadRequest, "INVALID_RESPONSE", "response must be confirmed or declined")
	ErrInvalidRecipient    = apperror.New(http.StatusBadRequest, "INVALID_RECIPIENT", "a valid phone number is required for message channels")
	ErrUnrecognizedReply   = apperror.New(http.StatusUnprocessableEntity, "UNRECOGNIZED_REPLY", "reply was not understood")
	ErrNoPendingForSender  = apperror.New(http.StatusNotFound, "NO_PENDING_CONFIRMATION", "no pending confirmation for this sender")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDeclined  Status = "declined"
	StatusExpired   Status = "expired"
)

type Channel string

const (
	ChannelSMS       Channel = "sms_reply"
	ChannelWhatsApp  Channel = "whatsapp_reply"
	ChannelLinkClick Channel = "link_click"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelWhatsApp, ChannelLinkClick:
		return true
	}
	return false
}

// IsMessage reports whether the channel delivers to a phone number and accepts text replies.
func (c Channel) IsMessage() bool {
	return c == ChannelSMS || c == ChannelWhatsApp
}

// Response is the customer's answer to a pending confirmation.
type Response string

const (
	ResponseConfirmed Response = "confirmed"
	ResponseDeclined  Response = "declined"
)

func (r Response) Valid() bool {
	return r == ResponseConfirmed || r == ResponseDeclined
}

func (r Response) status() Status {
	if r == ResponseConfirmed {
		return StatusConfirmed
	}
	return StatusDeclined
}

type Confirmation struct {
	ID          string
	TenantID    string
	HoldID      string
	Channel     Channel
	Recipient   string // normalized phone digits; empty for link_click
	Status      Status
	SentAt      time.Time
	RespondedAt *time.Time
	ExpiresAt   time.Time
}

// StatusAt treats a pending confirmation past its expiry as expired before the sweep marks it.
func (c *Confirmation) StatusAt(now time.Time) Status {
	if c.Status == StatusPending && !now.Before(c.ExpiresAt) {
		return StatusExpired
	}
	return c.Status
}

type RequestInput struct {
	TenantID  string
	HoldID    string
	Channel   Channel
	Recipient string
}

// ReplyInput is an inbound free-text message from a messaging channel.
type ReplyInput struct {
	TenantID string
	Channel  Channel
	From     string
	Text     string
}

// Expired identifies a confirmation moved to expired by a sweep.
type Expired struct {
	ID       string
	TenantID string
	HoldID   string
}

// OutboundMessage is the command handed to a Sender after a confirmation is created.
type OutboundMessage struct {
	ConfirmationID string
	TenantID       string
	HoldID         string
	Channel        Channel
	Recipient      string
	Body           string
	ExpiresAt      time.Time
}
