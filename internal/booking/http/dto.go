package http

import (
	"time"

	"github.com/tistis/secure-booking/internal/booking"
	"github.com/tistis/secure-booking/internal/pkg/request"
)

// ListBookingsRequest defines query parameters for listing bookings.
type ListBookingsRequest struct {
	request.ListParams
	ResourceID          string     `form:"resource_id" binding:"omitempty,max=128"`
	CustomerFingerprint string     `form:"customer_fingerprint" binding:"omitempty,max=128"`
	Status              string     `form:"status" binding:"omitempty,oneof=confirmed completed cancelled no_show"`
	StartTimeFrom       *time.Time `form:"start_time_from" time_format:"2006-01-02T15:04:05Z07:00"`
	StartTimeTo         *time.Time `form:"start_time_to" time_format:"2006-01-02T15:04:05Z07:00"`
	SortBy              string     `form:"sort_by" binding:"omitempty,oneof=start_time end_time created_at status"`
	SortOrder           string     `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

// Validate performs custom validation for ListBookingsRequest.
func (r *ListBookingsRequest) Validate() error {
	if r.StartTimeFrom != nil && r.StartTimeTo != nil {
		if r.StartTimeFrom.After(*r.StartTimeTo) {
			return booking.ErrInvalidTimeRange
		}
	}
	return nil
}

type DepositResponse struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

type BookingResponse struct {
	ID                  string           `json:"id"`
	HoldID              string           `json:"hold_id"`
	Vertical            string           `json:"vertical"`
	ResourceID          string           `json:"resource_id"`
	CustomerFingerprint string           `json:"customer_fingerprint"`
	StartTime           time.Time        `json:"start_time"`
	EndTime             time.Time        `json:"end_time"`
	Status              string           `json:"status"`
	Deposit             *DepositResponse `json:"deposit,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

func NewBookingResponse(b *booking.Record) BookingResponse {
	resp := BookingResponse{
		ID:                  b.ID,
		HoldID:              b.HoldID,
		Vertical:            string(b.Vertical),
		ResourceID:          b.ResourceID,
		CustomerFingerprint: b.CustomerFingerprint,
		StartTime:           b.StartTime,
		EndTime:             b.EndTime,
		Status:              string(b.Status),
		CreatedAt:           b.CreatedAt,
		UpdatedAt:           b.UpdatedAt,
	}
	if b.DepositRequired {
		resp.Deposit = &DepositResponse{Type: string(b.DepositType), Value: b.DepositValue}
	}
	return resp
}

type RecordOutcomeBody struct {
	Outcome string `json:"outcome" binding:"required,oneof=completed cancelled no_show"`
}

type OutcomeResponse struct {
	Booking      BookingResponse `json:"booking"`
	LateCancel   bool            `json:"late_cancel"`
	PenaltyID    string          `json:"penalty_id,omitempty"`
	BlockCreated bool            `json:"block_created"`
	TrustScore   *int            `json:"trust_score,omitempty"`
}

func NewOutcomeResponse(r *booking.OutcomeResult) OutcomeResponse {
	return OutcomeResponse{
		Booking:      NewBookingResponse(r.Booking),
		LateCancel:   r.LateCancel,
		PenaltyID:    r.PenaltyID,
		BlockCreated: r.BlockCreated,
		TrustScore:   r.TrustScore,
	}
}
