package booking

import (
	"net/http"
	"time"

	"github.com/tistis/secure-booking/internal/pkg/apperror"
	"github.com/tistis/secure-booking/internal/policy"
)

var (
	ErrNotFound         = apperror.New(http.StatusNotFound, "BOOKING_NOT_FOUND", "booking not found")
	ErrAlreadyExists    = apperror.New(http.StatusConflict, "BOOKING_EXISTS", "hold was already converted")
	ErrInvalidOutcome   = apperror.New(http.StatusBadRequest, "INVALID_BOOKING_OUTCOME", "invalid booking outcome")
	ErrAlreadyFinalized = apperror.New(http.StatusConflict, "BOOKING_FINALIZED", "booking outcome was already recorded")
	ErrInvalidTimeRange = apperror.New(http.StatusBadRequest, "INVALID_TIME_RANGE", "start time must be before end time")
	ErrOutcomeTooEarly  = apperror.New(http.StatusBadRequest, "OUTCOME_TOO_EARLY", "booking has not started yet")
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// Outcome is what actually happened to a confirmed booking.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeNoShow    Outcome = "no_show"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeCompleted, OutcomeCancelled, OutcomeNoShow:
		return true
	}
	return false
}

func (o Outcome) status() Status {
	switch o {
	case OutcomeCompleted:
		return StatusCompleted
	case OutcomeCancelled:
		return StatusCancelled
	}
	return StatusNoShow
}

// Record is the firm booking written exactly once per converted hold.
type Record struct {
	ID                  string
	TenantID            string
	HoldID              string
	Vertical            policy.Vertical
	ResourceID          string
	CustomerFingerprint string
	StartTime           time.Time
	EndTime             time.Time
	Status              Status
	DepositRequired     bool
	DepositType         policy.DepositType
	DepositValue        float64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type Filter struct {
	TenantID            string
	ResourceID          string
	CustomerFingerprint string
	Status              string
	StartTime           *time.Time // Filter bookings ending after this time
	EndTime             *time.Time // Filter bookings starting before this time
	Page                int
	PageSize            int
	SortBy              string
	SortOrder           string
}

// OutcomeResult reports how a recorded outcome was routed.
type OutcomeResult struct {
	Booking      *Record
	LateCancel   bool
	PenaltyID    string
	BlockCreated bool
	TrustScore   *int
}
