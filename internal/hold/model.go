package hold

import (
	"net/http"
	"time"

	"github.com/tistis/secure-booking/internal/pkg/apperror"
	"github.com/tistis/secure-booking/internal/policy"
)

var (
	ErrHoldNotFound         = apperror.New(http.StatusNotFound, "HOLD_NOT_FOUND", "hold not found")
	ErrHoldAlreadyTerminal  = apperror.New(http.StatusConflict, "HOLD_ALREADY_TERMINAL", "hold is no longer active")
	ErrConfirmationRequired = apperror.New(http.StatusConflict, "CONFIRMATION_REQUIRED", "the customer has not confirmed this booking yet")
	ErrInvalidWindow        = apperror.New(http.StatusBadRequest, "INVALID_WINDOW", "window start must be before window end")
	ErrInvalidHoldType      = apperror.New(http.StatusBadRequest, "INVALID_HOLD_TYPE", "invalid hold type")
	ErrInvalidRequest       = apperror.New(http.StatusBadRequest, "INVALID_REQUEST", "resource and customer fingerprint are required")
	ErrInvalidExtension     = apperror.New(http.StatusBadRequest, "INVALID_EXTENSION", "extension must be a positive number of minutes")

	// Acquisition failures. Acquire reports these as result codes; handlers render them.
	ErrResourceConflict = apperror.New(http.StatusConflict, string(CodeResourceConflict), "this slot was just taken")
	ErrCustomerBlocked  = apperror.New(http.StatusForbidden, string(CodeCustomerBlocked), "this customer cannot book right now")
	ErrLockTimeout      = apperror.New(http.StatusServiceUnavailable, string(CodeLockTimeout), "the slot is busy, please try again")
)

type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusConverted Status = "converted"
	StatusReleased  Status = "released"
)

func (s Status) IsTerminal() bool {
	return s != StatusActive
}

type Type string

const (
	TypeTable           Type = "table"
	TypeAppointmentSlot Type = "appointment_slot"
	TypeDeliverySlot    Type = "delivery_slot"
)

func (t Type) Valid() bool {
	switch t {
	case TypeTable, TypeAppointmentSlot, TypeDeliverySlot:
		return true
	}
	return false
}

// ErrorCode discriminates a failed acquisition.
type ErrorCode string

const (
	CodeResourceConflict ErrorCode = "RESOURCE_CONFLICT"
	CodeCustomerBlocked  ErrorCode = "CUSTOMER_BLOCKED"
	CodeLockTimeout      ErrorCode = "LOCK_TIMEOUT"
)

// Err returns the user-facing error for a failure code.
func (c ErrorCode) Err() error {
	switch c {
	case CodeResourceConflict:
		return ErrResourceConflict
	case CodeCustomerBlocked:
		return ErrCustomerBlocked
	case CodeLockTimeout:
		return ErrLockTimeout
	}
	return nil
}

type Hold struct {
	ID                  string
	TenantID            string
	Vertical            policy.Vertical
	ResourceID          string
	HoldType            Type
	WindowStart         time.Time
	WindowEnd           time.Time
	Status              Status
	CustomerFingerprint string
	ExpiresAt           time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// StatusAt treats an active hold past its expiry as expired before the sweep marks it.
func (h *Hold) StatusAt(now time.Time) Status {
	if h.Status == StatusActive && !now.Before(h.ExpiresAt) {
		return StatusExpired
	}
	return h.Status
}

type AcquireRequest struct {
	TenantID            string
	Vertical            policy.Vertical
	ResourceID          string
	HoldType            Type
	WindowStart         time.Time
	WindowEnd           time.Time
	CustomerFingerprint string
	TTLMinutes          int // 0 uses the policy hold_ttl_minutes
}

// AcquireResult carries routine rejections as values. Hold is set only on success.
type AcquireResult struct {
	Success   bool
	Hold      *Hold
	ErrorCode ErrorCode
}

type Filter struct {
	TenantID            string
	ResourceID          string
	CustomerFingerprint string
	Status              string
	Page                int
	PageSize            int
}
