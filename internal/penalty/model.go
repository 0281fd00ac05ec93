package penalty

import (
	"net/http"
	"time"

	"github.com/tistis/secure-booking/internal/pkg/apperror"
	"github.com/tistis/secure-booking/internal/policy"
)

var (
	ErrInvalidViolation   = apperror.New(http.StatusBadRequest, "INVALID_VIOLATION", "invalid violation type")
	ErrInvalidFingerprint = apperror.New(http.StatusBadRequest, "INVALID_PENALTY_FINGERPRINT", "customer fingerprint is required")
	ErrBlockNotFound      = apperror.New(http.StatusNotFound, "BLOCK_NOT_FOUND", "block not found")
	ErrCustomerBusy       = apperror.New(http.StatusServiceUnavailable, "CUSTOMER_BUSY", "customer record is busy, try again")
)

type ViolationType string

const (
	ViolationNoShow      ViolationType = "no_show"
	ViolationLateCancel  ViolationType = "late_cancel"
	ViolationFraudSignal ViolationType = "fraud_signal"
)

func (v ViolationType) Valid() bool {
	switch v {
	case ViolationNoShow, ViolationLateCancel, ViolationFraudSignal:
		return true
	}
	return false
}

type BlockReason string

const (
	ReasonRepeatedNoShow     BlockReason = "repeated_no_show"
	ReasonRepeatedLateCancel BlockReason = "repeated_late_cancel"
	ReasonFraud              BlockReason = "fraud"
	ReasonLowTrustScore      BlockReason = "low_trust_score"
)

type BlockStatus string

const (
	BlockActive  BlockStatus = "active"
	BlockExpired BlockStatus = "expired"
	BlockLifted  BlockStatus = "lifted"
)

// Penalty is one immutable violation entry.
type Penalty struct {
	ID                  string
	TenantID            string
	CustomerFingerprint string
	ViolationType       ViolationType
	Weight              int
	OccurredAt          time.Time
	RelatedHoldID       *string
}

// Block denies new holds to a customer. A nil BlockedUntil means permanent.
type Block struct {
	ID                   string
	TenantID             string
	CustomerFingerprint  string
	Reason               BlockReason
	BlockedUntil         *time.Time
	CreatedFromPenaltyID *string
	LiftedAt             *time.Time
	LiftedBy             *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// StatusAt is the only place block state is derived from its timestamps.
func (b *Block) StatusAt(now time.Time) BlockStatus {
	if b.LiftedAt != nil {
		return BlockLifted
	}
	if b.BlockedUntil != nil && !now.Before(*b.BlockedUntil) {
		return BlockExpired
	}
	return BlockActive
}

func (b *Block) IsActive(now time.Time) bool {
	return b.StatusAt(now) == BlockActive
}

func (b *Block) IsPermanent() bool {
	return b.BlockedUntil == nil
}

type RecordPenaltyRequest struct {
	TenantID            string
	Vertical            policy.Vertical
	CustomerFingerprint string
	ViolationType       ViolationType
	RelatedHoldID       string
	// Policy is used instead of loading the tenant's policy when set.
	Policy *policy.VerticalBookingPolicy
}

type RecordPenaltyResult struct {
	PenaltyID       string
	NewBlockCreated bool
	BlockExtended   bool
	BlockID         string
}

type BlockCheckResult struct {
	Blocked bool
	Block   *Block
	Reason  BlockReason
}
