package policy

import (
	"net/http"
	"time"

	"github.com/tistis/secure-booking/internal/pkg/apperror"
)

var (
	ErrNotFound        = apperror.New(http.StatusNotFound, "POLICY_NOT_FOUND", "booking policy not found")
	ErrInvalidVertical = apperror.New(http.StatusBadRequest, "INVALID_VERTICAL", "unknown business vertical")
	ErrInvalidPolicy   = apperror.New(http.StatusBadRequest, "INVALID_POLICY", "booking policy values are out of range")
)

// Vertical is a business-type category used to parameterize policy defaults.
type Vertical string

const (
	VerticalRestaurant Vertical = "restaurant"
	VerticalDental     Vertical = "dental"
	VerticalRetail     Vertical = "retail"
	VerticalGeneral    Vertical = "general"
)

// Valid reports whether v is a known vertical.
func (v Vertical) Valid() bool {
	switch v {
	case VerticalRestaurant, VerticalDental, VerticalRetail, VerticalGeneral:
		return true
	}
	return false
}

type DepositType string

const (
	DepositNone       DepositType = ""
	DepositFixed      DepositType = "fixed"
	DepositPercentage DepositType = "percentage"
)

// OutcomeDeltas are the signed trust score adjustments applied per booking outcome.
type OutcomeDeltas struct {
	Completed      int `json:"completed"`
	CancelledEarly int `json:"cancelled_early"`
	CancelledLate  int `json:"cancelled_late"`
	NoShow         int `json:"no_show"`
	FraudSignal    int `json:"fraud_signal"`
}

// VerticalBookingPolicy parameterizes holds, confirmations, trust scoring and blocking
// for one tenant and vertical.
type VerticalBookingPolicy struct {
	TenantID string
	Vertical Vertical

	RequiresConfirmation       bool
	ConfirmationTimeoutMinutes int
	HoldTTLMinutes             int

	NoShowPenaltyWeight     int
	LateCancelPenaltyWeight int
	FraudPenaltyWeight      int
	BlockThresholdScore     int
	BlockDurationHours      int
	PenaltyWindowDays       int
	FraudBlockPermanent     bool
	MinTrustScore           int // 0 disables trust-based blocking
	LateCancelWindowHours   int

	ScoreDecayDays int
	ScoreDeltas    OutcomeDeltas

	RequiresDeposit bool
	DepositType     DepositType
	DepositValue    float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *VerticalBookingPolicy) HoldTTL() time.Duration {
	return time.Duration(p.HoldTTLMinutes) * time.Minute
}

func (p *VerticalBookingPolicy) ConfirmationTimeout() time.Duration {
	return time.Duration(p.ConfirmationTimeoutMinutes) * time.Minute
}

func (p *VerticalBookingPolicy) BlockDuration() time.Duration {
	return time.Duration(p.BlockDurationHours) * time.Hour
}

func (p *VerticalBookingPolicy) PenaltyWindow() time.Duration {
	return time.Duration(p.PenaltyWindowDays) * 24 * time.Hour
}

func (p *VerticalBookingPolicy) LateCancelWindow() time.Duration {
	return time.Duration(p.LateCancelWindowHours) * time.Hour
}

func (p *VerticalBookingPolicy) ScoreDecay() time.Duration {
	return time.Duration(p.ScoreDecayDays) * 24 * time.Hour
}

// Validate checks that every duration and weight is usable.
func (p *VerticalBookingPolicy) Validate() error {
	if !p.Vertical.Valid() {
		return ErrInvalidVertical
	}
	switch {
	case p.HoldTTLMinutes <= 0,
		p.RequiresConfirmation && p.ConfirmationTimeoutMinutes <= 0,
		p.ConfirmationTimeoutMinutes < 0,
		p.NoShowPenaltyWeight < 0,
		p.LateCancelPenaltyWeight < 0,
		p.FraudPenaltyWeight < 0,
		p.BlockThresholdScore <= 0,
		p.BlockDurationHours <= 0,
		p.PenaltyWindowDays <= 0,
		p.MinTrustScore < 0 || p.MinTrustScore > 100,
		p.LateCancelWindowHours < 0,
		p.ScoreDecayDays <= 0:
		return ErrInvalidPolicy
	}
	if p.RequiresDeposit {
		if p.DepositType != DepositFixed && p.DepositType != DepositPercentage {
			return ErrInvalidPolicy
		}
		if p.DepositValue <= 0 || (p.DepositType == DepositPercentage && p.DepositValue > 100) {
			return ErrInvalidPolicy
		}
	}
	return nil
}

var defaultDeltas = OutcomeDeltas{
	Completed:      3,
	CancelledEarly: 0,
	CancelledLate:  -8,
	NoShow:         -20,
	FraudSignal:    -50,
}

// DefaultFor returns the built-in policy for a vertical. Unknown verticals get the general policy.
func DefaultFor(tenantID string, v Vertical) VerticalBookingPolicy {
	p := VerticalBookingPolicy{
		TenantID:                   tenantID,
		Vertical:                   VerticalGeneral,
		RequiresConfirmation:       false,
		ConfirmationTimeoutMinutes: 60,
		HoldTTLMinutes:             15,
		NoShowPenaltyWeight:        35,
		LateCancelPenaltyWeight:    10,
		FraudPenaltyWeight:         100,
		BlockThresholdScore:        100,
		BlockDurationHours:         30 * 24,
		PenaltyWindowDays:          30,
		FraudBlockPermanent:        true,
		LateCancelWindowHours:      2,
		ScoreDecayDays:             90,
		ScoreDeltas:                defaultDeltas,
	}

	switch v {
	case VerticalRestaurant:
		p.Vertical = VerticalRestaurant
		p.RequiresConfirmation = true
		p.ConfirmationTimeoutMinutes = 120
		p.HoldTTLMinutes = 10
	case VerticalDental:
		p.Vertical = VerticalDental
		p.RequiresConfirmation = true
		p.ConfirmationTimeoutMinutes = 24 * 60
		p.HoldTTLMinutes = 30
		p.LateCancelWindowHours = 24
		p.NoShowPenaltyWeight = 50
		p.RequiresDeposit = true
		p.DepositType = DepositPercentage
		p.DepositValue = 20
	case VerticalRetail:
		p.Vertical = VerticalRetail
		p.HoldTTLMinutes = 10
		p.LateCancelWindowHours = 1
		p.BlockDurationHours = 7 * 24
	}
	return p
}
