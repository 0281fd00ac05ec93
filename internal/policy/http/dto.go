package http

import (
	"time"

	"github.com/tistis/secure-booking/internal/policy"
)

type ByVerticalRequest struct {
	Vertical string `uri:"vertical" binding:"required,oneof=restaurant dental retail general"`
}

type DeltasBody struct {
	Completed      int `json:"completed" binding:"min=0,max=100"`
	CancelledEarly int `json:"cancelled_early" binding:"min=-100,max=100"`
	CancelledLate  int `json:"cancelled_late" binding:"min=-100,max=0"`
	NoShow         int `json:"no_show" binding:"min=-100,max=0"`
	FraudSignal    int `json:"fraud_signal" binding:"min=-100,max=0"`
}

// PolicyBody replaces the tenant's policy for one vertical.
type PolicyBody struct {
	RequiresConfirmation       bool       `json:"requires_confirmation"`
	ConfirmationTimeoutMinutes int        `json:"confirmation_timeout_minutes" binding:"min=0,max=10080"`
	HoldTTLMinutes             int        `json:"hold_ttl_minutes" binding:"required,min=1,max=1440"`
	NoShowPenaltyWeight        int        `json:"no_show_penalty_weight" binding:"min=0"`
	LateCancelPenaltyWeight    int        `json:"late_cancel_penalty_weight" binding:"min=0"`
	FraudPenaltyWeight         int        `json:"fraud_penalty_weight" binding:"min=0"`
	BlockThresholdScore        int        `json:"block_threshold_score" binding:"required,min=1"`
	BlockDurationHours         int        `json:"block_duration_hours" binding:"required,min=1"`
	PenaltyWindowDays          int        `json:"penalty_window_days" binding:"required,min=1"`
	FraudBlockPermanent        bool       `json:"fraud_block_permanent"`
	MinTrustScore              int        `json:"min_trust_score" binding:"min=0,max=100"`
	LateCancelWindowHours      int        `json:"late_cancel_window_hours" binding:"min=0"`
	ScoreDecayDays             int        `json:"score_decay_days" binding:"required,min=1"`
	ScoreDeltas                DeltasBody `json:"score_deltas"`
	RequiresDeposit            bool       `json:"requires_deposit"`
	DepositType                string     `json:"deposit_type" binding:"omitempty,oneof=fixed percentage"`
	DepositValue               float64    `json:"deposit_value" binding:"min=0"`
}

func (b *PolicyBody) toPolicy(tenantID string, vertical policy.Vertical) *policy.VerticalBookingPolicy {
	return &policy.VerticalBookingPolicy{
		TenantID:                   tenantID,
		Vertical:                   vertical,
		RequiresConfirmation:       b.RequiresConfirmation,
		ConfirmationTimeoutMinutes: b.ConfirmationTimeoutMinutes,
		HoldTTLMinutes:             b.HoldTTLMinutes,
		NoShowPenaltyWeight:        b.NoShowPenaltyWeight,
		LateCancelPenaltyWeight:    b.LateCancelPenaltyWeight,
		FraudPenaltyWeight:         b.FraudPenaltyWeight,
		BlockThresholdScore:        b.BlockThresholdScore,
		BlockDurationHours:         b.BlockDurationHours,
		PenaltyWindowDays:          b.PenaltyWindowDays,
		FraudBlockPermanent:        b.FraudBlockPermanent,
		MinTrustScore:              b.MinTrustScore,
		LateCancelWindowHours:      b.LateCancelWindowHours,
		ScoreDecayDays:             b.ScoreDecayDays,
		ScoreDeltas: policy.OutcomeDeltas{
			Completed:      b.ScoreDeltas.Completed,
			CancelledEarly: b.ScoreDeltas.CancelledEarly,
			CancelledLate:  b.ScoreDeltas.CancelledLate,
			NoShow:         b.ScoreDeltas.NoShow,
			FraudSignal:    b.ScoreDeltas.FraudSignal,
		},
		RequiresDeposit: b.RequiresDeposit,
		DepositType:     policy.DepositType(b.DepositType),
		DepositValue:    b.DepositValue,
	}
}

type PolicyResponse struct {
	Vertical                   string               `json:"vertical"`
	RequiresConfirmation       bool                 `json:"requires_confirmation"`
	ConfirmationTimeoutMinutes int                  `json:"confirmation_timeout_minutes"`
	HoldTTLMinutes             int                  `json:"hold_ttl_minutes"`
	NoShowPenaltyWeight        int                  `json:"no_show_penalty_weight"`
	LateCancelPenaltyWeight    int                  `json:"late_cancel_penalty_weight"`
	FraudPenaltyWeight         int                  `json:"fraud_penalty_weight"`
	BlockThresholdScore        int                  `json:"block_threshold_score"`
	BlockDurationHours         int                  `json:"block_duration_hours"`
	PenaltyWindowDays          int                  `json:"penalty_window_days"`
	FraudBlockPermanent        bool                 `json:"fraud_block_permanent"`
	MinTrustScore              int                  `json:"min_trust_score"`
	LateCancelWindowHours      int                  `json:"late_cancel_window_hours"`
	ScoreDecayDays             int                  `json:"score_decay_days"`
	ScoreDeltas                policy.OutcomeDeltas `json:"score_deltas"`
	RequiresDeposit            bool                 `json:"requires_deposit"`
	DepositType                string               `json:"deposit_type,omitempty"`
	DepositValue               float64              `json:"deposit_value,omitempty"`
	IsDefault                  bool                 `json:"is_default"`
	UpdatedAt                  *time.Time           `json:"updated_at,omitempty"`
}

func NewPolicyResponse(p *policy.VerticalBookingPolicy) PolicyResponse {
	resp := PolicyResponse{
		Vertical:                   string(p.Vertical),
		RequiresConfirmation:       p.RequiresConfirmation,
		ConfirmationTimeoutMinutes: p.ConfirmationTimeoutMinutes,
		HoldTTLMinutes:             p.HoldTTLMinutes,
		NoShowPenaltyWeight:        p.NoShowPenaltyWeight,
		LateCancelPenaltyWeight:    p.LateCancelPenaltyWeight,
		FraudPenaltyWeight:         p.FraudPenaltyWeight,
		BlockThresholdScore:        p.BlockThresholdScore,
		BlockDurationHours:         p.BlockDurationHours,
		PenaltyWindowDays:          p.PenaltyWindowDays,
		FraudBlockPermanent:        p.FraudBlockPermanent,
		MinTrustScore:              p.MinTrustScore,
		LateCancelWindowHours:      p.LateCancelWindowHours,
		ScoreDecayDays:             p.ScoreDecayDays,
		ScoreDeltas:                p.ScoreDeltas,
		RequiresDeposit:            p.RequiresDeposit,
		DepositType:                string(p.DepositType),
		DepositValue:               p.DepositValue,
		IsDefault:                  p.UpdatedAt.IsZero(),
	}
	if !p.UpdatedAt.IsZero() {
		updated := p.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}
