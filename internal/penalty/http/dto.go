package http

import (
	"time"

	"github.com/tistis/secure-booking/internal/penalty"
)

type RecordPenaltyBody struct {
	Vertical      string `json:"vertical" binding:"required,oneof=restaurant dental retail general"`
	ViolationType string `json:"violation_type" binding:"required,oneof=no_show late_cancel fraud_signal"`
	RelatedHoldID string `json:"related_hold_id" binding:"omitempty,uuid"`
}

type RecordPenaltyResponse struct {
	PenaltyID       string `json:"penalty_id"`
	NewBlockCreated bool   `json:"new_block_created"`
	BlockExtended   bool   `json:"block_extended"`
	BlockID         string `json:"block_id,omitempty"`
}

type PenaltyResponse struct {
	ID            string    `json:"id"`
	ViolationType string    `json:"violation_type"`
	Weight        int       `json:"weight"`
	OccurredAt    time.Time `json:"occurred_at"`
	RelatedHoldID *string   `json:"related_hold_id,omitempty"`
}

func NewPenaltyResponse(p *penalty.Penalty) PenaltyResponse {
	return PenaltyResponse{
		ID:            p.ID,
		ViolationType: string(p.ViolationType),
		Weight:        p.Weight,
		OccurredAt:    p.OccurredAt,
		RelatedHoldID: p.RelatedHoldID,
	}
}

type BlockResponse struct {
	ID                  string     `json:"id"`
	CustomerFingerprint string     `json:"customer_fingerprint"`
	Reason              string     `json:"reason"`
	Status              string     `json:"status"`
	Permanent           bool       `json:"permanent"`
	BlockedUntil        *time.Time `json:"blocked_until,omitempty"`
	LiftedAt            *time.Time `json:"lifted_at,omitempty"`
	LiftedBy            *string    `json:"lifted_by,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

func NewBlockResponse(b *penalty.Block, now time.Time) BlockResponse {
	return BlockResponse{
		ID:                  b.ID,
		CustomerFingerprint: b.CustomerFingerprint,
		Reason:              string(b.Reason),
		Status:              string(b.StatusAt(now)),
		Permanent:           b.IsPermanent(),
		BlockedUntil:        b.BlockedUntil,
		LiftedAt:            b.LiftedAt,
		LiftedBy:            b.LiftedBy,
		CreatedAt:           b.CreatedAt,
	}
}

// CheckBlockResponse deliberately omits the penalty history behind the block.
type CheckBlockResponse struct {
	Blocked      bool       `json:"blocked"`
	BlockID      string     `json:"block_id,omitempty"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
	Reason       string     `json:"reason,omitempty"`
}

func NewCheckBlockResponse(r *penalty.BlockCheckResult) CheckBlockResponse {
	if !r.Blocked {
		return CheckBlockResponse{}
	}
	return CheckBlockResponse{
		Blocked:      true,
		BlockID:      r.Block.ID,
		BlockedUntil: r.Block.BlockedUntil,
		Reason:       string(r.Reason),
	}
}
