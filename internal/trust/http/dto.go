package http

import (
	"time"

	"github.com/tistis/secure-booking/internal/trust"
)

// GetTrustQuery selects the policy whose decay window applies. Empty uses the vertical of the
// customer's last outcome.
type GetTrustQuery struct {
	Vertical string `form:"vertical" binding:"omitempty,oneof=restaurant dental retail general"`
}

type TrustScoreResponse struct {
	CustomerFingerprint string     `json:"customer_fingerprint"`
	Score               int        `json:"score"`
	Level               string     `json:"level"`
	CompletedCount      int        `json:"completed_count"`
	CancelledCount      int        `json:"cancelled_count"`
	NoShowCount         int        `json:"no_show_count"`
	LastUpdatedAt       *time.Time `json:"last_updated_at,omitempty"`
}

func NewTrustScoreResponse(v *trust.View) TrustScoreResponse {
	return TrustScoreResponse{
		CustomerFingerprint: v.CustomerFingerprint,
		Score:               v.Score,
		Level:               string(v.Level),
		CompletedCount:      v.CompletedCount,
		CancelledCount:      v.CancelledCount,
		NoShowCount:         v.NoShowCount,
		LastUpdatedAt:       v.LastUpdatedAt,
	}
}
