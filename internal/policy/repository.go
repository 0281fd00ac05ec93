package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	Get(ctx context.Context, tenantID string, vertical Vertical) (*VerticalBookingPolicy, error)
	Upsert(ctx context.Context, p *VerticalBookingPolicy) error
}

// policyRow is the persisted shape of a VerticalBookingPolicy.
type policyRow struct {
	TenantID                   string                            `gorm:"column:tenant_id;primaryKey"`
	Vertical                   string                            `gorm:"column:vertical;primaryKey"`
	RequiresConfirmation       bool                              `gorm:"column:requires_confirmation"`
	ConfirmationTimeoutMinutes int                               `gorm:"column:confirmation_timeout_minutes"`
	HoldTTLMinutes             int                               `gorm:"column:hold_ttl_minutes"`
	NoShowPenaltyWeight        int                               `gorm:"column:no_show_penalty_weight"`
	LateCancelPenaltyWeight    int                               `gorm:"column:late_cancel_penalty_weight"`
	FraudPenaltyWeight         int                               `gorm:"column:fraud_penalty_weight"`
	BlockThresholdScore        int                               `gorm:"column:block_threshold_score"`
	BlockDurationHours         int                               `gorm:"column:block_duration_hours"`
	PenaltyWindowDays          int                               `gorm:"column:penalty_window_days"`
	FraudBlockPermanent        bool                              `gorm:"column:fraud_block_permanent"`
	MinTrustScore              int                               `gorm:"column:min_trust_score"`
	LateCancelWindowHours      int                               `gorm:"column:late_cancel_window_hours"`
	ScoreDecayDays             int                               `gorm:"column:score_decay_days"`
	ScoreDeltas                datatypes.JSONType[OutcomeDeltas] `gorm:"column:score_deltas"`
	RequiresDeposit            bool                              `gorm:"column:requires_deposit"`
	DepositType                string                            `gorm:"column:deposit_type"`
	DepositValue               float64                           `gorm:"column:deposit_value"`
	CreatedAt                  time.Time                         `gorm:"column:created_at"`
	UpdatedAt                  time.Time                         `gorm:"column:updated_at"`
}

func (policyRow) TableName() string {
	return "vertical_booking_policies"
}

func toRow(p *VerticalBookingPolicy) policyRow {
	return policyRow{
		TenantID:                   p.TenantID,
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
		ScoreDeltas:                datatypes.NewJSONType(p.ScoreDeltas),
		RequiresDeposit:            p.RequiresDeposit,
		DepositType:                string(p.DepositType),
		DepositValue:               p.DepositValue,
		CreatedAt:                  p.CreatedAt,
		UpdatedAt:                  p.UpdatedAt,
	}
}

func (r policyRow) toModel() *VerticalBookingPolicy {
	return &VerticalBookingPolicy{
		TenantID:                   r.TenantID,
		Vertical:                   Vertical(r.Vertical),
		RequiresConfirmation:       r.RequiresConfirmation,
		ConfirmationTimeoutMinutes: r.ConfirmationTimeoutMinutes,
		HoldTTLMinutes:             r.HoldTTLMinutes,
		NoShowPenaltyWeight:        r.NoShowPenaltyWeight,
		LateCancelPenaltyWeight:    r.LateCancelPenaltyWeight,
		FraudPenaltyWeight:         r.FraudPenaltyWeight,
		BlockThresholdScore:        r.BlockThresholdScore,
		BlockDurationHours:         r.BlockDurationHours,
		PenaltyWindowDays:          r.PenaltyWindowDays,
		FraudBlockPermanent:        r.FraudBlockPermanent,
		MinTrustScore:              r.MinTrustScore,
		LateCancelWindowHours:      r.LateCancelWindowHours,
		ScoreDecayDays:             r.ScoreDecayDays,
		ScoreDeltas:                r.ScoreDeltas.Data(),
		RequiresDeposit:            r.RequiresDeposit,
		DepositType:                DepositType(r.DepositType),
		DepositValue:               r.DepositValue,
		CreatedAt:                  r.CreatedAt,
		UpdatedAt:                  r.UpdatedAt,
	}
}

type gormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// AutoMigrate creates the policy table for databases not managed by the SQL migrations (SQLite).
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&policyRow{})
}

func (r *gormRepository) Get(ctx context.Context, tenantID string, vertical Vertical) (*VerticalBookingPolicy, error) {
	var row policyRow
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND vertical = ?", tenantID, string(vertical)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get policy failed: %w", err)
	}
	return row.toModel(), nil
}

func (r *gormRepository) Upsert(ctx context.Context, p *VerticalBookingPolicy) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	row := toRow(p)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "vertical"}},
			DoUpdates: clause.AssignmentColumns(updatableColumns),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert policy failed: %w", err)
	}
	return nil
}

var updatableColumns = []string{
	"requires_confirmation", "confirmation_timeout_minutes", "hold_ttl_minutes",
	"no_show_penalty_weight", "late_cancel_penalty_weight", "fraud_penalty_weight",
	"block_threshold_score", "block_duration_hours", "penalty_window_days",
	"fraud_block_permanent", "min_trust_score", "late_cancel_window_hours",
	"score_decay_days", "score_deltas", "requires_deposit", "deposit_type",
	"deposit_value", "updated_at",
}
