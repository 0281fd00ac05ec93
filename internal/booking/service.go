package booking

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tistis/secure-booking/internal/penalty"
	"github.com/tistis/secure-booking/internal/pkg/clock"
	"github.com/tistis/secure-booking/internal/policy"
	"github.com/tistis/secure-booking/internal/trust"
)

type Service interface {
	GetByID(ctx context.Context, tenantID, id string) (*Record, error)
	List(ctx context.Context, filter Filter) ([]*Record, int, error)
	// RecordOutcome finalizes a confirmed booking and feeds the outcome to the trust and penalty engines.
	RecordOutcome(ctx context.Context, tenantID, id string, outcome Outcome) (*OutcomeResult, error)
}

type service struct {
	repo      Repository
	policies  policy.Service
	trust     trust.Service
	penalties penalty.Service
	clock     clock.Clock
	logger    *zap.Logger
}

func NewService(
	repo Repository,
	policies policy.Service,
	trustService trust.Service,
	penaltyService penalty.Service,
	clk clock.Clock,
	logger *zap.Logger,
) Service {
	return &service{
		repo:      repo,
		policies:  policies,
		trust:     trustService,
		penalties: penaltyService,
		clock:     clk,
		logger:    logger,
	}
}

func (s *service) GetByID(ctx context.Context, tenantID, id string) (*Record, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Record, int, error) {
	if filter.StartTime != nil && filter.EndTime != nil && filter.StartTime.After(*filter.EndTime) {
		return nil, 0, ErrInvalidTimeRange
	}
	return s.repo.List(ctx, filter)
}

// IsLateCancel reports whether a cancellation at now falls inside the policy's late window before start.
func IsLateCancel(start, now time.Time, p *policy.VerticalBookingPolicy) bool {
	return !now.Before(start.Add(-p.LateCancelWindow()))
}

func (s *service) RecordOutcome(ctx context.Context, tenantID, id string, outcome Outcome) (*OutcomeResult, error) {
	if !outcome.Valid() {
		return nil, ErrInvalidOutcome
	}

	// Policies are read before the transaction; the trust and penalty writes reuse this one.
	current, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	pol, err := s.policies.GetPolicy(ctx, tenantID, current.Vertical)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	result := &OutcomeResult{}

	err = s.repo.WithTx(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if b.Status != StatusConfirmed {
			return ErrAlreadyFinalized
		}
		if outcome != OutcomeCancelled && now.Before(b.StartTime) {
			return ErrOutcomeTooEarly
		}

		switch {
		case outcome == OutcomeCompleted:
			err = s.recordTrust(ctx, b, pol, trust.OutcomeCompleted, result)
		case outcome == OutcomeCancelled && !IsLateCancel(b.StartTime, now, pol):
			err = s.recordTrust(ctx, b, pol, trust.OutcomeCancelledEarly, result)
		case outcome == OutcomeCancelled:
			result.LateCancel = true
			err = s.recordPenalty(ctx, b, pol, penalty.ViolationLateCancel, result)
		default:
			err = s.recordPenalty(ctx, b, pol, penalty.ViolationNoShow, result)
		}
		if err != nil {
			return err
		}

		changed, err := s.repo.UpdateStatus(ctx, b.ID, StatusConfirmed, outcome.status(), now)
		if err != nil {
			return err
		}
		if !changed {
			return ErrAlreadyFinalized
		}
		b.Status = outcome.status()
		b.UpdatedAt = now
		result.Booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking outcome recorded",
		zap.String("tenant_id", tenantID),
		zap.String("booking_id", id),
		zap.String("outcome", string(outcome)),
		zap.Bool("late_cancel", result.LateCancel),
	)
	return result, nil
}

func (s *service) recordTrust(ctx context.Context, b *Record, pol *policy.VerticalBookingPolicy, o trust.Outcome, result *OutcomeResult) error {
	view, err := s.trust.RecordOutcome(ctx, trust.RecordOutcomeRequest{
		TenantID:            b.TenantID,
		Vertical:            b.Vertical,
		CustomerFingerprint: b.CustomerFingerprint,
		Outcome:             o,
		Policy:              pol,
	})
	if err != nil {
		return err
	}
	score := view.Score
	result.TrustScore = &score
	return nil
}

func (s *service) recordPenalty(ctx context.Context, b *Record, pol *policy.VerticalBookingPolicy, v penalty.ViolationType, result *OutcomeResult) error {
	res, err := s.penalties.RecordPenalty(ctx, penalty.RecordPenaltyRequest{
		TenantID:            b.TenantID,
		Vertical:            b.Vertical,
		CustomerFingerprint: b.CustomerFingerprint,
		ViolationType:       v,
		RelatedHoldID:       b.HoldID,
		Policy:              pol,
	})
	if err != nil {
		return err
	}
	result.PenaltyID = res.PenaltyID
	result.BlockCreated = res.NewBlockCreated
	return nil
}
