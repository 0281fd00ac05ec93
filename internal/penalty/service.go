package penalty

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tistis/secure-booking/internal/db"
	"github.com/tistis/secure-booking/internal/pkg/apperror"
	"github.com/tistis/secure-booking/internal/pkg/clock"
	"github.com/tistis/secure-booking/internal/policy"
	"github.com/tistis/secure-booking/internal/trust"
)

type Service interface {
	RecordPenalty(ctx context.Context, req RecordPenaltyRequest) (*RecordPenaltyResult, error)
	CheckBlock(ctx context.Context, tenantID, fingerprint string) (*BlockCheckResult, error)
	LiftBlock(ctx context.Context, tenantID, blockID, liftedBy string) (*Block, error)
	ListPenalties(ctx context.Context, tenantID, fingerprint string) ([]Penalty, error)
}

type Option func(*service)

// WithLockTimeout bounds the wait for the per-customer lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *service) {
		s.lockTimeout = d
	}
}

type service struct {
	repo        Repository
	trust       trust.Service
	policies    policy.Service
	clock       clock.Clock
	logger      *zap.Logger
	lockTimeout time.Duration
}

func NewService(repo Repository, trustService trust.Service, policies policy.Service, clk clock.Clock, logger *zap.Logger, opts ...Option) Service {
	s := &service{
		repo:        repo,
		trust:       trustService,
		policies:    policies,
		clock:       clk,
		logger:      logger,
		lockTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func trustOutcomeFor(v ViolationType) trust.Outcome {
	switch v {
	case ViolationLateCancel:
		return trust.OutcomeCancelledLate
	case ViolationFraudSignal:
		return trust.OutcomeFraudSignal
	}
	return trust.OutcomeNoShow
}

// RecordPenalty appends the violation, updates the trust score and evaluates the block threshold,
// all in one transaction serialized per customer.
func (s *service) RecordPenalty(ctx context.Context, req RecordPenaltyRequest) (*RecordPenaltyResult, error) {
	if strings.TrimSpace(req.CustomerFingerprint) == "" {
		return nil, ErrInvalidFingerprint
	}
	if !req.ViolationType.Valid() {
		return nil, ErrInvalidViolation
	}

	pol := req.Policy
	if pol == nil {
		var err error
		if pol, err = s.policies.GetPolicy(ctx, req.TenantID, req.Vertical); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	result := &RecordPenaltyResult{}

	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockCustomer(ctx, req.TenantID, req.CustomerFingerprint, s.lockTimeout); err != nil {
			if errors.Is(err, db.ErrLockTimeout) {
				return apperror.Wrap(ErrCustomerBusy, err)
			}
			return err
		}

		p := &Penalty{
			TenantID:            req.TenantID,
			CustomerFingerprint: req.CustomerFingerprint,
			ViolationType:       req.ViolationType,
			Weight:              WeightFor(req.ViolationType, pol),
			OccurredAt:          now,
		}
		if req.RelatedHoldID != "" {
			holdID := req.RelatedHoldID
			p.RelatedHoldID = &holdID
		}
		if err := s.repo.InsertPenalty(ctx, p); err != nil {
			return err
		}
		result.PenaltyID = p.ID

		view, err := s.trust.RecordOutcome(ctx, trust.RecordOutcomeRequest{
			TenantID:            req.TenantID,
			Vertical:            req.Vertical,
			CustomerFingerprint: req.CustomerFingerprint,
			Outcome:             trustOutcomeFor(req.ViolationType),
			Policy:              pol,
		})
		if err != nil {
			return err
		}

		window := pol.PenaltyWindow()
		recent, err := s.repo.ListPenalties(ctx, req.TenantID, req.CustomerFingerprint, now.Add(-window))
		if err != nil {
			return err
		}
		points := WeightedPoints(recent, window, now)

		ev := evaluate(req.ViolationType, points, view.Score, pol)
		if !ev.block {
			return nil
		}
		var until *time.Time
		if !ev.permanent {
			t := now.Add(pol.BlockDuration())
			until = &t
		}
		return s.applyBlock(ctx, p, ev.reason, until, now, result)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("penalty recorded",
		zap.String("tenant_id", req.TenantID),
		zap.String("violation", string(req.ViolationType)),
		zap.String("penalty_id", result.PenaltyID),
		zap.Bool("block_created", result.NewBlockCreated),
		zap.Bool("block_extended", result.BlockExtended),
	)
	return result, nil
}

// applyBlock creates the customer's block or extends the active one. until nil means permanent.
func (s *service) applyBlock(ctx context.Context, p *Penalty, reason BlockReason, until *time.Time, now time.Time, result *RecordPenaltyResult) error {
	active, err := s.repo.GetActiveBlock(ctx, p.TenantID, p.CustomerFingerprint, now)
	if err != nil && !errors.Is(err, ErrBlockNotFound) {
		return err
	}

	if active != nil {
		result.BlockID = active.ID
		if active.IsPermanent() {
			return nil
		}
		if until != nil && !until.After(*active.BlockedUntil) {
			return nil
		}
		// A temporary extension keeps the original reason; escalation to permanent records the new one.
		next := active.Reason
		if until == nil {
			next = reason
		}
		if err := s.repo.UpdateBlock(ctx, active.ID, next, until, now); err != nil {
			return err
		}
		result.BlockExtended = true
		return nil
	}

	penaltyID := p.ID
	b := &Block{
		TenantID:             p.TenantID,
		CustomerFingerprint:  p.CustomerFingerprint,
		Reason:               reason,
		BlockedUntil:         until,
		CreatedFromPenaltyID: &penaltyID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.repo.InsertBlock(ctx, b); err != nil {
		return err
	}
	result.BlockID = b.ID
	result.NewBlockCreated = true
	return nil
}

// CheckBlock is a single indexed lookup and gates every hold acquisition.
func (s *service) CheckBlock(ctx context.Context, tenantID, fingerprint string) (*BlockCheckResult, error) {
	if strings.TrimSpace(fingerprint) == "" {
		return nil, ErrInvalidFingerprint
	}

	now := s.clock.Now()
	b, err := s.repo.GetActiveBlock(ctx, tenantID, fingerprint, now)
	if err != nil {
		if errors.Is(err, ErrBlockNotFound) {
			return &BlockCheckResult{}, nil
		}
		return nil, err
	}
	if !b.IsActive(now) {
		return &BlockCheckResult{}, nil
	}
	return &BlockCheckResult{Blocked: true, Block: b, Reason: b.Reason}, nil
}

// LiftBlock is an administrative override. Lifting an already lifted block is a no-op.
func (s *service) LiftBlock(ctx context.Context, tenantID, blockID, liftedBy string) (*Block, error) {
	now := s.clock.Now()
	lifted, err := s.repo.LiftBlock(ctx, tenantID, blockID, liftedBy, now)
	if err != nil {
		return nil, err
	}

	b, err := s.repo.GetBlock(ctx, tenantID, blockID)
	if err != nil {
		return nil, err
	}
	if lifted {
		s.logger.Info("block lifted",
			zap.String("tenant_id", tenantID),
			zap.String("block_id", blockID),
			zap.String("lifted_by", liftedBy),
		)
	}
	return b, nil
}

func (s *service) ListPenalties(ctx context.Context, tenantID, fingerprint string) ([]Penalty, error) {
	if strings.TrimSpace(fingerprint) == "" {
		return nil, ErrInvalidFingerprint
	}
	return s.repo.ListPenalties(ctx, tenantID, fingerprint, time.Time{})
}
