package trust

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tistis/secure-booking/internal/pkg/clock"
	"github.com/tistis/secure-booking/internal/policy"
)

type RecordOutcomeRequest struct {
	TenantID            string
	Vertical            policy.Vertical
	CustomerFingerprint string
	Outcome             Outcome
	// Policy is used instead of loading the tenant's policy when set. Callers that already hold
	// a transaction pass it so no second connection is needed.
	Policy *policy.VerticalBookingPolicy
}

type Service interface {
	RecordOutcome(ctx context.Context, req RecordOutcomeRequest) (*View, error)
	GetScore(ctx context.Context, tenantID string, vertical policy.Vertical, fingerprint string) (*View, error)
	DecayScore(ctx context.Context, tenantID string, vertical policy.Vertical, fingerprint string) (*View, error)
	DecayStaleScores(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type service struct {
	repo     Repository
	policies policy.Service
	clock    clock.Clock
	logger   *zap.Logger
}

func NewService(repo Repository, policies policy.Service, clk clock.Clock, logger *zap.Logger) Service {
	return &service{
		repo:     repo,
		policies: policies,
		clock:    clk,
		logger:   logger,
	}
}

// RecordOutcome appends the outcome to the ledger and recomputes the score under the row lock.
// When called inside an outer transaction it joins it.
func (s *service) RecordOutcome(ctx context.Context, req RecordOutcomeRequest) (*View, error) {
	if strings.TrimSpace(req.CustomerFingerprint) == "" {
		return nil, ErrInvalidFingerprint
	}
	if !req.Outcome.Valid() {
		return nil, ErrInvalidOutcome
	}

	pol := req.Policy
	if pol == nil {
		var err error
		if pol, err = s.policies.GetPolicy(ctx, req.TenantID, req.Vertical); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	var view *View

	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Ensure(ctx, req.TenantID, req.CustomerFingerprint, req.Vertical, now); err != nil {
			return err
		}
		score, err := s.repo.GetForUpdate(ctx, req.TenantID, req.CustomerFingerprint)
		if err != nil {
			return err
		}

		event := &Event{
			TenantID:            req.TenantID,
			CustomerFingerprint: req.CustomerFingerprint,
			Outcome:             req.Outcome,
			Delta:               DeltaFor(req.Outcome, pol.ScoreDeltas),
			OccurredAt:          now,
		}
		if err := s.repo.InsertEvent(ctx, event); err != nil {
			return err
		}

		events, err := s.repo.ListEvents(ctx, req.TenantID, req.CustomerFingerprint)
		if err != nil {
			return err
		}

		switch req.Outcome {
		case OutcomeCompleted:
			score.CompletedCount++
		case OutcomeCancelledEarly, OutcomeCancelledLate:
			score.CancelledCount++
		case OutcomeNoShow:
			score.NoShowCount++
		}
		score.Vertical = req.Vertical
		score.Score = Replay(events, pol.ScoreDecay(), now)
		score.LastUpdatedAt = now

		if err := s.repo.Update(ctx, score); err != nil {
			return err
		}
		view = newView(score, score.Score)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("trust outcome recorded",
		zap.String("tenant_id", req.TenantID),
		zap.String("outcome", string(req.Outcome)),
		zap.Int("score", view.Score),
	)
	return view, nil
}

// GetScore applies decay lazily without writing. Unknown customers read as neutral.
func (s *service) GetScore(ctx context.Context, tenantID string, vertical policy.Vertical, fingerprint string) (*View, error) {
	if strings.TrimSpace(fingerprint) == "" {
		return nil, ErrInvalidFingerprint
	}

	score, err := s.repo.Get(ctx, tenantID, fingerprint)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return neutralView(fingerprint), nil
		}
		return nil, err
	}

	if vertical == "" {
		vertical = score.Vertical
	}
	pol, err := s.policies.GetPolicy(ctx, tenantID, vertical)
	if err != nil {
		return nil, err
	}

	events, err := s.repo.ListEvents(ctx, tenantID, fingerprint)
	if err != nil {
		return nil, err
	}
	return newView(score, Replay(events, pol.ScoreDecay(), s.clock.Now())), nil
}

// DecayScore recomputes and persists the score at the current time.
func (s *service) DecayScore(ctx context.Context, tenantID string, vertical policy.Vertical, fingerprint string) (*View, error) {
	if strings.TrimSpace(fingerprint) == "" {
		return nil, ErrInvalidFingerprint
	}

	pol, err := s.policies.GetPolicy(ctx, tenantID, vertical)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var view *View

	err = s.repo.WithTx(ctx, func(ctx context.Context) error {
		score, err := s.repo.GetForUpdate(ctx, tenantID, fingerprint)
		if err != nil {
			return err
		}
		events, err := s.repo.ListEvents(ctx, tenantID, fingerprint)
		if err != nil {
			return err
		}

		score.Score = Replay(events, pol.ScoreDecay(), now)
		score.LastUpdatedAt = now
		if err := s.repo.Update(ctx, score); err != nil {
			return err
		}
		view = newView(score, score.Score)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return neutralView(fingerprint), nil
		}
		return nil, err
	}
	return view, nil
}

// DecayStaleScores persists decay for scores not touched within olderThan.
func (s *service) DecayStaleScores(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	keys, err := s.repo.ListStale(ctx, s.clock.Now().Add(-olderThan), limit)
	if err != nil {
		return 0, err
	}

	decayed := 0
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return decayed, err
		}
		if _, err := s.DecayScore(ctx, k.TenantID, k.Vertical, k.CustomerFingerprint); err != nil {
			s.logger.Warn("decay trust score failed",
				zap.String("tenant_id", k.TenantID),
				zap.Error(err),
			)
			continue
		}
		decayed++
	}
	return decayed, nil
}
