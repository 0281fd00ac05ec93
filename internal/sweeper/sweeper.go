// Package sweeper drives the periodic expiry and decay passes. Every pass is a set of
// conditional updates, so any number of workers may run it concurrently.
package sweeper

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

type HoldExpirer interface {
	ExpireStale(ctx context.Context, limit int) (int, error)
}

type ConfirmationExpirer interface {
	ExpireStale(ctx context.Context, limit int) (int, error)
}

type ScoreDecayer interface {
	DecayStaleScores(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// Result counts the rows each pass touched.
type Result struct {
	ConfirmationsExpired int
	HoldsExpired         int
	ScoresDecayed        int
}

type Option func(*Runner)

func WithBatchSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithScoreAge sets how long a trust score may go without a recompute before the decay pass picks it up.
func WithScoreAge(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.scoreAge = d
		}
	}
}

type Runner struct {
	holds         HoldExpirer
	confirmations ConfirmationExpirer
	scores        ScoreDecayer
	logger        *zap.Logger
	batchSize     int
	interval      time.Duration
	scoreAge      time.Duration
}

func New(holds HoldExpirer, confirmations ConfirmationExpirer, scores ScoreDecayer, logger *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		holds:         holds,
		confirmations: confirmations,
		scores:        scores,
		logger:        logger,
		batchSize:     200,
		interval:      time.Minute,
		scoreAge:      24 * time.Hour,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce drains each sweep in batches. Confirmations go first so the holds they release
// are not expired underneath them. A failing sweep does not stop the others.
func (r *Runner) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	var errs []error

	n, err := drain(ctx, r.batchSize, r.confirmations.ExpireStale)
	res.ConfirmationsExpired = n
	if err != nil {
		errs = append(errs, err)
	}

	n, err = drain(ctx, r.batchSize, r.holds.ExpireStale)
	res.HoldsExpired = n
	if err != nil {
		errs = append(errs, err)
	}

	n, err = drain(ctx, r.batchSize, func(ctx context.Context, limit int) (int, error) {
		return r.scores.DecayStaleScores(ctx, r.scoreAge, limit)
	})
	res.ScoresDecayed = n
	if err != nil {
		errs = append(errs, err)
	}

	return res, errors.Join(errs...)
}

// drain repeats a batch until it comes back short.
func drain(ctx context.Context, limit int, batch func(ctx context.Context, limit int) (int, error)) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := batch(ctx, limit)
		total += n
		if err != nil {
			return total, err
		}
		if n < limit {
			return total, nil
		}
	}
}

// Run sweeps every interval until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	r.logger.Info("sweeper started", zap.Duration("interval", r.interval), zap.Int("batch_size", r.batchSize))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.sweep(ctx)
		select {
		case <-ctx.Done():
			r.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) sweep(ctx context.Context) {
	res, err := r.RunOnce(ctx)
	if err != nil && ctx.Err() == nil {
		r.logger.Error("sweep failed", zap.Error(err))
	}
	if res.ConfirmationsExpired+res.HoldsExpired+res.ScoresDecayed > 0 {
		r.logger.Info("sweep finished",
			zap.Int("confirmations_expired", res.ConfirmationsExpired),
			zap.Int("holds_expired", res.HoldsExpired),
			zap.Int("scores_decayed", res.ScoresDecayed),
		)
	}
}
