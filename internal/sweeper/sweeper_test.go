package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSweep hands out a fixed backlog in batches.
type fakeSweep struct {
	mu      sync.Mutex
	backlog int
	calls   int
	err     error
}

func (f *fakeSweep) ExpireStale(_ context.Context, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	n := min(limit, f.backlog)
	f.backlog -= n
	return n, nil
}

func (f *fakeSweep) DecayStaleScores(ctx context.Context, _ time.Duration, limit int) (int, error) {
	return f.ExpireStale(ctx, limit)
}

func (f *fakeSweep) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRunner_RunOnce_DrainsBacklog(t *testing.T) {
	holds := &fakeSweep{backlog: 25}
	confirmations := &fakeSweep{backlog: 10}
	scores := &fakeSweep{backlog: 3}
	r := New(holds, confirmations, scores, zap.NewNop(), WithBatchSize(10))

	res, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{ConfirmationsExpired: 10, HoldsExpired: 25, ScoresDecayed: 3}, res)
	assert.Equal(t, 3, holds.callCount())
	assert.Equal(t, 2, confirmations.callCount(), "a full batch is followed by one more")
	assert.Equal(t, 1, scores.callCount())

	res, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res)
}

func TestRunner_RunOnce_ContinuesAfterFailure(t *testing.T) {
	boom := errors.New("db down")
	holds := &fakeSweep{backlog: 4}
	confirmations := &fakeSweep{err: boom}
	scores := &fakeSweep{backlog: 1}
	r := New(holds, confirmations, scores, zap.NewNop())

	res, err := r.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 4, res.HoldsExpired)
	assert.Equal(t, 1, res.ScoresDecayed)
}

func TestRunner_Run_StopsOnCancel(t *testing.T) {
	holds := &fakeSweep{}
	r := New(holds, &fakeSweep{}, &fakeSweep{}, zap.NewNop(), WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return holds.callCount() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}
