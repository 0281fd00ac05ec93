package trust

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tistis/secure-booking/internal/pkg/clock"
	"github.com/tistis/secure-booking/internal/policy"
	"github.com/tistis/secure-booking/internal/testutil"
)

func newPostgresService(t *testing.T) (Service, Repository, *clock.Manual) {
	t.Helper()
	pool := testutil.NewTestPool(t)
	testutil.TruncateAll(t, pool)

	repo := NewPgxRepository(pool)
	clk := clock.NewManual(time.Now().UTC().Truncate(time.Second))
	return NewService(repo, &fakePolicies{}, clk, zap.NewNop()), repo, clk
}

func TestPostgres_ConcurrentOutcomesAreNotLost(t *testing.T) {
	svc, repo, _ := newPostgresService(t)
	ctx := context.Background()
	const n = 10

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordOutcome(ctx, RecordOutcomeRequest{
				TenantID:            "tenant-1",
				Vertical:            policy.VerticalGeneral,
				CustomerFingerprint: "fp-busy",
				Outcome:             OutcomeCompleted,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	score, err := repo.Get(ctx, "tenant-1", "fp-busy")
	require.NoError(t, err)
	assert.Equal(t, n, score.CompletedCount)
	assert.Equal(t, MaxScore, score.Score)

	events, err := repo.ListEvents(ctx, "tenant-1", "fp-busy")
	require.NoError(t, err)
	assert.Len(t, events, n)
}

func TestPostgres_DecayOnReadAndSweep(t *testing.T) {
	svc, repo, clk := newPostgresService(t)
	ctx := context.Background()

	view, err := svc.GetScore(ctx, "tenant-1", policy.VerticalGeneral, "fp-new")
	require.NoError(t, err)
	assert.Equal(t, NeutralScore, view.Score)
	_, err = repo.Get(ctx, "tenant-1", "fp-new")
	assert.ErrorIs(t, err, ErrNotFound, "reading an unknown customer creates no row")

	view, err = svc.RecordOutcome(ctx, RecordOutcomeRequest{
		TenantID:            "tenant-1",
		Vertical:            policy.VerticalGeneral,
		CustomerFingerprint: "fp-late",
		Outcome:             OutcomeNoShow,
	})
	require.NoError(t, err)
	assert.Equal(t, 50, view.Score)
	assert.Equal(t, 1, view.NoShowCount)

	// Half of the 90 day decay window.
	clk.Advance(45 * 24 * time.Hour)

	view, err = svc.GetScore(ctx, "tenant-1", "", "fp-late")
	require.NoError(t, err)
	assert.Equal(t, 60, view.Score)

	stored, err := repo.Get(ctx, "tenant-1", "fp-late")
	require.NoError(t, err)
	assert.Equal(t, 50, stored.Score, "reads do not write")

	n, err := svc.DecayStaleScores(ctx, 24*time.Hour, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err = repo.Get(ctx, "tenant-1", "fp-late")
	require.NoError(t, err)
	assert.Equal(t, 60, stored.Score)
	assert.Equal(t, 1, stored.NoShowCount)

	n, err = svc.DecayStaleScores(ctx, 24*time.Hour, 50)
	require.NoError(t, err)
	assert.Zero(t, n, "a freshly decayed row is not stale")
}
