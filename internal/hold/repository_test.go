package hold

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tistis/secure-booking/internal/booking"
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
	svc := NewService(repo, booking.NewPgxRepository(pool), &fakeBlocks{}, &fakeConfirmations{}, fakePolicies{}, clk, zap.NewNop())
	return svc, repo, clk
}

func TestPgxRepository_ExclusionConstraint(t *testing.T) {
	_, repo, clk := newPostgresService(t)
	ctx := context.Background()
	now := clk.Now()

	newHold := func(start, end time.Time) *Hold {
		return &Hold{
			TenantID:            "tenant-1",
			Vertical:            policy.VerticalRestaurant,
			ResourceID:          "R1",
			HoldType:            TypeTable,
			WindowStart:         start,
			WindowEnd:           end,
			Status:              StatusActive,
			CustomerFingerprint: "fp",
			ExpiresAt:           now.Add(10 * time.Minute),
			CreatedAt:           now,
			UpdatedAt:           now,
		}
	}

	first := newHold(now.Add(time.Hour), now.Add(90*time.Minute))
	require.NoError(t, repo.Create(ctx, first))
	require.NotEmpty(t, first.ID)

	// Bypasses the advisory lock and overlap check entirely.
	err := repo.Create(ctx, newHold(now.Add(75*time.Minute), now.Add(105*time.Minute)))
	assert.ErrorIs(t, err, ErrResourceConflict)

	require.NoError(t, repo.Create(ctx, newHold(now.Add(90*time.Minute), now.Add(2*time.Hour))))

	changed, err := repo.UpdateStatus(ctx, first.ID, StatusActive, StatusReleased, now)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NoError(t, repo.Create(ctx, newHold(now.Add(75*time.Minute), now.Add(89*time.Minute))))
}

func TestPgxRepository_GetMalformedID(t *testing.T) {
	_, repo, _ := newPostgresService(t)

	_, err := repo.GetByID(context.Background(), "tenant-1", "not-a-uuid")
	assert.ErrorIs(t, err, ErrHoldNotFound)
}

func TestPostgres_ConcurrentAcquire(t *testing.T) {
	svc, _, clk := newPostgresService(t)
	start := clk.Now().Add(24 * time.Hour)
	const n = 12

	var wg sync.WaitGroup
	var wins, conflicts atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			offset := time.Duration(i) * time.Minute
			res, err := svc.Acquire(context.Background(), AcquireRequest{
				TenantID:            "tenant-1",
				Vertical:            policy.VerticalRetail,
				ResourceID:          "R1",
				HoldType:            TypeDeliverySlot,
				WindowStart:         start.Add(offset),
				WindowEnd:           start.Add(offset + 30*time.Minute),
				CustomerFingerprint: "fp",
			})
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			switch res.ErrorCode {
			case "":
				wins.Add(1)
			case CodeResourceConflict:
				conflicts.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(n-1), conflicts.Load())
}

func TestPostgres_ConvertAndSweep(t *testing.T) {
	svc, repo, clk := newPostgresService(t)
	ctx := context.Background()
	start := clk.Now().Add(24 * time.Hour)

	req := AcquireRequest{
		TenantID:            "tenant-1",
		Vertical:            policy.VerticalRetail,
		ResourceID:          "R1",
		HoldType:            TypeDeliverySlot,
		WindowStart:         start,
		WindowEnd:           start.Add(time.Hour),
		CustomerFingerprint: "fp",
	}
	res, err := svc.Acquire(ctx, req)
	require.NoError(t, err)
	require.True(t, res.Success)

	rec, err := svc.Convert(ctx, "tenant-1", res.Hold.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)

	// The confirmed booking keeps the slot even though the hold is gone.
	again, err := svc.Acquire(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, CodeResourceConflict, again.ErrorCode)

	req.ResourceID = "R2"
	lapsing, err := svc.Acquire(ctx, req)
	require.NoError(t, err)
	require.True(t, lapsing.Success)

	clk.Advance(11 * time.Minute)
	n, err := svc.ExpireStale(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	h, err := repo.GetByID(ctx, "tenant-1", lapsing.Hold.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, h.Status)
}

func TestPostgres_TenantsShareResourceIDs(t *testing.T) {
	svc, repo, clk := newPostgresService(t)
	ctx := context.Background()
	day := clk.Now().Add(24 * time.Hour).Truncate(24 * time.Hour)
	start, end := day.Add(14*time.Hour), day.Add(14*time.Hour+30*time.Minute)

	acquire := func(tenantID, resourceID, fingerprint string) *AcquireResult {
		t.Helper()
		res, err := svc.Acquire(ctx, AcquireRequest{
			TenantID:            tenantID,
			Vertical:            policy.VerticalRetail,
			ResourceID:          resourceID,
			HoldType:            TypeTable,
			WindowStart:         start,
			WindowEnd:           end,
			CustomerFingerprint: fingerprint,
		})
		require.NoError(t, err)
		return res
	}

	a := acquire("tenant-A", "table-1", "fp-a")
	require.True(t, a.Success)
	b := acquire("tenant-B", "table-1", "fp-b")
	require.True(t, b.Success, "got %s", b.ErrorCode)
	assert.Equal(t, CodeResourceConflict, acquire("tenant-A", "table-1", "fp-c").ErrorCode)

	// A confirmed booking in one tenant leaves the other tenant's resource free.
	converted := acquire("tenant-A", "table-2", "fp-a")
	require.True(t, converted.Success)
	_, err := svc.Convert(ctx, "tenant-A", converted.Hold.ID)
	require.NoError(t, err)
	assert.True(t, acquire("tenant-B", "table-2", "fp-b").Success)

	overlap, err := repo.HasOverlap(ctx, "tenant-C", "table-1", start, end, clk.Now())
	require.NoError(t, err)
	assert.False(t, overlap)
}

func TestPgxRepository_ExclusionConstraintIsPerTenant(t *testing.T) {
	_, repo, clk := newPostgresService(t)
	ctx := context.Background()
	now := clk.Now()

	for _, tenantID := range []string{"tenant-A", "tenant-B"} {
		require.NoError(t, repo.Create(ctx, &Hold{
			TenantID:            tenantID,
			Vertical:            policy.VerticalRestaurant,
			ResourceID:          "table-1",
			HoldType:            TypeTable,
			WindowStart:         now.Add(time.Hour),
			WindowEnd:           now.Add(90 * time.Minute),
			Status:              StatusActive,
			CustomerFingerprint: "fp",
			ExpiresAt:           now.Add(10 * time.Minute),
			CreatedAt:           now,
			UpdatedAt:           now,
		}))
	}
}
