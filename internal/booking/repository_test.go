package booking

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tistis/secure-booking/internal/policy"
	"github.com/tistis/secure-booking/internal/testutil"
)

// insertConvertedHold writes the hold row a booking references.
func insertConvertedHold(t *testing.T, pool *pgxpool.Pool, resourceID string, start, end time.Time) string {
	t.Helper()
	var id string
	err := pool.QueryRow(context.Background(), `
INSERT INTO public.booking_holds
    (tenant_id, vertical, resource_id, hold_type, window_start, window_end, status, customer_fingerprint, expires_at)
VALUES ('tenant-1', 'general', $1, 'appointment_slot', $2, $3, 'converted', 'fp', $2)
RETURNING id`, resourceID, start, end).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestPgxRepository_CreateListAndFinalize(t *testing.T) {
	pool := testutil.NewTestPool(t)
	testutil.TruncateAll(t, pool)
	repo := NewPgxRepository(pool)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second).Add(24 * time.Hour)
	newRecord := func(resourceID string, offset time.Duration) *Record {
		start := base.Add(offset)
		end := start.Add(time.Hour)
		return &Record{
			TenantID:            "tenant-1",
			HoldID:              insertConvertedHold(t, pool, resourceID, start, end),
			Vertical:            policy.VerticalDental,
			ResourceID:          resourceID,
			CustomerFingerprint: "fp",
			StartTime:           start,
			EndTime:             end,
			Status:              StatusConfirmed,
			DepositRequired:     true,
			DepositType:         policy.DepositPercentage,
			DepositValue:        20,
			CreatedAt:           base,
			UpdatedAt:           base,
		}
	}

	morning := newRecord("chair-1", 0)
	afternoon := newRecord("chair-1", 5*time.Hour)
	other := newRecord("chair-2", 0)
	for _, r := range []*Record{morning, afternoon, other} {
		require.NoError(t, repo.Create(ctx, r))
		require.NotEmpty(t, r.ID)
	}

	dup := *morning
	dup.ID = ""
	assert.ErrorIs(t, repo.Create(ctx, &dup), ErrAlreadyExists, "a hold converts at most once")

	got, err := repo.GetByID(ctx, "tenant-1", morning.ID)
	require.NoError(t, err)
	assert.True(t, got.DepositRequired)
	assert.Equal(t, policy.DepositPercentage, got.DepositType)
	assert.InDelta(t, 20.0, got.DepositValue, 0.001)
	assert.True(t, got.StartTime.Equal(morning.StartTime))

	_, err = repo.GetByID(ctx, "tenant-2", morning.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	items, total, err := repo.List(ctx, Filter{TenantID: "tenant-1", ResourceID: "chair-1", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, morning.ID, items[0].ID)

	from := base.Add(4 * time.Hour)
	items, total, err = repo.List(ctx, Filter{TenantID: "tenant-1", StartTime: &from})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, afternoon.ID, items[0].ID)

	changed, err := repo.UpdateStatus(ctx, morning.ID, StatusConfirmed, StatusNoShow, base)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.UpdateStatus(ctx, morning.ID, StatusConfirmed, StatusCompleted, base)
	require.NoError(t, err)
	assert.False(t, changed, "status leaves confirmed only once")

	items, total, err = repo.List(ctx, Filter{TenantID: "tenant-1", Status: string(StatusNoShow)})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, morning.ID, items[0].ID)
}
