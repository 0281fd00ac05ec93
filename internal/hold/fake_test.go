package hold

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tistis/secure-booking/internal/booking"
	"github.com/tistis/secure-booking/internal/db"
	"github.com/tistis/secure-booking/internal/penalty"
	"github.com/tistis/secure-booking/internal/policy"
)

type fakeTxKey struct{}

// fakeTx records the resource locks held by one transaction.
type fakeTx struct {
	locks []*sync.Mutex
}

// fakeRepo emulates the advisory lock with per-resource mutexes released at transaction end.
type fakeRepo struct {
	mu        sync.Mutex
	holds     map[string]*Hold
	confirmed []booking.Record
	resLocks  map[string]*sync.Mutex
	tryLock   bool
	createErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{holds: map[string]*Hold{}, resLocks: map[string]*sync.Mutex{}}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(fakeTxKey{}).(*fakeTx); ok {
		return fn(ctx)
	}
	tx := &fakeTx{}
	defer func() {
		for _, l := range tx.locks {
			l.Unlock()
		}
	}()
	return fn(context.WithValue(ctx, fakeTxKey{}, tx))
}

func (f *fakeRepo) LockResource(ctx context.Context, tenantID, resourceID string, timeout time.Duration) error {
	tx := ctx.Value(fakeTxKey{}).(*fakeTx)
	key := lockKey(tenantID, resourceID)
	f.mu.Lock()
	l, ok := f.resLocks[key]
	if !ok {
		l = &sync.Mutex{}
		f.resLocks[key] = l
	}
	f.mu.Unlock()

	if f.tryLock {
		if !l.TryLock() {
			return db.ErrLockTimeout
		}
	} else {
		l.Lock()
	}
	tx.locks = append(tx.locks, l)
	return nil
}

func (f *fakeRepo) ExpireStaleForResource(_ context.Context, tenantID, resourceID string, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, h := range f.holds {
		if h.TenantID == tenantID && h.ResourceID == resourceID && h.Status == StatusActive && !now.Before(h.ExpiresAt) {
			h.Status = StatusExpired
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) HasOverlap(_ context.Context, tenantID, resourceID string, start, end, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.holds {
		if h.TenantID == tenantID && h.ResourceID == resourceID && h.Status == StatusActive && h.ExpiresAt.After(now) &&
			h.WindowStart.Before(end) && h.WindowEnd.After(start) {
			return true, nil
		}
	}
	for _, b := range f.confirmed {
		if b.TenantID == tenantID && b.ResourceID == resourceID && b.StartTime.Before(end) && b.EndTime.After(start) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) Create(_ context.Context, h *Hold) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	h.ID = uuid.NewString()
	cp := *h
	f.holds[h.ID] = &cp
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, tenantID, id string) (*Hold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.holds[id]
	if !ok || h.TenantID != tenantID {
		return nil, ErrHoldNotFound
	}
	cp := *h
	return &cp, nil
}

func (f *fakeRepo) GetForUpdate(ctx context.Context, tenantID, id string) (*Hold, error) {
	return f.GetByID(ctx, tenantID, id)
}

func (f *fakeRepo) List(_ context.Context, filter Filter) ([]*Hold, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Hold
	for _, h := range f.holds {
		if h.TenantID == filter.TenantID && (filter.ResourceID == "" || h.ResourceID == filter.ResourceID) {
			cp := *h
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id string, from, to Status, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.holds[id]
	if !ok || h.Status != from {
		return false, nil
	}
	h.Status = to
	h.UpdatedAt = now
	return true, nil
}

func (f *fakeRepo) UpdateExpiry(_ context.Context, id string, expiresAt, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.holds[id]
	if !ok || h.Status != StatusActive {
		return ErrHoldAlreadyTerminal
	}
	h.ExpiresAt = expiresAt
	h.UpdatedAt = now
	return nil
}

func (f *fakeRepo) ExpireStale(_ context.Context, now time.Time, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, h := range f.holds {
		if n < limit && h.Status == StatusActive && !now.Before(h.ExpiresAt) {
			h.Status = StatusExpired
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) status(id string) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.holds[id].Status
}

type fakeBookings struct {
	repo    *fakeRepo
	created []*booking.Record
}

func (f *fakeBookings) Create(_ context.Context, r *booking.Record) error {
	for _, b := range f.created {
		if b.HoldID == r.HoldID {
			return booking.ErrAlreadyExists
		}
	}
	r.ID = uuid.NewString()
	f.created = append(f.created, r)
	f.repo.mu.Lock()
	f.repo.confirmed = append(f.repo.confirmed, *r)
	f.repo.mu.Unlock()
	return nil
}

type fakeBlocks struct {
	blocked map[string]bool
}

func (f *fakeBlocks) CheckBlock(_ context.Context, _ string, fingerprint string) (*penalty.BlockCheckResult, error) {
	if f.blocked[fingerprint] {
		return &penalty.BlockCheckResult{Blocked: true, Reason: penalty.ReasonRepeatedNoShow, Block: &penalty.Block{}}, nil
	}
	return &penalty.BlockCheckResult{}, nil
}

type fakeConfirmations struct {
	mu        sync.Mutex
	confirmed map[string]bool
}

func (f *fakeConfirmations) HasConfirmed(_ context.Context, _ string, holdID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirmed[holdID], nil
}

func (f *fakeConfirmations) confirm(holdID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmed == nil {
		f.confirmed = map[string]bool{}
	}
	f.confirmed[holdID] = true
}

// errPolicyInTx flags a policy read issued while a hold transaction holds a pooled connection.
var errPolicyInTx = errors.New("policy lookup inside hold transaction")

type fakePolicies struct{}

func (fakePolicies) GetPolicy(ctx context.Context, tenantID string, vertical policy.Vertical) (*policy.VerticalBookingPolicy, error) {
	if ctx.Value(fakeTxKey{}) != nil || db.TxFromContext(ctx) != nil {
		return nil, errPolicyInTx
	}
	p := policy.DefaultFor(tenantID, vertical)
	return &p, nil
}

func (fakePolicies) Save(_ context.Context, p *policy.VerticalBookingPolicy) (*policy.VerticalBookingPolicy, error) {
	return p, nil
}
