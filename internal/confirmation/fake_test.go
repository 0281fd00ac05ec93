package confirmation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tistis/secure-booking/internal/hold"
	"github.com/tistis/secure-booking/internal/policy"
)

// callTrace records the order of row-locking calls across the fakes.
type callTrace struct {
	mu    sync.Mutex
	calls []string
}

func (t *callTrace) add(name string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, name)
}

func (t *callTrace) list() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

type fakeRepo struct {
	mu    sync.Mutex
	rows  map[string]*Confirmation
	trace *callTrace
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[string]*Confirmation{}}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeRepo) Create(_ context.Context, c *Confirmation) error {
	f.trace.add("confirmations.create")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rows {
		if existing.HoldID == c.HoldID && existing.Status == StatusPending {
			return ErrConfirmationPending
		}
	}
	c.ID = uuid.NewString()
	cp := *c
	f.rows[c.ID] = &cp
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, tenantID, id string) (*Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeRepo) GetForUpdate(ctx context.Context, tenantID, id string) (*Confirmation, error) {
	return f.GetByID(ctx, tenantID, id)
}

func (f *fakeRepo) FindPendingByRecipient(_ context.Context, tenantID string, channel Channel, recipient string) (*Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matches []*Confirmation
	for _, c := range f.rows {
		if c.TenantID == tenantID && c.Channel == channel && c.Recipient == recipient && c.Status == StatusPending {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return nil, ErrNoPendingForSender
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].SentAt.After(matches[j].SentAt) })
	cp := *matches[0]
	return &cp, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id string, from, to Status, respondedAt *time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	c.RespondedAt = respondedAt
	return true, nil
}

func (f *fakeRepo) ExpireLapsedForHold(_ context.Context, holdID string, now time.Time) (int, error) {
	f.trace.add("confirmations.expire_lapsed")
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.rows {
		if c.HoldID == holdID && c.Status == StatusPending && !now.Before(c.ExpiresAt) {
			c.Status = StatusExpired
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) HasConfirmed(_ context.Context, tenantID, holdID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.rows {
		if c.TenantID == tenantID && c.HoldID == holdID && c.Status == StatusConfirmed {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) ExpireStale(_ context.Context, now time.Time, limit int) ([]Expired, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Expired
	for _, c := range f.rows {
		if len(out) < limit && c.Status == StatusPending && !now.Before(c.ExpiresAt) {
			c.Status = StatusExpired
			out = append(out, Expired{ID: c.ID, TenantID: c.TenantID, HoldID: c.HoldID})
		}
	}
	return out, nil
}

func (f *fakeRepo) status(id string) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id].Status
}

type fakeHolds struct {
	holds map[string]*hold.Hold
	now   func() time.Time
	trace *callTrace
}

func (f *fakeHolds) add(h *hold.Hold) {
	f.holds[h.ID] = h
}

func (f *fakeHolds) Get(_ context.Context, tenantID, id string) (*hold.Hold, error) {
	h, ok := f.holds[id]
	if !ok || h.TenantID != tenantID {
		return nil, hold.ErrHoldNotFound
	}
	cp := *h
	cp.Status = h.StatusAt(f.now())
	return &cp, nil
}

func (f *fakeHolds) ExtendTo(_ context.Context, tenantID, id string, until time.Time) (*hold.Hold, error) {
	f.trace.add("holds.extend")
	h, ok := f.holds[id]
	if !ok || h.TenantID != tenantID {
		return nil, hold.ErrHoldNotFound
	}
	if h.StatusAt(f.now()) != hold.StatusActive {
		return nil, hold.ErrHoldAlreadyTerminal
	}
	if until.After(h.ExpiresAt) {
		h.ExpiresAt = until
	}
	return h, nil
}

func (f *fakeHolds) Release(_ context.Context, tenantID, id string) (*hold.Hold, error) {
	h, ok := f.holds[id]
	if !ok || h.TenantID != tenantID {
		return nil, hold.ErrHoldNotFound
	}
	if h.Status == hold.StatusActive {
		h.Status = hold.StatusReleased
		if !f.now().Before(h.ExpiresAt) {
			h.Status = hold.StatusExpired
		}
	}
	return h, nil
}

type fakePolicies struct{}

func (fakePolicies) GetPolicy(_ context.Context, tenantID string, vertical policy.Vertical) (*policy.VerticalBookingPolicy, error) {
	p := policy.DefaultFor(tenantID, vertical)
	return &p, nil
}

func (fakePolicies) Save(_ context.Context, p *policy.VerticalBookingPolicy) (*policy.VerticalBookingPolicy, error) {
	return p, nil
}

type recordingSender struct {
	sent []OutboundMessage
	fail bool
}

func (s *recordingSender) Send(_ context.Context, msg OutboundMessage) error {
	s.sent = append(s.sent, msg)
	if s.fail {
		return errors.New("gateway unavailable")
	}
	return nil
}
