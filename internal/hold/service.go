package hold

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tistis/secure-booking/internal/booking"
	"github.com/tistis/secure-booking/internal/db"
	"github.com/tistis/secure-booking/internal/penalty"
	"github.com/tistis/secure-booking/internal/pkg/clock"
	"github.com/tistis/secure-booking/internal/policy"
)

// BlockChecker gates acquisitions on the customer's block status.
type BlockChecker interface {
	CheckBlock(ctx context.Context, tenantID, fingerprint string) (*penalty.BlockCheckResult, error)
}

// ConfirmationChecker reports whether a hold has a confirmed confirmation.
type ConfirmationChecker interface {
	HasConfirmed(ctx context.Context, tenantID, holdID string) (bool, error)
}

// BookingWriter persists the firm booking produced by a conversion.
type BookingWriter interface {
	Create(ctx context.Context, r *booking.Record) error
}

type Service interface {
	Acquire(ctx context.Context, req AcquireRequest) (*AcquireResult, error)
	Extend(ctx context.Context, tenantID, id string, additionalMinutes int) (*Hold, error)
	// ExtendTo pushes expiry out to at least until. It never shortens a hold.
	ExtendTo(ctx context.Context, tenantID, id string, until time.Time) (*Hold, error)
	Release(ctx context.Context, tenantID, id string) (*Hold, error)
	Convert(ctx context.Context, tenantID, id string) (*booking.Record, error)
	ExpireStale(ctx context.Context, limit int) (int, error)
	Get(ctx context.Context, tenantID, id string) (*Hold, error)
	List(ctx context.Context, filter Filter) ([]*Hold, int, error)
}

type Option func(*service)

// WithLockTimeout bounds the wait for the per-resource acquisition lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

type service struct {
	repo          Repository
	bookings      BookingWriter
	blocks        BlockChecker
	confirmations ConfirmationChecker
	policies      policy.Service
	clock         clock.Clock
	logger        *zap.Logger
	lockTimeout   time.Duration
}

const defaultLockTimeout = 2 * time.Second

func NewService(
	repo Repository,
	bookings BookingWriter,
	blocks BlockChecker,
	confirmations ConfirmationChecker,
	policies policy.Service,
	clk clock.Clock,
	logger *zap.Logger,
	opts ...Option,
) Service {
	s := &service{
		repo:          repo,
		bookings:      bookings,
		blocks:        blocks,
		confirmations: confirmations,
		policies:      policies,
		clock:         clk,
		logger:        logger,
		lockTimeout:   defaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func rejected(code ErrorCode) *AcquireResult {
	return &AcquireResult{ErrorCode: code}
}

// Acquire claims [WindowStart, WindowEnd) on a resource. The block check runs first; the overlap
// check and insert then run under a resource-scoped advisory lock.
func (s *service) Acquire(ctx context.Context, req AcquireRequest) (*AcquireResult, error) {
	if strings.TrimSpace(req.ResourceID) == "" || strings.TrimSpace(req.CustomerFingerprint) == "" {
		return nil, ErrInvalidRequest
	}
	if !req.WindowEnd.After(req.WindowStart) {
		return nil, ErrInvalidWindow
	}
	if !req.HoldType.Valid() {
		return nil, ErrInvalidHoldType
	}
	if req.Vertical == "" {
		req.Vertical = policy.VerticalGeneral
	}
	if !req.Vertical.Valid() {
		return nil, policy.ErrInvalidVertical
	}

	check, err := s.blocks.CheckBlock(ctx, req.TenantID, req.CustomerFingerprint)
	if err != nil {
		return nil, err
	}
	if check.Blocked {
		s.logger.Debug("hold rejected: customer blocked",
			zap.String("tenant_id", req.TenantID),
			zap.String("resource_id", req.ResourceID),
		)
		return rejected(CodeCustomerBlocked), nil
	}

	ttl := time.Duration(req.TTLMinutes) * time.Minute
	if ttl <= 0 {
		pol, err := s.policies.GetPolicy(ctx, req.TenantID, req.Vertical)
		if err != nil {
			return nil, err
		}
		ttl = pol.HoldTTL()
	}

	var created *Hold
	err = s.repo.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockResource(ctx, req.TenantID, req.ResourceID, s.lockTimeout); err != nil {
			return err
		}

		now := s.clock.Now()
		if _, err := s.repo.ExpireStaleForResource(ctx, req.TenantID, req.ResourceID, now); err != nil {
			return err
		}

		overlap, err := s.repo.HasOverlap(ctx, req.TenantID, req.ResourceID, req.WindowStart, req.WindowEnd, now)
		if err != nil {
			return err
		}
		if overlap {
			return ErrResourceConflict
		}

		h := &Hold{
			TenantID:            req.TenantID,
			Vertical:            req.Vertical,
			ResourceID:          req.ResourceID,
			HoldType:            req.HoldType,
			WindowStart:         req.WindowStart,
			WindowEnd:           req.WindowEnd,
			Status:              StatusActive,
			CustomerFingerprint: req.CustomerFingerprint,
			ExpiresAt:           now.Add(ttl),
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.repo.Create(ctx, h); err != nil {
			return err
		}
		created = h
		return nil
	})

	switch {
	case err == nil:
		s.logger.Info("hold acquired",
			zap.String("tenant_id", req.TenantID),
			zap.String("hold_id", created.ID),
			zap.String("resource_id", req.ResourceID),
			zap.Time("expires_at", created.ExpiresAt),
		)
		return &AcquireResult{Success: true, Hold: created}, nil
	case errors.Is(err, ErrResourceConflict):
		s.logger.Debug("hold rejected: resource conflict", zap.String("resource_id", req.ResourceID))
		return rejected(CodeResourceConflict), nil
	case errors.Is(err, db.ErrLockTimeout):
		s.logger.Warn("hold rejected: lock timeout", zap.String("resource_id", req.ResourceID))
		return rejected(CodeLockTimeout), nil
	default:
		return nil, err
	}
}

func (s *service) Extend(ctx context.Context, tenantID, id string, additionalMinutes int) (*Hold, error) {
	if additionalMinutes <= 0 {
		return nil, ErrInvalidExtension
	}
	return s.updateExpiry(ctx, tenantID, id, func(h *Hold) time.Time {
		return h.ExpiresAt.Add(time.Duration(additionalMinutes) * time.Minute)
	})
}

func (s *service) ExtendTo(ctx context.Context, tenantID, id string, until time.Time) (*Hold, error) {
	return s.updateExpiry(ctx, tenantID, id, func(h *Hold) time.Time {
		if until.After(h.ExpiresAt) {
			return until
		}
		return h.ExpiresAt
	})
}

func (s *service) updateExpiry(ctx context.Context, tenantID, id string, next func(*Hold) time.Time) (*Hold, error) {
	var result *Hold
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		h, err := s.repo.GetForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if h.StatusAt(now) != StatusActive {
			return ErrHoldAlreadyTerminal
		}

		expiresAt := next(h)
		if !expiresAt.Equal(h.ExpiresAt) {
			if err := s.repo.UpdateExpiry(ctx, h.ID, expiresAt, now); err != nil {
				return err
			}
			h.ExpiresAt = expiresAt
			h.UpdatedAt = now
		}
		result = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Release is idempotent: terminal holds are returned unchanged.
func (s *service) Release(ctx context.Context, tenantID, id string) (*Hold, error) {
	var result *Hold
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		h, err := s.repo.GetForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if h.Status.IsTerminal() {
			result = h
			return nil
		}

		now := s.clock.Now()
		to := StatusReleased
		if h.StatusAt(now) == StatusExpired {
			to = StatusExpired
		}
		if _, err := s.repo.UpdateStatus(ctx, h.ID, StatusActive, to, now); err != nil {
			return err
		}
		h.Status = to
		h.UpdatedAt = now
		result = h
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("hold released",
		zap.String("tenant_id", tenantID),
		zap.String("hold_id", id),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

// Convert writes the firm booking exactly once. The active to converted transition is one-way.
func (s *service) Convert(ctx context.Context, tenantID, id string) (*booking.Record, error) {
	// The policy read goes through its own pool connection, so it runs before the row lock is taken.
	current, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	pol, err := s.policies.GetPolicy(ctx, tenantID, current.Vertical)
	if err != nil {
		return nil, err
	}

	var record *booking.Record
	err = s.repo.WithTx(ctx, func(ctx context.Context) error {
		h, err := s.repo.GetForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if h.StatusAt(now) != StatusActive {
			return ErrHoldAlreadyTerminal
		}

		if pol.RequiresConfirmation {
			confirmed, err := s.confirmations.HasConfirmed(ctx, tenantID, h.ID)
			if err != nil {
				return err
			}
			if !confirmed {
				return ErrConfirmationRequired
			}
		}

		changed, err := s.repo.UpdateStatus(ctx, h.ID, StatusActive, StatusConverted, now)
		if err != nil {
			return err
		}
		if !changed {
			return ErrHoldAlreadyTerminal
		}

		r := &booking.Record{
			TenantID:            h.TenantID,
			HoldID:              h.ID,
			Vertical:            h.Vertical,
			ResourceID:          h.ResourceID,
			CustomerFingerprint: h.CustomerFingerprint,
			StartTime:           h.WindowStart,
			EndTime:             h.WindowEnd,
			Status:              booking.StatusConfirmed,
			DepositRequired:     pol.RequiresDeposit,
			DepositType:         pol.DepositType,
			DepositValue:        pol.DepositValue,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.bookings.Create(ctx, r); err != nil {
			return err
		}
		record = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("hold converted",
		zap.String("tenant_id", tenantID),
		zap.String("hold_id", id),
		zap.String("booking_id", record.ID),
	)
	return record, nil
}

func (s *service) ExpireStale(ctx context.Context, limit int) (int, error) {
	n, err := s.repo.ExpireStale(ctx, s.clock.Now(), limit)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired stale holds", zap.Int("count", n))
	}
	return n, nil
}

// Get reports lapsed active holds as expired even before the sweep runs.
func (s *service) Get(ctx context.Context, tenantID, id string) (*Hold, error) {
	h, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	h.Status = h.StatusAt(s.clock.Now())
	return h, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Hold, int, error) {
	holds, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	now := s.clock.Now()
	for _, h := range holds {
		h.Status = h.StatusAt(now)
	}
	return holds, total, nil
}
