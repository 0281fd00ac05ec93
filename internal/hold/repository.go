package hold

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tistis/secure-booking/internal/db"
	"github.com/tistis/secure-booking/internal/policy"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// LockResource serializes acquisitions on one tenant's resource until the transaction ends.
	// It returns db.ErrLockTimeout when the wait exceeds timeout.
	LockResource(ctx context.Context, tenantID, resourceID string, timeout time.Duration) error

	// ExpireStaleForResource marks the resource's lapsed active holds expired.
	ExpireStaleForResource(ctx context.Context, tenantID, resourceID string, now time.Time) (int, error)
	// HasOverlap reports a live active hold or a confirmed booking of the same tenant
	// intersecting [start, end).
	HasOverlap(ctx context.Context, tenantID, resourceID string, start, end, now time.Time) (bool, error)
	// Create inserts an active hold. An overlapping active hold yields ErrResourceConflict.
	Create(ctx context.Context, h *Hold) error

	GetByID(ctx context.Context, tenantID, id string) (*Hold, error)
	// GetForUpdate locks the hold row for the rest of the transaction.
	GetForUpdate(ctx context.Context, tenantID, id string) (*Hold, error)
	List(ctx context.Context, filter Filter) ([]*Hold, int, error)

	// UpdateStatus is a conditional transition and reports whether a row changed.
	UpdateStatus(ctx context.Context, id string, from, to Status, now time.Time) (bool, error)
	UpdateExpiry(ctx context.Context, id string, expiresAt, now time.Time) error
	// ExpireStale transitions up to limit lapsed active holds, skipping rows locked elsewhere.
	ExpireStale(ctx context.Context, now time.Time, limit int) (int, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var holdColumns = []string{
	"id", "tenant_id", "vertical", "resource_id", "hold_type", "window_start", "window_end",
	"status", "customer_fingerprint", "expires_at", "created_at", "updated_at",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHold(row rowScanner, extra ...any) (*Hold, error) {
	var h Hold
	var vertical, holdType, status string
	dest := []any{
		&h.ID, &h.TenantID, &vertical, &h.ResourceID, &holdType, &h.WindowStart, &h.WindowEnd,
		&status, &h.CustomerFingerprint, &h.ExpiresAt, &h.CreatedAt, &h.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	h.Vertical = policy.Vertical(vertical)
	h.HoldType = Type(holdType)
	h.Status = Status(status)
	return &h, nil
}

func (r *pgxRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

func (r *pgxRepository) LockResource(ctx context.Context, tenantID, resourceID string, timeout time.Duration) error {
	return db.AdvisoryXactLock(ctx, lockKey(tenantID, resourceID), timeout)
}

func lockKey(tenantID, resourceID string) string {
	return "hold:" + tenantID + ":" + resourceID
}

func (r *pgxRepository) ExpireStaleForResource(ctx context.Context, tenantID, resourceID string, now time.Time) (int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.booking_holds").
		Set("status", string(StatusExpired)).
		Set("updated_at", now).
		Where(squirrel.Eq{"tenant_id": tenantID, "resource_id": resourceID, "status": string(StatusActive)}).
		Where(squirrel.LtOrEq{"expires_at": now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build expire resource holds query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("expire resource holds failed: %w", err)
	}
	return int(ct.RowsAffected()), nil
}

func (r *pgxRepository) HasOverlap(ctx context.Context, tenantID, resourceID string, start, end, now time.Time) (bool, error) {
	// Time overlaps: (NewStart < ExistingEnd) AND (NewEnd > ExistingStart)
	holds := squirrel.Select("1").
		From("public.booking_holds").
		Where(squirrel.Eq{"tenant_id": tenantID, "resource_id": resourceID, "status": string(StatusActive)}).
		Where(squirrel.Gt{"expires_at": now}).
		Where(squirrel.Lt{"window_start": end}).
		Where(squirrel.Gt{"window_end": start})
	bookings := squirrel.Select("1").
		From("public.bookings").
		Where(squirrel.Eq{"tenant_id": tenantID, "resource_id": resourceID, "status": "confirmed"}).
		Where(squirrel.Lt{"start_time": end}).
		Where(squirrel.Gt{"end_time": start})

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select().
		Column(squirrel.Alias(squirrel.Expr("EXISTS (?)", holds), "held")).
		Column(squirrel.Alias(squirrel.Expr("EXISTS (?)", bookings), "booked")).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build check overlap query failed: %w", err)
	}

	var held, booked bool
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&held, &booked); err != nil {
		return false, fmt.Errorf("check overlap failed: %w", err)
	}
	return held || booked, nil
}

func (r *pgxRepository) Create(ctx context.Context, h *Hold) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.booking_holds").
		Columns(
			"tenant_id", "vertical", "resource_id", "hold_type", "window_start", "window_end",
			"status", "customer_fingerprint", "expires_at", "created_at", "updated_at",
		).
		Values(
			h.TenantID, string(h.Vertical), h.ResourceID, string(h.HoldType), h.WindowStart, h.WindowEnd,
			string(h.Status), h.CustomerFingerprint, h.ExpiresAt, h.CreatedAt, h.UpdatedAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create hold query failed: %w", err)
	}

	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&h.ID); err != nil {
		if db.IsExclusionViolation(err) {
			return ErrResourceConflict
		}
		return fmt.Errorf("create hold failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, tenantID, id string) (*Hold, error) {
	return r.get(ctx, tenantID, id, false)
}

func (r *pgxRepository) GetForUpdate(ctx context.Context, tenantID, id string) (*Hold, error) {
	return r.get(ctx, tenantID, id, true)
}

func (r *pgxRepository) get(ctx context.Context, tenantID, id string, forUpdate bool) (*Hold, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	builder := psql.Select(holdColumns...).
		From("public.booking_holds").
		Where(squirrel.Eq{"tenant_id": tenantID, "id": id})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get hold query failed: %w", err)
	}

	h, err := scanHold(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidText(err) {
			return nil, ErrHoldNotFound
		}
		return nil, fmt.Errorf("get hold failed: %w", err)
	}
	return h, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Hold, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(append(holdColumns, "count(*) OVER() AS total_count")...).
		From("public.booking_holds").
		Where(squirrel.Eq{"tenant_id": filter.TenantID})

	if filter.ResourceID != "" {
		query = query.Where(squirrel.Eq{"resource_id": filter.ResourceID})
	}
	if filter.CustomerFingerprint != "" {
		query = query.Where(squirrel.Eq{"customer_fingerprint": filter.CustomerFingerprint})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"status": filter.Status})
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	sql, args, err := query.OrderBy("created_at DESC").
		Limit(uint64(filter.PageSize)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list holds query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list holds failed: %w", err)
	}
	defer rows.Close()

	var holds []*Hold
	var total int
	for rows.Next() {
		h, err := scanHold(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan hold failed: %w", err)
		}
		holds = append(holds, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate holds failed: %w", err)
	}
	return holds, total, nil
}

func (r *pgxRepository) UpdateStatus(ctx context.Context, id string, from, to Status, now time.Time) (bool, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.booking_holds").
		Set("status", string(to)).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": id, "status": string(from)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build update hold status query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update hold status failed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (r *pgxRepository) UpdateExpiry(ctx context.Context, id string, expiresAt, now time.Time) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.booking_holds").
		Set("expires_at", expiresAt).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": id, "status": string(StatusActive)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update hold expiry query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update hold expiry failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrHoldAlreadyTerminal
	}
	return nil
}

func (r *pgxRepository) ExpireStale(ctx context.Context, now time.Time, limit int) (int, error) {
	// Inner builder keeps "?" placeholders; the outer statement rewrites them all to $n.
	due := squirrel.Select("id").
		From("public.booking_holds").
		Where(squirrel.Eq{"status": string(StatusActive)}).
		Where(squirrel.LtOrEq{"expires_at": now}).
		OrderBy("expires_at").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED")

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.booking_holds").
		Set("status", string(StatusExpired)).
		Set("updated_at", now).
		Where(squirrel.Expr("id IN (?)", due)).
		Where(squirrel.Eq{"status": string(StatusActive)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build expire stale holds query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("expire stale holds failed: %w", err)
	}
	return int(ct.RowsAffected()), nil
}
