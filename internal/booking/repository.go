package booking

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

	// Create inserts the firm booking. A second booking for the same hold yields ErrAlreadyExists.
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, tenantID, id string) (*Record, error)
	// GetForUpdate locks the booking row for the rest of the transaction.
	GetForUpdate(ctx context.Context, tenantID, id string) (*Record, error)
	List(ctx context.Context, filter Filter) ([]*Record, int, error)
	// UpdateStatus moves a booking out of from and reports whether a row changed.
	UpdateStatus(ctx context.Context, id string, from, to Status, now time.Time) (bool, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var recordColumns = []string{
	"id", "tenant_id", "hold_id", "vertical", "resource_id", "customer_fingerprint",
	"start_time", "end_time", "status", "deposit_required", "deposit_type", "deposit_value",
	"created_at", "updated_at",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, extra ...any) (*Record, error) {
	var r Record
	var vertical, status, depositType string
	dest := []any{
		&r.ID, &r.TenantID, &r.HoldID, &vertical, &r.ResourceID, &r.CustomerFingerprint,
		&r.StartTime, &r.EndTime, &status, &r.DepositRequired, &depositType, &r.DepositValue,
		&r.CreatedAt, &r.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	r.Vertical = policy.Vertical(vertical)
	r.Status = Status(status)
	r.DepositType = policy.DepositType(depositType)
	return &r, nil
}

func (r *pgxRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

func (r *pgxRepository) Create(ctx context.Context, b *Record) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.bookings").
		Columns(
			"tenant_id", "hold_id", "vertical", "resource_id", "customer_fingerprint",
			"start_time", "end_time", "status", "deposit_required", "deposit_type", "deposit_value",
			"created_at", "updated_at",
		).
		Values(
			b.TenantID, b.HoldID, string(b.Vertical), b.ResourceID, b.CustomerFingerprint,
			b.StartTime, b.EndTime, string(b.Status), b.DepositRequired, string(b.DepositType), b.DepositValue,
			b.CreatedAt, b.UpdatedAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create booking query failed: %w", err)
	}

	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&b.ID); err != nil {
		if db.IsUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create booking failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, tenantID, id string) (*Record, error) {
	return r.get(ctx, tenantID, id, false)
}

func (r *pgxRepository) GetForUpdate(ctx context.Context, tenantID, id string) (*Record, error) {
	return r.get(ctx, tenantID, id, true)
}

func (r *pgxRepository) get(ctx context.Context, tenantID, id string, forUpdate bool) (*Record, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	builder := psql.Select(recordColumns...).
		From("public.bookings").
		Where(squirrel.Eq{"tenant_id": tenantID, "id": id})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}

	b, err := scanRecord(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidText(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking failed: %w", err)
	}
	return b, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Record, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(append(recordColumns, "count(*) OVER() AS total_count")...).
		From("public.bookings").
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
	// Date range filtering (intersection logic)
	if filter.StartTime != nil {
		query = query.Where(squirrel.GtOrEq{"end_time": filter.StartTime})
	}
	if filter.EndTime != nil {
		query = query.Where(squirrel.LtOrEq{"start_time": filter.EndTime})
	}

	// Sorting
	orderBy := "start_time"
	if filter.SortBy != "" {
		orderBy = filter.SortBy
	}

	orderDir := "DESC"
	if filter.SortOrder != "" {
		orderDir = filter.SortOrder
	}

	query = query.OrderBy(orderBy + " " + orderDir)

	// Pagination
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	query = query.Limit(uint64(filter.PageSize)).Offset(uint64(offset))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list bookings query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings failed: %w", err)
	}
	defer rows.Close()

	var records []*Record
	var total int

	for rows.Next() {
		b, err := scanRecord(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan booking failed: %w", err)
		}
		records = append(records, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate bookings failed: %w", err)
	}

	return records, total, nil
}

func (r *pgxRepository) UpdateStatus(ctx context.Context, id string, from, to Status, now time.Time) (bool, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.bookings").
		Set("status", string(to)).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": id, "status": string(from)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build update booking status query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update booking status failed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
