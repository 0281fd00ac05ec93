package confirmation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tistis/secure-booking/internal/db"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Create inserts a pending confirmation. A second pending row for the hold yields ErrConfirmationPending.
	Create(ctx context.Context, c *Confirmation) error
	GetByID(ctx context.Context, tenantID, id string) (*Confirmation, error)
	// GetForUpdate locks the confirmation row for the rest of the transaction.
	GetForUpdate(ctx context.Context, tenantID, id string) (*Confirmation, error)
	// FindPendingByRecipient returns the newest pending confirmation sent to recipient over channel.
	FindPendingByRecipient(ctx context.Context, tenantID string, channel Channel, recipient string) (*Confirmation, error)
	// UpdateStatus is a conditional transition and reports whether a row changed.
	UpdateStatus(ctx context.Context, id string, from, to Status, respondedAt *time.Time) (bool, error)
	// ExpireLapsedForHold expires the hold's pending confirmation when its window has closed.
	ExpireLapsedForHold(ctx context.Context, holdID string, now time.Time) (int, error)
	HasConfirmed(ctx context.Context, tenantID, holdID string) (bool, error)
	// ExpireStale transitions up to limit lapsed pending confirmations, skipping rows locked elsewhere.
	ExpireStale(ctx context.Context, now time.Time, limit int) ([]Expired, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var confirmationColumns = []string{
	"id", "tenant_id", "hold_id", "confirmation_type", "recipient", "status",
	"sent_at", "responded_at", "expires_at",
}

func scanConfirmation(row pgx.Row) (*Confirmation, error) {
	var c Confirmation
	var channel, status string
	if err := row.Scan(
		&c.ID, &c.TenantID, &c.HoldID, &channel, &c.Recipient, &status,
		&c.SentAt, &c.RespondedAt, &c.ExpiresAt,
	); err != nil {
		return nil, err
	}
	c.Channel = Channel(channel)
	c.Status = Status(status)
	return &c, nil
}

func (r *pgxRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

func (r *pgxRepository) Create(ctx context.Context, c *Confirmation) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.booking_confirmations").
		Columns("tenant_id", "hold_id", "confirmation_type", "recipient", "status", "sent_at", "expires_at").
		Values(c.TenantID, c.HoldID, string(c.Channel), c.Recipient, string(c.Status), c.SentAt, c.ExpiresAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create confirmation query failed: %w", err)
	}

	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&c.ID); err != nil {
		if db.IsUniqueViolation(err) {
			return ErrConfirmationPending
		}
		return fmt.Errorf("create confirmation failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, tenantID, id string) (*Confirmation, error) {
	return r.get(ctx, tenantID, id, false)
}

func (r *pgxRepository) GetForUpdate(ctx context.Context, tenantID, id string) (*Confirmation, error) {
	return r.get(ctx, tenantID, id, true)
}

func (r *pgxRepository) get(ctx context.Context, tenantID, id string, forUpdate bool) (*Confirmation, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	builder := psql.Select(confirmationColumns...).
		From("public.booking_confirmations").
		Where(squirrel.Eq{"tenant_id": tenantID, "id": id})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get confirmation query failed: %w", err)
	}

	c, err := scanConfirmation(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidText(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get confirmation failed: %w", err)
	}
	return c, nil
}

func (r *pgxRepository) FindPendingByRecipient(ctx context.Context, tenantID string, channel Channel, recipient string) (*Confirmation, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(confirmationColumns...).
		From("public.booking_confirmations").
		Where(squirrel.Eq{
			"tenant_id":         tenantID,
			"confirmation_type": string(channel),
			"recipient":         recipient,
			"status":            string(StatusPending),
		}).
		OrderBy("sent_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find pending confirmation query failed: %w", err)
	}

	c, err := scanConfirmation(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoPendingForSender
		}
		return nil, fmt.Errorf("find pending confirmation failed: %w", err)
	}
	return c, nil
}

func (r *pgxRepository) UpdateStatus(ctx context.Context, id string, from, to Status, respondedAt *time.Time) (bool, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.booking_confirmations").
		Set("status", string(to)).
		Set("responded_at", respondedAt).
		Where(squirrel.Eq{"id": id, "status": string(from)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build update confirmation status query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update confirmation status failed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (r *pgxRepository) ExpireLapsedForHold(ctx context.Context, holdID string, now time.Time) (int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.booking_confirmations").
		Set("status", string(StatusExpired)).
		Where(squirrel.Eq{"hold_id": holdID, "status": string(StatusPending)}).
		Where(squirrel.LtOrEq{"expires_at": now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build expire hold confirmations query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("expire hold confirmations failed: %w", err)
	}
	return int(ct.RowsAffected()), nil
}

func (r *pgxRepository) HasConfirmed(ctx context.Context, tenantID, holdID string) (bool, error) {
	confirmed := squirrel.Select("1").
		From("public.booking_confirmations").
		Where(squirrel.Eq{"tenant_id": tenantID, "hold_id": holdID, "status": string(StatusConfirmed)})

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select().
		Column(squirrel.Expr("EXISTS (?)", confirmed)).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build has confirmed query failed: %w", err)
	}

	var ok bool
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("check confirmed failed: %w", err)
	}
	return ok, nil
}

func (r *pgxRepository) ExpireStale(ctx context.Context, now time.Time, limit int) ([]Expired, error) {
	due := squirrel.Select("id").
		From("public.booking_confirmations").
		Where(squirrel.Eq{"status": string(StatusPending)}).
		Where(squirrel.LtOrEq{"expires_at": now}).
		OrderBy("expires_at").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED")

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.booking_confirmations").
		Set("status", string(StatusExpired)).
		Where(squirrel.Expr("id IN (?)", due)).
		Where(squirrel.Eq{"status": string(StatusPending)}).
		Suffix("RETURNING id, tenant_id, hold_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build expire stale confirmations query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("expire stale confirmations failed: %w", err)
	}
	defer rows.Close()

	var expired []Expired
	for rows.Next() {
		var e Expired
		if err := rows.Scan(&e.ID, &e.TenantID, &e.HoldID); err != nil {
			return nil, fmt.Errorf("scan expired confirmation failed: %w", err)
		}
		expired = append(expired, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired confirmations failed: %w", err)
	}
	return expired, nil
}
