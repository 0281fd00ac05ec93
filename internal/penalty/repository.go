package penalty

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
	// LockCustomer serializes penalty recording per customer until the transaction ends.
	LockCustomer(ctx context.Context, tenantID, fingerprint string, timeout time.Duration) error

	InsertPenalty(ctx context.Context, p *Penalty) error
	// ListPenalties returns penalties newest first. A zero since returns the full history.
	ListPenalties(ctx context.Context, tenantID, fingerprint string, since time.Time) ([]Penalty, error)

	// GetActiveBlock returns the customer's unlifted, unexpired block or ErrBlockNotFound.
	GetActiveBlock(ctx context.Context, tenantID, fingerprint string, now time.Time) (*Block, error)
	GetBlock(ctx context.Context, tenantID, id string) (*Block, error)
	InsertBlock(ctx context.Context, b *Block) error
	// UpdateBlock moves an unlifted block's expiry and reason. until nil makes it permanent.
	UpdateBlock(ctx context.Context, id string, reason BlockReason, until *time.Time, now time.Time) error
	// LiftBlock marks an unlifted block as lifted and reports whether a row changed.
	LiftBlock(ctx context.Context, tenantID, id, liftedBy string, now time.Time) (bool, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var blockColumns = []string{
	"id", "tenant_id", "customer_fingerprint", "reason", "blocked_until",
	"created_from_penalty_id", "lifted_at", "lifted_by", "created_at", "updated_at",
}

func scanBlock(row pgx.Row) (*Block, error) {
	var b Block
	var reason string
	err := row.Scan(
		&b.ID, &b.TenantID, &b.CustomerFingerprint, &reason, &b.BlockedUntil,
		&b.CreatedFromPenaltyID, &b.LiftedAt, &b.LiftedBy, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Reason = BlockReason(reason)
	return &b, nil
}

func (r *pgxRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

func (r *pgxRepository) LockCustomer(ctx context.Context, tenantID, fingerprint string, timeout time.Duration) error {
	return db.AdvisoryXactLock(ctx, "customer:"+tenantID+":"+fingerprint, timeout)
}

func (r *pgxRepository) InsertPenalty(ctx context.Context, p *Penalty) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.customer_penalties").
		Columns("tenant_id", "customer_fingerprint", "violation_type", "weight", "occurred_at", "related_hold_id").
		Values(p.TenantID, p.CustomerFingerprint, string(p.ViolationType), p.Weight, p.OccurredAt, p.RelatedHoldID).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert penalty query failed: %w", err)
	}

	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&p.ID); err != nil {
		return fmt.Errorf("insert penalty failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) ListPenalties(ctx context.Context, tenantID, fingerprint string, since time.Time) ([]Penalty, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	builder := psql.Select("id", "tenant_id", "customer_fingerprint", "violation_type", "weight", "occurred_at", "related_hold_id").
		From("public.customer_penalties").
		Where(squirrel.Eq{"tenant_id": tenantID, "customer_fingerprint": fingerprint}).
		OrderBy("occurred_at DESC")
	if !since.IsZero() {
		builder = builder.Where(squirrel.Gt{"occurred_at": since})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list penalties query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list penalties failed: %w", err)
	}
	defer rows.Close()

	var penalties []Penalty
	for rows.Next() {
		var p Penalty
		var violation string
		if err := rows.Scan(&p.ID, &p.TenantID, &p.CustomerFingerprint, &violation, &p.Weight, &p.OccurredAt, &p.RelatedHoldID); err != nil {
			return nil, fmt.Errorf("scan penalty failed: %w", err)
		}
		p.ViolationType = ViolationType(violation)
		penalties = append(penalties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate penalties failed: %w", err)
	}
	return penalties, nil
}

func (r *pgxRepository) GetActiveBlock(ctx context.Context, tenantID, fingerprint string, now time.Time) (*Block, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(blockColumns...).
		From("public.customer_blocks").
		Where(squirrel.Eq{"tenant_id": tenantID, "customer_fingerprint": fingerprint, "lifted_at": nil}).
		Where(squirrel.Or{
			squirrel.Eq{"blocked_until": nil},
			squirrel.Gt{"blocked_until": now},
		}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get active block query failed: %w", err)
	}

	b, err := scanBlock(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, fmt.Errorf("get active block failed: %w", err)
	}
	return b, nil
}

func (r *pgxRepository) GetBlock(ctx context.Context, tenantID, id string) (*Block, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(blockColumns...).
		From("public.customer_blocks").
		Where(squirrel.Eq{"tenant_id": tenantID, "id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get block query failed: %w", err)
	}

	b, err := scanBlock(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidText(err) {
			return nil, ErrBlockNotFound
		}
		return nil, fmt.Errorf("get block failed: %w", err)
	}
	return b, nil
}

func (r *pgxRepository) InsertBlock(ctx context.Context, b *Block) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.customer_blocks").
		Columns("tenant_id", "customer_fingerprint", "reason", "blocked_until", "created_from_penalty_id", "created_at", "updated_at").
		Values(b.TenantID, b.CustomerFingerprint, string(b.Reason), b.BlockedUntil, b.CreatedFromPenaltyID, b.CreatedAt, b.UpdatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert block query failed: %w", err)
	}

	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&b.ID); err != nil {
		return fmt.Errorf("insert block failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) UpdateBlock(ctx context.Context, id string, reason BlockReason, until *time.Time, now time.Time) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.customer_blocks").
		Set("reason", string(reason)).
		Set("blocked_until", until).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": id, "lifted_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update block query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update block failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrBlockNotFound
	}
	return nil
}

func (r *pgxRepository) LiftBlock(ctx context.Context, tenantID, id, liftedBy string, now time.Time) (bool, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.customer_blocks").
		Set("lifted_at", now).
		Set("lifted_by", liftedBy).
		Set("updated_at", now).
		Where(squirrel.Eq{"tenant_id": tenantID, "id": id, "lifted_at": nil}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build lift block query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		if db.IsInvalidText(err) {
			return false, ErrBlockNotFound
		}
		return false, fmt.Errorf("lift block failed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
