package trust

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

	// Ensure creates the neutral score row if the customer has none yet.
	Ensure(ctx context.Context, tenantID, fingerprint string, vertical policy.Vertical, now time.Time) error
	Get(ctx context.Context, tenantID, fingerprint string) (*Score, error)
	// GetForUpdate locks the score row for the rest of the transaction.
	GetForUpdate(ctx context.Context, tenantID, fingerprint string) (*Score, error)
	Update(ctx context.Context, s *Score) error

	InsertEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, tenantID, fingerprint string) ([]Event, error)

	ListStale(ctx context.Context, before time.Time, limit int) ([]StaleKey, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

func (r *pgxRepository) Ensure(ctx context.Context, tenantID, fingerprint string, vertical policy.Vertical, now time.Time) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.customer_trust_scores").
		Columns("tenant_id", "customer_fingerprint", "vertical", "score", "last_updated_at").
		Values(tenantID, fingerprint, string(vertical), NeutralScore, now).
		Suffix("ON CONFLICT (tenant_id, customer_fingerprint) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build ensure trust score query failed: %w", err)
	}

	if _, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("ensure trust score failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) Get(ctx context.Context, tenantID, fingerprint string) (*Score, error) {
	return r.get(ctx, tenantID, fingerprint, false)
}

func (r *pgxRepository) GetForUpdate(ctx context.Context, tenantID, fingerprint string) (*Score, error) {
	return r.get(ctx, tenantID, fingerprint, true)
}

func (r *pgxRepository) get(ctx context.Context, tenantID, fingerprint string, forUpdate bool) (*Score, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	builder := psql.Select(
		"tenant_id", "customer_fingerprint", "vertical", "score",
		"completed_count", "cancelled_count", "no_show_count", "last_updated_at",
	).
		From("public.customer_trust_scores").
		Where(squirrel.Eq{"tenant_id": tenantID, "customer_fingerprint": fingerprint})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get trust score query failed: %w", err)
	}

	var s Score
	var vertical string
	err = db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(
		&s.TenantID, &s.CustomerFingerprint, &vertical, &s.Score,
		&s.CompletedCount, &s.CancelledCount, &s.NoShowCount, &s.LastUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get trust score failed: %w", err)
	}
	s.Vertical = policy.Vertical(vertical)
	return &s, nil
}

func (r *pgxRepository) Update(ctx context.Context, s *Score) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.customer_trust_scores").
		Set("vertical", string(s.Vertical)).
		Set("score", s.Score).
		Set("completed_count", s.CompletedCount).
		Set("cancelled_count", s.CancelledCount).
		Set("no_show_count", s.NoShowCount).
		Set("last_updated_at", s.LastUpdatedAt).
		Where(squirrel.Eq{"tenant_id": s.TenantID, "customer_fingerprint": s.CustomerFingerprint}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update trust score query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update trust score failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgxRepository) InsertEvent(ctx context.Context, e *Event) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.customer_trust_events").
		Columns("tenant_id", "customer_fingerprint", "outcome", "delta", "occurred_at").
		Values(e.TenantID, e.CustomerFingerprint, string(e.Outcome), e.Delta, e.OccurredAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert trust event query failed: %w", err)
	}

	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&e.ID); err != nil {
		return fmt.Errorf("insert trust event failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) ListEvents(ctx context.Context, tenantID, fingerprint string) ([]Event, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("id", "tenant_id", "customer_fingerprint", "outcome", "delta", "occurred_at").
		From("public.customer_trust_events").
		Where(squirrel.Eq{"tenant_id": tenantID, "customer_fingerprint": fingerprint}).
		OrderBy("occurred_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list trust events query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trust events failed: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var outcome string
		if err := rows.Scan(&e.ID, &e.TenantID, &e.CustomerFingerprint, &outcome, &e.Delta, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan trust event failed: %w", err)
		}
		e.Outcome = Outcome(outcome)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trust events failed: %w", err)
	}
	return events, nil
}

func (r *pgxRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]StaleKey, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("tenant_id", "customer_fingerprint", "vertical").
		From("public.customer_trust_scores").
		Where(squirrel.Lt{"last_updated_at": before}).
		Where(squirrel.Lt{"score": MaxScore}).
		OrderBy("last_updated_at ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list stale trust scores query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stale trust scores failed: %w", err)
	}
	defer rows.Close()

	var keys []StaleKey
	for rows.Next() {
		var k StaleKey
		var vertical string
		if err := rows.Scan(&k.TenantID, &k.CustomerFingerprint, &vertical); err != nil {
			return nil, fmt.Errorf("scan stale trust score failed: %w", err)
		}
		k.Vertical = policy.Vertical(vertical)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
