package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrLockTimeout is returned when a lock could not be obtained within its timeout.
var ErrLockTimeout = errors.New("lock wait timed out")

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// WithTx runs fn inside a transaction carried by the returned context.
// Nested calls join the outer transaction so several repositories can share one unit of work.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// TxFromContext returns the transaction bound to ctx, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

// Conn returns the context transaction when present, otherwise the pool.
func Conn(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// AdvisoryXactLock takes a transaction-scoped advisory lock on key, waiting at most timeout.
// It must run inside WithTx; the lock is released on commit or rollback.
func AdvisoryXactLock(ctx context.Context, key string, timeout time.Duration) error {
	tx := TxFromContext(ctx)
	if tx == nil {
		return errors.New("advisory lock requires a transaction")
	}

	if timeout > 0 {
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, fmt.Sprintf("%dms", timeout.Milliseconds())); err != nil {
			return fmt.Errorf("set lock_timeout: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		if IsLockNotAvailable(err) {
			return ErrLockTimeout
		}
		return fmt.Errorf("acquire advisory lock: %w", err)
	}
	return nil
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// IsUniqueViolation reports a unique constraint violation.
func IsUniqueViolation(err error) bool {
	return hasCode(err, pgerrcode.UniqueViolation)
}

// IsExclusionViolation reports an exclusion constraint violation.
func IsExclusionViolation(err error) bool {
	return hasCode(err, pgerrcode.ExclusionViolation)
}

// IsLockNotAvailable reports a lock_timeout expiry.
func IsLockNotAvailable(err error) bool {
	return hasCode(err, pgerrcode.LockNotAvailable)
}

// IsInvalidText reports malformed input such as a non-UUID id.
func IsInvalidText(err error) bool {
	return hasCode(err, pgerrcode.InvalidTextRepresentation)
}
