package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/creditledger/internal/usecase"
)

// CacheWriteIsolation is the default isolation level of cache write
// transactions. Two writers racing on one user's row fail with SQLSTATE 40001,
// which Retrier treats as retryable.
const CacheWriteIsolation = pgx.Serializable

type pgxPool interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// TxManagerOption customizes the transactions a TxManager opens.
type TxManagerOption func(*pgx.TxOptions)

// WithIsolation overrides the isolation level.
func WithIsolation(level pgx.TxIsoLevel) TxManagerOption {
	return func(o *pgx.TxOptions) {
		o.IsoLevel = level
	}
}

// TxManager implements usecase.TransactionManager for cache writes.
type TxManager struct {
	pool pgxPool
	opts pgx.TxOptions
}

// NewTxManager creates a TxManager opening read-write transactions at
// CacheWriteIsolation unless overridden.
func NewTxManager(pool *pgxpool.Pool, options ...TxManagerOption) *TxManager {
	return newTxManagerWithPool(pool, options...)
}

func newTxManagerWithPool(pool pgxPool, options ...TxManagerOption) *TxManager {
	opts := pgx.TxOptions{
		IsoLevel:   CacheWriteIsolation,
		AccessMode: pgx.ReadWrite,
	}
	for _, apply := range options {
		apply(&opts)
	}

	return &TxManager{pool: pool, opts: opts}
}

// Options returns the options every transaction is started with.
func (m *TxManager) Options() pgx.TxOptions {
	return m.opts
}

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	tx, err := m.pool.BeginTx(ctx, m.opts)
	if err != nil {
		return nil, err
	}

	return &Tx{tx: tx}, nil
}

// Tx wraps a pgx transaction.
type Tx struct {
	tx pgx.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback rolls back the transaction. Rolling back a committed
// transaction is a no-op so callers can defer it unconditionally.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// PgxTx returns the underlying pgx.Tx.
func (t *Tx) PgxTx() pgx.Tx {
	return t.tx
}
