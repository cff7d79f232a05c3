package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

var cacheWriteTxOptions = pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite}

func TestTxManagerBeginsSerializable(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBeginTx(cacheWriteTxOptions)
	mockPool.ExpectCommit()

	manager := newTxManagerWithPool(mockPool)
	if manager.Options() != cacheWriteTxOptions {
		t.Fatalf("unexpected tx options: %+v", manager.Options())
	}

	tx, err := manager.Begin(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestTxManagerWithIsolation(t *testing.T) {
	want := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadWrite}

	mockPool := newMockPool(t)
	mockPool.ExpectBeginTx(want)
	mockPool.ExpectRollback()

	manager := newTxManagerWithPool(mockPool, WithIsolation(pgx.RepeatableRead))
	tx, err := manager.Begin(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := tx.Rollback(context.Background()); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestTxManagerBeginError(t *testing.T) {
	mockPool := newMockPool(t)
	beginErr := errors.New("too many connections")
	mockPool.ExpectBeginTx(cacheWriteTxOptions).WillReturnError(beginErr)

	tx, err := newTxManagerWithPool(mockPool).Begin(context.Background())
	if !errors.Is(err, beginErr) || tx != nil {
		t.Fatalf("expected begin error, got err=%v tx=%v", err, tx)
	}
}

type closedTx struct {
	pgx.Tx
	rollbackErr error
}

func (c closedTx) Rollback(context.Context) error {
	return c.rollbackErr
}

func TestTxRollbackAfterCommitIsNoop(t *testing.T) {
	tx := &Tx{tx: closedTx{rollbackErr: pgx.ErrTxClosed}}
	if err := tx.Rollback(context.Background()); err != nil {
		t.Fatalf("expected closed tx rollback to be ignored, got %v", err)
	}

	lost := errors.New("conn lost")
	tx = &Tx{tx: closedTx{rollbackErr: lost}}
	if err := tx.Rollback(context.Background()); !errors.Is(err, lost) {
		t.Fatalf("expected rollback error, got %v", err)
	}
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func assertExpectations(t *testing.T, pool pgxmock.PgxPoolIface) {
	t.Helper()
	if err := pool.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations were not met: %v", err)
	}
}
