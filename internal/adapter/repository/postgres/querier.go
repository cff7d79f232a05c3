package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iho/creditledger/internal/usecase"
)

// querier is the subset of pgxpool.Pool and pgx.Tx the repositories use.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// inTx returns the pgx transaction behind tx, or fallback when tx is not ours.
func inTx(tx usecase.Transaction, fallback querier) querier {
	if t, ok := tx.(*Tx); ok && t != nil {
		return t.PgxTx()
	}
	return fallback
}
