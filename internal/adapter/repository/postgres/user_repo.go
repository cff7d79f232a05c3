package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/creditledger/internal/domain"
	"github.com/iho/creditledger/internal/usecase"
)

const cachedBalanceColumns = `id, credits, held_credits, lifetime_credits, credits_last_updated`

// UserRepository implements usecase.UserRepository over the users table,
// which carries the cached balance columns.
type UserRepository struct {
	db querier
}

// NewUserRepository creates a new user repository
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return newUserRepository(pool)
}

func newUserRepository(db querier) *UserRepository {
	return &UserRepository{db: db}
}

// GetCachedBalance retrieves a user's cached balance
func (r *UserRepository) GetCachedBalance(ctx context.Context, userID string) (*domain.CachedBalance, error) {
	query := `SELECT ` + cachedBalanceColumns + ` FROM users WHERE id = $1`

	b, err := scanCachedBalance(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	return b, nil
}

// GetCachedBalances retrieves cached balances for a set of users
func (r *UserRepository) GetCachedBalances(ctx context.Context, userIDs []string) (map[string]*domain.CachedBalance, error) {
	balances := make(map[string]*domain.CachedBalance, len(userIDs))
	if len(userIDs) == 0 {
		return balances, nil
	}

	query := `SELECT ` + cachedBalanceColumns + ` FROM users WHERE id = ANY($1)`

	rows, err := r.db.Query(ctx, query, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanCachedBalance(rows)
		if err != nil {
			return nil, err
		}
		balances[b.UserID] = b
	}

	return balances, rows.Err()
}

// ListUserIDs lists user IDs in a stable order
func (r *UserRepository) ListUserIDs(ctx context.Context, limit, offset int) ([]string, error) {
	query := `SELECT id FROM users ORDER BY id LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// UpdateCachedBalance overwrites the cached balance columns of a user
func (r *UserRepository) UpdateCachedBalance(ctx context.Context, tx usecase.Transaction, balance domain.CachedBalance) error {
	query := `
		UPDATE users
		SET credits = $2, held_credits = $3, lifetime_credits = $4, credits_last_updated = $5
		WHERE id = $1
	`

	tag, err := inTx(tx, r.db).Exec(ctx, query,
		balance.UserID,
		balance.Credits,
		balance.HeldCredits,
		balance.LifetimeCredits,
		balance.CreditsLastUpdated,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

func scanCachedBalance(row pgx.Row) (*domain.CachedBalance, error) {
	var (
		b           domain.CachedBalance
		lastUpdated *time.Time
	)

	err := row.Scan(
		&b.UserID,
		&b.Credits,
		&b.HeldCredits,
		&b.LifetimeCredits,
		&lastUpdated,
	)
	if err != nil {
		return nil, err
	}

	b.CreditsLastUpdated = lastUpdated

	return &b, nil
}
