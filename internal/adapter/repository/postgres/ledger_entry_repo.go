package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/creditledger/internal/domain"
)

const ledgerEntryColumns = `id, user_id, amount, type, effective_at, expires_at, deleted, created_at`

// LedgerEntryRepository implements usecase.LedgerEntryRepository.
type LedgerEntryRepository struct {
	db querier
}

// NewLedgerEntryRepository creates a new LedgerEntryRepository.
func NewLedgerEntryRepository(pool *pgxpool.Pool) *LedgerEntryRepository {
	return newLedgerEntryRepository(pool)
}

func newLedgerEntryRepository(db querier) *LedgerEntryRepository {
	return &LedgerEntryRepository{db: db}
}

// ListByUser returns every live entry of a user in effective order.
func (r *LedgerEntryRepository) ListByUser(ctx context.Context, userID string) ([]*domain.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerEntryColumns + `
		FROM credit_ledger_entries
		WHERE user_id = $1 AND deleted = FALSE
		ORDER BY effective_at, id
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	return collectEntries(rows)
}

// ListByUsers returns live entries for a set of users in one round trip.
func (r *LedgerEntryRepository) ListByUsers(ctx context.Context, userIDs []string) (map[string][]*domain.LedgerEntry, error) {
	grouped := make(map[string][]*domain.LedgerEntry, len(userIDs))
	if len(userIDs) == 0 {
		return grouped, nil
	}

	query := `
		SELECT ` + ledgerEntryColumns + `
		FROM credit_ledger_entries
		WHERE user_id = ANY($1) AND deleted = FALSE
		ORDER BY user_id, effective_at, id
	`

	rows, err := r.db.Query(ctx, query, userIDs)
	if err != nil {
		return nil, err
	}

	entries, err := collectEntries(rows)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		grouped[e.UserID] = append(grouped[e.UserID], e)
	}

	return grouped, nil
}

// ListPage returns a page of a user's entries, newest first, deleted included.
func (r *LedgerEntryRepository) ListPage(ctx context.Context, userID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerEntryColumns + `
		FROM credit_ledger_entries
		WHERE user_id = $1
		ORDER BY effective_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]*domain.LedgerEntry, error) {
	defer rows.Close()

	entries := make([]*domain.LedgerEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var (
		e         domain.LedgerEntry
		amount    decimal.Decimal
		entryType string
		expiresAt *time.Time
	)

	err := row.Scan(
		&e.ID,
		&e.UserID,
		&amount,
		&entryType,
		&e.EffectiveAt,
		&expiresAt,
		&e.Deleted,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Amount = amount
	e.Type = domain.EntryType(entryType)
	e.ExpiresAt = expiresAt

	return &e, nil
}
