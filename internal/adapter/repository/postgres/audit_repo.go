package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/creditledger/internal/domain"
)

// AuditRepository implements audit log persistence
type AuditRepository struct {
	db querier
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return newAuditRepository(pool)
}

func newAuditRepository(db querier) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts a new audit log entry
func (r *AuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	var beforeStateJSON, afterStateJSON []byte
	var err error

	if log.BeforeState != nil {
		beforeStateJSON, err = json.Marshal(log.BeforeState)
		if err != nil {
			return fmt.Errorf("failed to encode before state: %w", err)
		}
	}

	if log.AfterState != nil {
		afterStateJSON, err = json.Marshal(log.AfterState)
		if err != nil {
			return fmt.Errorf("failed to encode after state: %w", err)
		}
	}

	messages := log.Messages
	if messages == nil {
		messages = []string{}
	}
	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}

	query := `
		INSERT INTO reconciliation_audit_logs (
			id, user_id, action, run_id,
			before_state, after_state, status, messages, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.Exec(ctx, query,
		log.ID,
		log.UserID,
		string(log.Action),
		nullIfEmpty(log.RunID),
		beforeStateJSON,
		afterStateJSON,
		string(log.Status),
		messagesJSON,
		nullIfEmpty(log.ErrorMessage),
		log.CreatedAt,
	)

	return err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
