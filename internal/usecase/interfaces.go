package usecase

import (
	"context"
	"time"

	"github.com/iho/creditledger/internal/domain"
)

// LedgerEntryRepository defines read access to the credit ledger.
type LedgerEntryRepository interface {
	ListByUser(ctx context.Context, userID string) ([]*domain.LedgerEntry, error)
	// ListByUsers returns entries grouped by user; users without entries are absent.
	ListByUsers(ctx context.Context, userIDs []string) (map[string][]*domain.LedgerEntry, error)
	ListPage(ctx context.Context, userID string, limit, offset int) ([]*domain.LedgerEntry, error)
}

// UserRepository defines access to users and their cached balances.
type UserRepository interface {
	GetCachedBalance(ctx context.Context, userID string) (*domain.CachedBalance, error)
	// GetCachedBalances returns cached balances keyed by user; unknown users are absent.
	GetCachedBalances(ctx context.Context, userIDs []string) (map[string]*domain.CachedBalance, error)
	ListUserIDs(ctx context.Context, limit, offset int) ([]string, error)
	UpdateCachedBalance(ctx context.Context, tx Transaction, balance domain.CachedBalance) error
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// InconsistencyPublisher forwards detected inconsistencies to notification consumers.
type InconsistencyPublisher interface {
	Publish(ctx context.Context, event domain.InconsistencyEvent) error
}

// UserLocker serializes cache writes for a single user.
type UserLocker interface {
	// Lock blocks until the user's lock is held or ctx ends.
	Lock(ctx context.Context, userID string) (unlock func(), err error)
}

// ReconcileTracker remembers when each user was last reconciled.
type ReconcileTracker interface {
	LastReconciled(ctx context.Context, userID string) (*time.Time, error)
	MarkReconciled(ctx context.Context, userID string, at time.Time) error
}

// MetricsRecorder receives reconciliation outcomes.
type MetricsRecorder interface {
	ObserveReconciliation(outcome string, duration time.Duration)
	ObserveBulkRun(result *domain.BulkReconciliationResult)
}

// Retrier retries an operation on transient storage errors.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}
