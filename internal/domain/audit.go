package domain

import (
	"time"
)

// AuditLog is an audit trail row describing one reconciliation outcome.
type AuditLog struct {
	ID           string
	UserID       string // Reconciled user
	Action       AuditAction
	RunID        string // Bulk run, empty for single-user calls
	BeforeState  JSON   // Cached balance
	AfterState   JSON   // Computed balance
	Status       AuditStatus
	Messages     []string
	ErrorMessage string
	CreatedAt    time.Time
}

// JSON is a type alias for JSON data
type JSON map[string]any

// AuditAction represents different types of auditable actions
type AuditAction string

const (
	AuditActionCacheCorrected        AuditAction = "reconciliation.cache_corrected"
	AuditActionInconsistencyDetected AuditAction = "reconciliation.inconsistency_detected"
	AuditActionReconcileFailed       AuditAction = "reconciliation.failed"
)

// AuditStatus represents the status of an audited action
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// NewReconciliationAuditLog builds the audit row for a reconciliation result.
func NewReconciliationAuditLog(id, runID string, r *ReconciliationResult) *AuditLog {
	action := AuditActionInconsistencyDetected
	if r.WasUpdated {
		action = AuditActionCacheCorrected
	}

	return &AuditLog{
		ID:          id,
		UserID:      r.UserID,
		Action:      action,
		RunID:       runID,
		BeforeState: CachedBalanceState(r.Cached),
		AfterState:  BalanceState(r.Computed),
		Status:      AuditStatusSuccess,
		Messages:    r.Inconsistencies,
		CreatedAt:   r.ReconciledAt,
	}
}

// NewFailedReconciliationAuditLog builds the audit row for a failed reconciliation.
func NewFailedReconciliationAuditLog(id, runID, userID string, err error, at time.Time) *AuditLog {
	return &AuditLog{
		ID:           id,
		UserID:       userID,
		Action:       AuditActionReconcileFailed,
		RunID:        runID,
		Status:       AuditStatusFailure,
		ErrorMessage: err.Error(),
		CreatedAt:    at,
	}
}

// BalanceState renders a computed balance for audit storage.
func BalanceState(b UserCreditBalance) JSON {
	return JSON{
		"available_credits": b.AvailableCredits.String(),
		"held_credits":      b.HeldCredits.String(),
		"lifetime_credits":  b.LifetimeCredits.String(),
		"expired_credits":   b.ExpiredCredits.String(),
		"total_credits":     b.TotalCredits.String(),
		"calculated_at":     b.CalculatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// CachedBalanceState renders a cached balance for audit storage.
func CachedBalanceState(c CachedBalance) JSON {
	state := JSON{
		"credits":          c.Credits.String(),
		"held_credits":     c.HeldCredits.String(),
		"lifetime_credits": c.LifetimeCredits.String(),
	}
	if c.CreditsLastUpdated != nil {
		state["credits_last_updated"] = c.CreditsLastUpdated.UTC().Format(time.RFC3339Nano)
	}
	return state
}
