package dto

import (
	"time"

	"github.com/iho/creditledger/internal/domain"
	"github.com/shopspring/decimal"
)

// BalanceResponse represents a ledger-derived balance in API responses.
type BalanceResponse struct {
	UserID           string          `json:"user_id"`
	AvailableCredits decimal.Decimal `json:"available_credits"`
	HeldCredits      decimal.Decimal `json:"held_credits"`
	LifetimeCredits  decimal.Decimal `json:"lifetime_credits"`
	ExpiredCredits   decimal.Decimal `json:"expired_credits"`
	TotalCredits     decimal.Decimal `json:"total_credits"`
	CalculatedAt     time.Time       `json:"calculated_at"`
}

// BalanceFromDomain converts a computed balance to response.
func BalanceFromDomain(userID string, b domain.UserCreditBalance) *BalanceResponse {
	return &BalanceResponse{
		UserID:           userID,
		AvailableCredits: b.AvailableCredits,
		HeldCredits:      b.HeldCredits,
		LifetimeCredits:  b.LifetimeCredits,
		ExpiredCredits:   b.ExpiredCredits,
		TotalCredits:     b.TotalCredits,
		CalculatedAt:     b.CalculatedAt,
	}
}

// CachedBalanceResponse represents the cached balance stored on a user.
type CachedBalanceResponse struct {
	Credits            decimal.Decimal `json:"credits"`
	HeldCredits        decimal.Decimal `json:"held_credits"`
	LifetimeCredits    decimal.Decimal `json:"lifetime_credits"`
	CreditsLastUpdated *time.Time      `json:"credits_last_updated,omitempty"`
}

// CachedBalanceFromDomain converts a cached balance to response.
func CachedBalanceFromDomain(c domain.CachedBalance) CachedBalanceResponse {
	return CachedBalanceResponse{
		Credits:            c.Credits,
		HeldCredits:        c.HeldCredits,
		LifetimeCredits:    c.LifetimeCredits,
		CreditsLastUpdated: c.CreditsLastUpdated,
	}
}

// DeltasResponse represents computed minus cached differences.
type DeltasResponse struct {
	Available decimal.Decimal `json:"available"`
	Held      decimal.Decimal `json:"held"`
	Lifetime  decimal.Decimal `json:"lifetime"`
}

// ReconciliationResponse represents one reconciliation result.
type ReconciliationResponse struct {
	UserID          string                `json:"user_id"`
	Computed        BalanceResponse       `json:"computed"`
	Cached          CachedBalanceResponse `json:"cached"`
	Deltas          DeltasResponse        `json:"deltas"`
	WasUpdated      bool                  `json:"was_updated"`
	DryRun          bool                  `json:"dry_run"`
	Inconsistencies []string              `json:"inconsistencies"`
	ReconciledAt    time.Time             `json:"reconciled_at"`
}

// ReconciliationFromDomain converts a reconciliation result to response.
func ReconciliationFromDomain(r *domain.ReconciliationResult) *ReconciliationResponse {
	inconsistencies := r.Inconsistencies
	if inconsistencies == nil {
		inconsistencies = []string{}
	}

	return &ReconciliationResponse{
		UserID:   r.UserID,
		Computed: *BalanceFromDomain(r.UserID, r.Computed),
		Cached:   CachedBalanceFromDomain(r.Cached),
		Deltas: DeltasResponse{
			Available: r.Deltas.Available,
			Held:      r.Deltas.Held,
			Lifetime:  r.Deltas.Lifetime,
		},
		WasUpdated:      r.WasUpdated,
		DryRun:          r.DryRun,
		Inconsistencies: inconsistencies,
		ReconciledAt:    r.ReconciledAt,
	}
}

// BulkErrorResponse represents a per-user failure in a bulk run.
type BulkErrorResponse struct {
	UserID  string `json:"user_id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BulkReconciliationResponse represents a bulk run. Results are ordered
// by reporting priority.
type BulkReconciliationResponse struct {
	RunID                   string                    `json:"run_id"`
	ProcessedCount          int                       `json:"processed_count"`
	UpdatedCount            int                       `json:"updated_count"`
	InconsistencyCount      int                       `json:"inconsistency_count"`
	ErrorCount              int                       `json:"error_count"`
	SkippedCount            int                       `json:"skipped_count"`
	ProcessingTimeMs        int64                     `json:"processing_time_ms"`
	AverageProcessingTimeMs float64                   `json:"average_processing_time_ms"`
	Cancelled               bool                      `json:"cancelled"`
	Results                 []*ReconciliationResponse `json:"results"`
	Errors                  []BulkErrorResponse       `json:"errors"`
	SkippedUserIDs          []string                  `json:"skipped_user_ids,omitempty"`
}

// BulkReconciliationFromDomain converts a bulk result to response.
func BulkReconciliationFromDomain(b *domain.BulkReconciliationResult) *BulkReconciliationResponse {
	sorted := domain.SortResultsByPriority(b.Results)

	results := make([]*ReconciliationResponse, len(sorted))
	for i, r := range sorted {
		results[i] = ReconciliationFromDomain(r)
	}

	errs := make([]BulkErrorResponse, len(b.Errors))
	for i, e := range b.Errors {
		errs[i] = BulkErrorResponse{
			UserID:  e.UserID,
			Code:    string(e.Code),
			Message: e.Message,
		}
	}

	return &BulkReconciliationResponse{
		RunID:                   b.RunID,
		ProcessedCount:          b.ProcessedCount,
		UpdatedCount:            b.UpdatedCount,
		InconsistencyCount:      b.InconsistencyCount,
		ErrorCount:              b.ErrorCount,
		SkippedCount:            b.SkippedCount,
		ProcessingTimeMs:        b.ProcessingTimeMs,
		AverageProcessingTimeMs: b.AverageProcessingTimeMs,
		Cancelled:               b.Cancelled,
		Results:                 results,
		Errors:                  errs,
		SkippedUserIDs:          b.SkippedUserIDs,
	}
}

// EntryResponse represents a ledger entry in API responses.
type EntryResponse struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	EffectiveAt time.Time       `json:"effective_at"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	Deleted     bool            `json:"deleted"`
	CreatedAt   time.Time       `json:"created_at"`
}

// EntryFromDomain converts domain entry to response.
func EntryFromDomain(e *domain.LedgerEntry) *EntryResponse {
	return &EntryResponse{
		ID:          e.ID,
		UserID:      e.UserID,
		Amount:      e.Amount,
		Type:        string(e.Type),
		EffectiveAt: e.EffectiveAt,
		ExpiresAt:   e.ExpiresAt,
		Deleted:     e.Deleted,
		CreatedAt:   e.CreatedAt,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.LedgerEntry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// UserBalanceResponse pairs the ledger-derived balance with the cached one.
type UserBalanceResponse struct {
	Computed *BalanceResponse      `json:"computed"`
	Cached   CachedBalanceResponse `json:"cached"`
}
