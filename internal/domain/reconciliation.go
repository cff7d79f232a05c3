package domain

import (
	"time"
)

// ReconciliationResult is the outcome of reconciling one user. It is advisory:
// nothing here persists the cache, WasUpdated tells the caller to do so.
type ReconciliationResult struct {
	UserID          string
	Computed        UserCreditBalance
	Cached          CachedBalance
	Deltas          BalanceDeltas
	WasUpdated      bool
	DryRun          bool
	Inconsistencies []string
	ReconciledAt    time.Time
}

// HasInconsistencies reports whether the result carries any audit message.
func (r *ReconciliationResult) HasInconsistencies() bool {
	return len(r.Inconsistencies) > 0
}

// CachePatch returns the cache values the caller should persist when WasUpdated.
func (r *ReconciliationResult) CachePatch() CachedBalance {
	updatedAt := r.ReconciledAt
	return CachedBalance{
		UserID:             r.UserID,
		Credits:            r.Computed.AvailableCredits,
		HeldCredits:        r.Computed.HeldCredits,
		LifetimeCredits:    r.Computed.LifetimeCredits,
		CreditsLastUpdated: &updatedAt,
	}
}

// Reconciler runs the pure single-user reconciliation.
type Reconciler struct {
	validator *BalanceValidator
}

// NewReconciler creates a Reconciler. A nil validator uses the default ceiling.
func NewReconciler(validator *BalanceValidator) *Reconciler {
	if validator == nil {
		validator = defaultBalanceValidator
	}
	return &Reconciler{validator: validator}
}

// ReconcileUser reconciles one user with the default validator.
func ReconcileUser(userID string, entries []*LedgerEntry, cached *CachedBalance, opts ReconcileOptions, now time.Time) (*ReconciliationResult, error) {
	return NewReconciler(nil).ReconcileUser(userID, entries, cached, opts, now)
}

// ReconcileUser computes the balance of userID at now, validates it and
// compares it with cached. A nil cached means the user does not exist.
// Invariant violations abort without a result.
func (r *Reconciler) ReconcileUser(userID string, entries []*LedgerEntry, cached *CachedBalance, opts ReconcileOptions, now time.Time) (*ReconciliationResult, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	if err := ValidateOptions(opts); err != nil {
		return nil, err
	}

	if cached == nil {
		return nil, ErrUserNotFound
	}

	computed := ComputeBalance(entries, now)

	if err := r.validator.Validate(computed, userID); err != nil {
		return nil, err
	}

	shouldUpdate := ShouldUpdateCache(computed, *cached, opts)
	inconsistencies := DetectInconsistencies(computed, *cached, now, opts)

	return &ReconciliationResult{
		UserID:          userID,
		Computed:        computed,
		Cached:          *cached,
		Deltas:          ComputeDeltas(computed, *cached),
		WasUpdated:      shouldUpdate && !opts.DryRun,
		DryRun:          opts.DryRun,
		Inconsistencies: inconsistencies,
		ReconciledAt:    now,
	}, nil
}
