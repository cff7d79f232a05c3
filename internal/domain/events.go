package domain

import "time"

// Event types
const (
	EventTypeInconsistencyDetected = "reconciliation.inconsistency_detected"
)

// InconsistencyEvent is published when a reconciliation finds divergence
// between the ledger and the cached balance.
type InconsistencyEvent struct {
	EventType       string    `json:"event_type"`
	UserID          string    `json:"user_id"`
	RunID           string    `json:"run_id,omitempty"`
	WasUpdated      bool      `json:"was_updated"`
	Inconsistencies []string  `json:"inconsistencies"`
	AvailableDelta  string    `json:"available_delta"`
	HeldDelta       string    `json:"held_delta"`
	LifetimeDelta   string    `json:"lifetime_delta"`
	ComputedCredits string    `json:"computed_credits"`
	CachedCredits   string    `json:"cached_credits"`
	ReconciledAt    time.Time `json:"reconciled_at"`
}

// NewInconsistencyEvent builds the event payload for r.
func NewInconsistencyEvent(runID string, r *ReconciliationResult) InconsistencyEvent {
	return InconsistencyEvent{
		EventType:       EventTypeInconsistencyDetected,
		UserID:          r.UserID,
		RunID:           runID,
		WasUpdated:      r.WasUpdated,
		Inconsistencies: r.Inconsistencies,
		AvailableDelta:  r.Deltas.Available.String(),
		HeldDelta:       r.Deltas.Held.String(),
		LifetimeDelta:   r.Deltas.Lifetime.String(),
		ComputedCredits: r.Computed.AvailableCredits.String(),
		CachedCredits:   r.Cached.Credits.String(),
		ReconciledAt:    r.ReconciledAt,
	}
}
