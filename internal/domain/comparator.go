package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultTolerance absorbs rounding noise between computed and cached values.
	DefaultTolerance = "0.01"

	// DefaultStaleAfter is how long a cache may go unreconciled before it is reported.
	DefaultStaleAfter = 7 * 24 * time.Hour
)

// ReconcileOptions tunes a reconciliation call. A nil Tolerance and a zero
// StaleAfter select defaults; an explicit zero tolerance compares exactly.
type ReconcileOptions struct {
	ForceUpdate bool
	DryRun      bool
	Tolerance   *decimal.Decimal
	StaleAfter  time.Duration
}

// ToleranceOf returns a tolerance option set to d.
func ToleranceOf(d decimal.Decimal) *decimal.Decimal {
	return &d
}

// EffectiveTolerance returns the tolerance, defaulted when unset.
func (o ReconcileOptions) EffectiveTolerance() decimal.Decimal {
	if o.Tolerance == nil {
		return decimal.RequireFromString(DefaultTolerance)
	}
	return *o.Tolerance
}

// EffectiveStaleAfter returns the stale threshold, defaulted when unset.
func (o ReconcileOptions) EffectiveStaleAfter() time.Duration {
	if o.StaleAfter == 0 {
		return DefaultStaleAfter
	}
	return o.StaleAfter
}

// ShouldUpdateCache decides whether cached must be overwritten with computed.
func ShouldUpdateCache(computed UserCreditBalance, cached CachedBalance, opts ReconcileOptions) bool {
	if opts.ForceUpdate {
		return true
	}

	if cached.CreditsLastUpdated == nil {
		return true
	}

	tolerance := opts.EffectiveTolerance()

	return exceeds(computed.AvailableCredits, cached.Credits, tolerance) ||
		exceeds(computed.HeldCredits, cached.HeldCredits, tolerance) ||
		exceeds(computed.LifetimeCredits, cached.LifetimeCredits, tolerance)
}

// DetectInconsistencies describes every divergence between computed and
// cached, plus a stale-cache notice. Messages are meant for humans.
func DetectInconsistencies(computed UserCreditBalance, cached CachedBalance, now time.Time, opts ReconcileOptions) []string {
	tolerance := opts.EffectiveTolerance()
	issues := make([]string, 0)

	dims := []struct {
		label    string
		computed decimal.Decimal
		cached   decimal.Decimal
	}{
		{"Available credits", computed.AvailableCredits, cached.Credits},
		{"Held credits", computed.HeldCredits, cached.HeldCredits},
		{"Lifetime credits", computed.LifetimeCredits, cached.LifetimeCredits},
	}

	for _, d := range dims {
		if exceeds(d.computed, d.cached, tolerance) {
			issues = append(issues, fmt.Sprintf("%s mismatch: computed=%s cached=%s delta=%s",
				d.label, d.computed, d.cached, d.computed.Sub(d.cached)))
		}
	}

	if cached.CreditsLastUpdated != nil {
		age := now.Sub(*cached.CreditsLastUpdated)
		if age > opts.EffectiveStaleAfter() {
			issues = append(issues, fmt.Sprintf("Stale cache: credits last updated %s (%s ago)",
				cached.CreditsLastUpdated.UTC().Format(time.RFC3339), age.Round(time.Second)))
		}
	}

	return issues
}

// BalanceDeltas is computed minus cached, per dimension.
type BalanceDeltas struct {
	Available decimal.Decimal
	Held      decimal.Decimal
	Lifetime  decimal.Decimal
}

// ComputeDeltas returns computed minus cached for each tracked dimension.
func ComputeDeltas(computed UserCreditBalance, cached CachedBalance) BalanceDeltas {
	return BalanceDeltas{
		Available: computed.AvailableCredits.Sub(cached.Credits),
		Held:      computed.HeldCredits.Sub(cached.HeldCredits),
		Lifetime:  computed.LifetimeCredits.Sub(cached.LifetimeCredits),
	}
}

func exceeds(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().GreaterThan(tolerance)
}
