package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserCreditBalance is a point-in-time snapshot derived from the ledger.
type UserCreditBalance struct {
	AvailableCredits decimal.Decimal
	HeldCredits      decimal.Decimal
	LifetimeCredits  decimal.Decimal
	ExpiredCredits   decimal.Decimal
	TotalCredits     decimal.Decimal
	CalculatedAt     time.Time
}

// CachedBalance is the denormalized balance stored on the user record.
// CreditsLastUpdated is nil when the cache was never reconciled.
type CachedBalance struct {
	UserID             string
	Credits            decimal.Decimal
	HeldCredits        decimal.Decimal
	LifetimeCredits    decimal.Decimal
	CreditsLastUpdated *time.Time
}

// ComputeBalance folds entries into a balance as of asOf.
//
// The result depends only on the set of entries and asOf: input order does not
// matter and entries are not modified. Expiry takes precedence over holds, and
// every component is floored at zero independently.
func ComputeBalance(entries []*LedgerEntry, asOf time.Time) UserCreditBalance {
	available := decimal.Zero
	held := decimal.Zero
	lifetime := decimal.Zero
	expired := decimal.Zero

	for _, e := range entries {
		if e == nil || !e.IsEffective(asOf) {
			continue
		}

		if e.Amount.IsPositive() {
			lifetime = lifetime.Add(e.Amount)
		}

		switch {
		case e.IsExpired(asOf):
			expired = expired.Add(e.Amount)
		case IsHeldType(e.Type):
			held = held.Add(e.Amount.Abs())
		default:
			available = available.Add(e.Amount)
		}
	}

	available = floorZero(available)
	held = floorZero(held)
	lifetime = floorZero(lifetime)
	expired = floorZero(expired)

	return UserCreditBalance{
		AvailableCredits: available,
		HeldCredits:      held,
		LifetimeCredits:  lifetime,
		ExpiredCredits:   expired,
		TotalCredits:     floorZero(available.Add(held).Add(expired)),
		CalculatedAt:     asOf,
	}
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
