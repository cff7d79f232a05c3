package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntryType identifies the kind of credit movement a ledger entry records.
type EntryType string

const (
	EntryTypePurchase   EntryType = "purchase"
	EntryTypeSpend      EntryType = "spend"
	EntryTypeRefund     EntryType = "refund"
	EntryTypeGift       EntryType = "gift"
	EntryTypeExpiration EntryType = "expiration"
	EntryTypeAdjustment EntryType = "adjustment"

	// Held types reserve credit that is not yet available for spending.
	EntryTypeBookingHold    EntryType = "booking_hold"
	EntryTypePendingRefund  EntryType = "pending_refund"
	EntryTypeDisputedCharge EntryType = "disputed_charge"
	EntryTypeAdminHold      EntryType = "admin_hold"
)

var availableEntryTypes = map[EntryType]bool{
	EntryTypePurchase:   true,
	EntryTypeSpend:      true,
	EntryTypeRefund:     true,
	EntryTypeGift:       true,
	EntryTypeExpiration: true,
	EntryTypeAdjustment: true,
}

var heldEntryTypes = map[EntryType]bool{
	EntryTypeBookingHold:    true,
	EntryTypePendingRefund:  true,
	EntryTypeDisputedCharge: true,
	EntryTypeAdminHold:      true,
}

// IsHeldType reports whether entries of type t count as held credit.
// Every other type is an immediately available movement.
func IsHeldType(t EntryType) bool {
	return heldEntryTypes[t]
}

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	return availableEntryTypes[t] || heldEntryTypes[t]
}

// LedgerEntry is a single signed movement of credit for one user.
// Entries are append-only; removal is expressed through Deleted.
type LedgerEntry struct {
	ID          string
	UserID      string
	Amount      decimal.Decimal
	Type        EntryType
	EffectiveAt time.Time
	ExpiresAt   *time.Time
	Deleted     bool
	CreatedAt   time.Time
}

// IsEffective reports whether the entry counts at asOf.
func (e *LedgerEntry) IsEffective(asOf time.Time) bool {
	return !e.Deleted && !e.EffectiveAt.After(asOf)
}

// IsExpired reports whether a positive entry has lapsed at asOf.
// Negative entries never expire.
func (e *LedgerEntry) IsExpired(asOf time.Time) bool {
	return e.ExpiresAt != nil && e.Amount.IsPositive() && !e.ExpiresAt.After(asOf)
}

// Validate checks the entry's structural invariants.
func (e *LedgerEntry) Validate() error {
	if e.UserID == "" {
		return &ValidationError{Field: "userId", Message: "must not be empty", Err: ErrInvalidEntry}
	}

	if !e.Type.Valid() {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown entry type %q", e.Type), Err: ErrInvalidEntry}
	}

	if !isPositiveInstant(e.EffectiveAt) {
		return &ValidationError{Field: "effectiveAt", Message: "must be a positive timestamp", Err: ErrInvalidEntry}
	}

	if e.ExpiresAt != nil && !e.ExpiresAt.After(e.EffectiveAt) {
		return &ValidationError{Field: "expiresAt", Message: "must be after effectiveAt", Err: ErrInvalidEntry}
	}

	return nil
}

func isPositiveInstant(t time.Time) bool {
	return !t.IsZero() && t.UnixMilli() > 0
}
