package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxUserIDLength       = 128
	DefaultBatchSize      = 100
	MinBatchSize          = 1
	MaxBatchSize          = 1000
	MaxBulkUsers          = 10000
	MaxLifetimeCredits    = "1000000" // sanity ceiling, not a business limit
	MaxToleranceAllowance = "1000"
)

// BalanceValidator sanity-checks computed balances before they may reach the cache.
type BalanceValidator struct {
	UpperBound decimal.Decimal
}

// NewBalanceValidator creates a validator with the given lifetime ceiling.
// A non-positive ceiling falls back to MaxLifetimeCredits.
func NewBalanceValidator(upperBound decimal.Decimal) *BalanceValidator {
	if !upperBound.IsPositive() {
		upperBound = decimal.RequireFromString(MaxLifetimeCredits)
	}
	return &BalanceValidator{UpperBound: upperBound}
}

var defaultBalanceValidator = NewBalanceValidator(decimal.Zero)

// ValidateBalance checks b with the default lifetime ceiling.
func ValidateBalance(b UserCreditBalance, userID string) error {
	return defaultBalanceValidator.Validate(b, userID)
}

// Validate returns every violated invariant of b, joined. A nil return
// means the balance may be written to the cache.
func (v *BalanceValidator) Validate(b UserCreditBalance, userID string) error {
	var errs []error

	if b.AvailableCredits.IsNegative() {
		errs = append(errs, &BalanceError{
			UserID:  userID,
			Field:   "availableCredits",
			Message: fmt.Sprintf("must not be negative, got %s", b.AvailableCredits),
		})
	}

	if b.LifetimeCredits.IsNegative() {
		errs = append(errs, &BalanceError{
			UserID:  userID,
			Field:   "lifetimeCredits",
			Message: fmt.Sprintf("must not be negative, got %s", b.LifetimeCredits),
		})
	}

	if sum := b.AvailableCredits.Add(b.HeldCredits); sum.GreaterThan(b.TotalCredits) {
		errs = append(errs, &BalanceError{
			UserID:  userID,
			Field:   "totalCredits",
			Message: fmt.Sprintf("available + held (%s) exceeds total (%s)", sum, b.TotalCredits),
		})
	}

	if b.LifetimeCredits.GreaterThan(v.UpperBound) {
		errs = append(errs, &BalanceError{
			UserID:  userID,
			Field:   "lifetimeCredits",
			Message: fmt.Sprintf("%s exceeds sanity ceiling %s", b.LifetimeCredits, v.UpperBound),
		})
	}

	return errors.Join(errs...)
}

// ValidateUserID validates a user identifier.
func ValidateUserID(userID string) error {
	trimmed := strings.TrimSpace(userID)

	if trimmed == "" {
		return &ValidationError{Field: "userId", Message: "must not be empty", Err: ErrInvalidUserID}
	}

	if trimmed != userID {
		return &ValidationError{Field: "userId", Message: "must not contain surrounding whitespace", Err: ErrInvalidUserID}
	}

	if len(userID) > MaxUserIDLength {
		return &ValidationError{Field: "userId", Message: fmt.Sprintf("exceeds %d characters", MaxUserIDLength), Err: ErrInvalidUserID}
	}

	return nil
}

// ValidateBatchSize validates the bulk batch size.
func ValidateBatchSize(size int) error {
	if size < MinBatchSize || size > MaxBatchSize {
		return &ValidationError{
			Field:   "batchSize",
			Message: fmt.Sprintf("must be between %d and %d, got %d", MinBatchSize, MaxBatchSize, size),
			Err:     ErrInvalidBatchSize,
		}
	}
	return nil
}

// ValidateUserIDs validates the user set of a bulk request.
func ValidateUserIDs(userIDs []string) error {
	if len(userIDs) > MaxBulkUsers {
		return &ValidationError{
			Field:   "userIds",
			Message: fmt.Sprintf("at most %d users per request, got %d", MaxBulkUsers, len(userIDs)),
			Err:     ErrTooManyUsers,
		}
	}

	for i, id := range userIDs {
		if err := ValidateUserID(id); err != nil {
			return &ValidationError{
				Field:   fmt.Sprintf("userIds[%d]", i),
				Message: err.Error(),
				Err:     ErrInvalidUserID,
			}
		}
	}

	return nil
}

// ValidateOptions validates the shape of reconciliation options.
func ValidateOptions(opts ReconcileOptions) error {
	if opts.Tolerance != nil {
		if opts.Tolerance.IsNegative() {
			return &ValidationError{Field: "tolerance", Message: "must not be negative", Err: ErrInvalidOptions}
		}

		if opts.Tolerance.GreaterThan(decimal.RequireFromString(MaxToleranceAllowance)) {
			return &ValidationError{Field: "tolerance", Message: "exceeds " + MaxToleranceAllowance, Err: ErrInvalidOptions}
		}
	}

	if opts.StaleAfter < 0 {
		return &ValidationError{Field: "staleAfter", Message: "must not be negative", Err: ErrInvalidOptions}
	}

	return nil
}
