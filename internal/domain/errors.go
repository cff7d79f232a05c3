package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Request shape errors
	ErrInvalidUserID    = errors.New("invalid user ID")
	ErrInvalidOptions   = errors.New("invalid reconciliation options")
	ErrInvalidBatchSize = errors.New("invalid batch size")
	ErrTooManyUsers     = errors.New("too many users in bulk request")
	ErrInvalidEntry     = errors.New("invalid ledger entry")

	// Computation errors
	ErrInvalidBalance = errors.New("invalid balance")

	// Lookup errors
	ErrUserNotFound = errors.New("user not found")

	// Throttling errors
	ErrTooFrequent = errors.New("reconciliation requested too frequently")
)

// ErrorCode classifies an error for reporting and transport mapping.
type ErrorCode string

const (
	CodeValidation     ErrorCode = "validation"
	CodeInvalidBalance ErrorCode = "invalid_balance"
	CodeNotFound       ErrorCode = "not_found"
	CodeTooFrequent    ErrorCode = "too_frequent"
	CodeInternal       ErrorCode = "internal"
)

// CodeOf returns the error code for err. Unknown errors are internal.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidBalance):
		return CodeInvalidBalance
	case errors.Is(err, ErrUserNotFound):
		return CodeNotFound
	case errors.Is(err, ErrTooFrequent):
		return CodeTooFrequent
	case errors.Is(err, ErrInvalidUserID),
		errors.Is(err, ErrInvalidOptions),
		errors.Is(err, ErrInvalidBatchSize),
		errors.Is(err, ErrTooManyUsers),
		errors.Is(err, ErrInvalidEntry):
		return CodeValidation
	default:
		return CodeInternal
	}
}

// ValidationError is a request validation failure attributed to one field.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Err, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// BalanceError reports a computed balance that violates a domain invariant.
type BalanceError struct {
	UserID  string
	Field   string
	Message string
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("%s for user %s: %s: %s", ErrInvalidBalance, e.UserID, e.Field, e.Message)
}

func (e *BalanceError) Unwrap() error {
	return ErrInvalidBalance
}

// FrequencyError is returned when a user was reconciled less than the
// minimum interval ago.
type FrequencyError struct {
	LastReconciled time.Time
	RetryAfter     time.Duration
}

func (e *FrequencyError) Error() string {
	return fmt.Sprintf("%s: last reconciled at %s, retry after %s",
		ErrTooFrequent, e.LastReconciled.UTC().Format(time.RFC3339), e.RetryAfter)
}

func (e *FrequencyError) Unwrap() error {
	return ErrTooFrequent
}
