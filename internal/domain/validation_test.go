package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBalance() UserCreditBalance {
	return UserCreditBalance{
		AvailableCredits: decimal.NewFromInt(80),
		HeldCredits:      decimal.NewFromInt(20),
		LifetimeCredits:  decimal.NewFromInt(150),
		ExpiredCredits:   decimal.NewFromInt(10),
		TotalCredits:     decimal.NewFromInt(110),
		CalculatedAt:     testNow,
	}
}

func balanceErrorFields(t *testing.T, err error) []string {
	t.Helper()

	var fields []string
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			var bErr *BalanceError
			require.True(t, errors.As(e, &bErr))
			fields = append(fields, bErr.Field)
		}
	}
	return fields
}

func TestValidateBalance(t *testing.T) {
	t.Parallel()

	t.Run("valid balance", func(t *testing.T) {
		require.NoError(t, ValidateBalance(validBalance(), "user-1"))
	})

	t.Run("negative available", func(t *testing.T) {
		b := validBalance()
		b.AvailableCredits = decimal.NewFromInt(-1)

		err := ValidateBalance(b, "user-1")
		require.ErrorIs(t, err, ErrInvalidBalance)
		assert.Equal(t, []string{"availableCredits"}, balanceErrorFields(t, err))
		assert.Contains(t, err.Error(), "user-1")
	})

	t.Run("negative lifetime", func(t *testing.T) {
		b := validBalance()
		b.LifetimeCredits = decimal.NewFromInt(-5)

		err := ValidateBalance(b, "user-1")
		assert.Equal(t, []string{"lifetimeCredits"}, balanceErrorFields(t, err))
	})

	t.Run("available plus held exceeds total", func(t *testing.T) {
		b := validBalance()
		b.TotalCredits = decimal.NewFromInt(99)

		err := ValidateBalance(b, "user-1")
		assert.Equal(t, []string{"totalCredits"}, balanceErrorFields(t, err))
	})

	t.Run("lifetime above ceiling", func(t *testing.T) {
		b := validBalance()
		b.LifetimeCredits = decimal.RequireFromString(MaxLifetimeCredits).Add(decimal.NewFromInt(1))

		err := ValidateBalance(b, "user-1")
		assert.Equal(t, []string{"lifetimeCredits"}, balanceErrorFields(t, err))
	})

	t.Run("every violation is reported in order", func(t *testing.T) {
		b := UserCreditBalance{
			AvailableCredits: decimal.NewFromInt(-1),
			HeldCredits:      decimal.NewFromInt(5),
			LifetimeCredits:  decimal.NewFromInt(-2),
			TotalCredits:     decimal.NewFromInt(1),
		}

		err := ValidateBalance(b, "user-1")
		assert.Equal(t, []string{"availableCredits", "lifetimeCredits", "totalCredits"}, balanceErrorFields(t, err))
	})
}

func TestBalanceValidatorCustomCeiling(t *testing.T) {
	v := NewBalanceValidator(decimal.NewFromInt(100))

	err := v.Validate(validBalance(), "user-1")
	require.ErrorIs(t, err, ErrInvalidBalance)

	fallback := NewBalanceValidator(decimal.Zero)
	assert.True(t, fallback.UpperBound.Equal(decimal.RequireFromString(MaxLifetimeCredits)))
}

func TestValidateUserID(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateUserID("01HXYZ"))

	for _, id := range []string{"", "   ", " padded", strings.Repeat("a", MaxUserIDLength+1)} {
		err := ValidateUserID(id)
		require.ErrorIsf(t, err, ErrInvalidUserID, "id %q", id)
		assert.Equal(t, CodeValidation, CodeOf(err))
	}
}

func TestValidateBatchSize(t *testing.T) {
	t.Parallel()

	for _, size := range []int{MinBatchSize, DefaultBatchSize, MaxBatchSize} {
		require.NoError(t, ValidateBatchSize(size))
	}

	for _, size := range []int{-1, 0, MaxBatchSize + 1} {
		require.ErrorIs(t, ValidateBatchSize(size), ErrInvalidBatchSize)
	}
}

func TestValidateUserIDs(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateUserIDs(nil))
	require.NoError(t, ValidateUserIDs([]string{"a", "b"}))

	tooMany := make([]string, MaxBulkUsers+1)
	for i := range tooMany {
		tooMany[i] = "u"
	}
	require.ErrorIs(t, ValidateUserIDs(tooMany), ErrTooManyUsers)

	err := ValidateUserIDs([]string{"a", ""})
	require.ErrorIs(t, err, ErrInvalidUserID)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "userIds[1]", vErr.Field)
}

func TestValidateOptions(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateOptions(ReconcileOptions{}))
	require.NoError(t, ValidateOptions(ReconcileOptions{ForceUpdate: true}))
	require.NoError(t, ValidateOptions(ReconcileOptions{DryRun: true, Tolerance: ToleranceOf(decimal.RequireFromString("0.5"))}))
	require.NoError(t, ValidateOptions(ReconcileOptions{Tolerance: ToleranceOf(decimal.Zero)}))
	require.NoError(t, ValidateOptions(ReconcileOptions{ForceUpdate: true, DryRun: true}))

	invalid := []ReconcileOptions{
		{Tolerance: ToleranceOf(decimal.NewFromInt(-1))},
		{Tolerance: ToleranceOf(decimal.NewFromInt(5000))},
		{StaleAfter: -1},
	}
	for _, opts := range invalid {
		require.ErrorIs(t, ValidateOptions(opts), ErrInvalidOptions)
	}
}
