package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func computedBalance(available, held, lifetime int64) UserCreditBalance {
	return UserCreditBalance{
		AvailableCredits: decimal.NewFromInt(available),
		HeldCredits:      decimal.NewFromInt(held),
		LifetimeCredits:  decimal.NewFromInt(lifetime),
		TotalCredits:     decimal.NewFromInt(available + held),
		CalculatedAt:     testNow,
	}
}

func cachedFrom(b UserCreditBalance, lastUpdated *time.Time) CachedBalance {
	return CachedBalance{
		UserID:             "user-1",
		Credits:            b.AvailableCredits,
		HeldCredits:        b.HeldCredits,
		LifetimeCredits:    b.LifetimeCredits,
		CreditsLastUpdated: lastUpdated,
	}
}

func TestShouldUpdateCache(t *testing.T) {
	t.Parallel()

	computed := computedBalance(100, 20, 150)
	fresh := ptrTime(testNow.Add(-time.Hour))

	tests := []struct {
		name   string
		cached CachedBalance
		opts   ReconcileOptions
		want   bool
	}{
		{"identical", cachedFrom(computed, fresh), ReconcileOptions{}, false},
		{"force update", cachedFrom(computed, fresh), ReconcileOptions{ForceUpdate: true}, true},
		{"never reconciled", cachedFrom(computed, nil), ReconcileOptions{}, true},
		{
			"within tolerance",
			CachedBalance{Credits: decimal.RequireFromString("100.01"), HeldCredits: decimal.RequireFromString("19.995"), LifetimeCredits: decimal.NewFromInt(150), CreditsLastUpdated: fresh},
			ReconcileOptions{}, false,
		},
		{
			"available mismatch",
			CachedBalance{Credits: decimal.NewFromInt(90), HeldCredits: decimal.NewFromInt(20), LifetimeCredits: decimal.NewFromInt(150), CreditsLastUpdated: fresh},
			ReconcileOptions{}, true,
		},
		{
			"held mismatch",
			CachedBalance{Credits: decimal.NewFromInt(100), HeldCredits: decimal.NewFromInt(25), LifetimeCredits: decimal.NewFromInt(150), CreditsLastUpdated: fresh},
			ReconcileOptions{}, true,
		},
		{
			"lifetime mismatch",
			CachedBalance{Credits: decimal.NewFromInt(100), HeldCredits: decimal.NewFromInt(20), LifetimeCredits: decimal.RequireFromString("150.02"), CreditsLastUpdated: fresh},
			ReconcileOptions{}, true,
		},
		{
			"custom tolerance absorbs mismatch",
			CachedBalance{Credits: decimal.NewFromInt(99), HeldCredits: decimal.NewFromInt(20), LifetimeCredits: decimal.NewFromInt(150), CreditsLastUpdated: fresh},
			ReconcileOptions{Tolerance: ToleranceOf(decimal.NewFromInt(2))}, false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldUpdateCache(computed, tt.cached, tt.opts))
		})
	}
}

func TestDetectInconsistencies_AvailableMismatch(t *testing.T) {
	computed := computedBalance(100, 0, 100)
	cached := cachedFrom(computed, ptrTime(testNow.Add(-time.Hour)))
	cached.Credits = decimal.NewFromInt(90)

	require.True(t, ShouldUpdateCache(computed, cached, ReconcileOptions{}))

	issues := DetectInconsistencies(computed, cached, testNow, ReconcileOptions{})
	require.Len(t, issues, 1)
	assert.True(t, strings.HasPrefix(issues[0], "Available credits mismatch"))
	assert.Contains(t, issues[0], "computed=100")
	assert.Contains(t, issues[0], "cached=90")
	assert.Contains(t, issues[0], "delta=10")
}

func TestDetectInconsistencies_StaleButCorrectCache(t *testing.T) {
	computed := computedBalance(100, 20, 150)
	cached := cachedFrom(computed, ptrTime(testNow.Add(-8*24*time.Hour)))

	assert.False(t, ShouldUpdateCache(computed, cached, ReconcileOptions{}))

	issues := DetectInconsistencies(computed, cached, testNow, ReconcileOptions{})
	require.Len(t, issues, 1)
	assert.True(t, strings.HasPrefix(issues[0], "Stale cache"))
}

func TestDetectInconsistencies_AllDimensions(t *testing.T) {
	computed := computedBalance(100, 20, 150)
	cached := CachedBalance{
		Credits:            decimal.NewFromInt(50),
		HeldCredits:        decimal.NewFromInt(0),
		LifetimeCredits:    decimal.NewFromInt(100),
		CreditsLastUpdated: ptrTime(testNow.Add(-30 * 24 * time.Hour)),
	}

	issues := DetectInconsistencies(computed, cached, testNow, ReconcileOptions{})
	require.Len(t, issues, 4)
	assert.True(t, strings.HasPrefix(issues[0], "Available credits mismatch"))
	assert.True(t, strings.HasPrefix(issues[1], "Held credits mismatch"))
	assert.True(t, strings.HasPrefix(issues[2], "Lifetime credits mismatch"))
	assert.True(t, strings.HasPrefix(issues[3], "Stale cache"))
}

func TestDetectInconsistencies_NegativeDelta(t *testing.T) {
	computed := computedBalance(40, 0, 40)
	cached := cachedFrom(computed, ptrTime(testNow))
	cached.Credits = decimal.NewFromInt(55)

	issues := DetectInconsistencies(computed, cached, testNow, ReconcileOptions{})
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "delta=-15")
}

func TestToleranceIdempotence(t *testing.T) {
	computed := computedBalance(100, 20, 150)
	cached := cachedFrom(computed, ptrTime(testNow.Add(-time.Minute)))

	assert.False(t, ShouldUpdateCache(computed, cached, ReconcileOptions{}))
	assert.Empty(t, DetectInconsistencies(computed, cached, testNow, ReconcileOptions{}))
}

func TestZeroToleranceComparesExactly(t *testing.T) {
	computed := UserCreditBalance{
		AvailableCredits: decimal.RequireFromString("100.005"),
		HeldCredits:      decimal.Zero,
		LifetimeCredits:  decimal.RequireFromString("100.005"),
	}
	cached := CachedBalance{
		Credits:            decimal.NewFromInt(100),
		HeldCredits:        decimal.Zero,
		LifetimeCredits:    decimal.NewFromInt(100),
		CreditsLastUpdated: ptrTime(testNow.Add(-time.Minute)),
	}
	exact := ReconcileOptions{Tolerance: ToleranceOf(decimal.Zero)}

	assert.True(t, exact.EffectiveTolerance().IsZero())
	assert.True(t, ShouldUpdateCache(computed, cached, exact))
	assert.Len(t, DetectInconsistencies(computed, cached, testNow, exact), 2)

	assert.False(t, ShouldUpdateCache(computed, cached, ReconcileOptions{}))
	assert.Empty(t, DetectInconsistencies(computed, cached, testNow, ReconcileOptions{}))
}

func TestDetectInconsistencies_NeverReconciledIsNotStale(t *testing.T) {
	computed := computedBalance(10, 0, 10)
	cached := cachedFrom(computed, nil)

	assert.Empty(t, DetectInconsistencies(computed, cached, testNow, ReconcileOptions{}))
}

func TestDetectInconsistencies_CustomStaleAfter(t *testing.T) {
	computed := computedBalance(10, 0, 10)
	cached := cachedFrom(computed, ptrTime(testNow.Add(-2*time.Hour)))

	issues := DetectInconsistencies(computed, cached, testNow, ReconcileOptions{StaleAfter: time.Hour})
	require.Len(t, issues, 1)
}

func TestComputeDeltas(t *testing.T) {
	computed := computedBalance(100, 20, 150)
	cached := CachedBalance{
		Credits:         decimal.NewFromInt(90),
		HeldCredits:     decimal.NewFromInt(25),
		LifetimeCredits: decimal.NewFromInt(150),
	}

	d := ComputeDeltas(computed, cached)
	assertDecimal(t, 10, d.Available, "available")
	assertDecimal(t, -5, d.Held, "held")
	assertDecimal(t, 0, d.Lifetime, "lifetime")
}
