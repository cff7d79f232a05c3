package domain

import "time"

// DefaultMinReconcileInterval is the minimum gap between two reconciliations of one user.
const DefaultMinReconcileInterval = 60 * time.Second

// AssertCanReconcile fails with a FrequencyError when lastReconciled is less
// than minInterval before now. A nil lastReconciled always passes, and a
// non-positive minInterval selects DefaultMinReconcileInterval.
func AssertCanReconcile(lastReconciled *time.Time, minInterval time.Duration, now time.Time) error {
	if lastReconciled == nil {
		return nil
	}

	if minInterval <= 0 {
		minInterval = DefaultMinReconcileInterval
	}

	elapsed := now.Sub(*lastReconciled)
	if elapsed < minInterval {
		return &FrequencyError{
			LastReconciled: *lastReconciled,
			RetryAfter:     minInterval - elapsed,
		}
	}

	return nil
}
