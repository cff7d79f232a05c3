package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// BulkError records a per-user failure inside a bulk run.
type BulkError struct {
	UserID  string
	Code    ErrorCode
	Message string
}

// NewBulkError converts err into a bulk error record for userID.
func NewBulkError(userID string, err error) BulkError {
	return BulkError{
		UserID:  userID,
		Code:    CodeOf(err),
		Message: err.Error(),
	}
}

// BulkReconciliationResult aggregates a bulk run. Results, Errors and
// SkippedUserIDs keep the order of the requested user IDs. Every requested
// user lands in exactly one of them.
type BulkReconciliationResult struct {
	RunID                   string
	ProcessedCount          int
	UpdatedCount            int
	InconsistencyCount      int
	ErrorCount              int
	SkippedCount            int
	ProcessingTimeMs        int64
	AverageProcessingTimeMs float64
	Cancelled               bool
	Results                 []*ReconciliationResult
	Errors                  []BulkError
	// SkippedUserIDs are users whose batch never started because the run was cancelled.
	SkippedUserIDs []string
}

// Summarize fills the counters from Results and Errors.
// The average is taken over every attempted user, failures included and
// skipped users excluded.
func (b *BulkReconciliationResult) Summarize(elapsed time.Duration) {
	b.ProcessedCount = len(b.Results)
	b.ErrorCount = len(b.Errors)
	b.SkippedCount = len(b.SkippedUserIDs)
	b.UpdatedCount = 0
	b.InconsistencyCount = 0

	for _, r := range b.Results {
		if r.WasUpdated {
			b.UpdatedCount++
		}
		if r.HasInconsistencies() {
			b.InconsistencyCount++
		}
	}

	b.ProcessingTimeMs = elapsed.Milliseconds()
	b.AverageProcessingTimeMs = 0
	if attempted := b.ProcessedCount + b.ErrorCount; attempted > 0 {
		b.AverageProcessingTimeMs = float64(elapsed.Microseconds()) / 1000 / float64(attempted)
	}
}

// PartitionBatches splits userIDs into consecutive batches of at most size
// elements, preserving input order. The last batch may be shorter.
func PartitionBatches(userIDs []string, size int) [][]string {
	if size < 1 || len(userIDs) == 0 {
		return nil
	}

	batches := make([][]string, 0, (len(userIDs)+size-1)/size)
	for start := 0; start < len(userIDs); start += size {
		end := min(start+size, len(userIDs))
		batches = append(batches, userIDs[start:end:end])
	}

	return batches
}

// SortResultsByPriority returns a copy of results ordered for reporting:
// users with inconsistencies first, then by |available delta| + |lifetime
// delta| descending. Ties keep their original order.
func SortResultsByPriority(results []*ReconciliationResult) []*ReconciliationResult {
	sorted := make([]*ReconciliationResult, len(results))
	copy(sorted, results)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.HasInconsistencies() != b.HasInconsistencies() {
			return a.HasInconsistencies()
		}
		return priorityMagnitude(a).GreaterThan(priorityMagnitude(b))
	})

	return sorted
}

func priorityMagnitude(r *ReconciliationResult) decimal.Decimal {
	return r.Deltas.Available.Abs().Add(r.Deltas.Lifetime.Abs())
}
