package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for the cache write transaction
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultBulkWorkers is how many batches a bulk run processes concurrently
	DefaultBulkWorkers = 4

	// DefaultEntriesPageSize is the page size for ledger entry listings
	DefaultEntriesPageSize = 50

	// MaxEntriesPageSize caps the page size for ledger entry listings
	MaxEntriesPageSize = 500
)
