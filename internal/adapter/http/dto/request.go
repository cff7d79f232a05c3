package dto

import (
	"github.com/iho/creditledger/internal/domain"
	"github.com/iho/creditledger/internal/usecase"
)

// ReconcileUserRequest represents a request to reconcile one user.
// An empty body is accepted and uses the server defaults.
type ReconcileUserRequest struct {
	ForceUpdate bool `json:"force_update"`
	DryRun      bool `json:"dry_run"`
}

// ToUseCaseInput converts to use case input.
func (r *ReconcileUserRequest) ToUseCaseInput(userID string) usecase.ReconcileUserInput {
	return usecase.ReconcileUserInput{
		UserID: userID,
		Options: domain.ReconcileOptions{
			ForceUpdate: r.ForceUpdate,
			DryRun:      r.DryRun,
		},
	}
}

// ReconcileBulkRequest represents a request to reconcile many users.
type ReconcileBulkRequest struct {
	UserIDs     []string `json:"user_ids,omitempty"`
	All         bool     `json:"all"`
	BatchSize   int      `json:"batch_size,omitempty"`
	ForceUpdate bool     `json:"force_update"`
	DryRun      bool     `json:"dry_run"`
}

// ToUseCaseInput converts to use case input.
func (r *ReconcileBulkRequest) ToUseCaseInput() usecase.ReconcileBulkInput {
	return usecase.ReconcileBulkInput{
		UserIDs:   r.UserIDs,
		All:       r.All,
		BatchSize: r.BatchSize,
		Options: domain.ReconcileOptions{
			ForceUpdate: r.ForceUpdate,
			DryRun:      r.DryRun,
		},
	}
}
