package dto

import (
	"encoding/json"
	"testing"

	"github.com/iho/creditledger/internal/domain"
	"github.com/iho/creditledger/internal/usecase"
)

func TestReconcileUserRequest_ToUseCaseInput(t *testing.T) {
	req := &ReconcileUserRequest{ForceUpdate: true}

	got := req.ToUseCaseInput("user-1")
	want := usecase.ReconcileUserInput{
		UserID:  "user-1",
		Options: domain.ReconcileOptions{ForceUpdate: true},
	}

	if got.UserID != want.UserID || got.Options.ForceUpdate != want.Options.ForceUpdate || got.Options.DryRun {
		t.Fatalf("ToUseCaseInput() = %+v, want %+v", got, want)
	}
}

func TestReconcileBulkRequest_ToUseCaseInput(t *testing.T) {
	var req ReconcileBulkRequest
	body := `{"user_ids":["a","b"],"batch_size":10,"dry_run":true}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("failed to decode request: %v", err)
	}

	got := req.ToUseCaseInput()

	if len(got.UserIDs) != 2 || got.UserIDs[0] != "a" || got.UserIDs[1] != "b" {
		t.Fatalf("unexpected user IDs: %v", got.UserIDs)
	}
	if got.All {
		t.Fatal("expected All to be false")
	}
	if got.BatchSize != 10 {
		t.Fatalf("expected batch size 10, got %d", got.BatchSize)
	}
	if !got.Options.DryRun || got.Options.ForceUpdate {
		t.Fatalf("unexpected options: %+v", got.Options)
	}
}
