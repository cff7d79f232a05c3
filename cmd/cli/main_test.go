package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/creditledger/internal/adapter/http/dto"
)

func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "lon...", truncate("longerstring", 6))
	assert.Equal(t, "lo", truncate("longerstring", 2))
}

func TestSplitUsers(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitUsers(" a, b ,,c"))
	assert.Nil(t, splitUsers(""))
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	printJSON(&buf, struct {
		A int `json:"a"`
	}{A: 1})

	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}

func TestReconcileUserCmd(t *testing.T) {
	var gotPath string
	var gotBody dto.ReconcileUserRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(dto.ReconciliationResponse{
			UserID:          "user-1",
			Computed:        dto.BalanceResponse{AvailableCredits: decimal.NewFromInt(100)},
			Cached:          dto.CachedBalanceResponse{Credits: decimal.NewFromInt(90)},
			Deltas:          dto.DeltasResponse{Available: decimal.NewFromInt(10)},
			WasUpdated:      true,
			Inconsistencies: []string{"available credits differ by 10"},
		})
	}))
	defer srv.Close()

	out, err := executeCmd(t, "--url", srv.URL, "reconcile", "user", "user-1", "--force")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/reconciliation/users/user-1", gotPath)
	assert.True(t, gotBody.ForceUpdate)
	assert.False(t, gotBody.DryRun)
	assert.Contains(t, out, "cache updated")
	assert.Contains(t, out, "Available: 100 (cached 90, delta 10)")
	assert.Contains(t, out, "available credits differ by 10")
}

func TestReconcileUserCmd_ForcedDryRun(t *testing.T) {
	var gotBody dto.ReconcileUserRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(dto.ReconciliationResponse{
			UserID:          "user-1",
			DryRun:          true,
			Inconsistencies: []string{"available credits differ by 10"},
		})
	}))
	defer srv.Close()

	out, err := executeCmd(t, "--url", srv.URL, "reconcile", "user", "user-1", "--force", "--dry-run")
	require.NoError(t, err)

	assert.True(t, gotBody.ForceUpdate)
	assert.True(t, gotBody.DryRun)
	assert.Contains(t, out, "drift detected (dry run)")
}

func TestReconcileUserCmd_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(dto.ErrorResponse{
			Error:   "failed to reconcile user",
			Message: "reconciliation requested too frequently",
			Code:    "too_frequent",
		})
	}))
	defer srv.Close()

	_, err := executeCmd(t, "--url", srv.URL, "reconcile", "user", "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "too frequently")
}

func TestReconcileBulkCmd(t *testing.T) {
	var gotBody dto.ReconcileBulkRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/reconciliation/bulk", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(dto.BulkReconciliationResponse{
			RunID:              "run-1",
			ProcessedCount:     2,
			InconsistencyCount: 1,
			ErrorCount:         1,
			Results: []*dto.ReconciliationResponse{
				{UserID: "a", Inconsistencies: []string{"stale cache"}},
				{UserID: "b", Inconsistencies: []string{}},
			},
			Errors: []dto.BulkErrorResponse{{UserID: "c", Code: "not_found", Message: "user not found"}},
		})
	}))
	defer srv.Close()

	out, err := executeCmd(t, "--url", srv.URL, "reconcile", "bulk", "--users", "a,b,c", "--batch-size", "50", "--dry-run", "-v")
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, gotBody.UserIDs)
	assert.Equal(t, 50, gotBody.BatchSize)
	assert.True(t, gotBody.DryRun)
	assert.False(t, gotBody.All)

	assert.Contains(t, out, "Run:            run-1")
	assert.Contains(t, out, "a: stale cache")
	assert.NotContains(t, out, "  b:")
	assert.Contains(t, out, "error c [not_found]: user not found")
	assert.NotContains(t, out, "cancelled")
}

func TestReconcileBulkCmd_RequiresSelection(t *testing.T) {
	_, err := executeCmd(t, "--url", "http://127.0.0.1:1", "reconcile", "bulk")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--all or --users")

	_, err = executeCmd(t, "--url", "http://127.0.0.1:1", "reconcile", "bulk", "--all", "--users", "a")
	require.Error(t, err)
}

func TestBalanceCmd(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users/user-1/balance", r.URL.Path)
		gotQuery = r.URL.Query().Get("as_of")
		json.NewEncoder(w).Encode(dto.UserBalanceResponse{
			Computed: &dto.BalanceResponse{UserID: "user-1", AvailableCredits: decimal.NewFromInt(7)},
		})
	}))
	defer srv.Close()

	out, err := executeCmd(t, "--url", srv.URL, "balance", "user-1", "--as-of", "2026-03-01T00:00:00Z")
	require.NoError(t, err)

	assert.Equal(t, "2026-03-01T00:00:00Z", gotQuery)
	assert.Contains(t, out, `"available_credits": "7"`)

	_, err = executeCmd(t, "--url", srv.URL, "balance", "user-1", "--as-of", "yesterday")
	require.Error(t, err)
}

func TestEntriesCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode([]dto.EntryResponse{{ID: "entry-1", Type: "purchase", Amount: decimal.NewFromInt(25)}})
	}))
	defer srv.Close()

	out, err := executeCmd(t, "--url", srv.URL, "entries", "user-1", "--limit", "10")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "purchase") && strings.Contains(out, "entry-1"), out)
}

func TestMigrateCmd(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example/credits")
	t.Setenv("MIGRATIONS_PATH", "db/migrations")

	origUp, origDown := migrateUp, migrateDown
	defer func() { migrateUp, migrateDown = origUp, origDown }()

	var calls []string
	migrateUp = func(url, path string, _ zerolog.Logger) error {
		calls = append(calls, "up "+url+" "+path)
		return nil
	}
	migrateDown = func(url, path string, _ zerolog.Logger) error {
		calls = append(calls, "down")
		return errors.New("no migration to roll back")
	}

	_, err := executeCmd(t, "migrate", "up")
	require.NoError(t, err)

	_, err = executeCmd(t, "migrate", "down")
	require.Error(t, err)

	assert.Equal(t, []string{"up postgres://example/credits db/migrations", "down"}, calls)
}

func TestReconcileBulkCmd_ReportsSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(dto.BulkReconciliationResponse{
			RunID:          "run-2",
			Cancelled:      true,
			SkippedCount:   2,
			SkippedUserIDs: []string{"d", "e"},
		})
	}))
	defer srv.Close()

	out, err := executeCmd(t, "--url", srv.URL, "reconcile", "bulk", "--users", "d,e")
	require.NoError(t, err)
	assert.Contains(t, out, "cancelled before all batches completed (2 users skipped)")
}
