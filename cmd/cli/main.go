package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/creditledger/internal/adapter/http/dto"
	"github.com/iho/creditledger/internal/infrastructure/config"
	"github.com/iho/creditledger/internal/infrastructure/logger"
	"github.com/iho/creditledger/internal/infrastructure/postgres"
)

// migrate hooks are swapped in tests.
var (
	migrateUp   = postgres.RunMigrations
	migrateDown = postgres.RunMigrationsDown
)

type cliOptions struct {
	baseURL string
	timeout time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:           "creditledger-cli",
		Short:         "Credit ledger CLI tool",
		Long:          `A command line interface for reconciling cached credit balances against the ledger.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the admin API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "Request timeout")

	rootCmd.AddCommand(reconcileCmd(opts), balanceCmd(opts), entriesCmd(opts), migrateCmd())

	return rootCmd
}

func reconcileCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile cached balances",
	}

	var req dto.ReconcileUserRequest
	userCmd := &cobra.Command{
		Use:   "user <id>",
		Short: "Reconcile a single user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.ReconciliationResponse
			path := "/api/v1/reconciliation/users/" + url.PathEscape(args[0])
			if err := opts.do(http.MethodPost, path, req, &resp); err != nil {
				return err
			}
			printReconciliation(cmd.OutOrStdout(), &resp)
			return nil
		},
	}
	userCmd.Flags().BoolVar(&req.ForceUpdate, "force", false, "Overwrite the cache even when it matches")
	userCmd.Flags().BoolVar(&req.DryRun, "dry-run", false, "Report without writing the cache")

	var bulkReq dto.ReconcileBulkRequest
	var users string
	var verbose bool
	bulkCmd := &cobra.Command{
		Use:   "bulk",
		Short: "Reconcile a list of users, or all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			bulkReq.UserIDs = splitUsers(users)
			if !bulkReq.All && len(bulkReq.UserIDs) == 0 {
				return fmt.Errorf("either --all or --users is required")
			}

			var resp dto.BulkReconciliationResponse
			if err := opts.do(http.MethodPost, "/api/v1/reconciliation/bulk", bulkReq, &resp); err != nil {
				return err
			}
			printBulk(cmd.OutOrStdout(), &resp, verbose)
			return nil
		},
	}
	bulkCmd.Flags().BoolVar(&bulkReq.All, "all", false, "Reconcile every user")
	bulkCmd.Flags().StringVar(&users, "users", "", "Comma separated user IDs")
	bulkCmd.Flags().IntVar(&bulkReq.BatchSize, "batch-size", 0, "Users per batch (server default when 0)")
	bulkCmd.Flags().BoolVar(&bulkReq.ForceUpdate, "force", false, "Overwrite caches even when they match")
	bulkCmd.Flags().BoolVar(&bulkReq.DryRun, "dry-run", false, "Report without writing caches")
	bulkCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every inconsistent user")
	bulkCmd.MarkFlagsMutuallyExclusive("all", "users")

	cmd.AddCommand(userCmd, bulkCmd)
	return cmd
}

func balanceCmd(opts *cliOptions) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "balance <id>",
		Short: "Show the ledger-derived and cached balance of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/users/" + url.PathEscape(args[0]) + "/balance"
			if asOf != "" {
				if _, err := time.Parse(time.RFC3339, asOf); err != nil {
					return fmt.Errorf("invalid --as-of: %w", err)
				}
				path += "?as_of=" + url.QueryEscape(asOf)
			}

			var resp dto.UserBalanceResponse
			if err := opts.do(http.MethodGet, path, nil, &resp); err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "Point in time (RFC 3339)")

	return cmd
}

func entriesCmd(opts *cliOptions) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "entries <id>",
		Short: "List a user's ledger entries, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("limit", fmt.Sprint(limit))
			q.Set("offset", fmt.Sprint(offset))
			path := "/api/v1/users/" + url.PathEscape(args[0]) + "/entries?" + q.Encode()

			var resp []dto.EntryResponse
			if err := opts.do(http.MethodGet, path, nil, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range resp {
				fmt.Fprintf(out, "%s  %-16s %12s  %s\n", e.EffectiveAt.Format(time.RFC3339), e.Type, e.Amount, truncate(e.ID, 26))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "Page offset")

	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations (uses DATABASE_URL and MIGRATIONS_PATH)",
	}

	run := func(fn func(string, string, zerolog.Logger) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.NewWithWriter(cmd.ErrOrStderr(), logger.Config{
				Level:   cfg.LogLevel,
				Format:  "console",
				Service: "creditledger-cli",
			})
			return fn(cfg.DatabaseURL, cfg.MigrationsPath, log)
		}
	}

	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply all pending migrations", Args: cobra.NoArgs, RunE: run(migrateUp)},
		&cobra.Command{Use: "down", Short: "Roll back the last migration", Args: cobra.NoArgs, RunE: run(migrateDown)},
	)

	return cmd
}

// do sends body as JSON and decodes a 2xx response into out.
func (o *cliOptions) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, strings.TrimRight(o.baseURL, "/")+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: o.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr dto.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.Message != "" {
				return fmt.Errorf("%s (status %d): %s", apiErr.Error, resp.StatusCode, apiErr.Message)
			}
			return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("request failed (status %d): %s", resp.StatusCode, truncate(string(raw), 200))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func printReconciliation(w io.Writer, r *dto.ReconciliationResponse) {
	status := "consistent"
	switch {
	case r.WasUpdated:
		status = "cache updated"
	case r.DryRun && len(r.Inconsistencies) > 0:
		status = "drift detected (dry run)"
	case len(r.Inconsistencies) > 0:
		status = "drift detected"
	}

	fmt.Fprintf(w, "User:      %s\n", r.UserID)
	fmt.Fprintf(w, "Status:    %s\n", status)
	fmt.Fprintf(w, "Available: %s (cached %s, delta %s)\n", r.Computed.AvailableCredits, r.Cached.Credits, r.Deltas.Available)
	fmt.Fprintf(w, "Held:      %s (cached %s, delta %s)\n", r.Computed.HeldCredits, r.Cached.HeldCredits, r.Deltas.Held)
	fmt.Fprintf(w, "Lifetime:  %s (cached %s, delta %s)\n", r.Computed.LifetimeCredits, r.Cached.LifetimeCredits, r.Deltas.Lifetime)
	for _, msg := range r.Inconsistencies {
		fmt.Fprintf(w, "  - %s\n", msg)
	}
}

func printBulk(w io.Writer, r *dto.BulkReconciliationResponse, verbose bool) {
	fmt.Fprintf(w, "Run:            %s\n", r.RunID)
	fmt.Fprintf(w, "Processed:      %d\n", r.ProcessedCount)
	fmt.Fprintf(w, "Updated:        %d\n", r.UpdatedCount)
	fmt.Fprintf(w, "Inconsistent:   %d\n", r.InconsistencyCount)
	fmt.Fprintf(w, "Errors:         %d\n", r.ErrorCount)
	fmt.Fprintf(w, "Duration:       %dms (avg %.2fms)\n", r.ProcessingTimeMs, r.AverageProcessingTimeMs)
	if r.Cancelled {
		fmt.Fprintf(w, "Run was cancelled before all batches completed (%d users skipped)\n", r.SkippedCount)
	}

	if verbose {
		for _, res := range r.Results {
			if len(res.Inconsistencies) == 0 {
				continue
			}
			fmt.Fprintf(w, "  %s: %s\n", res.UserID, strings.Join(res.Inconsistencies, "; "))
		}
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  error %s [%s]: %s\n", e.UserID, e.Code, e.Message)
	}
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func splitUsers(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
