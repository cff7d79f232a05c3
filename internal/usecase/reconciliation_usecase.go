package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iho/creditledger/internal/domain"
)

// Reconciliation outcomes reported to MetricsRecorder.
const (
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
	OutcomeDryRun    = "dry_run"
)

// ReconciliationConfig holds the collaborators of ReconciliationUseCase.
// EntryRepo, UserRepo and TxManager are required; the rest are optional.
type ReconciliationConfig struct {
	EntryRepo LedgerEntryRepository
	UserRepo  UserRepository
	TxManager TransactionManager
	Retrier   Retrier
	Locker    UserLocker
	Tracker   ReconcileTracker
	AuditRepo AuditRepository
	Publisher InconsistencyPublisher
	IDGen     IDGenerator
	Metrics   MetricsRecorder
	Logger    zerolog.Logger
	Validator *domain.BalanceValidator

	Defaults         domain.ReconcileOptions // tolerance and stale threshold applied when a request leaves them unset
	MinInterval      time.Duration
	DefaultBatchSize int
	Workers          int
	Clock            func() time.Time
}

// ReconciliationUseCase reconciles cached balances against the ledger.
type ReconciliationUseCase struct {
	entryRepo LedgerEntryRepository
	userRepo  UserRepository
	txManager TransactionManager
	retrier   Retrier
	locker    UserLocker
	tracker   ReconcileTracker
	auditRepo AuditRepository
	publisher InconsistencyPublisher
	idGen     IDGenerator
	metrics   MetricsRecorder
	logger    zerolog.Logger

	reconciler       *domain.Reconciler
	defaults         domain.ReconcileOptions
	minInterval      time.Duration
	defaultBatchSize int
	workers          int
	clock            func() time.Time
}

// NewReconciliationUseCase creates a new reconciliation use case.
func NewReconciliationUseCase(cfg ReconciliationConfig) *ReconciliationUseCase {
	if cfg.Locker == nil {
		cfg.Locker = NewShardedLocker()
	}
	if cfg.Tracker == nil {
		cfg.Tracker = NewMemoryTracker()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	if cfg.IDGen == nil {
		cfg.IDGen = sequentialIDs{}
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = domain.DefaultMinReconcileInterval
	}
	if cfg.DefaultBatchSize <= 0 {
		cfg.DefaultBatchSize = domain.DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultBulkWorkers
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}

	return &ReconciliationUseCase{
		entryRepo:        cfg.EntryRepo,
		userRepo:         cfg.UserRepo,
		txManager:        cfg.TxManager,
		retrier:          cfg.Retrier,
		locker:           cfg.Locker,
		tracker:          cfg.Tracker,
		auditRepo:        cfg.AuditRepo,
		publisher:        cfg.Publisher,
		idGen:            cfg.IDGen,
		metrics:          cfg.Metrics,
		logger:           cfg.Logger,
		reconciler:       domain.NewReconciler(cfg.Validator),
		defaults:         cfg.Defaults,
		minInterval:      cfg.MinInterval,
		defaultBatchSize: cfg.DefaultBatchSize,
		workers:          cfg.Workers,
		clock:            cfg.Clock,
	}
}

// ReconcileUserInput represents input for reconciling one user.
type ReconcileUserInput struct {
	UserID  string
	Options domain.ReconcileOptions
}

// ReconcileBulkInput represents input for a bulk run. Exactly one of UserIDs
// and All must be set; BatchSize zero selects the configured default.
type ReconcileBulkInput struct {
	UserIDs   []string
	All       bool
	BatchSize int
	Options   domain.ReconcileOptions
}

// userSnapshot is ledger and cache state fetched ahead of reconciliation.
type userSnapshot struct {
	entries []*domain.LedgerEntry
	cached  *domain.CachedBalance
}

// ReconcileUser reconciles one user and persists the corrected cache when needed.
func (uc *ReconciliationUseCase) ReconcileUser(ctx context.Context, input ReconcileUserInput) (*domain.ReconciliationResult, error) {
	start := time.Now()
	result, err := uc.reconcileOne(ctx, "", input.UserID, input.Options, nil)
	uc.metrics.ObserveReconciliation(outcomeOf(result, err), time.Since(start))
	return result, err
}

// ReconcileBulk reconciles many users in bounded batches. Per-user failures are
// recorded in the result; only malformed requests return an error.
func (uc *ReconciliationUseCase) ReconcileBulk(ctx context.Context, input ReconcileBulkInput) (*domain.BulkReconciliationResult, error) {
	start := time.Now()

	batchSize := input.BatchSize
	if batchSize == 0 {
		batchSize = uc.defaultBatchSize
	}
	if err := domain.ValidateBatchSize(batchSize); err != nil {
		return nil, err
	}

	opts := uc.withDefaults(input.Options)
	if err := domain.ValidateOptions(opts); err != nil {
		return nil, err
	}

	userIDs, err := uc.resolveUserIDs(ctx, input)
	if err != nil {
		return nil, err
	}

	runID := uc.idGen.Generate()
	logger := uc.logger.With().Str("run_id", runID).Logger()
	logger.Info().
		Int("users", len(userIDs)).
		Int("batch_size", batchSize).
		Bool("dry_run", opts.DryRun).
		Msg("bulk reconciliation started")

	results := make([]*domain.ReconciliationResult, len(userIDs))
	failures := make([]*domain.BulkError, len(userIDs))

	// In-flight batches finish even if the caller cancels.
	batchCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(uc.workers)

	cancelled := false
	offset := 0
	for _, batch := range domain.PartitionBatches(userIDs, batchSize) {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		batch, base := batch, offset
		g.Go(func() error {
			uc.processBatch(batchCtx, runID, batch, opts, results[base:base+len(batch)], failures[base:base+len(batch)])
			return nil
		})
		offset += len(batch)
	}
	_ = g.Wait()

	bulk := &domain.BulkReconciliationResult{
		RunID:     runID,
		Cancelled: cancelled,
		Results:   make([]*domain.ReconciliationResult, 0, len(userIDs)),
		Errors:    make([]domain.BulkError, 0),
	}
	for i := range userIDs {
		switch {
		case results[i] != nil:
			bulk.Results = append(bulk.Results, results[i])
		case failures[i] != nil:
			bulk.Errors = append(bulk.Errors, *failures[i])
		default:
			bulk.SkippedUserIDs = append(bulk.SkippedUserIDs, userIDs[i])
		}
	}
	bulk.Summarize(time.Since(start))

	uc.metrics.ObserveBulkRun(bulk)

	logger.Info().
		Int("processed", bulk.ProcessedCount).
		Int("updated", bulk.UpdatedCount).
		Int("inconsistent", bulk.InconsistencyCount).
		Int("errors", bulk.ErrorCount).
		Int("skipped", bulk.SkippedCount).
		Int64("duration_ms", bulk.ProcessingTimeMs).
		Bool("cancelled", bulk.Cancelled).
		Msg("bulk reconciliation finished")

	return bulk, nil
}

// ComputeBalance computes a user's balance at asOf without touching the cache.
// A zero asOf means now.
func (uc *ReconciliationUseCase) ComputeBalance(ctx context.Context, userID string, asOf time.Time) (domain.UserCreditBalance, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return domain.UserCreditBalance{}, err
	}

	if _, err := uc.userRepo.GetCachedBalance(ctx, userID); err != nil {
		return domain.UserCreditBalance{}, err
	}

	entries, err := uc.entryRepo.ListByUser(ctx, userID)
	if err != nil {
		return domain.UserCreditBalance{}, fmt.Errorf("failed to load ledger entries: %w", err)
	}

	if asOf.IsZero() {
		asOf = uc.clock()
	}

	return domain.ComputeBalance(entries, asOf), nil
}

func (uc *ReconciliationUseCase) processBatch(
	ctx context.Context,
	runID string,
	userIDs []string,
	opts domain.ReconcileOptions,
	results []*domain.ReconciliationResult,
	failures []*domain.BulkError,
) {
	snapshots, err := uc.prefetch(ctx, userIDs)
	if err != nil {
		uc.logger.Error().Err(err).Str("run_id", runID).Int("users", len(userIDs)).Msg("failed to prefetch batch")
		for i, userID := range userIDs {
			bulkErr := domain.NewBulkError(userID, err)
			failures[i] = &bulkErr
		}
		return
	}

	for i, userID := range userIDs {
		start := time.Now()
		result, err := uc.reconcileIsolated(ctx, runID, userID, opts, snapshots[userID])
		uc.metrics.ObserveReconciliation(outcomeOf(result, err), time.Since(start))

		if err != nil {
			bulkErr := domain.NewBulkError(userID, err)
			failures[i] = &bulkErr
			continue
		}
		results[i] = result
	}
}

// reconcileIsolated converts a panic for one user into that user's error.
func (uc *ReconciliationUseCase) reconcileIsolated(ctx context.Context, runID, userID string, opts domain.ReconcileOptions, snap *userSnapshot) (result *domain.ReconciliationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			uc.logger.Error().Str("run_id", runID).Str("user_id", userID).Interface("panic", r).Msg("panic during reconciliation")
			result, err = nil, fmt.Errorf("panic during reconciliation: %v", r)
		}
	}()

	if snap == nil {
		snap = &userSnapshot{}
	}
	return uc.reconcileOne(ctx, runID, userID, opts, snap)
}

func (uc *ReconciliationUseCase) prefetch(ctx context.Context, userIDs []string) (map[string]*userSnapshot, error) {
	entries, err := uc.entryRepo.ListByUsers(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger entries: %w", err)
	}

	cached, err := uc.userRepo.GetCachedBalances(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load cached balances: %w", err)
	}

	snapshots := make(map[string]*userSnapshot, len(userIDs))
	for _, userID := range userIDs {
		snapshots[userID] = &userSnapshot{entries: entries[userID], cached: cached[userID]}
	}

	return snapshots, nil
}

// reconcileOne runs the full single-user flow. A nil snap loads state from
// the repositories after the user's lock is held.
func (uc *ReconciliationUseCase) reconcileOne(ctx context.Context, runID, userID string, opts domain.ReconcileOptions, snap *userSnapshot) (*domain.ReconciliationResult, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, err
	}

	opts = uc.withDefaults(opts)
	if err := domain.ValidateOptions(opts); err != nil {
		return nil, err
	}

	logger := uc.logger.With().Str("user_id", userID).Logger()
	if runID != "" {
		logger = logger.With().Str("run_id", runID).Logger()
	}

	if !opts.DryRun {
		unlock, err := uc.locker.Lock(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to lock user %s: %w", userID, err)
		}
		defer unlock()

		last, err := uc.tracker.LastReconciled(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to read last reconciliation: %w", err)
		}
		if err := domain.AssertCanReconcile(last, uc.minInterval, uc.clock()); err != nil {
			return nil, err
		}
	}

	if snap == nil {
		loaded, err := uc.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		snap = loaded
	}

	result, err := uc.reconciler.ReconcileUser(userID, snap.entries, snap.cached, opts, uc.clock())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidBalance) {
			logger.Error().Err(err).Msg("computed balance violates invariants, cache left untouched")
			uc.audit(ctx, domain.NewFailedReconciliationAuditLog(uc.idGen.Generate(), runID, userID, err, uc.clock()))
		}
		return nil, err
	}

	if result.WasUpdated {
		if err := uc.writeCache(ctx, result.CachePatch()); err != nil {
			return nil, fmt.Errorf("failed to update cached balance: %w", err)
		}
	}

	if !opts.DryRun {
		if err := uc.tracker.MarkReconciled(ctx, userID, result.ReconciledAt); err != nil {
			logger.Warn().Err(err).Msg("failed to record reconciliation time")
		}
	}

	if result.HasInconsistencies() {
		logger.Warn().
			Strs("inconsistencies", result.Inconsistencies).
			Bool("was_updated", result.WasUpdated).
			Msg("ledger and cached balance diverge")
		uc.publish(ctx, logger, domain.NewInconsistencyEvent(runID, result))
	}

	if result.WasUpdated || result.HasInconsistencies() {
		uc.audit(ctx, domain.NewReconciliationAuditLog(uc.idGen.Generate(), runID, result))
	}

	logger.Debug().
		Str("available", result.Computed.AvailableCredits.String()).
		Bool("was_updated", result.WasUpdated).
		Msg("user reconciled")

	return result, nil
}

func (uc *ReconciliationUseCase) load(ctx context.Context, userID string) (*userSnapshot, error) {
	cached, err := uc.userRepo.GetCachedBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries, err := uc.entryRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger entries: %w", err)
	}

	return &userSnapshot{entries: entries, cached: cached}, nil
}

func (uc *ReconciliationUseCase) writeCache(ctx context.Context, patch domain.CachedBalance) error {
	write := func() error {
		ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
		defer cancel()

		tx, err := uc.txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := uc.userRepo.UpdateCachedBalance(ctx, tx, patch); err != nil {
			return err
		}

		return tx.Commit(ctx)
	}

	if uc.retrier == nil {
		return write()
	}
	return uc.retrier.Retry(ctx, write)
}

func (uc *ReconciliationUseCase) audit(ctx context.Context, log *domain.AuditLog) {
	if uc.auditRepo == nil {
		return
	}
	if err := uc.auditRepo.Create(ctx, log); err != nil {
		uc.logger.Warn().Err(err).Str("user_id", log.UserID).Str("action", string(log.Action)).Msg("failed to write audit log")
	}
}

func (uc *ReconciliationUseCase) publish(ctx context.Context, logger zerolog.Logger, event domain.InconsistencyEvent) {
	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.Publish(ctx, event); err != nil {
		logger.Warn().Err(err).Msg("failed to publish inconsistency event")
	}
}

func (uc *ReconciliationUseCase) resolveUserIDs(ctx context.Context, input ReconcileBulkInput) ([]string, error) {
	if input.All && len(input.UserIDs) > 0 {
		return nil, &domain.ValidationError{Field: "userIds", Message: "cannot be combined with all", Err: domain.ErrInvalidOptions}
	}

	if !input.All {
		if err := domain.ValidateUserIDs(input.UserIDs); err != nil {
			return nil, err
		}
		return input.UserIDs, nil
	}

	var userIDs []string
	for {
		page, err := uc.userRepo.ListUserIDs(ctx, domain.MaxBatchSize, len(userIDs))
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		userIDs = append(userIDs, page...)

		if len(userIDs) > domain.MaxBulkUsers {
			return nil, domain.ValidateUserIDs(userIDs)
		}
		if len(page) < domain.MaxBatchSize {
			return userIDs, nil
		}
	}
}

func (uc *ReconciliationUseCase) withDefaults(opts domain.ReconcileOptions) domain.ReconcileOptions {
	if opts.Tolerance == nil {
		opts.Tolerance = uc.defaults.Tolerance
	}
	if opts.StaleAfter == 0 {
		opts.StaleAfter = uc.defaults.StaleAfter
	}
	return opts
}

func outcomeOf(result *domain.ReconciliationResult, err error) string {
	switch {
	case err != nil:
		return string(domain.CodeOf(err))
	case result.DryRun:
		return OutcomeDryRun
	case result.WasUpdated:
		return OutcomeUpdated
	default:
		return OutcomeUnchanged
	}
}

type noopMetrics struct{}

func (noopMetrics) ObserveReconciliation(string, time.Duration) {}
func (noopMetrics) ObserveBulkRun(*domain.BulkReconciliationResult) {}

type sequentialIDs struct{}

func (sequentialIDs) Generate() string { return fmt.Sprintf("%d", time.Now().UnixNano()) }
