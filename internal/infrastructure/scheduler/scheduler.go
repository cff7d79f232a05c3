package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/creditledger/internal/domain"
	"github.com/iho/creditledger/internal/usecase"
)

// ErrRunInProgress is returned by RunOnce while another run is active.
var ErrRunInProgress = errors.New("bulk reconciliation already running")

// BulkReconciler runs a bulk reconciliation.
type BulkReconciler interface {
	ReconcileBulk(ctx context.Context, input usecase.ReconcileBulkInput) (*domain.BulkReconciliationResult, error)
}

// Config for Scheduler.
type Config struct {
	Reconciler BulkReconciler
	Logger     zerolog.Logger
	Interval   time.Duration // Time between the start of two runs
	BatchSize  int           // Zero selects the reconciler default
	RunOnStart bool
}

// Scheduler periodically reconciles every user. Runs never overlap.
type Scheduler struct {
	reconciler BulkReconciler
	logger     zerolog.Logger
	interval   time.Duration
	batchSize  int
	runOnStart bool
	running    atomic.Bool
}

// New creates a new Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}

	return &Scheduler{
		reconciler: cfg.Reconciler,
		logger:     cfg.Logger.With().Str("component", "reconcile_scheduler").Logger(),
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		runOnStart: cfg.RunOnStart,
	}
}

// Start runs the schedule until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.interval).
		Int("batch_size", s.batchSize).
		Msg("reconciliation scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if s.runOnStart {
		s.tick(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("reconciliation scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			s.logger.Warn().Msg("previous run still active, skipping tick")
			return
		}
		s.logger.Error().Err(err).Msg("scheduled reconciliation failed")
	}
}

// RunOnce reconciles every user once. A panic in the run is returned as an error.
func (s *Scheduler) RunOnce(ctx context.Context) (result *domain.BulkReconciliationResult, err error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("panic in scheduled reconciliation")
			result, err = nil, fmt.Errorf("panic in scheduled reconciliation: %v", r)
		}
	}()

	result, err = s.reconciler.ReconcileBulk(ctx, usecase.ReconcileBulkInput{
		All:       true,
		BatchSize: s.batchSize,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("run_id", result.RunID).
		Int("processed", result.ProcessedCount).
		Int("updated", result.UpdatedCount).
		Int("inconsistent", result.InconsistencyCount).
		Int("errors", result.ErrorCount).
		Float64("avg_ms", result.AverageProcessingTimeMs).
		Msg("scheduled reconciliation finished")

	return result, nil
}
