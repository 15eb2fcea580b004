package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/northbook/northbook/internal/gl/shared"
	"github.com/northbook/northbook/internal/gl/trialbalance"
	jobmetrics "github.com/northbook/northbook/internal/jobs"
)

// ReconciliationEngine is the single idempotent entry point of the engine.
type ReconciliationEngine interface {
	Run(ctx context.Context) (trialbalance.Report, error)
}

// RunLocker guards against overlapping runs for the same tenant.
type RunLocker interface {
	Acquire(ctx context.Context, tenant string) (func(context.Context) error, error)
}

// ReconcileJob executes scheduled trial-balance reconciliation runs.
type ReconcileJob struct {
	Engine  ReconciliationEngine
	Lock    RunLocker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewReconcileJob constructs the job handler.
func NewReconcileJob(engine ReconciliationEngine, lock RunLocker, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileJob{
		Engine:  engine,
		Lock:    lock,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the reconcile task. Lock contention is fatal for this run
// and not retried; persistence failures inside the run are reported and left
// for the next scheduled run to repair.
func (j *ReconcileJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Engine == nil {
		return errors.New("reconcile: dependencies not configured")
	}
	var payload ReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	if j.Lock != nil {
		release, err := j.Lock.Acquire(ctx, payload.Tenant)
		if err != nil {
			if errors.Is(err, shared.ErrConcurrentRun) {
				j.Logger.Warn("reconciliation already running",
					slog.String("tenant", payload.Tenant))
				return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
			}
			return err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				j.Logger.Warn("release run lock", slog.Any("error", err))
			}
		}()
	}

	tracker := j.Metrics.Track(TaskLedgerReconcile)
	start := j.clock()
	report, err := j.Engine.Run(ctx)
	j.Metrics.AddTrialBalanceRows("inserted", report.RowsInserted)
	j.Metrics.AddTrialBalanceRows("updated", report.RowsUpdated)
	if err == nil && len(report.Errors) > 0 {
		err = fmt.Errorf("reconcile: %d unit(s) failed, first: %w", len(report.Errors), report.Errors[0])
	}
	if err = tracker.End(err); err != nil {
		j.Logger.Error("reconciliation run failed",
			slog.String("tenant", payload.Tenant),
			slog.Any("error", err))
		return err
	}
	j.Logger.Info("reconciliation run succeeded",
		slog.String("tenant", payload.Tenant),
		slog.Int("rows_inserted", report.RowsInserted),
		slog.Int("rows_updated", report.RowsUpdated),
		slog.Duration("took", j.clock().Sub(start)))
	return nil
}
