package phase

import (
	"context"
	"fmt"
	"time"

	driverepo "github.com/yungbote/driveline/internal/data/repos/drive"
	"github.com/yungbote/driveline/internal/domain/drive"
	"github.com/yungbote/driveline/internal/pkg/dbctx"
	"github.com/yungbote/driveline/internal/platform/logger"
)

// CleanupFunc deletes any partial output at the phase's destination for
// the record's window.
type CleanupFunc func(ctx context.Context, rec *drive.DriveRecord) error

// TransferFunc moves the record's window of data. It may run for minutes
// to hours and must return a definite result.
type TransferFunc func(ctx context.Context, rec *drive.DriveRecord) error

// Executor wraps one transfer leg with the shared lifecycle: skip when the
// phase already completed, pre-clean the destination so the attempt itself
// is idempotent against partial prior writes, then either persist
// completion or reset the whole record back to the pending pool.
type Executor struct {
	phase    drive.Phase
	repo     driverepo.RecordRepo
	cleanup  CleanupFunc
	transfer TransferFunc
	log      *logger.Logger
	now      func() time.Time
}

func NewExecutor(p drive.Phase, repo driverepo.RecordRepo, cleanup CleanupFunc, transfer TransferFunc, baseLog *logger.Logger) *Executor {
	return &Executor{
		phase:    p,
		repo:     repo,
		cleanup:  cleanup,
		transfer: transfer,
		log:      baseLog.With("component", "PhaseExecutor", "phase", string(p)),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (e *Executor) Phase() drive.Phase { return e.phase }

// Run executes the phase against rec, persisting the outcome through the
// ledger. On failure the error is returned after recovery state is
// persisted, so the host scheduler marks the cycle failed while the record
// stays recoverable.
func (e *Executor) Run(ctx context.Context, rec *drive.DriveRecord) error {
	log := e.log.With("pipeline_id", rec.PipelineID)
	dbc := dbctx.New(ctx)

	if rec.PhaseStatus(e.phase) == drive.StatusCompleted {
		log.Info("phase already completed, skipping")
		return nil
	}

	rec.MarkPhaseStarted(e.phase, e.now())

	if err := e.cleanup(ctx, rec); err != nil {
		return e.fail(ctx, dbc, log, rec, fmt.Errorf("pre-transfer cleanup: %w", err))
	}
	if err := e.transfer(ctx, rec); err != nil {
		return e.fail(ctx, dbc, log, rec, fmt.Errorf("transfer: %w", err))
	}

	updates := rec.MarkPhaseCompleted(e.phase, e.now())
	if err := e.repo.UpdateFields(dbc, rec.PipelineID, updates); err != nil {
		// The transfer already wrote external data; if this commit fails
		// the next attempt re-runs the phase after pre-cleanup
		// (at-least-once).
		return fmt.Errorf("persist %s completion: %w", e.phase, err)
	}
	log.Info("phase completed")
	return nil
}

func (e *Executor) fail(ctx context.Context, dbc dbctx.Context, log *logger.Logger, rec *drive.DriveRecord, cause error) error {
	log.Error("phase failed, resetting record for retry", "error", cause)

	// Best effort: the transfer may have partially written before failing.
	if err := e.cleanup(ctx, rec); err != nil {
		log.Warn("destination cleanup after failure also failed", "error", err)
	}

	updates := rec.ResetForRetry()
	if err := e.repo.UpdateFields(dbc, rec.PipelineID, updates); err != nil {
		log.Error("failed to persist retry reset", "error", err)
	}
	return fmt.Errorf("phase %s: %w", e.phase, cause)
}
