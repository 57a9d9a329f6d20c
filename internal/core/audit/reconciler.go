package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	driverepo "github.com/yungbote/driveline/internal/data/repos/drive"
	"github.com/yungbote/driveline/internal/domain/drive"
	"github.com/yungbote/driveline/internal/pkg/dbctx"
	"github.com/yungbote/driveline/internal/platform/logger"
)

// ErrCountMismatch marks a confirmed data-integrity failure: target
// over-count, stalled load, or poll timeout. The record has already been
// cleaned up and reset when this is returned.
var ErrCountMismatch = errors.New("audit count mismatch")

// Counter reports how many rows a system holds for the record's window.
type Counter interface {
	Count(ctx context.Context, rec *drive.DriveRecord) (int64, error)
}

// Deleter removes a system's data for the record's window.
type Deleter interface {
	Delete(ctx context.Context, rec *drive.DriveRecord) error
}

// Reconciler compares source and target counts for a window, waiting out
// the target's asynchronous load with a bounded poll loop. Confirmed
// mismatches clean up both destinations and reset the record; operational
// errors mark the audit ERROR without a reset so a bug is not silently
// retried away.
type Reconciler struct {
	repo   driverepo.RecordRepo
	source Counter
	target Counter
	stage  Deleter
	tgtDel Deleter

	attempts int
	interval time.Duration

	log   *logger.Logger
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewReconciler(repo driverepo.RecordRepo, source, target Counter, stage, targetDel Deleter, attempts int, interval time.Duration, baseLog *logger.Logger) *Reconciler {
	if attempts <= 0 {
		attempts = 5
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reconciler{
		repo:     repo,
		source:   source,
		target:   target,
		stage:    stage,
		tgtDel:   targetDel,
		attempts: attempts,
		interval: interval,
		log:      baseLog.With("component", "AuditReconciler"),
		now:      func() time.Time { return time.Now().UTC() },
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run reconciles rec. Returns nil on MATCH, an error wrapping
// ErrCountMismatch on a confirmed mismatch, and any other error for
// inconclusive operational failures.
func (a *Reconciler) Run(ctx context.Context, rec *drive.DriveRecord) error {
	log := a.log.With("pipeline_id", rec.PipelineID)
	dbc := dbctx.New(ctx)

	if rec.AuditStatus == drive.StatusCompleted && rec.AuditResult != nil && *rec.AuditResult == drive.AuditResultMatch {
		log.Info("audit already completed, skipping")
		return nil
	}

	rec.MarkPhaseStarted(drive.PhaseAudit, a.now())

	sourceCount, err := a.source.Count(ctx, rec)
	if err != nil {
		return a.inconclusive(dbc, log, rec, fmt.Errorf("source count: %w", err))
	}

	targetCount, matched, err := a.poll(ctx, log, rec, sourceCount)
	if err != nil {
		return a.inconclusive(dbc, log, rec, err)
	}

	if matched {
		updates := rec.MarkAuditMatch(sourceCount, targetCount, a.now())
		if err := a.repo.UpdateFields(dbc, rec.PipelineID, updates); err != nil {
			return fmt.Errorf("persist audit success: %w", err)
		}
		log.Info("audit passed", "source_count", sourceCount, "target_count", targetCount)
		return nil
	}

	return a.mismatch(ctx, dbc, log, rec, sourceCount, targetCount)
}

// poll reads the target count up to the attempt budget. The second return
// reports whether counts matched; a non-nil error means the poll could not
// reach a verdict at all.
func (a *Reconciler) poll(ctx context.Context, log *logger.Logger, rec *drive.DriveRecord, sourceCount int64) (int64, bool, error) {
	prev := int64(-1)
	var targetCount int64
	for attempt := 1; attempt <= a.attempts; attempt++ {
		var err error
		targetCount, err = a.target.Count(ctx, rec)
		if err != nil {
			return 0, false, fmt.Errorf("target count (attempt %d): %w", attempt, err)
		}
		log.Debug("audit count check",
			"attempt", attempt, "source_count", sourceCount, "target_count", targetCount)

		if targetCount == sourceCount {
			return targetCount, true, nil
		}
		if targetCount > sourceCount {
			log.Warn("target exceeds source, data integrity issue",
				"source_count", sourceCount, "target_count", targetCount)
			return targetCount, false, nil
		}
		if targetCount == prev {
			log.Warn("target count stagnant, load appears stalled",
				"target_count", targetCount)
			return targetCount, false, nil
		}
		prev = targetCount

		if attempt < a.attempts {
			if err := a.sleep(ctx, a.interval); err != nil {
				return 0, false, fmt.Errorf("audit poll canceled: %w", err)
			}
		}
	}
	log.Error("audit poll budget exhausted", "attempts", a.attempts)
	return targetCount, false, nil
}

func (a *Reconciler) mismatch(ctx context.Context, dbc dbctx.Context, log *logger.Logger, rec *drive.DriveRecord, sourceCount, targetCount int64) error {
	log.Error("audit failed, cleaning destinations and resetting record",
		"source_count", sourceCount, "target_count", targetCount)

	if err := a.repo.UpdateFields(dbc, rec.PipelineID, rec.MarkAuditError()); err != nil {
		log.Error("failed to persist audit error markers", "error", err)
	}

	if err := a.stage.Delete(ctx, rec); err != nil {
		log.Warn("stage cleanup failed", "error", err)
	}
	if err := a.tgtDel.Delete(ctx, rec); err != nil {
		log.Warn("target cleanup failed", "error", err)
	}

	updates := rec.ResetForRetry()
	if err := a.repo.UpdateFields(dbc, rec.PipelineID, updates); err != nil {
		log.Error("failed to persist retry reset", "error", err)
	}
	return fmt.Errorf("%w: source=%d target=%d", ErrCountMismatch, sourceCount, targetCount)
}

// inconclusive persists ERROR markers without resetting the record; the
// cause is re-raised for the host scheduler to surface.
func (a *Reconciler) inconclusive(dbc dbctx.Context, log *logger.Logger, rec *drive.DriveRecord, cause error) error {
	log.Error("audit inconclusive", "error", cause)
	if err := a.repo.UpdateFields(dbc, rec.PipelineID, rec.MarkAuditError()); err != nil {
		log.Error("failed to persist audit error markers", "error", err)
	}
	return fmt.Errorf("audit: %w", cause)
}
