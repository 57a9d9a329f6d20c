package cycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/driveline/internal/core/audit"
	driverepo "github.com/yungbote/driveline/internal/data/repos/drive"
	"github.com/yungbote/driveline/internal/domain/drive"
	"github.com/yungbote/driveline/internal/pkg/dbctx"
	"github.com/yungbote/driveline/internal/platform/logger"
)

// Generator extends the ledger with the next pending window, if any.
type Generator interface {
	GenerateNext(ctx context.Context) (int, error)
}

// PhaseRunner executes one transfer phase against a claimed record.
type PhaseRunner interface {
	Run(ctx context.Context, rec *drive.DriveRecord) error
}

// Auditor reconciles source and target counts for a claimed record.
type Auditor interface {
	Run(ctx context.Context, rec *drive.DriveRecord) error
}

// Reclaimer sweeps abandoned locks back to the pending pool.
type Reclaimer interface {
	Run(ctx context.Context) (int, error)
}

// Runner drives one full scheduler cycle for a single logical source:
// generate, pick, lock, transfer twice, audit. The reclaimer runs at the
// end of every cycle regardless of how the cycle itself went.
type Runner struct {
	repo     driverepo.RecordRepo
	gen      Generator
	s2s      PhaseRunner
	s2t      PhaseRunner
	audit    Auditor
	reclaim  Reclaimer
	key      drive.SourceKey
	priority string

	log      *logger.Logger
	now      func() time.Time
	newToken func() string
}

func NewRunner(repo driverepo.RecordRepo, gen Generator, s2s, s2t PhaseRunner, auditor Auditor, reclaimer Reclaimer, key drive.SourceKey, priority string, baseLog *logger.Logger) *Runner {
	return &Runner{
		repo:     repo,
		gen:      gen,
		s2s:      s2s,
		s2t:      s2t,
		audit:    auditor,
		reclaim:  reclaimer,
		key:      key,
		priority: priority,
		log: baseLog.With("component", "CycleRunner",
			"source_name", key.Name, "source_category", key.Category, "source_sub_category", key.SubCategory),
		now:      func() time.Time { return time.Now().UTC() },
		newToken: uuid.NewString,
	}
}

// RunOnce executes one cycle and classifies the result. Ownership is
// optimistic: the pending record is read, locked by field update, then
// re-fetched to confirm this run's token survived. A lost race is a Skip,
// not an error, because the winning run is doing the work.
func (r *Runner) RunOnce(ctx context.Context) Result {
	defer r.runReclaim(ctx)

	dbc := dbctx.New(ctx)

	if _, err := r.gen.GenerateNext(ctx); err != nil {
		return Result{Outcome: OutcomeFatal, Err: fmt.Errorf("generate records: %w", err)}
	}

	rec, err := r.repo.GetOldestPending(dbc, r.key, r.priority)
	if err != nil {
		return Result{Outcome: OutcomeFatal, Err: fmt.Errorf("pick pending record: %w", err)}
	}
	if rec == nil {
		r.log.Info("no pending records, nothing to do")
		return Result{Outcome: OutcomeSkip}
	}
	if rec.WindowStartTime.After(r.now()) {
		r.log.Info("oldest pending window is in the future, skipping",
			"pipeline_id", rec.PipelineID, "window_start_time", rec.WindowStartTime)
		return Result{Outcome: OutcomeSkip, PipelineID: rec.PipelineID}
	}

	log := r.log.With("pipeline_id", rec.PipelineID)

	token := r.newToken()
	if err := r.repo.UpdateFields(dbc, rec.PipelineID, rec.Lock(token, r.now())); err != nil {
		return Result{Outcome: OutcomeFatal, PipelineID: rec.PipelineID, Err: fmt.Errorf("acquire lock: %w", err)}
	}

	// Confirm ownership from the ledger, not from the copy we wrote.
	claimed, err := r.repo.GetByPipelineID(dbc, rec.PipelineID)
	if err != nil {
		return Result{Outcome: OutcomeFatal, PipelineID: rec.PipelineID, Err: fmt.Errorf("verify lock: %w", err)}
	}
	if claimed.LockToken == nil || *claimed.LockToken != token {
		log.Warn("lost lock race to a concurrent run, skipping")
		return Result{Outcome: OutcomeSkip, PipelineID: rec.PipelineID}
	}
	log.Info("record claimed", "retry_attempt", claimed.RetryAttempt)

	for _, step := range []struct {
		name   string
		runner PhaseRunner
	}{
		{"source_to_stage", r.s2s},
		{"stage_to_target", r.s2t},
	} {
		claimed, err = r.refetch(dbc, rec.PipelineID)
		if err != nil {
			return Result{Outcome: OutcomeFatal, PipelineID: rec.PipelineID, Err: err}
		}
		if err := step.runner.Run(ctx, claimed); err != nil {
			// The executor already reset the record to the pending pool.
			return Result{Outcome: OutcomeRetryable, PipelineID: rec.PipelineID, Err: fmt.Errorf("%s: %w", step.name, err)}
		}
	}

	claimed, err = r.refetch(dbc, rec.PipelineID)
	if err != nil {
		return Result{Outcome: OutcomeFatal, PipelineID: rec.PipelineID, Err: err}
	}
	if err := r.audit.Run(ctx, claimed); err != nil {
		if errors.Is(err, audit.ErrCountMismatch) {
			return Result{Outcome: OutcomeRetryable, PipelineID: rec.PipelineID, Err: err}
		}
		return Result{Outcome: OutcomeFatal, PipelineID: rec.PipelineID, Err: err}
	}

	log.Info("cycle completed")
	return Result{Outcome: OutcomeSuccess, PipelineID: rec.PipelineID}
}

// refetch reloads the record so each step works from ledger state, not a
// stale in-memory copy.
func (r *Runner) refetch(dbc dbctx.Context, pipelineID string) (*drive.DriveRecord, error) {
	rec, err := r.repo.GetByPipelineID(dbc, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("re-fetch record: %w", err)
	}
	return rec, nil
}

func (r *Runner) runReclaim(ctx context.Context) {
	n, err := r.reclaim.Run(ctx)
	if err != nil {
		r.log.Error("stale lock sweep failed", "error", err)
		return
	}
	if n > 0 {
		r.log.Warn("stale lock sweep reclaimed records", "count", n)
	}
}
