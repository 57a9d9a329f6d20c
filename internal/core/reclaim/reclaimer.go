package reclaim

import (
	"context"
	"time"

	driverepo "github.com/yungbote/driveline/internal/data/repos/drive"
	"github.com/yungbote/driveline/internal/pkg/dbctx"
	"github.com/yungbote/driveline/internal/platform/logger"
)

// DefaultThreshold is how long a lock holder may stay silent before its
// claim is considered abandoned. Transfers run for hours, so this is
// deliberately generous.
const DefaultThreshold = 2 * time.Hour

// Reclaimer returns abandoned IN_PROGRESS records to the pending pool.
// A record qualifies when it holds a lock token and its pipeline start time
// is older than the threshold; completed phases are preserved so the next
// holder resumes instead of repeating finished work.
type Reclaimer struct {
	repo      driverepo.RecordRepo
	threshold time.Duration
	log       *logger.Logger
	now       func() time.Time
}

func NewReclaimer(repo driverepo.RecordRepo, threshold time.Duration, baseLog *logger.Logger) *Reclaimer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Reclaimer{
		repo:      repo,
		threshold: threshold,
		log:       baseLog.With("component", "LockReclaimer"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run releases every stale lock it finds and returns how many records were
// reclaimed. Per-record failures are logged and skipped so one broken row
// cannot wedge the sweep.
func (r *Reclaimer) Run(ctx context.Context) (int, error) {
	dbc := dbctx.New(ctx)
	cutoff := r.now().Add(-r.threshold)

	stale, err := r.repo.ListStaleInProgress(dbc, cutoff)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	reclaimed := 0
	for _, rec := range stale {
		log := r.log.With("pipeline_id", rec.PipelineID)
		updates := rec.ReleaseStaleLock()
		if err := r.repo.UpdateFields(dbc, rec.PipelineID, updates); err != nil {
			log.Error("failed to release stale lock", "error", err)
			continue
		}
		log.Warn("released stale lock",
			"window_start_time", rec.WindowStartTime,
			"lock_age_threshold", r.threshold.String())
		reclaimed++
	}
	return reclaimed, nil
}
