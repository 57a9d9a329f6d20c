package recordgen

import (
	"context"
	"fmt"
	"strings"
	"time"

	driverepo "github.com/yungbote/driveline/internal/data/repos/drive"
	"github.com/yungbote/driveline/internal/domain/drive"
	"github.com/yungbote/driveline/internal/pkg/dbctx"
	"github.com/yungbote/driveline/internal/platform/logger"
	"github.com/yungbote/driveline/internal/platform/timeutil"
)

// Config describes one logical source and the per-deployment template used
// to materialize its ledger records.
type Config struct {
	Key      drive.SourceKey
	Priority string

	StageName   string
	StageBucket string
	StagePrefix []string

	TargetName     string
	TargetDatabase string
	TargetSchema   string
	TargetTable    string

	Timezone    *time.Location
	Granularity time.Duration
	XTimeBack   time.Duration
}

// Generator computes the next unprocessed time window for a logical source
// and inserts one ledger record per invocation.
type Generator struct {
	repo driverepo.RecordRepo
	cfg  Config
	log  *logger.Logger
	now  func() time.Time
}

func NewGenerator(repo driverepo.RecordRepo, cfg Config, baseLog *logger.Logger) *Generator {
	return &Generator{
		repo: repo,
		cfg:  cfg,
		log:  baseLog.With("component", "RecordGenerator", "source", cfg.Key.SubCategory),
		now:  time.Now,
	}
}

// GenerateNext inserts at most one record and returns how many it created.
// A zero return is not an error: it means the target day is exhausted (or
// the configured granularity is zero).
func (g *Generator) GenerateNext(ctx context.Context) (int, error) {
	if g.cfg.Granularity <= 0 {
		g.log.Warn("zero granularity configured, nothing to generate")
		return 0, nil
	}
	loc := g.cfg.Timezone
	if loc == nil {
		loc = time.UTC
	}

	now := g.now().In(loc)
	targetDayAt := now.Add(-g.cfg.XTimeBack)
	targetDay := timeutil.DateOnly(targetDayAt, loc)
	dayStart := timeutil.StartOfDay(targetDayAt, loc)
	dayEnd := timeutil.EndOfDay(targetDayAt, loc)

	dbc := dbctx.New(ctx)
	maxEnd, err := g.repo.MaxWindowEnd(dbc, g.cfg.Key, targetDay)
	if err != nil {
		return 0, fmt.Errorf("query max window end: %w", err)
	}

	start := dayStart
	if maxEnd != nil {
		start = maxEnd.In(loc)
		g.log.Debug("continuing from last window end", "target_day", targetDay, "start", start)
	} else {
		g.log.Debug("no existing records, starting at day boundary", "target_day", targetDay)
	}

	if !start.Before(dayEnd) {
		g.log.Info("target day exhausted, no record produced", "target_day", targetDay)
		return 0, nil
	}

	end := start.Add(g.cfg.Granularity)
	if end.After(dayEnd) {
		g.log.Warn("window capped at day boundary",
			"nominal_end", end, "capped_end", dayEnd)
		end = dayEnd
	}

	rec := g.buildRecord(start, end, targetDay)
	if err := g.repo.Create(dbc, []*drive.DriveRecord{rec}); err != nil {
		return 0, fmt.Errorf("insert drive record: %w", err)
	}

	g.log.Info("record generated",
		"pipeline_id", rec.PipelineID,
		"window_start", rec.WindowStartTime,
		"window_end", rec.WindowEndTime,
		"granularity", rec.Granularity)
	return 1, nil
}

func (g *Generator) buildRecord(start, end time.Time, targetDay string) *drive.DriveRecord {
	now := g.now().UTC()
	stageURI := g.stagingURI(start, targetDay)

	rec := &drive.DriveRecord{
		SourceName:        g.cfg.Key.Name,
		SourceCategory:    g.cfg.Key.Category,
		SourceSubCategory: g.cfg.Key.SubCategory,

		StageName:        g.cfg.StageName,
		StageCategory:    g.cfg.StageBucket,
		StageSubCategory: stageURI,

		TargetName:        g.cfg.TargetName,
		TargetCategory:    fmt.Sprintf("%s.%s.%s", g.cfg.TargetDatabase, g.cfg.TargetSchema, g.cfg.TargetTable),
		TargetSubCategory: stageURI + "%",

		PipelinePriority: g.cfg.Priority,

		WindowStartTime: start.UTC(),
		WindowEndTime:   end.UTC(),
		TargetDay:       targetDay,
		Granularity:     timeutil.FormatCompact(end.Sub(start)),

		SourceToStageStatus: drive.StatusPending,
		StageToTargetStatus: drive.StatusPending,
		AuditStatus:         drive.StatusPending,
		PipelineStatus:      drive.PipelineStatusPending,

		RecordFirstCreatedTime: now,
		RecordLastUpdatedTime:  now,
	}
	rec.ApplyIdentity()
	return rec
}

// stagingURI derives the stage prefix for one window, bucketed by target
// day and the window's wall-clock start (HH-mm).
func (g *Generator) stagingURI(start time.Time, targetDay string) string {
	parts := append([]string{}, g.cfg.StagePrefix...)
	parts = append(parts, targetDay, start.Format("15-04"))
	return fmt.Sprintf("gs://%s/%s/", g.cfg.StageBucket, strings.Join(parts, "/"))
}
