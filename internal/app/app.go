package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/driveline/internal/config"
	"github.com/yungbote/driveline/internal/connectors/stage"
	"github.com/yungbote/driveline/internal/connectors/transfer"
	"github.com/yungbote/driveline/internal/connectors/warehouse"
	"github.com/yungbote/driveline/internal/core/audit"
	"github.com/yungbote/driveline/internal/core/cycle"
	"github.com/yungbote/driveline/internal/core/phase"
	"github.com/yungbote/driveline/internal/core/reclaim"
	"github.com/yungbote/driveline/internal/core/recordgen"
	driverepo "github.com/yungbote/driveline/internal/data/repos/drive"
	"github.com/yungbote/driveline/internal/domain/drive"
	driveHTTP "github.com/yungbote/driveline/internal/http"
	httpH "github.com/yungbote/driveline/internal/http/handlers"
	"github.com/yungbote/driveline/internal/platform/logger"
)

// App wires the ledger, the connectors and the cycle for one logical
// source.
type App struct {
	cfg *config.Config
	log *logger.Logger

	ledger   *PostgresService
	sourceDB *PostgresService
	target   *warehouse.Target
	gcs      *stage.GCS

	repo   driverepo.RecordRepo
	runner *cycle.Runner
	server *driveHTTP.Server
}

func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	ledger, err := NewPostgresService(cfg.Ledger.DSN, log)
	if err != nil {
		return nil, fmt.Errorf("ledger db: %w", err)
	}
	if err := ledger.AutoMigrateAll(); err != nil {
		return nil, fmt.Errorf("ledger migration: %w", err)
	}
	repo := driverepo.NewRecordRepo(ledger.DB(), log)

	sourceDB, err := NewPostgresService(cfg.Source.DSN, log)
	if err != nil {
		return nil, fmt.Errorf("source db: %w", err)
	}
	sourceTable := cfg.Source.SubCategory
	if cfg.Source.Category != "" {
		sourceTable = cfg.Source.Category + "." + cfg.Source.SubCategory
	}
	src := warehouse.NewSource(sourceDB.DB(), sourceTable, cfg.Source.TimeColumn, log)

	gcs, err := stage.NewGCS(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("stage client: %w", err)
	}

	target, err := warehouse.NewTarget(ctx, cfg.Target.DSN, cfg.Target.Schema, cfg.Target.Table, log)
	if err != nil {
		return nil, fmt.Errorf("target db: %w", err)
	}

	key := drive.SourceKey{
		Name:        cfg.SourceName,
		Category:    cfg.Source.Category,
		SubCategory: cfg.Source.SubCategory,
	}
	gen := recordgen.NewGenerator(repo, recordgen.Config{
		Key:            key,
		Priority:       cfg.Pipeline.Priority,
		StageName:      "gcs",
		StageBucket:    cfg.Stage.Bucket,
		StagePrefix:    cfg.Stage.Prefix,
		TargetName:     "warehouse",
		TargetDatabase: cfg.Target.Database,
		TargetSchema:   cfg.Target.Schema,
		TargetTable:    cfg.Target.Table,
		Timezone:       cfg.Pipeline.Timezone,
		Granularity:    cfg.Pipeline.Granularity,
		XTimeBack:      cfg.Pipeline.XTimeBack,
	}, log)

	s2sOp := transfer.NewSourceToStage(src, gcs, 0, log)
	s2tOp := transfer.NewStageToTarget(gcs, target, log)
	s2s := phase.NewExecutor(drive.PhaseSourceToStage, repo, s2sOp.Cleanup, s2sOp.Transfer, log)
	s2t := phase.NewExecutor(drive.PhaseStageToTarget, repo, s2tOp.Cleanup, s2tOp.Transfer, log)

	auditor := audit.NewReconciler(repo, src, target, gcs, target,
		cfg.Pipeline.AuditAttempts, cfg.Pipeline.AuditInterval, log)
	reclaimer := reclaim.NewReclaimer(repo, cfg.Pipeline.LockStaleThreshold, log)

	runner := cycle.NewRunner(repo, gen, s2s, s2t, auditor, reclaimer, key, cfg.Pipeline.Priority, log)

	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}
	server := driveHTTP.NewServer(driveHTTP.RouterConfig{
		RecordHandler: httpH.NewRecordHandler(repo),
		HealthHandler: httpH.NewHealthHandler(),
	})

	return &App{
		cfg:      cfg,
		log:      log.With("source_name", cfg.SourceName),
		ledger:   ledger,
		sourceDB: sourceDB,
		target:   target,
		gcs:      gcs,
		repo:     repo,
		runner:   runner,
		server:   server,
	}, nil
}

// RunCycle executes one cycle and logs its classification.
func (a *App) RunCycle(ctx context.Context) cycle.Result {
	res := a.runner.RunOnce(ctx)
	switch res.Outcome {
	case cycle.OutcomeSuccess:
		a.log.Info("cycle succeeded", "pipeline_id", res.PipelineID)
	case cycle.OutcomeSkip:
		a.log.Info("cycle skipped", "pipeline_id", res.PipelineID)
	case cycle.OutcomeRetryable:
		a.log.Warn("cycle failed, record requeued",
			"pipeline_id", res.PipelineID, "error", res.Err)
	case cycle.OutcomeFatal:
		a.log.Error("cycle failed",
			"pipeline_id", res.PipelineID, "error", res.Err)
	}
	return res
}

// Serve runs the status API and, when cronSpec is non-empty, cycles on that
// cadence until the context is canceled.
func (a *App) Serve(ctx context.Context, cronSpec string) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.server.Run(":" + a.cfg.Server.Port)
	})

	if cronSpec != "" {
		g.Go(func() error {
			c := cron.New()
			if _, err := c.AddFunc(cronSpec, func() {
				a.RunCycle(ctx)
			}); err != nil {
				return fmt.Errorf("cron spec %q: %w", cronSpec, err)
			}
			a.log.Info("cycle cadence started", "cron", cronSpec)
			c.Start()
			<-ctx.Done()
			<-c.Stop().Done()
			return ctx.Err()
		})
	}

	return g.Wait()
}

func (a *App) Close() {
	a.gcs.Close()
	a.target.Close()
	if err := a.sourceDB.Close(); err != nil {
		a.log.Warn("source db close failed", "error", err)
	}
	if err := a.ledger.Close(); err != nil {
		a.log.Warn("ledger db close failed", "error", err)
	}
}
