package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/driveline/internal/app"
	"github.com/yungbote/driveline/internal/config"
	"github.com/yungbote/driveline/internal/core/cycle"
	"github.com/yungbote/driveline/internal/observability"
	"github.com/yungbote/driveline/internal/platform/logger"
)

func main() {
	defaultsPath := flag.String("defaults", "configs/defaults.yaml", "path to the defaults config file")
	projectPath := flag.String("project", "", "path to the project config file layered over the defaults")
	mode := flag.String("mode", "once", "once: run one cycle and exit; serve: run the status API and cycle on a cadence")
	cronSpec := flag.String("cron", "@every 5m", "cycle cadence in serve mode (robfig cron syntax); empty disables cycling")
	flag.Parse()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(*defaultsPath, *projectPath, log)
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if shutdown := observability.InitTracing(ctx, log, observability.TracingConfig{
		ServiceName: "driveline",
		Environment: cfg.Env,
	}); shutdown != nil {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("otel shutdown failed", "error", err)
			}
		}()
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to wire application", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	switch *mode {
	case "once":
		res := a.RunCycle(ctx)
		if res.Outcome == cycle.OutcomeFatal {
			os.Exit(1)
		}
	case "serve":
		if err := a.Serve(ctx, *cronSpec); err != nil && ctx.Err() == nil {
			log.Error("Server exited", "error", err)
			os.Exit(1)
		}
	default:
		log.Error("Unknown mode", "mode", *mode)
		os.Exit(2)
	}
}
