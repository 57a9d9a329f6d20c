package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/driveline/internal/platform/logger"
	"github.com/yungbote/driveline/internal/platform/timeutil"
)

// Config is the fully resolved runtime configuration: YAML defaults, then
// the project file, then environment variables, each layer overriding the
// previous, with {env}/{source_group}/{source_name} placeholders expanded.
type Config struct {
	Env         string
	SourceGroup string
	SourceName  string

	Ledger   Ledger
	Source   Source
	Stage    Stage
	Target   Target
	Pipeline Pipeline
	Server   Server
}

// Ledger is the connection to the drive record store.
type Ledger struct {
	DSN string
}

// Source describes the warehouse table data is extracted from.
type Source struct {
	DSN         string
	Category    string
	SubCategory string
	TimeColumn  string
}

// Stage describes the GCS staging area.
type Stage struct {
	Bucket string
	Prefix []string
}

// Target describes the warehouse table data is loaded into.
type Target struct {
	DSN      string
	Database string
	Schema   string
	Table    string
}

// Pipeline carries the window and lifecycle tuning knobs.
type Pipeline struct {
	Priority           string
	Timezone           *time.Location
	Granularity        time.Duration
	XTimeBack          time.Duration
	AuditAttempts      int
	AuditInterval      time.Duration
	LockStaleThreshold time.Duration
}

// Server configures the status API.
type Server struct {
	Port    string
	GinMode string
}

// raw mirrors the YAML layout; durations stay in the compact string grammar
// until resolution.
type raw struct {
	Env         string `yaml:"env"`
	SourceGroup string `yaml:"source_group"`
	SourceName  string `yaml:"source_name"`

	Ledger struct {
		DSN string `yaml:"dsn"`
	} `yaml:"ledger"`

	Source struct {
		DSN         string `yaml:"dsn"`
		Category    string `yaml:"category"`
		SubCategory string `yaml:"sub_category"`
		TimeColumn  string `yaml:"time_column"`
	} `yaml:"source"`

	Stage struct {
		Bucket string   `yaml:"bucket"`
		Prefix []string `yaml:"prefix"`
	} `yaml:"stage"`

	Target struct {
		DSN      string `yaml:"dsn"`
		Database string `yaml:"database"`
		Schema   string `yaml:"schema"`
		Table    string `yaml:"table"`
	} `yaml:"target"`

	Pipeline struct {
		Priority           string `yaml:"priority"`
		Timezone           string `yaml:"timezone"`
		Granularity        string `yaml:"granularity"`
		XTimeBack          string `yaml:"x_time_back"`
		AuditAttempts      int    `yaml:"audit_attempts"`
		AuditInterval      string `yaml:"audit_interval"`
		LockStaleThreshold string `yaml:"lock_stale_threshold"`
	} `yaml:"pipeline"`

	Server struct {
		Port    string `yaml:"port"`
		GinMode string `yaml:"gin_mode"`
	} `yaml:"server"`
}

// Load resolves configuration from the defaults file, an optional project
// file and the environment. It fails fast on anything the pipeline cannot
// run without.
func Load(defaultsPath, projectPath string, log *logger.Logger) (*Config, error) {
	var rc raw
	if err := readInto(defaultsPath, &rc); err != nil {
		return nil, fmt.Errorf("defaults config: %w", err)
	}
	if projectPath != "" {
		// yaml.v3 leaves absent keys untouched, so unmarshalling the
		// project file over the defaults is the merge.
		if err := readInto(projectPath, &rc); err != nil {
			return nil, fmt.Errorf("project config: %w", err)
		}
	}

	rc.Env = GetEnv("DRIVELINE_ENV", rc.Env, log)
	rc.SourceGroup = GetEnv("DRIVELINE_SOURCE_GROUP", rc.SourceGroup, log)
	rc.SourceName = GetEnv("DRIVELINE_SOURCE_NAME", rc.SourceName, log)
	rc.Ledger.DSN = GetEnv("DRIVELINE_LEDGER_DSN", rc.Ledger.DSN, log)
	rc.Source.DSN = GetEnv("DRIVELINE_SOURCE_DSN", rc.Source.DSN, log)
	rc.Target.DSN = GetEnv("DRIVELINE_TARGET_DSN", rc.Target.DSN, log)
	rc.Stage.Bucket = GetEnv("DRIVELINE_STAGE_BUCKET", rc.Stage.Bucket, log)
	rc.Server.Port = GetEnv("PORT", rc.Server.Port, log)
	rc.Pipeline.AuditAttempts = GetEnvAsInt("DRIVELINE_AUDIT_ATTEMPTS", rc.Pipeline.AuditAttempts, log)

	expand := placeholderExpander(rc.Env, rc.SourceGroup, rc.SourceName)
	rc.Ledger.DSN = expand(rc.Ledger.DSN)
	rc.Source.DSN = expand(rc.Source.DSN)
	rc.Source.Category = expand(rc.Source.Category)
	rc.Source.SubCategory = expand(rc.Source.SubCategory)
	rc.Target.DSN = expand(rc.Target.DSN)
	rc.Target.Database = expand(rc.Target.Database)
	rc.Target.Schema = expand(rc.Target.Schema)
	rc.Target.Table = expand(rc.Target.Table)
	rc.Stage.Bucket = expand(rc.Stage.Bucket)
	for i := range rc.Stage.Prefix {
		rc.Stage.Prefix[i] = expand(rc.Stage.Prefix[i])
	}

	return resolve(&rc)
}

func readInto(path string, rc *raw) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, rc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func placeholderExpander(env, sourceGroup, sourceName string) func(string) string {
	r := strings.NewReplacer(
		"{env}", env,
		"{source_group}", sourceGroup,
		"{source_name}", sourceName,
	)
	return r.Replace
}

func resolve(rc *raw) (*Config, error) {
	if rc.SourceName == "" {
		return nil, fmt.Errorf("source_name is required")
	}
	if rc.Ledger.DSN == "" {
		return nil, fmt.Errorf("ledger.dsn is required")
	}
	if rc.Source.DSN == "" {
		return nil, fmt.Errorf("source.dsn is required")
	}
	if rc.Stage.Bucket == "" {
		return nil, fmt.Errorf("stage.bucket is required")
	}
	if rc.Target.Table == "" {
		return nil, fmt.Errorf("target.table is required")
	}

	tzName := rc.Pipeline.Timezone
	if tzName == "" {
		tzName = "UTC"
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("pipeline.timezone %q: %w", tzName, err)
	}

	granularity := timeutil.ParseCompact(rc.Pipeline.Granularity)
	if granularity <= 0 {
		return nil, fmt.Errorf("pipeline.granularity %q must be a positive compact duration", rc.Pipeline.Granularity)
	}
	xTimeBack := timeutil.ParseCompact(rc.Pipeline.XTimeBack)
	if xTimeBack < 0 {
		return nil, fmt.Errorf("pipeline.x_time_back %q invalid", rc.Pipeline.XTimeBack)
	}

	cfg := &Config{
		Env:         rc.Env,
		SourceGroup: rc.SourceGroup,
		SourceName:  rc.SourceName,
		Ledger:      Ledger{DSN: rc.Ledger.DSN},
		Source: Source{
			DSN:         rc.Source.DSN,
			Category:    rc.Source.Category,
			SubCategory: rc.Source.SubCategory,
			TimeColumn:  rc.Source.TimeColumn,
		},
		Stage: Stage{
			Bucket: rc.Stage.Bucket,
			Prefix: rc.Stage.Prefix,
		},
		Target: Target{
			DSN:      rc.Target.DSN,
			Database: rc.Target.Database,
			Schema:   rc.Target.Schema,
			Table:    rc.Target.Table,
		},
		Pipeline: Pipeline{
			Priority:           rc.Pipeline.Priority,
			Timezone:           loc,
			Granularity:        granularity,
			XTimeBack:          xTimeBack,
			AuditAttempts:      rc.Pipeline.AuditAttempts,
			AuditInterval:      timeutil.ParseCompact(rc.Pipeline.AuditInterval),
			LockStaleThreshold: timeutil.ParseCompact(rc.Pipeline.LockStaleThreshold),
		},
		Server: Server{
			Port:    rc.Server.Port,
			GinMode: rc.Server.GinMode,
		},
	}
	if cfg.Source.TimeColumn == "" {
		cfg.Source.TimeColumn = "event_time"
	}
	if cfg.Pipeline.Priority == "" {
		cfg.Pipeline.Priority = "standard"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	return cfg, nil
}
