package recordgen

import (
	"context"
	"testing"
	"time"

	driverepo "github.com/yungbote/driveline/internal/data/repos/drive"
	"github.com/yungbote/driveline/internal/data/repos/testutil"
	"github.com/yungbote/driveline/internal/domain/drive"
	"github.com/yungbote/driveline/internal/pkg/dbctx"
)

func testConfig() Config {
	return Config{
		Key:            drive.SourceKey{Name: "events", Category: "app_logs", SubCategory: "checkout"},
		Priority:       "standard",
		StageName:      "gcs",
		StageBucket:    "stage-bucket",
		StagePrefix:    []string{"app_logs", "checkout"},
		TargetName:     "warehouse",
		TargetDatabase: "analytics",
		TargetSchema:   "public",
		TargetTable:    "events",
		Timezone:       time.UTC,
		Granularity:    time.Hour,
		XTimeBack:      24 * time.Hour,
	}
}

func newGenerator(t *testing.T, cfg Config, now time.Time) (*Generator, driverepo.RecordRepo, dbctx.Context) {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.WithTx(context.Background(), tx)
	repo := driverepo.NewRecordRepo(tx, testutil.Logger(t))
	gen := NewGenerator(repo, cfg, testutil.Logger(t))
	gen.now = func() time.Time { return now }
	return gen, repo, dbc
}

func TestGenerateNextFreshStart(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)
	gen, repo, dbc := newGenerator(t, testConfig(), now)

	n, err := gen.GenerateNext(dbc.Ctx)
	if err != nil {
		t.Fatalf("GenerateNext: %v", err)
	}
	if n != 1 {
		t.Fatalf("GenerateNext = %d, want 1", n)
	}

	rec, err := repo.GetOldestPending(dbc, testConfig().Key, "standard")
	if err != nil || rec == nil {
		t.Fatalf("generated record not found: %v", err)
	}
	wantStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if !rec.WindowStartTime.Equal(wantStart) {
		t.Errorf("window start = %v, want start of target day %v", rec.WindowStartTime, wantStart)
	}
	if !rec.WindowEndTime.Equal(wantStart.Add(time.Hour)) {
		t.Errorf("window end = %v, want %v", rec.WindowEndTime, wantStart.Add(time.Hour))
	}
	if rec.TargetDay != "2025-06-01" {
		t.Errorf("target day = %q", rec.TargetDay)
	}
	if rec.Granularity != "1h" {
		t.Errorf("granularity = %q, want 1h", rec.Granularity)
	}
	if rec.PipelineID == "" || rec.PipelineStatus != drive.PipelineStatusPending {
		t.Errorf("record not initialized: %+v", rec)
	}
	if rec.StageSubCategory != "gs://stage-bucket/app_logs/checkout/2025-06-01/00-00/" {
		t.Errorf("stage uri = %q", rec.StageSubCategory)
	}
	if rec.TargetSubCategory != rec.StageSubCategory+"%" {
		t.Errorf("target filter = %q", rec.TargetSubCategory)
	}
}

func TestGenerateNextContinuesFromMaxEnd(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)
	gen, repo, dbc := newGenerator(t, testConfig(), now)

	for i := 0; i < 3; i++ {
		if _, err := gen.GenerateNext(dbc.Ctx); err != nil {
			t.Fatalf("GenerateNext #%d: %v", i+1, err)
		}
	}

	maxEnd, err := repo.MaxWindowEnd(dbc, testConfig().Key, "2025-06-01")
	if err != nil {
		t.Fatalf("MaxWindowEnd: %v", err)
	}
	want := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	if maxEnd == nil || !maxEnd.Equal(want) {
		t.Errorf("after 3 generations max end = %v, want %v", maxEnd, want)
	}
}

func TestGenerateNextCapsAtDayBoundary(t *testing.T) {
	cfg := testConfig()
	cfg.Granularity = 7 * time.Hour
	now := time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)
	gen, repo, dbc := newGenerator(t, cfg, now)

	// 3 x 7h = 21h; the fourth window would overflow midnight.
	for i := 0; i < 4; i++ {
		n, err := gen.GenerateNext(dbc.Ctx)
		if err != nil {
			t.Fatalf("GenerateNext #%d: %v", i+1, err)
		}
		if n != 1 {
			t.Fatalf("GenerateNext #%d = %d, want 1", i+1, n)
		}
	}

	maxEnd, err := repo.MaxWindowEnd(dbc, cfg.Key, "2025-06-01")
	if err != nil {
		t.Fatalf("MaxWindowEnd: %v", err)
	}
	dayEnd := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	if maxEnd == nil || !maxEnd.Equal(dayEnd) {
		t.Fatalf("capped end = %v, want day boundary %v", maxEnd, dayEnd)
	}

	records, err := repo.ListByStatus(dbc, drive.PipelineStatusPending, 0)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	last := records[len(records)-1]
	if last.Granularity != "3h" {
		t.Errorf("achieved granularity = %q, want 3h (capped from 7h)", last.Granularity)
	}
}

func TestGenerateNextDayExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.Granularity = 24 * time.Hour
	now := time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)
	gen, repo, dbc := newGenerator(t, cfg, now)

	if n, _ := gen.GenerateNext(dbc.Ctx); n != 1 {
		t.Fatal("first window should cover the whole day")
	}
	n, err := gen.GenerateNext(dbc.Ctx)
	if err != nil {
		t.Fatalf("GenerateNext on exhausted day: %v", err)
	}
	if n != 0 {
		t.Fatalf("exhausted day produced %d records, want 0", n)
	}

	records, err := repo.ListByStatus(dbc, "", 0)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly 1 record, got %d", len(records))
	}
}

func TestGenerateNextZeroGranularity(t *testing.T) {
	cfg := testConfig()
	cfg.Granularity = 0
	gen, _, dbc := newGenerator(t, cfg, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC))

	n, err := gen.GenerateNext(dbc.Ctx)
	if err != nil {
		t.Fatalf("GenerateNext: %v", err)
	}
	if n != 0 {
		t.Fatalf("zero granularity produced %d records, want 0", n)
	}
}

func TestGenerateNextTimezoneDayBucket(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	cfg := testConfig()
	cfg.Timezone = loc
	// 03:00 UTC on June 2 is still June 1 on the west coast; with a day
	// of look-back the target day lands on May 31 local time.
	now := time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)
	gen, repo, dbc := newGenerator(t, cfg, now)

	if _, err := gen.GenerateNext(dbc.Ctx); err != nil {
		t.Fatalf("GenerateNext: %v", err)
	}
	rec, err := repo.GetOldestPending(dbc, cfg.Key, "standard")
	if err != nil || rec == nil {
		t.Fatalf("record not found: %v", err)
	}
	if rec.TargetDay != "2025-05-31" {
		t.Errorf("target day = %q, want 2025-05-31", rec.TargetDay)
	}
	wantStart := time.Date(2025, 5, 31, 0, 0, 0, 0, loc)
	if !rec.WindowStartTime.Equal(wantStart) {
		t.Errorf("window start = %v, want local midnight %v", rec.WindowStartTime, wantStart)
	}
}
