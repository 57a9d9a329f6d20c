package drive

import (
	"testing"
	"time"
)

func TestLegIDDeterministic(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	leg := Leg{Name: "events", Category: "app_logs", SubCategory: "checkout"}

	a := LegID(leg, start, end)
	b := LegID(leg, start, end)
	if a != b {
		t.Fatalf("same inputs produced different ids: %q vs %q", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("expected 16 hex chars, got %d (%q)", len(a), a)
	}

	// Offsets representing the same instant must hash identically.
	pst, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	c := LegID(leg, start.In(pst), end.In(pst))
	if a != c {
		t.Errorf("same instant in another zone changed the id: %q vs %q", a, c)
	}
}

func TestLegIDDistinguishesFields(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	base := Leg{Name: "events", Category: "app_logs", SubCategory: "checkout"}

	ids := map[string]string{
		"base":     LegID(base, start, end),
		"name":     LegID(Leg{"other", base.Category, base.SubCategory}, start, end),
		"category": LegID(Leg{base.Name, "other", base.SubCategory}, start, end),
		"subcat":   LegID(Leg{base.Name, base.Category, "other"}, start, end),
		"start":    LegID(base, start.Add(time.Minute), end),
		"end":      LegID(base, start, end.Add(time.Minute)),
	}
	seen := map[string]string{}
	for field, id := range ids {
		if prev, ok := seen[id]; ok {
			t.Errorf("fields %q and %q collided on id %q", prev, field, id)
		}
		seen[id] = field
	}
}

func TestApplyIdentity(t *testing.T) {
	rec := &DriveRecord{
		SourceName: "events", SourceCategory: "app_logs", SourceSubCategory: "checkout",
		StageName: "gcs", StageCategory: "stage-bucket", StageSubCategory: "gs://stage-bucket/x/",
		TargetName: "warehouse", TargetCategory: "analytics.public.events", TargetSubCategory: "gs://stage-bucket/x/%",
		WindowStartTime: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		WindowEndTime:   time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
	}
	rec.ApplyIdentity()

	if rec.SourceID == "" || rec.StageID == "" || rec.TargetID == "" {
		t.Fatal("leg ids not populated")
	}
	if rec.PipelineID != PipelineID(rec.SourceID, rec.StageID, rec.TargetID) {
		t.Error("pipeline id does not re-derive from leg ids")
	}

	clone := *rec
	clone.ApplyIdentity()
	if clone.PipelineID != rec.PipelineID {
		t.Error("re-derived pipeline id differs for identical record")
	}

	clone.WindowEndTime = clone.WindowEndTime.Add(time.Second)
	clone.ApplyIdentity()
	if clone.PipelineID == rec.PipelineID {
		t.Error("different window produced equal pipeline id")
	}
}
