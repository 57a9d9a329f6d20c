package testutil

import (
	"time"

	"github.com/yungbote/driveline/internal/domain/drive"
	"github.com/yungbote/driveline/internal/platform/timeutil"
)

// PendingRecord builds a fully-populated pending ledger record for the
// given window, with ids derived the same way the record generator does.
func PendingRecord(start, end time.Time) *drive.DriveRecord {
	now := time.Now().UTC()
	rec := &drive.DriveRecord{
		SourceName:        "events",
		SourceCategory:    "app_logs",
		SourceSubCategory: "checkout",

		StageName:        "gcs",
		StageCategory:    "stage-bucket",
		StageSubCategory: "gs://stage-bucket/app_logs/checkout/",

		TargetName:        "warehouse",
		TargetCategory:    "analytics.public.events",
		TargetSubCategory: "gs://stage-bucket/app_logs/checkout/%",

		PipelinePriority: "standard",

		WindowStartTime: start.UTC(),
		WindowEndTime:   end.UTC(),
		TargetDay:       timeutil.DateOnly(start, time.UTC),
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
