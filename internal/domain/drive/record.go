package drive

import (
	"time"

	"gorm.io/datatypes"
)

// Phase statuses. A phase's end_time is set only when its status
// transitions to Completed; any reset clears both.
const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusError      = "ERROR"
)

// Pipeline statuses.
const (
	PipelineStatusPending    = "PENDING"
	PipelineStatusInProgress = "IN_PROGRESS"
	PipelineStatusSuccess    = "SUCCESS"
)

// Audit results.
const (
	AuditResultMatch = "MATCH"
	AuditResultError = "ERROR"
)

// Phase identifies one of the three ordered steps of a record's lifecycle.
type Phase string

const (
	PhaseSourceToStage Phase = "SOURCE_TO_STAGE"
	PhaseStageToTarget Phase = "STAGE_TO_TARGET"
	PhaseAudit         Phase = "AUDIT"
)

// DriveRecord is one ledger row per time window of work. The ledger is the
// sole coordination point between concurrent scheduler runs: the lock token
// plus pipeline_status arbitrate ownership, and every status transition is
// persisted through field-level updates keyed by pipeline_id.
type DriveRecord struct {
	PipelineID string `gorm:"column:pipeline_id;primaryKey;size:16" json:"pipeline_id"`
	SourceID   string `gorm:"column:source_id;size:16;not null" json:"source_id"`
	StageID    string `gorm:"column:stage_id;size:16;not null" json:"stage_id"`
	TargetID   string `gorm:"column:target_id;size:16;not null" json:"target_id"`

	SourceName        string `gorm:"column:source_name;not null;index:idx_drive_source" json:"source_name"`
	SourceCategory    string `gorm:"column:source_category;not null;index:idx_drive_source" json:"source_category"`
	SourceSubCategory string `gorm:"column:source_sub_category;not null;index:idx_drive_source" json:"source_sub_category"`

	StageName        string `gorm:"column:stage_name" json:"stage_name"`
	StageCategory    string `gorm:"column:stage_category" json:"stage_category"`
	StageSubCategory string `gorm:"column:stage_sub_category" json:"stage_sub_category"`

	TargetName        string `gorm:"column:target_name" json:"target_name"`
	TargetCategory    string `gorm:"column:target_category" json:"target_category"`
	TargetSubCategory string `gorm:"column:target_sub_category" json:"target_sub_category"`

	PipelinePriority string `gorm:"column:pipeline_priority;index" json:"pipeline_priority"`

	// Half-open window [start, end); end never crosses the target day
	// boundary. Granularity records the achieved duration, which may be
	// shorter than the configured one when capped at midnight.
	WindowStartTime time.Time `gorm:"column:window_start_time;not null;index" json:"window_start_time"`
	WindowEndTime   time.Time `gorm:"column:window_end_time;not null" json:"window_end_time"`
	TargetDay       string    `gorm:"column:target_day;size:10;not null;index" json:"target_day"`
	Granularity     string    `gorm:"column:granularity" json:"granularity"`

	SourceToStageStatus    string     `gorm:"column:source_to_stage_status;not null" json:"source_to_stage_status"`
	SourceToStageStartTime *time.Time `gorm:"column:source_to_stage_start_time" json:"source_to_stage_start_time,omitempty"`
	SourceToStageEndTime   *time.Time `gorm:"column:source_to_stage_end_time" json:"source_to_stage_end_time,omitempty"`

	StageToTargetStatus    string     `gorm:"column:stage_to_target_status;not null" json:"stage_to_target_status"`
	StageToTargetStartTime *time.Time `gorm:"column:stage_to_target_start_time" json:"stage_to_target_start_time,omitempty"`
	StageToTargetEndTime   *time.Time `gorm:"column:stage_to_target_end_time" json:"stage_to_target_end_time,omitempty"`

	AuditStatus    string     `gorm:"column:audit_status;not null" json:"audit_status"`
	AuditStartTime *time.Time `gorm:"column:audit_start_time" json:"audit_start_time,omitempty"`
	AuditEndTime   *time.Time `gorm:"column:audit_end_time" json:"audit_end_time,omitempty"`
	AuditResult    *string    `gorm:"column:audit_result" json:"audit_result,omitempty"`

	PipelineStatus    string     `gorm:"column:pipeline_status;not null;index" json:"pipeline_status"`
	PipelineStartTime *time.Time `gorm:"column:pipeline_start_time" json:"pipeline_start_time,omitempty"`
	PipelineEndTime   *time.Time `gorm:"column:pipeline_end_time" json:"pipeline_end_time,omitempty"`
	CompletedPhase    *string    `gorm:"column:completed_phase" json:"completed_phase,omitempty"`
	LockToken         *string    `gorm:"column:lock_token;index" json:"lock_token,omitempty"`
	RetryAttempt      int        `gorm:"column:retry_attempt;not null;default:0" json:"retry_attempt"`

	SourceCount          *int64   `gorm:"column:source_count" json:"source_count,omitempty"`
	TargetCount          *int64   `gorm:"column:target_count" json:"target_count,omitempty"`
	CountDifference      *int64   `gorm:"column:count_difference" json:"count_difference,omitempty"`
	PercentageDifference *float64 `gorm:"column:percentage_difference" json:"percentage_difference,omitempty"`

	Miscellaneous datatypes.JSON `gorm:"column:miscellaneous;type:jsonb" json:"miscellaneous,omitempty"`

	RecordFirstCreatedTime time.Time `gorm:"column:record_first_created_time;not null" json:"record_first_created_time"`
	RecordLastUpdatedTime  time.Time `gorm:"column:record_last_updated_time;not null" json:"record_last_updated_time"`
}

func (DriveRecord) TableName() string { return "drive_record" }

// SourceKey identifies one logical source; records are generated, picked
// and reconciled per key.
type SourceKey struct {
	Name        string
	Category    string
	SubCategory string
}

func (r *DriveRecord) Key() SourceKey {
	return SourceKey{Name: r.SourceName, Category: r.SourceCategory, SubCategory: r.SourceSubCategory}
}

// PhaseStatus returns the status of the given phase.
func (r *DriveRecord) PhaseStatus(p Phase) string {
	switch p {
	case PhaseSourceToStage:
		return r.SourceToStageStatus
	case PhaseStageToTarget:
		return r.StageToTargetStatus
	case PhaseAudit:
		return r.AuditStatus
	}
	return ""
}

// MarkPhaseStarted stamps the phase start time in memory. It is persisted
// together with the completion fields on success, or wiped by the reset on
// failure, so there is no separate IN_PROGRESS write per phase.
func (r *DriveRecord) MarkPhaseStarted(p Phase, now time.Time) {
	switch p {
	case PhaseSourceToStage:
		r.SourceToStageStartTime = &now
	case PhaseStageToTarget:
		r.StageToTargetStartTime = &now
	case PhaseAudit:
		r.AuditStartTime = &now
	}
}

// MarkPhaseCompleted records phase success and returns the column map to
// persist through the ledger repo.
func (r *DriveRecord) MarkPhaseCompleted(p Phase, now time.Time) map[string]interface{} {
	phase := string(p)
	r.CompletedPhase = &phase
	updates := map[string]interface{}{
		"completed_phase": phase,
	}
	switch p {
	case PhaseSourceToStage:
		r.SourceToStageStatus = StatusCompleted
		r.SourceToStageEndTime = &now
		updates["source_to_stage_status"] = StatusCompleted
		updates["source_to_stage_start_time"] = r.SourceToStageStartTime
		updates["source_to_stage_end_time"] = now
	case PhaseStageToTarget:
		r.StageToTargetStatus = StatusCompleted
		r.StageToTargetEndTime = &now
		updates["stage_to_target_status"] = StatusCompleted
		updates["stage_to_target_start_time"] = r.StageToTargetStartTime
		updates["stage_to_target_end_time"] = now
	case PhaseAudit:
		r.AuditStatus = StatusCompleted
		r.AuditEndTime = &now
		updates["audit_status"] = StatusCompleted
		updates["audit_start_time"] = r.AuditStartTime
		updates["audit_end_time"] = now
	}
	return updates
}

// Lock claims the record for one scheduler run. The ledger row is the
// mutual exclusion mechanism; no in-process locking exists.
func (r *DriveRecord) Lock(token string, now time.Time) map[string]interface{} {
	r.LockToken = &token
	r.PipelineStatus = PipelineStatusInProgress
	r.PipelineStartTime = &now
	return map[string]interface{}{
		"lock_token":          token,
		"pipeline_status":     PipelineStatusInProgress,
		"pipeline_start_time": now,
	}
}

// MarkAuditMatch finalizes the record after a successful reconciliation.
// The lock token is retained for traceability of which run completed it.
func (r *DriveRecord) MarkAuditMatch(sourceCount, targetCount int64, now time.Time) map[string]interface{} {
	diff := targetCount - sourceCount
	var pct float64
	if sourceCount != 0 {
		pct = float64(diff) / float64(sourceCount) * 100
	}
	result := AuditResultMatch
	phase := string(PhaseAudit)

	r.AuditStatus = StatusCompleted
	r.AuditEndTime = &now
	r.AuditResult = &result
	r.PipelineStatus = PipelineStatusSuccess
	r.PipelineEndTime = &now
	r.CompletedPhase = &phase
	r.SourceCount = &sourceCount
	r.TargetCount = &targetCount
	r.CountDifference = &diff
	r.PercentageDifference = &pct

	return map[string]interface{}{
		"audit_status":          StatusCompleted,
		"audit_start_time":      r.AuditStartTime,
		"audit_end_time":        now,
		"audit_result":          result,
		"pipeline_status":       PipelineStatusSuccess,
		"pipeline_end_time":     now,
		"completed_phase":       phase,
		"source_count":          sourceCount,
		"target_count":          targetCount,
		"count_difference":      diff,
		"percentage_difference": pct,
	}
}

// MarkAuditError flags an inconclusive audit without resetting the record,
// so an operational bug is not masked by a silent retry.
func (r *DriveRecord) MarkAuditError() map[string]interface{} {
	result := AuditResultError
	r.AuditStatus = StatusError
	r.AuditResult = &result
	return map[string]interface{}{
		"audit_status": StatusError,
		"audit_result": result,
	}
}

// ResetForRetry returns the whole record to the pending pool: every phase,
// the pipeline-level fields and the audit counts go back to PENDING/null,
// the lock is released and retry_attempt increments. Resetting fully rather
// than per-phase gives every retry a uniform re-entry point.
func (r *DriveRecord) ResetForRetry() map[string]interface{} {
	r.RetryAttempt++

	r.PipelineStatus = PipelineStatusPending
	r.PipelineStartTime = nil
	r.PipelineEndTime = nil
	r.LockToken = nil
	r.CompletedPhase = nil

	r.SourceToStageStatus = StatusPending
	r.SourceToStageStartTime = nil
	r.SourceToStageEndTime = nil

	r.StageToTargetStatus = StatusPending
	r.StageToTargetStartTime = nil
	r.StageToTargetEndTime = nil

	r.AuditStatus = StatusPending
	r.AuditStartTime = nil
	r.AuditEndTime = nil
	r.AuditResult = nil

	r.SourceCount = nil
	r.TargetCount = nil
	r.CountDifference = nil
	r.PercentageDifference = nil

	return map[string]interface{}{
		"retry_attempt": r.RetryAttempt,

		"pipeline_status":     PipelineStatusPending,
		"pipeline_start_time": nil,
		"pipeline_end_time":   nil,
		"lock_token":          nil,
		"completed_phase":     nil,

		"source_to_stage_status":     StatusPending,
		"source_to_stage_start_time": nil,
		"source_to_stage_end_time":   nil,

		"stage_to_target_status":     StatusPending,
		"stage_to_target_start_time": nil,
		"stage_to_target_end_time":   nil,

		"audit_status":     StatusPending,
		"audit_start_time": nil,
		"audit_end_time":   nil,
		"audit_result":     nil,

		"source_count":          nil,
		"target_count":          nil,
		"count_difference":      nil,
		"percentage_difference": nil,
	}
}

// ReleaseStaleLock resets the pipeline-level lock fields unconditionally
// and only the phases that have not completed, so re-entry after a crashed
// holder does not repeat finished work.
func (r *DriveRecord) ReleaseStaleLock() map[string]interface{} {
	updates := map[string]interface{}{
		"pipeline_status":     PipelineStatusPending,
		"pipeline_start_time": nil,
		"pipeline_end_time":   nil,
		"lock_token":          nil,
		"completed_phase":     nil,
	}
	r.PipelineStatus = PipelineStatusPending
	r.PipelineStartTime = nil
	r.PipelineEndTime = nil
	r.LockToken = nil
	r.CompletedPhase = nil

	if r.SourceToStageStatus != StatusCompleted {
		r.SourceToStageStatus = StatusPending
		r.SourceToStageStartTime = nil
		r.SourceToStageEndTime = nil
		updates["source_to_stage_status"] = StatusPending
		updates["source_to_stage_start_time"] = nil
		updates["source_to_stage_end_time"] = nil
	}
	if r.StageToTargetStatus != StatusCompleted {
		r.StageToTargetStatus = StatusPending
		r.StageToTargetStartTime = nil
		r.StageToTargetEndTime = nil
		updates["stage_to_target_status"] = StatusPending
		updates["stage_to_target_start_time"] = nil
		updates["stage_to_target_end_time"] = nil
	}
	if r.AuditStatus != StatusCompleted {
		r.AuditStatus = StatusPending
		r.AuditStartTime = nil
		r.AuditEndTime = nil
		r.AuditResult = nil
		updates["audit_status"] = StatusPending
		updates["audit_start_time"] = nil
		updates["audit_end_time"] = nil
		updates["audit_result"] = nil
	}
	return updates
}
