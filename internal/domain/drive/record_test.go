package drive

import (
	"testing"
	"time"
)

func inFlightRecord(now time.Time) *DriveRecord {
	token := "run-1"
	phase := string(PhaseSourceToStage)
	return &DriveRecord{
		PipelineID:             "abc123",
		PipelineStatus:         PipelineStatusInProgress,
		PipelineStartTime:      &now,
		LockToken:              &token,
		CompletedPhase:         &phase,
		SourceToStageStatus:    StatusCompleted,
		SourceToStageStartTime: &now,
		SourceToStageEndTime:   &now,
		StageToTargetStatus:    StatusInProgress,
		StageToTargetStartTime: &now,
		AuditStatus:            StatusPending,
		RetryAttempt:           2,
	}
}

func TestResetForRetryResetsEverything(t *testing.T) {
	now := time.Now().UTC()
	rec := inFlightRecord(now)
	src := int64(100)
	rec.SourceCount = &src

	updates := rec.ResetForRetry()

	if rec.RetryAttempt != 3 {
		t.Errorf("retry_attempt = %d, want 3", rec.RetryAttempt)
	}
	if rec.PipelineStatus != PipelineStatusPending || rec.LockToken != nil || rec.PipelineStartTime != nil {
		t.Error("pipeline-level fields not fully reset")
	}
	if rec.SourceToStageStatus != StatusPending || rec.SourceToStageStartTime != nil || rec.SourceToStageEndTime != nil {
		t.Error("completed source_to_stage phase must also reset")
	}
	if rec.StageToTargetStatus != StatusPending || rec.AuditStatus != StatusPending {
		t.Error("remaining phases not reset")
	}
	if rec.SourceCount != nil || rec.AuditResult != nil || rec.CompletedPhase != nil {
		t.Error("audit bookkeeping not cleared")
	}
	if updates["retry_attempt"] != 3 {
		t.Errorf("updates retry_attempt = %v, want 3", updates["retry_attempt"])
	}
	if v, ok := updates["lock_token"]; !ok || v != nil {
		t.Error("updates must null out lock_token")
	}
}

func TestReleaseStaleLockPreservesCompletedPhases(t *testing.T) {
	now := time.Now().UTC()
	rec := inFlightRecord(now)

	updates := rec.ReleaseStaleLock()

	if rec.PipelineStatus != PipelineStatusPending || rec.LockToken != nil {
		t.Error("lock fields must reset unconditionally")
	}
	if rec.SourceToStageStatus != StatusCompleted || rec.SourceToStageEndTime == nil {
		t.Error("completed phase must be preserved")
	}
	if rec.StageToTargetStatus != StatusPending || rec.StageToTargetStartTime != nil {
		t.Error("in-progress phase must reset")
	}
	if rec.RetryAttempt != 2 {
		t.Errorf("stale release must not touch retry_attempt, got %d", rec.RetryAttempt)
	}
	if _, ok := updates["source_to_stage_status"]; ok {
		t.Error("updates must not include the completed phase's columns")
	}
	if _, ok := updates["stage_to_target_status"]; !ok {
		t.Error("updates must include the incomplete phase's columns")
	}
}

func TestMarkPhaseCompleted(t *testing.T) {
	now := time.Now().UTC()
	rec := &DriveRecord{SourceToStageStatus: StatusPending}
	rec.MarkPhaseStarted(PhaseSourceToStage, now.Add(-time.Minute))

	updates := rec.MarkPhaseCompleted(PhaseSourceToStage, now)

	if rec.SourceToStageStatus != StatusCompleted {
		t.Error("status not completed")
	}
	if rec.SourceToStageEndTime == nil || !rec.SourceToStageEndTime.Equal(now) {
		t.Error("end time not stamped")
	}
	if rec.CompletedPhase == nil || *rec.CompletedPhase != string(PhaseSourceToStage) {
		t.Error("completed_phase not set")
	}
	if updates["source_to_stage_status"] != StatusCompleted {
		t.Error("updates missing status column")
	}
}

func TestMarkAuditMatch(t *testing.T) {
	now := time.Now().UTC()
	rec := &DriveRecord{AuditStatus: StatusPending, PipelineStatus: PipelineStatusInProgress}
	rec.MarkPhaseStarted(PhaseAudit, now.Add(-time.Minute))

	rec.MarkAuditMatch(100, 100, now)

	if rec.PipelineStatus != PipelineStatusSuccess {
		t.Error("pipeline status must be SUCCESS")
	}
	if rec.AuditResult == nil || *rec.AuditResult != AuditResultMatch {
		t.Error("audit result must be MATCH")
	}
	if rec.PercentageDifference == nil || *rec.PercentageDifference != 0 {
		t.Error("equal counts must yield zero percentage difference")
	}
}

func TestMarkAuditMatchZeroSource(t *testing.T) {
	rec := &DriveRecord{}
	rec.MarkAuditMatch(0, 0, time.Now().UTC())
	if rec.PercentageDifference == nil || *rec.PercentageDifference != 0 {
		t.Error("zero source count must yield zero percentage difference, not a division error")
	}
}

func TestMarkAuditMatchDifference(t *testing.T) {
	rec := &DriveRecord{}
	rec.MarkAuditMatch(200, 150, time.Now().UTC())
	if rec.CountDifference == nil || *rec.CountDifference != -50 {
		t.Errorf("count difference = %v, want -50", rec.CountDifference)
	}
	if rec.PercentageDifference == nil || *rec.PercentageDifference != -25 {
		t.Errorf("percentage difference = %v, want -25", rec.PercentageDifference)
	}
}
