package drive

import (
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/driveline/internal/domain/drive"
	"github.com/yungbote/driveline/internal/pkg/dbctx"
	"github.com/yungbote/driveline/internal/platform/logger"
)

// ErrRecordNotFound is returned by lookups that require an existing row.
var ErrRecordNotFound = errors.New("drive record not found")

// RecordRepo is the single source of truth for pipeline records. All
// mutation goes through field-level updates keyed by pipeline_id; the store
// is not assumed to provide more than single-row atomic update, so
// at-most-one-in-progress is enforced by the locking protocol above it,
// not by transactions here.
type RecordRepo interface {
	Create(dbc dbctx.Context, records []*drive.DriveRecord) error
	GetByPipelineID(dbc dbctx.Context, pipelineID string) (*drive.DriveRecord, error)
	// GetOldestPending returns at most one PENDING record for the logical
	// source, ordered by window_start_time ascending, or nil.
	GetOldestPending(dbc dbctx.Context, key drive.SourceKey, priority string) (*drive.DriveRecord, error)
	// MaxWindowEnd returns the maximum window_end_time among records for
	// the logical source and target day, or nil when none exist.
	MaxWindowEnd(dbc dbctx.Context, key drive.SourceKey, targetDay string) (*time.Time, error)
	// UpdateFields applies a partial update and always stamps
	// record_last_updated_time.
	UpdateFields(dbc dbctx.Context, pipelineID string, updates map[string]interface{}) error
	// ListStaleInProgress returns IN_PROGRESS records with a live lock
	// token whose pipeline_start_time is older than the cutoff.
	ListStaleInProgress(dbc dbctx.Context, cutoff time.Time) ([]*drive.DriveRecord, error)
	ListByStatus(dbc dbctx.Context, pipelineStatus string, limit int) ([]*drive.DriveRecord, error)
}

type recordRepo struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

func NewRecordRepo(db *gorm.DB, baseLog *logger.Logger) RecordRepo {
	return &recordRepo{
		db:  db,
		log: baseLog.With("repo", "DriveRecordRepo"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *recordRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *recordRepo) Create(dbc dbctx.Context, records []*drive.DriveRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.conn(dbc).WithContext(dbc.Ctx).Create(&records).Error
}

func (r *recordRepo) GetByPipelineID(dbc dbctx.Context, pipelineID string) (*drive.DriveRecord, error) {
	var rec drive.DriveRecord
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("pipeline_id = ?", pipelineID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *recordRepo) GetOldestPending(dbc dbctx.Context, key drive.SourceKey, priority string) (*drive.DriveRecord, error) {
	q := r.conn(dbc).WithContext(dbc.Ctx).
		Where("pipeline_status = ?", drive.PipelineStatusPending).
		Where("source_name = ? AND source_category = ? AND source_sub_category = ?",
			key.Name, key.Category, key.SubCategory)
	if priority != "" {
		q = q.Where("pipeline_priority = ?", priority)
	}
	var rec drive.DriveRecord
	err := q.Order("window_start_time ASC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *recordRepo) MaxWindowEnd(dbc dbctx.Context, key drive.SourceKey, targetDay string) (*time.Time, error) {
	var maxEnd sql.NullTime
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Model(&drive.DriveRecord{}).
		Where("source_name = ? AND source_category = ? AND source_sub_category = ? AND target_day = ?",
			key.Name, key.Category, key.SubCategory, targetDay).
		Select("MAX(window_end_time)").
		Scan(&maxEnd).Error
	if err != nil {
		return nil, err
	}
	if !maxEnd.Valid {
		return nil, nil
	}
	end := maxEnd.Time
	return &end, nil
}

func (r *recordRepo) UpdateFields(dbc dbctx.Context, pipelineID string, updates map[string]interface{}) error {
	if pipelineID == "" {
		return ErrRecordNotFound
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["record_last_updated_time"]; !ok {
		updates["record_last_updated_time"] = r.now()
	}
	res := r.conn(dbc).WithContext(dbc.Ctx).
		Model(&drive.DriveRecord{}).
		Where("pipeline_id = ?", pipelineID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *recordRepo) ListStaleInProgress(dbc dbctx.Context, cutoff time.Time) ([]*drive.DriveRecord, error) {
	var out []*drive.DriveRecord
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("pipeline_status = ?", drive.PipelineStatusInProgress).
		Where("lock_token IS NOT NULL").
		Where("pipeline_start_time IS NOT NULL AND pipeline_start_time < ?", cutoff).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *recordRepo) ListByStatus(dbc dbctx.Context, pipelineStatus string, limit int) ([]*drive.DriveRecord, error) {
	q := r.conn(dbc).WithContext(dbc.Ctx).Model(&drive.DriveRecord{})
	if pipelineStatus != "" {
		q = q.Where("pipeline_status = ?", pipelineStatus)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*drive.DriveRecord
	if err := q.Order("window_start_time ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
