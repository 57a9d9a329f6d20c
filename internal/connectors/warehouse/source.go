package warehouse

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/driveline/internal/domain/drive"
	"github.com/yungbote/driveline/internal/platform/logger"
)

// Source reads the raw warehouse table a record's window is extracted from.
// Windows are half-open on the configured time column, matching how window
// boundaries are generated.
type Source struct {
	db         *gorm.DB
	table      string
	timeColumn string
	log        *logger.Logger
}

func NewSource(db *gorm.DB, table, timeColumn string, baseLog *logger.Logger) *Source {
	return &Source{
		db:         db,
		table:      table,
		timeColumn: timeColumn,
		log:        baseLog.With("connector", "WarehouseSource", "table", table),
	}
}

func (s *Source) windowScope(ctx context.Context, rec *drive.DriveRecord) *gorm.DB {
	cond := fmt.Sprintf("%s >= ? AND %s < ?", s.timeColumn, s.timeColumn)
	return s.db.WithContext(ctx).Table(s.table).
		Where(cond, rec.WindowStartTime, rec.WindowEndTime)
}

// Count returns the number of source rows inside the record's window. This
// is the reference value the audit reconciles against.
func (s *Source) Count(ctx context.Context, rec *drive.DriveRecord) (int64, error) {
	var n int64
	if err := s.windowScope(ctx, rec).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count source window: %w", err)
	}
	return n, nil
}

// Extract streams the window's rows to fn in batches, ordered by the time
// column so extraction is deterministic across retries.
func (s *Source) Extract(ctx context.Context, rec *drive.DriveRecord, batchSize int, fn func(rows []map[string]interface{}) error) error {
	if batchSize <= 0 {
		batchSize = 5000
	}
	offset := 0
	for {
		var batch []map[string]interface{}
		err := s.windowScope(ctx, rec).
			Order(s.timeColumn).
			Limit(batchSize).
			Offset(offset).
			Find(&batch).Error
		if err != nil {
			return fmt.Errorf("extract source window at offset %d: %w", offset, err)
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		offset += len(batch)
	}
}
