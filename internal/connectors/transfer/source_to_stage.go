package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/yungbote/driveline/internal/connectors/stage"
	"github.com/yungbote/driveline/internal/connectors/warehouse"
	"github.com/yungbote/driveline/internal/domain/drive"
	"github.com/yungbote/driveline/internal/platform/logger"
)

// SourceToStage extracts a record's window from the source warehouse and
// stages it as NDJSON part files under the record's staging prefix.
type SourceToStage struct {
	source    *warehouse.Source
	stage     *stage.GCS
	batchSize int
	log       *logger.Logger
}

func NewSourceToStage(source *warehouse.Source, gcs *stage.GCS, batchSize int, baseLog *logger.Logger) *SourceToStage {
	if batchSize <= 0 {
		batchSize = 5000
	}
	return &SourceToStage{
		source:    source,
		stage:     gcs,
		batchSize: batchSize,
		log:       baseLog.With("transfer", "source_to_stage"),
	}
}

// Cleanup drops everything under the staging prefix so a retry starts from
// an empty destination.
func (t *SourceToStage) Cleanup(ctx context.Context, rec *drive.DriveRecord) error {
	return t.stage.Delete(ctx, rec)
}

// Transfer writes one part file per extraction batch. Part numbering is
// only unique within one attempt, which is safe because Cleanup emptied the
// prefix first.
func (t *SourceToStage) Transfer(ctx context.Context, rec *drive.DriveRecord) error {
	part := 0
	total := 0
	err := t.source.Extract(ctx, rec, t.batchSize, func(rows []map[string]interface{}) error {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				return fmt.Errorf("encode staged row: %w", err)
			}
		}
		name := fmt.Sprintf("part-%05d.ndjson", part)
		if err := t.stage.Upload(ctx, rec, name, &buf); err != nil {
			return fmt.Errorf("upload %s: %w", name, err)
		}
		part++
		total += len(rows)
		return nil
	})
	if err != nil {
		return err
	}
	t.log.Info("window staged",
		"pipeline_id", rec.PipelineID, "parts", part, "rows", total)
	return nil
}
