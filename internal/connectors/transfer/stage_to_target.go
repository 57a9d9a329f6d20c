package transfer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/yungbote/driveline/internal/connectors/stage"
	"github.com/yungbote/driveline/internal/connectors/warehouse"
	"github.com/yungbote/driveline/internal/domain/drive"
	"github.com/yungbote/driveline/internal/platform/logger"
)

// maxStagedLine bounds one NDJSON row; staged rows are warehouse rows, not
// blobs.
const maxStagedLine = 16 * 1024 * 1024

// StageToTarget loads the record's staged part files into the target
// warehouse table, tagging every row with the staging object it came from.
type StageToTarget struct {
	stage  *stage.GCS
	target *warehouse.Target
	log    *logger.Logger
}

func NewStageToTarget(gcs *stage.GCS, target *warehouse.Target, baseLog *logger.Logger) *StageToTarget {
	return &StageToTarget{
		stage:  gcs,
		target: target,
		log:    baseLog.With("transfer", "stage_to_target"),
	}
}

// Cleanup deletes previously loaded rows for this window from the target.
func (t *StageToTarget) Cleanup(ctx context.Context, rec *drive.DriveRecord) error {
	return t.target.Delete(ctx, rec)
}

// Transfer loads every staged part file. An empty staging prefix loads zero
// rows, which is a valid outcome for an empty window.
func (t *StageToTarget) Transfer(ctx context.Context, rec *drive.DriveRecord) error {
	bucket, _, err := stage.SplitURI(rec.StageSubCategory)
	if err != nil {
		return err
	}
	keys, err := t.stage.ListKeys(ctx, rec)
	if err != nil {
		return fmt.Errorf("list staged parts: %w", err)
	}

	var total int64
	for _, key := range keys {
		stagedURI := fmt.Sprintf("gs://%s/%s", bucket, key)
		n, err := t.loadPart(ctx, rec, key, stagedURI)
		if err != nil {
			return fmt.Errorf("load part %s: %w", key, err)
		}
		total += n
	}
	t.log.Info("window loaded",
		"pipeline_id", rec.PipelineID, "parts", len(keys), "rows", total)
	return nil
}

func (t *StageToTarget) loadPart(ctx context.Context, rec *drive.DriveRecord, key, stagedURI string) (int64, error) {
	r, err := t.stage.Open(ctx, rec, key)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	var (
		columns []string
		rows    [][]interface{}
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxStagedLine)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var row map[string]interface{}
		if err := json.Unmarshal(line, &row); err != nil {
			return 0, fmt.Errorf("decode staged row: %w", err)
		}
		if columns == nil {
			columns = columnOrder(row)
		}
		vals := make([]interface{}, 0, len(columns))
		for _, c := range columns {
			if c == warehouse.StagedFileColumn {
				vals = append(vals, stagedURI)
				continue
			}
			vals = append(vals, row[c])
		}
		rows = append(rows, vals)
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("read staged part: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return t.target.Load(ctx, columns, rows)
}

// columnOrder gives a stable column list for the copy: the row's keys
// sorted, with the staged-file tag appended.
func columnOrder(row map[string]interface{}) []string {
	cols := make([]string, 0, len(row)+1)
	for k := range row {
		if k == warehouse.StagedFileColumn {
			continue
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return append(cols, warehouse.StagedFileColumn)
}
