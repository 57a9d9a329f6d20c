package warehouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yungbote/driveline/internal/domain/drive"
	"github.com/yungbote/driveline/internal/platform/logger"
)

// StagedFileColumn records which staging object every loaded row came from.
// target_sub_category holds the staging prefix plus a trailing SQL wildcard,
// so counting and deleting by LIKE on this column scopes exactly one window.
const StagedFileColumn = "staged_file"

// Target is the warehouse table rows are bulk loaded into.
type Target struct {
	pool   *pgxpool.Pool
	schema string
	table  string
	log    *logger.Logger
}

func NewTarget(ctx context.Context, dsn, schema, table string, baseLog *logger.Logger) (*Target, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect target warehouse: %w", err)
	}
	return &Target{
		pool:   pool,
		schema: schema,
		table:  table,
		log:    baseLog.With("connector", "WarehouseTarget", "table", schema+"."+table),
	}, nil
}

func (t *Target) Close() { t.pool.Close() }

func (t *Target) qualified() string {
	if t.schema == "" {
		return pgx.Identifier{t.table}.Sanitize()
	}
	return pgx.Identifier{t.schema, t.table}.Sanitize()
}

// Count returns how many rows of the record's window have landed so far.
// The load is asynchronous from the warehouse's point of view, so callers
// poll this.
func (t *Target) Count(ctx context.Context, rec *drive.DriveRecord) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s LIKE $1", t.qualified(), StagedFileColumn)
	var n int64
	if err := t.pool.QueryRow(ctx, query, rec.TargetSubCategory).Scan(&n); err != nil {
		return 0, fmt.Errorf("count target window: %w", err)
	}
	return n, nil
}

// Delete removes every row loaded from the record's staging prefix.
func (t *Target) Delete(ctx context.Context, rec *drive.DriveRecord) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s LIKE $1", t.qualified(), StagedFileColumn)
	tag, err := t.pool.Exec(ctx, query, rec.TargetSubCategory)
	if err != nil {
		return fmt.Errorf("delete target window: %w", err)
	}
	if tag.RowsAffected() > 0 {
		t.log.Info("cleared target window",
			"pipeline_id", rec.PipelineID, "rows", tag.RowsAffected())
	}
	return nil
}

// Load bulk copies rows into the table. Columns must include
// StagedFileColumn; the caller owns the row ordering.
func (t *Target) Load(ctx context.Context, columns []string, rows [][]interface{}) (int64, error) {
	hasFile := false
	for _, c := range columns {
		if c == StagedFileColumn {
			hasFile = true
			break
		}
	}
	if !hasFile {
		return 0, fmt.Errorf("load requires the %s column, got %s", StagedFileColumn, strings.Join(columns, ","))
	}

	ident := pgx.Identifier{t.table}
	if t.schema != "" {
		ident = pgx.Identifier{t.schema, t.table}
	}
	n, err := t.pool.CopyFrom(ctx, ident, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy into target: %w", err)
	}
	return n, nil
}
