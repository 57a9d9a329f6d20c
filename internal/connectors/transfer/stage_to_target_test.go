package transfer

import (
	"testing"

	"github.com/yungbote/driveline/internal/connectors/warehouse"
)

func TestColumnOrderIsStable(t *testing.T) {
	row := map[string]interface{}{
		"user_id":    1,
		"event_time": "2025-06-01T00:00:00Z",
		"amount":     9.5,
	}
	cols := columnOrder(row)
	want := []string{"amount", "event_time", "user_id", warehouse.StagedFileColumn}
	if len(cols) != len(want) {
		t.Fatalf("columnOrder = %v, want %v", cols, want)
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Fatalf("columnOrder = %v, want %v", cols, want)
		}
	}
}

func TestColumnOrderDropsConflictingTag(t *testing.T) {
	row := map[string]interface{}{
		"id":                       1,
		warehouse.StagedFileColumn: "stale-value",
	}
	cols := columnOrder(row)
	if len(cols) != 2 || cols[0] != "id" || cols[1] != warehouse.StagedFileColumn {
		t.Fatalf("columnOrder = %v, the staged-file tag must appear exactly once, last", cols)
	}
}
