package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	driverepo "github.com/yungbote/driveline/internal/data/repos/drive"
	"github.com/yungbote/driveline/internal/data/repos/testutil"
	"github.com/yungbote/driveline/internal/domain/drive"
	"github.com/yungbote/driveline/internal/pkg/dbctx"
)

func newTestRouter(t *testing.T) (*gin.Engine, driverepo.RecordRepo, dbctx.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := driverepo.NewRecordRepo(tx, testutil.Logger(t))

	h := NewRecordHandler(repo)
	r := gin.New()
	r.GET("/api/records", h.ListRecords)
	r.GET("/api/records/:pipeline_id", h.GetRecord)
	return r, repo, dbctx.WithTx(context.Background(), tx)
}

func TestListRecordsFiltersByStatus(t *testing.T) {
	r, repo, dbc := newTestRouter(t)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	pending := testutil.PendingRecord(start, start.Add(time.Hour))
	done := testutil.PendingRecord(start.Add(time.Hour), start.Add(2*time.Hour))
	done.PipelineStatus = drive.PipelineStatusSuccess
	if err := repo.Create(dbc, []*drive.DriveRecord{pending, done}); err != nil {
		t.Fatalf("seed records: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/records?status=PENDING", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body struct {
		Records []drive.DriveRecord `json:"records"`
		Count   int                 `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Count != 1 || len(body.Records) != 1 {
		t.Fatalf("count = %d, want 1 pending record", body.Count)
	}
	if body.Records[0].PipelineID != pending.PipelineID {
		t.Errorf("got record %q, want %q", body.Records[0].PipelineID, pending.PipelineID)
	}
}

func TestListRecordsRejectsBadLimit(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/records?limit=nope", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetRecord(t *testing.T) {
	r, repo, dbc := newTestRouter(t)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rec := testutil.PendingRecord(start, start.Add(time.Hour))
	if err := repo.Create(dbc, []*drive.DriveRecord{rec}); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/records/"+rec.PipelineID, nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/records/ffffffffffffffff", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d for unknown id, want 404", w.Code)
	}
}
