package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	driverepo "github.com/yungbote/driveline/internal/data/repos/drive"
	"github.com/yungbote/driveline/internal/http/response"
	"github.com/yungbote/driveline/internal/pkg/dbctx"
)

// RecordHandler exposes read-only ledger visibility. All mutation happens
// through the cycle; the API never writes.
type RecordHandler struct {
	repo driverepo.RecordRepo
}

func NewRecordHandler(repo driverepo.RecordRepo) *RecordHandler {
	return &RecordHandler{repo: repo}
}

// GET /api/records?status=&limit=
func (h *RecordHandler) ListRecords(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", errors.New("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	records, err := h.repo.ListByStatus(dbctx.New(c.Request.Context()), c.Query("status"), limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_records_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"records": records, "count": len(records)})
}

// GET /api/records/:pipeline_id
func (h *RecordHandler) GetRecord(c *gin.Context) {
	rec, err := h.repo.GetByPipelineID(dbctx.New(c.Request.Context()), c.Param("pipeline_id"))
	if err != nil {
		if errors.Is(err, driverepo.ErrRecordNotFound) {
			response.RespondError(c, http.StatusNotFound, "record_not_found", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "get_record_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"record": rec})
}
