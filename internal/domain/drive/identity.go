package drive

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// Identity generation is pure and deterministic: equal logical windows
// always yield equal ids, which is the system's idempotency key. MD5 is an
// identity hash here, not a security boundary.

const idDelimiter = "*"

// Leg is the logical coordinate tuple of one pipeline leg.
type Leg struct {
	Name        string
	Category    string
	SubCategory string
}

// LegID derives the 16-hex-character id of one leg from its coordinates
// and the time window.
func LegID(leg Leg, windowStart, windowEnd time.Time) string {
	return hash16(strings.Join([]string{
		leg.Name,
		leg.Category,
		leg.SubCategory,
		windowStart.UTC().Format(time.RFC3339),
		windowEnd.UTC().Format(time.RFC3339),
	}, idDelimiter))
}

// PipelineID derives the record id from the three leg ids.
func PipelineID(sourceID, stageID, targetID string) string {
	return hash16(strings.Join([]string{sourceID, stageID, targetID}, idDelimiter))
}

// ApplyIdentity recomputes all four ids from the record's leg coordinates
// and window. Re-derivable at any time for deduplication checks without a
// ledger round trip.
func (r *DriveRecord) ApplyIdentity() {
	r.SourceID = LegID(Leg{r.SourceName, r.SourceCategory, r.SourceSubCategory}, r.WindowStartTime, r.WindowEndTime)
	r.StageID = LegID(Leg{r.StageName, r.StageCategory, r.StageSubCategory}, r.WindowStartTime, r.WindowEndTime)
	r.TargetID = LegID(Leg{r.TargetName, r.TargetCategory, r.TargetSubCategory}, r.WindowStartTime, r.WindowEndTime)
	r.PipelineID = PipelineID(r.SourceID, r.StageID, r.TargetID)
}

func hash16(input string) string {
	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}
