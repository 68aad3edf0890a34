package history

import (
	"time"

	"github.com/sydlexius/shears/internal/shear"
)

// ShearRecord is a stored shear together with the space it was expected to
// reclaim.
type ShearRecord struct {
	shear.Report
	ReclaimedBytes uint64 `json:"reclaimed_bytes"`
}

// ScanRecord is a stored locator run.
type ScanRecord struct {
	ID        string        `json:"id"`
	Root      string        `json:"root"`
	State     string        `json:"state"` // "completed", "cancelled" or "failed"
	Found     []string      `json:"found"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
}
