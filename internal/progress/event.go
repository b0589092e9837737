// Package progress defines the advisory events emitted while jobs run and a
// hub that fans them out to sinks. Events are best-effort telemetry: lost
// events never affect reconciliation, which relies only on the terminal job
// payload.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Event reports batch-level progress for one job.
type Event struct {
	JobID        string    `json:"jobId"`
	TS           time.Time `json:"ts"`
	Progress     int       `json:"progress"`
	Processed    int       `json:"processed"`
	Total        int       `json:"total"`
	BatchResults int       `json:"batchResults"`
	BatchErrors  int       `json:"batchErrors"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == "" {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	if e.Progress < 0 || e.Progress > 100 {
		return fmt.Errorf("progress %d out of range", e.Progress)
	}
	if e.Processed > e.Total {
		return fmt.Errorf("processed %d exceeds total %d", e.Processed, e.Total)
	}
	return nil
}
