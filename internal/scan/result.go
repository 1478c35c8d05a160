package scan

import "time"

// Status is the terminal state of a run.
type Status string

// Run statuses
const (
	StatusCompleted   Status = "completed"
	StatusInterrupted Status = "interrupted"
	StatusSkipped     Status = "skipped"
	StatusFailed      Status = "failed"
)

// MessageSkipped is reported when another run holds the lock.
const MessageSkipped = "skipped — concurrent run in progress"

// Result summarizes one run.
type Result struct {
	RunID  string `json:"run_id"`
	Status Status `json:"status"`

	Recorded   int `json:"recorded"`
	Duplicates int `json:"duplicates"`
	Rejected   int `json:"rejected"`
	NotSales   int `json:"not_sales"`
	Failed     int `json:"failed"`

	// Found is the number of eligible candidates fetched, Considered how many
	// the loop reached, Remaining the difference left in-flight.
	Found      int `json:"found"`
	Considered int `json:"considered"`
	Remaining  int `json:"remaining"`

	Interrupted bool          `json:"interrupted"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	Message     string        `json:"message,omitempty"`
}

// Counters returns the numeric fields keyed by metric name.
func (r Result) Counters() map[string]float64 {
	interrupted := 0.0
	if r.Interrupted {
		interrupted = 1
	}
	return map[string]float64{
		"Recorded":    float64(r.Recorded),
		"Duplicates":  float64(r.Duplicates),
		"Rejected":    float64(r.Rejected),
		"NotSales":    float64(r.NotSales),
		"Failed":      float64(r.Failed),
		"Remaining":   float64(r.Remaining),
		"Interrupted": interrupted,
	}
}
