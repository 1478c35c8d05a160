package main

// ContinuationMessage is sent to the continuation queue after an interrupted
// run so the in-flight remainder is resumed before the next schedule.
type ContinuationMessage struct {
	PreviousRunID string `json:"previous_run_id"`
	Remaining     int    `json:"remaining"`
}

// Trigger names
const (
	TriggerSchedule     = "schedule"
	TriggerContinuation = "continuation"
	TriggerManual       = "manual"
)
