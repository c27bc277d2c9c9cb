package models

import "time"

// Report is the aggregate result of one reconciliation run.
type Report struct {
	Namespace string              `json:"namespace"`
	Direction Direction           `json:"direction"`
	Signals   []*DeploymentSignal `json:"deployments"`
	Aborted   bool                `json:"aborted,omitempty"`
	StartedAt time.Time           `json:"started_at"`
}

// Failed reports whether any deployment in the run failed to apply.
func (r *Report) Failed() bool {
	for _, sig := range r.Signals {
		if sig.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}

// Counts returns the number of applied, skipped and failed deployments.
func (r *Report) Counts() (applied, skipped, failed int) {
	for _, sig := range r.Signals {
		switch sig.Outcome {
		case OutcomeApplied:
			applied++
		case OutcomeSkippedGuard:
			skipped++
		case OutcomeFailed:
			failed++
		}
	}
	return applied, skipped, failed
}
