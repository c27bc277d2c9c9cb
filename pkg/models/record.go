package models

import "time"

// ScaleRun is the persisted record of one mutating reconciliation run.
type ScaleRun struct {
	ID        string
	ClusterID string
	Namespace string
	Direction Direction
	CreatedAt time.Time
	CreatedBy string
}

// ScaleOutcome is the persisted per-deployment result of a run.
type ScaleOutcome struct {
	ID               string
	RunID            string
	Deployment       string
	PreviousReplicas int32
	TargetReplicas   int32
	Outcome          Outcome
	Reason           string
	ExecutedAt       time.Time
}
