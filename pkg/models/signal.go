package models

// Direction is the scale direction requested for a run.
type Direction string

const (
	DirectionNone Direction = "NONE"
	DirectionOut  Direction = "SCALE_OUT"
	DirectionIn   Direction = "SCALE_IN"
)

// Outcome records what happened to a single deployment during a run.
type Outcome string

const (
	OutcomeNotEvaluated Outcome = "NOT_EVALUATED"
	OutcomeApplied      Outcome = "APPLIED"
	OutcomeSkippedGuard Outcome = "SKIPPED_GUARD"
	OutcomeFailed       Outcome = "FAILED"
)

// DeploymentSignal collects every fact known about one deployment during a
// reconciliation run. Signals are built fresh per invocation and discarded
// after the report is emitted.
type DeploymentSignal struct {
	Name            string  `json:"name"`
	Namespace       string  `json:"namespace"`
	CurrentReplicas int32   `json:"current_replicas"`
	ReleaseName     string  `json:"release_name,omitempty"`
	HasRelease      bool    `json:"has_release"`
	AutoscalerFloor *int32  `json:"autoscaler_floor,omitempty"`
	TargetReplicas  *int32  `json:"target_replicas,omitempty"`
	Outcome         Outcome `json:"outcome"`
	Reason          string  `json:"reason,omitempty"`

	// Usage annotation, populated only when requested. Never feeds into
	// target computation.
	UsageCPU    int64 `json:"usage_cpu_millicores,omitempty"`
	UsageMemory int64 `json:"usage_memory_bytes,omitempty"`
	HasUsage    bool  `json:"-"`
}

// Target returns the resolved target replica count. It must only be called
// after the target policy has run.
func (s *DeploymentSignal) Target() int32 {
	if s.TargetReplicas == nil {
		return 0
	}
	return *s.TargetReplicas
}

// SetTarget records the computed target replica count.
func (s *DeploymentSignal) SetTarget(replicas int32) {
	s.TargetReplicas = &replicas
}

// Floor returns the autoscaler floor and whether one was found.
func (s *DeploymentSignal) Floor() (int32, bool) {
	if s.AutoscalerFloor == nil {
		return 0, false
	}
	return *s.AutoscalerFloor, true
}

// SetFloor records a discovered autoscaler minimum-replica floor.
func (s *DeploymentSignal) SetFloor(replicas int32) {
	s.AutoscalerFloor = &replicas
}
