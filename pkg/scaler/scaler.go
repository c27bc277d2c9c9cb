package scaler

import (
	"context"
	"fmt"

	"github.com/opscart/k8s-replica-scaler/pkg/cluster"
	"github.com/opscart/k8s-replica-scaler/pkg/logging"
	"github.com/opscart/k8s-replica-scaler/pkg/models"
)

const (
	reasonNotAboveCurrent = "target not above current"
	reasonNotBelowCurrent = "target not below current"
)

// Scaler applies computed replica targets, enforcing the directional guard:
// a scale-out never lowers a replica count and a scale-in never raises one.
type Scaler struct {
	writer cluster.Writer
}

// New builds a Scaler around the cluster-mutation collaborator.
func New(writer cluster.Writer) *Scaler {
	return &Scaler{writer: writer}
}

// Apply either patches the deployment to its target replica count or skips
// with a reason, never both. The signal's target must already be resolved.
func (s *Scaler) Apply(ctx context.Context, sig *models.DeploymentSignal, direction models.Direction) {
	if sig.TargetReplicas == nil {
		sig.Outcome = models.OutcomeFailed
		sig.Reason = "target replicas not resolved"
		logging.Error("Scaler", nil, "refusing to scale %s: %s", sig.Name, sig.Reason)
		return
	}
	target := sig.Target()

	switch direction {
	case models.DirectionOut:
		if target <= sig.CurrentReplicas {
			sig.Outcome = models.OutcomeSkippedGuard
			sig.Reason = reasonNotAboveCurrent
			logging.Warn("Scaler", "not scaling %s as current replica count of %d is higher or equal than desired replica count of %d", sig.Name, sig.CurrentReplicas, target)
			return
		}
	case models.DirectionIn:
		if target >= sig.CurrentReplicas {
			sig.Outcome = models.OutcomeSkippedGuard
			sig.Reason = reasonNotBelowCurrent
			logging.Warn("Scaler", "not scaling %s as current replica count of %d is lower or equal than desired replica count of %d", sig.Name, sig.CurrentReplicas, target)
			return
		}
	default:
		// Dry runs never reach the apply step.
		return
	}

	logging.Info("Scaler", "scaling %s to %d", sig.Name, target)
	if err := s.writer.PatchReplicas(ctx, sig.Name, target); err != nil {
		sig.Outcome = models.OutcomeFailed
		sig.Reason = err.Error()
		logging.Error("Scaler", err, "failed to scale %s", sig.Name)
		return
	}
	sig.Outcome = models.OutcomeApplied
}

// ApplyAll processes deployments one at a time with independent outcomes;
// one deployment's failure does not abort the batch.
func (s *Scaler) ApplyAll(ctx context.Context, signals []*models.DeploymentSignal, direction models.Direction) error {
	if direction == models.DirectionNone {
		return fmt.Errorf("apply called without a scale direction")
	}
	for _, sig := range signals {
		s.Apply(ctx, sig, direction)
	}
	return nil
}
