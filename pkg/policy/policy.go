package policy

import (
	"github.com/opscart/k8s-replica-scaler/pkg/config"
	"github.com/opscart/k8s-replica-scaler/pkg/logging"
	"github.com/opscart/k8s-replica-scaler/pkg/models"
)

// Policy computes the target replica count for a deployment from its
// collected signals. Explicit operator intent beats a discovered autoscaler
// floor, which beats the bare default.
type Policy struct {
	defaultReplicas int32
	userOverrode    bool
	releaseCheck    bool
}

// New builds a Policy from the run's configuration.
func New(cfg *config.Config) *Policy {
	return &Policy{
		defaultReplicas: cfg.DefaultReplicas,
		userOverrode:    cfg.UserOverrode,
		releaseCheck:    cfg.ReleaseCheck,
	}
}

// Resolve returns the target replica count for one deployment. It is a pure
// function of the signal and the policy's configuration; given the same
// inputs it always returns the same target.
func (p *Policy) Resolve(sig *models.DeploymentSignal) int32 {
	if !p.releaseCheck {
		return p.defaultReplicas
	}

	floor, ok := sig.Floor()
	if !ok {
		logging.Warn("Policy", "no autoscaler found for %s, falling back to %d replicas", sig.Name, p.defaultReplicas)
		return p.defaultReplicas
	}

	if p.userOverrode && floor != p.defaultReplicas {
		logging.Warn("Policy", "autoscaler floor %d for %s does not match user specified replicas; continuing with user defined replica count %d", floor, sig.Name, p.defaultReplicas)
		return p.defaultReplicas
	}

	if floor < 0 {
		logging.Warn("Policy", "autoscaler floor for %s was not resolved, defaulting to %d", sig.Name, p.defaultReplicas)
		return p.defaultReplicas
	}

	return floor
}

// ResolveAll computes and records the target for every signal. After it
// returns, every signal carries a resolved non-negative target.
func (p *Policy) ResolveAll(signals []*models.DeploymentSignal) {
	for _, sig := range signals {
		target := p.Resolve(sig)
		sig.SetTarget(target)
		logging.Info("Policy", "setting replica value for %s to %d", sig.Name, target)
	}
}
