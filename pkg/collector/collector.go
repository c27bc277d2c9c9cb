package collector

import (
	"context"
	"fmt"

	"github.com/opscart/k8s-replica-scaler/pkg/cluster"
	"github.com/opscart/k8s-replica-scaler/pkg/config"
	"github.com/opscart/k8s-replica-scaler/pkg/logging"
	"github.com/opscart/k8s-replica-scaler/pkg/models"
	"github.com/opscart/k8s-replica-scaler/pkg/release"
)

// Collector gathers per-deployment facts: current replica count, release
// association and the autoscaler-declared minimum replicas.
type Collector struct {
	reader    cluster.Reader
	inspector release.Inspector
	cfg       *config.Config
}

// New builds a Collector. The inspector may be nil when release inspection
// is disabled.
func New(reader cluster.Reader, inspector release.Inspector, cfg *config.Config) *Collector {
	return &Collector{
		reader:    reader,
		inspector: inspector,
		cfg:       cfg,
	}
}

// Collect builds one DeploymentSignal per selected deployment. A failure of
// the underlying listing call fails the whole run; there is no safe partial
// reconciliation without a full namespace view.
func (c *Collector) Collect(ctx context.Context) ([]*models.DeploymentSignal, error) {
	infos, err := c.reader.ListDeployments(ctx, c.cfg.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to collect deployment state: %w", err)
	}

	selected := make(map[string]bool, len(c.cfg.Deployments))
	for _, name := range c.cfg.Deployments {
		selected[name] = true
	}

	var signals []*models.DeploymentSignal
	for _, info := range infos {
		if len(selected) > 0 && !selected[info.Name] {
			continue
		}
		sig := &models.DeploymentSignal{
			Name:            info.Name,
			Namespace:       c.cfg.Namespace,
			CurrentReplicas: info.Replicas,
			Outcome:         models.OutcomeNotEvaluated,
		}
		if c.cfg.ReleaseCheck {
			c.resolveRelease(sig, info.Labels)
		}
		signals = append(signals, sig)
	}

	if c.cfg.ReleaseCheck {
		logging.Info("Collector", "finding replica counts for releases")
		releaseCache := make(map[string][]release.Resource)
		for _, sig := range signals {
			if !sig.HasRelease {
				continue
			}
			if err := c.resolveFloor(ctx, sig, releaseCache); err != nil {
				return nil, err
			}
		}
	}

	return signals, nil
}

func (c *Collector) resolveRelease(sig *models.DeploymentSignal, labels map[string]string) {
	name, ok := labels[c.cfg.ReleaseLabel]
	logging.Debug("Collector", "deployment %s has label %s of %q", sig.Name, c.cfg.ReleaseLabel, name)
	if !ok || name == "" {
		logging.Warn("Collector", "no release found for %s", sig.Name)
		return
	}
	sig.ReleaseName = name
	sig.HasRelease = true
}

// resolveFloor scans the release's deployed resources for an autoscaler
// targeting the deployment. When multiple autoscalers reference the same
// deployment, the last one in manifest order wins. A failed release fetch is
// fatal: without full visibility into release state there is no safe
// reconciliation.
func (c *Collector) resolveFloor(ctx context.Context, sig *models.DeploymentSignal, cache map[string][]release.Resource) error {
	resources, ok := cache[sig.ReleaseName]
	if !ok {
		var err error
		resources, err = c.inspector.DeployedResources(ctx, sig.ReleaseName)
		if err != nil {
			return fmt.Errorf("failed to inspect release %s: %w", sig.ReleaseName, err)
		}
		cache[sig.ReleaseName] = resources
	}

	found := false
	for _, res := range resources {
		if res.Kind != release.KindHorizontalPodAutoscaler || res.ScaleTargetRefName != sig.Name {
			continue
		}
		logging.Info("Collector", "HorizontalPodAutoscaler found for %s targeting %s", sig.ReleaseName, sig.Name)
		if res.MinReplicas == nil {
			continue
		}
		sig.SetFloor(*res.MinReplicas)
		found = true
	}

	if !found {
		logging.Warn("Collector", "could not find minReplicas within HPA spec for %s; this deployment may not have HPA configured", sig.Name)
	}
	return nil
}
