package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/opscart/k8s-replica-scaler/pkg/config"
	"github.com/opscart/k8s-replica-scaler/pkg/logging"
	"github.com/opscart/k8s-replica-scaler/pkg/models"
)

// SignalCollector builds the per-deployment signal set.
type SignalCollector interface {
	Collect(ctx context.Context) ([]*models.DeploymentSignal, error)
}

// TargetResolver computes and records a target for every signal.
type TargetResolver interface {
	ResolveAll(signals []*models.DeploymentSignal)
}

// Applier applies resolved targets with independent per-deployment outcomes.
type Applier interface {
	ApplyAll(ctx context.Context, signals []*models.DeploymentSignal, direction models.Direction) error
}

// Confirmer gates a mutating run on explicit operator approval of the full
// computed plan.
type Confirmer interface {
	Confirm(report *models.Report) (bool, error)
}

// Driver orchestrates one reconciliation run: collect signals, compute
// targets, gate on confirmation, apply, report.
type Driver struct {
	collector SignalCollector
	policy    TargetResolver
	scaler    Applier
	confirmer Confirmer
	cfg       *config.Config
}

// New wires a Driver from its collaborators.
func New(collector SignalCollector, policy TargetResolver, scaler Applier, confirmer Confirmer, cfg *config.Config) *Driver {
	return &Driver{
		collector: collector,
		policy:    policy,
		scaler:    scaler,
		confirmer: confirmer,
		cfg:       cfg,
	}
}

// Run executes the reconciliation sequence and returns the aggregate report.
// A dry run (no scale direction) reports computed targets without applying;
// a declined confirmation aborts with every outcome left NOT_EVALUATED.
func (d *Driver) Run(ctx context.Context) (*models.Report, error) {
	direction := d.cfg.Direction()
	if direction == models.DirectionNone {
		logging.Info("Driver", "no scaling specified, will perform a dry-run")
	}

	signals, err := d.collector.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collection failed: %w", err)
	}

	d.policy.ResolveAll(signals)

	report := &models.Report{
		Namespace: d.cfg.Namespace,
		Direction: direction,
		Signals:   signals,
		StartedAt: time.Now(),
	}

	if direction == models.DirectionNone {
		return report, nil
	}

	ok, err := d.confirmer.Confirm(report)
	if err != nil {
		return nil, fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		logging.Info("Driver", "scaling aborted")
		report.Aborted = true
		return report, nil
	}

	if err := d.scaler.ApplyAll(ctx, signals, direction); err != nil {
		return nil, err
	}
	return report, nil
}
