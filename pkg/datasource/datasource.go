package datasource

import (
	"context"

	"github.com/opscart/k8s-replica-scaler/pkg/models"
)

// Usage is the live resource consumption of one deployment's pods.
type Usage struct {
	CPUMillicores int64
	MemoryBytes   int64
}

// UsageSource annotates the reconciliation plan with live usage numbers.
// Annotation is cosmetic; it never feeds into target computation.
type UsageSource interface {
	DeploymentUsage(ctx context.Context, namespace, deployment string) (*Usage, error)
	IsAvailable(ctx context.Context) bool
	Name() string
}

// Annotate decorates signals with usage from the source. An unreachable
// source or per-deployment lookup failure leaves the annotation absent.
func Annotate(ctx context.Context, source UsageSource, signals []*models.DeploymentSignal) {
	for _, sig := range signals {
		usage, err := source.DeploymentUsage(ctx, sig.Namespace, sig.Name)
		if err != nil {
			continue
		}
		sig.UsageCPU = usage.CPUMillicores
		sig.UsageMemory = usage.MemoryBytes
		sig.HasUsage = true
	}
}
