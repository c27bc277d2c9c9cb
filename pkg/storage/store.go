package storage

import (
	"context"

	"github.com/opscart/k8s-replica-scaler/pkg/models"
)

// Store defines the interface for persisting scaling run history. Recording
// history is best-effort and must never abort a scaling run.
type Store interface {
	SaveRun(ctx context.Context, run *models.ScaleRun) error
	ListRuns(ctx context.Context, namespace string, limit int) ([]*models.ScaleRun, error)

	SaveOutcome(ctx context.Context, outcome *models.ScaleOutcome) error
	GetOutcomes(ctx context.Context, runID string) ([]*models.ScaleOutcome, error)

	Ping(ctx context.Context) error
	Close() error
}
