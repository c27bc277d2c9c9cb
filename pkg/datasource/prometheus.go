package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/opscart/k8s-replica-scaler/pkg/logging"
	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// PrometheusSource reads live deployment usage from a Prometheus server
// scraping cAdvisor metrics.
type PrometheusSource struct {
	client v1.API
	url    string
}

// NewPrometheusSource builds a usage source for the given Prometheus URL.
func NewPrometheusSource(url string) (*PrometheusSource, error) {
	client, err := api.NewClient(api.Config{
		Address: url,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &PrometheusSource{
		client: v1.NewAPI(client),
		url:    url,
	}, nil
}

// DeploymentUsage sums current CPU and memory over the deployment's pods.
// Pods are matched by the replicaset-hash naming convention.
func (p *PrometheusSource) DeploymentUsage(ctx context.Context, namespace, deployment string) (*Usage, error) {
	cpuQuery := fmt.Sprintf(`sum(rate(container_cpu_usage_seconds_total{namespace=%q,pod=~"%s-[a-z0-9]+-[a-z0-9]+",container!=""}[5m]))`,
		namespace, deployment)
	cpu, err := p.querySingle(ctx, cpuQuery)
	if err != nil {
		return nil, fmt.Errorf("CPU query failed: %w", err)
	}

	memQuery := fmt.Sprintf(`sum(container_memory_working_set_bytes{namespace=%q,pod=~"%s-[a-z0-9]+-[a-z0-9]+",container!=""})`,
		namespace, deployment)
	mem, err := p.querySingle(ctx, memQuery)
	if err != nil {
		return nil, fmt.Errorf("memory query failed: %w", err)
	}

	return &Usage{
		CPUMillicores: int64(cpu * 1000),
		MemoryBytes:   int64(mem),
	}, nil
}

func (p *PrometheusSource) querySingle(ctx context.Context, query string) (float64, error) {
	result, warnings, err := p.client.Query(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("query failed: %w", err)
	}

	if len(warnings) > 0 {
		logging.Warn("Datasource", "Prometheus warnings: %v", warnings)
	}

	vector, ok := result.(model.Vector)
	if !ok || len(vector) == 0 {
		return 0, fmt.Errorf("no data for query: %s", query)
	}

	sum := 0.0
	for _, sample := range vector {
		sum += float64(sample.Value)
	}
	return sum, nil
}

// IsAvailable probes the server with a trivial query.
func (p *PrometheusSource) IsAvailable(ctx context.Context) bool {
	_, _, err := p.client.Query(ctx, "up", time.Now())
	return err == nil
}

func (p *PrometheusSource) Name() string {
	return "Prometheus"
}
