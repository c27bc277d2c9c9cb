package datasource

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"
)

// MetricsServerSource reads live deployment usage from the metrics-server
// API. It is the fallback when no Prometheus is configured.
type MetricsServerSource struct {
	metricsClient metricsv.Interface
}

// NewMetricsServerSource builds a usage source around a metrics clientset.
func NewMetricsServerSource(metricsClient metricsv.Interface) *MetricsServerSource {
	return &MetricsServerSource{metricsClient: metricsClient}
}

// DeploymentUsage sums instantaneous usage over the deployment's pods. Pods
// are matched to their deployment by stripping the replicaset and pod hash
// segments from the pod name.
func (m *MetricsServerSource) DeploymentUsage(ctx context.Context, namespace, deployment string) (*Usage, error) {
	podMetrics, err := m.metricsClient.MetricsV1beta1().PodMetricses(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get pod metrics: %w", err)
	}

	usage := &Usage{}
	matched := false
	for _, pm := range podMetrics.Items {
		if extractWorkloadName(pm.Name) != deployment {
			continue
		}
		matched = true
		for _, container := range pm.Containers {
			cpu := container.Usage[corev1.ResourceCPU]
			mem := container.Usage[corev1.ResourceMemory]
			usage.CPUMillicores += cpu.MilliValue()
			usage.MemoryBytes += mem.Value()
		}
	}

	if !matched {
		return nil, fmt.Errorf("no pod metrics found for %s/%s", namespace, deployment)
	}
	return usage, nil
}

// IsAvailable reports whether the metrics API answers at all.
func (m *MetricsServerSource) IsAvailable(ctx context.Context) bool {
	_, err := m.metricsClient.MetricsV1beta1().PodMetricses(metav1.NamespaceAll).List(ctx, metav1.ListOptions{Limit: 1})
	return err == nil
}

func (m *MetricsServerSource) Name() string {
	return "metrics-server"
}

// extractWorkloadName turns "api-server-7d9f8b-xyz" into "api-server" by
// removing the last two dash-separated segments.
func extractWorkloadName(podName string) string {
	dashCount := 0
	for i := len(podName) - 1; i >= 0; i-- {
		if podName[i] == '-' {
			dashCount++
			if dashCount == 2 {
				return podName[:i]
			}
		}
	}
	return podName
}
