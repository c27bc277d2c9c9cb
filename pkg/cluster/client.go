package cluster

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/opscart/k8s-replica-scaler/pkg/logging"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"
)

// Client implements Reader and Writer against a live cluster through the
// Kubernetes API.
type Client struct {
	clientset      kubernetes.Interface
	namespace      string
	timeoutSeconds int64
}

// New builds a Client from the local kubeconfig.
func New(namespace string, timeoutSeconds int64) (*Client, error) {
	var kubeconfig string
	if home := homedir.HomeDir(); home != "" {
		kubeconfig = filepath.Join(home, ".kube", "config")
	}

	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return NewWithClientset(clientset, namespace, timeoutSeconds), nil
}

// NewMetricsClient builds a metrics-server clientset from the same local
// kubeconfig.
func NewMetricsClient() (*metricsv.Clientset, error) {
	var kubeconfig string
	if home := homedir.HomeDir(); home != "" {
		kubeconfig = filepath.Join(home, ".kube", "config")
	}

	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}

	metricsClient, err := metricsv.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics client: %w", err)
	}
	return metricsClient, nil
}

// NewWithClientset builds a Client around an existing clientset. Used by
// tests and by callers that already bootstrapped one.
func NewWithClientset(clientset kubernetes.Interface, namespace string, timeoutSeconds int64) *Client {
	return &Client{
		clientset:      clientset,
		namespace:      namespace,
		timeoutSeconds: timeoutSeconds,
	}
}

// Clientset exposes the underlying clientset for collaborators that share
// the same connection, such as the release inspector.
func (c *Client) Clientset() kubernetes.Interface {
	return c.clientset
}

// ListDeployments returns live deployment state for the client's namespace.
func (c *Client) ListDeployments(ctx context.Context, limit int64) ([]DeploymentInfo, error) {
	timeout := c.timeoutSeconds
	list, err := c.clientset.AppsV1().Deployments(c.namespace).List(ctx, metav1.ListOptions{
		Limit:          limit,
		TimeoutSeconds: &timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments in %s: %w", c.namespace, err)
	}

	infos := make([]DeploymentInfo, 0, len(list.Items))
	for _, item := range list.Items {
		var replicas int32
		if item.Spec.Replicas != nil {
			replicas = *item.Spec.Replicas
		}
		logging.Debug("Cluster", "deployment %s has replica count %d", item.Name, replicas)
		infos = append(infos, DeploymentInfo{
			Name:     item.Name,
			Replicas: replicas,
			Labels:   item.Labels,
		})
	}
	return infos, nil
}

// PatchReplicas issues a single strategic-merge patch of spec.replicas. A
// failure leaves the live replica count unchanged.
func (c *Client) PatchReplicas(ctx context.Context, name string, replicas int32) error {
	patch := []byte(fmt.Sprintf(`{"spec":{"replicas":%d}}`, replicas))
	_, err := c.clientset.AppsV1().Deployments(c.namespace).Patch(ctx, name, types.StrategicMergePatchType, patch, metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("failed to patch replicas for %s: %w", name, err)
	}
	return nil
}
