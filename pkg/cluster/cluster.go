package cluster

import "context"

// DeploymentInfo is the subset of live deployment state the reconciler needs.
type DeploymentInfo struct {
	Name     string
	Replicas int32
	Labels   map[string]string
}

// Reader lists live deployment state in a namespace.
type Reader interface {
	ListDeployments(ctx context.Context, limit int64) ([]DeploymentInfo, error)
}

// Writer mutates live deployment state in a namespace.
type Writer interface {
	PatchReplicas(ctx context.Context, name string, replicas int32) error
}
