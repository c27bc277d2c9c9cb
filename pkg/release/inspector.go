package release

import "context"

// Resource is one deployed resource of a release, reduced to the fields the
// reconciler cares about. ScaleTargetRefName and MinReplicas are only
// meaningful for autoscaler kinds.
type Resource struct {
	Kind               string
	Name               string
	ScaleTargetRefName string
	MinReplicas        *int32
}

// KindHorizontalPodAutoscaler identifies autoscaler resources in a release's
// deployed resource set.
const KindHorizontalPodAutoscaler = "HorizontalPodAutoscaler"

// Inspector fetches the deployed resource set of a named release.
type Inspector interface {
	DeployedResources(ctx context.Context, releaseName string) ([]Resource, error)
}
