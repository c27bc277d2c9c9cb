package collector

import (
	"context"
	"fmt"
	"testing"

	"github.com/opscart/k8s-replica-scaler/pkg/cluster"
	"github.com/opscart/k8s-replica-scaler/pkg/config"
	"github.com/opscart/k8s-replica-scaler/pkg/models"
	"github.com/opscart/k8s-replica-scaler/pkg/release"
)

type fakeReader struct {
	infos []cluster.DeploymentInfo
	err   error
}

func (f *fakeReader) ListDeployments(ctx context.Context, limit int64) ([]cluster.DeploymentInfo, error) {
	return f.infos, f.err
}

type fakeInspector struct {
	resources map[string][]release.Resource
	errs      map[string]error
	calls     int
}

func (f *fakeInspector) DeployedResources(ctx context.Context, releaseName string) ([]release.Resource, error) {
	f.calls++
	if err, ok := f.errs[releaseName]; ok {
		return nil, err
	}
	return f.resources[releaseName], nil
}

func int32p(v int32) *int32 { return &v }

func hpa(target string, minReplicas *int32) release.Resource {
	return release.Resource{
		Kind:               release.KindHorizontalPodAutoscaler,
		Name:               target,
		ScaleTargetRefName: target,
		MinReplicas:        minReplicas,
	}
}

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Namespace = "default"
	return cfg
}

func TestCollectWholeNamespace(t *testing.T) {
	reader := &fakeReader{infos: []cluster.DeploymentInfo{
		{Name: "api-server", Replicas: 3, Labels: map[string]string{"release": "app"}},
		{Name: "worker", Replicas: 1, Labels: map[string]string{"release": "app"}},
		{Name: "legacy", Replicas: 2},
	}}
	inspector := &fakeInspector{resources: map[string][]release.Resource{
		"app": {
			{Kind: "Service", Name: "app"},
			hpa("api-server", int32p(3)),
		},
	}}

	c := New(reader, inspector, testConfig())
	signals, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if len(signals) != 3 {
		t.Fatalf("Expected 3 signals, got %d", len(signals))
	}

	byName := make(map[string]*models.DeploymentSignal)
	for _, sig := range signals {
		byName[sig.Name] = sig
	}

	api := byName["api-server"]
	if api.CurrentReplicas != 3 {
		t.Errorf("Expected api-server current 3, got %d", api.CurrentReplicas)
	}
	if !api.HasRelease || api.ReleaseName != "app" {
		t.Errorf("Expected api-server release app, got %q", api.ReleaseName)
	}
	if floor, ok := api.Floor(); !ok || floor != 3 {
		t.Errorf("Expected api-server floor 3, got %v (found=%v)", floor, ok)
	}

	if _, ok := byName["worker"].Floor(); ok {
		t.Error("Expected no floor for worker (no matching HPA)")
	}

	legacy := byName["legacy"]
	if legacy.HasRelease {
		t.Error("Expected no release for unlabeled deployment")
	}
	if _, ok := legacy.Floor(); ok {
		t.Error("Expected no floor for unlabeled deployment")
	}
	if legacy.Outcome != models.OutcomeNotEvaluated {
		t.Errorf("Expected initial outcome NOT_EVALUATED, got %s", legacy.Outcome)
	}
}

func TestCollectWithNameFilter(t *testing.T) {
	reader := &fakeReader{infos: []cluster.DeploymentInfo{
		{Name: "api-server", Replicas: 3},
		{Name: "worker", Replicas: 1},
	}}
	cfg := testConfig()
	cfg.Deployments = []string{"worker"}
	cfg.ReleaseCheck = false

	c := New(reader, nil, cfg)
	signals, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(signals) != 1 || signals[0].Name != "worker" {
		t.Fatalf("Expected only worker, got %v", signals)
	}
}

func TestCollectReleaseCheckDisabled(t *testing.T) {
	reader := &fakeReader{infos: []cluster.DeploymentInfo{
		{Name: "api-server", Replicas: 3, Labels: map[string]string{"release": "app"}},
	}}
	cfg := testConfig()
	cfg.ReleaseCheck = false
	cfg.UserOverrode = true

	c := New(reader, nil, cfg)
	signals, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if signals[0].HasRelease {
		t.Error("Expected release resolution skipped when release check disabled")
	}
	if _, ok := signals[0].Floor(); ok {
		t.Error("Expected no floor when release check disabled")
	}
}

func TestCollectLastMatchingAutoscalerWins(t *testing.T) {
	reader := &fakeReader{infos: []cluster.DeploymentInfo{
		{Name: "api-server", Replicas: 3, Labels: map[string]string{"release": "app"}},
	}}
	inspector := &fakeInspector{resources: map[string][]release.Resource{
		"app": {
			hpa("api-server", int32p(2)),
			hpa("api-server", int32p(6)),
		},
	}}

	c := New(reader, inspector, testConfig())
	signals, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if floor, ok := signals[0].Floor(); !ok || floor != 6 {
		t.Errorf("Expected last matching autoscaler to win with floor 6, got %v (found=%v)", floor, ok)
	}
}

func TestCollectListFailureIsFatal(t *testing.T) {
	reader := &fakeReader{err: fmt.Errorf("connection refused")}
	c := New(reader, nil, testConfig())

	if _, err := c.Collect(context.Background()); err == nil {
		t.Fatal("Expected fatal error when listing fails, got none")
	}
}

func TestCollectReleaseFetchFailureIsFatal(t *testing.T) {
	reader := &fakeReader{infos: []cluster.DeploymentInfo{
		{Name: "api-server", Replicas: 3, Labels: map[string]string{"release": "broken"}},
		{Name: "worker", Replicas: 1, Labels: map[string]string{"release": "app"}},
	}}
	inspector := &fakeInspector{
		resources: map[string][]release.Resource{"app": {hpa("worker", int32p(2))}},
		errs:      map[string]error{"broken": fmt.Errorf("secrets list: connection refused")},
	}

	c := New(reader, inspector, testConfig())
	if _, err := c.Collect(context.Background()); err == nil {
		t.Fatal("Expected fatal error when a release fetch fails, got none")
	}
}

func TestCollectReleaseWithoutResourcesIsNonFatal(t *testing.T) {
	reader := &fakeReader{infos: []cluster.DeploymentInfo{
		{Name: "api-server", Replicas: 3, Labels: map[string]string{"release": "empty"}},
	}}
	inspector := &fakeInspector{resources: map[string][]release.Resource{"empty": nil}}

	c := New(reader, inspector, testConfig())
	signals, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Expected empty release resource set to be non-fatal, got: %v", err)
	}
	if _, ok := signals[0].Floor(); ok {
		t.Error("Expected no floor from an empty release resource set")
	}
}

func TestCollectCachesReleaseFetches(t *testing.T) {
	reader := &fakeReader{infos: []cluster.DeploymentInfo{
		{Name: "api-server", Replicas: 3, Labels: map[string]string{"release": "app"}},
		{Name: "worker", Replicas: 1, Labels: map[string]string{"release": "app"}},
	}}
	inspector := &fakeInspector{resources: map[string][]release.Resource{
		"app": {hpa("api-server", int32p(3)), hpa("worker", int32p(2))},
	}}

	c := New(reader, inspector, testConfig())
	if _, err := c.Collect(context.Background()); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if inspector.calls != 1 {
		t.Errorf("Expected 1 release fetch for shared release, got %d", inspector.calls)
	}
}

func TestCollectHPAWithoutMinReplicas(t *testing.T) {
	reader := &fakeReader{infos: []cluster.DeploymentInfo{
		{Name: "api-server", Replicas: 3, Labels: map[string]string{"release": "app"}},
	}}
	inspector := &fakeInspector{resources: map[string][]release.Resource{
		"app": {hpa("api-server", nil)},
	}}

	c := New(reader, inspector, testConfig())
	signals, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if _, ok := signals[0].Floor(); ok {
		t.Error("Expected no floor from HPA without minReplicas")
	}
}
