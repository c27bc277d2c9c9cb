package release

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

const appManifest = `---
apiVersion: v1
kind: Service
metadata:
  name: app
spec:
  ports:
    - port: 80
---
apiVersion: autoscaling/v2
kind: HorizontalPodAutoscaler
metadata:
  name: app
spec:
  minReplicas: 3
  maxReplicas: 10
  scaleTargetRef:
    apiVersion: apps/v1
    kind: Deployment
    name: api-server
---
apiVersion: autoscaling/v2
kind: HorizontalPodAutoscaler
metadata:
  name: app-worker
spec:
  minReplicas: 2
  maxReplicas: 5
  scaleTargetRef:
    apiVersion: apps/v1
    kind: Deployment
    name: worker
`

func encodeRelease(t *testing.T, name, manifest string) string {
	t.Helper()

	payload, err := json.Marshal(map[string]string{
		"name":     name,
		"manifest": manifest,
	})
	if err != nil {
		t.Fatalf("marshal release: %v", err)
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(payload); err != nil {
		t.Fatalf("gzip release: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func releaseSecret(name string, payload string) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "default",
		},
		Type: "helm.sh/release.v1",
		Data: map[string][]byte{"release": []byte(payload)},
	}
}

func TestDeployedResources(t *testing.T) {
	payload := encodeRelease(t, "app", appManifest)
	clientset := fake.NewSimpleClientset(releaseSecret("sh.helm.release.v1.app.v1", payload))

	inspector := NewHelmInspector(clientset, "default")
	resources, err := inspector.DeployedResources(context.Background(), "app")
	if err != nil {
		t.Fatalf("DeployedResources failed: %v", err)
	}

	if len(resources) != 3 {
		t.Fatalf("Expected 3 resources, got %d", len(resources))
	}

	if resources[0].Kind != "Service" {
		t.Errorf("Expected first resource Service, got %s", resources[0].Kind)
	}

	hpa := resources[1]
	if hpa.Kind != KindHorizontalPodAutoscaler {
		t.Errorf("Expected HorizontalPodAutoscaler, got %s", hpa.Kind)
	}
	if hpa.ScaleTargetRefName != "api-server" {
		t.Errorf("Expected scale target api-server, got %s", hpa.ScaleTargetRefName)
	}
	if hpa.MinReplicas == nil || *hpa.MinReplicas != 3 {
		t.Errorf("Expected minReplicas 3, got %v", hpa.MinReplicas)
	}

	if resources[2].ScaleTargetRefName != "worker" {
		t.Errorf("Expected second HPA targeting worker, got %s", resources[2].ScaleTargetRefName)
	}
}

func TestDeployedResourcesLatestRevisionWins(t *testing.T) {
	oldManifest := `---
kind: HorizontalPodAutoscaler
spec:
  minReplicas: 1
  scaleTargetRef:
    name: api-server
`
	newManifest := `---
kind: HorizontalPodAutoscaler
spec:
  minReplicas: 5
  scaleTargetRef:
    name: api-server
`
	clientset := fake.NewSimpleClientset(
		releaseSecret("sh.helm.release.v1.app.v1", encodeRelease(t, "app", oldManifest)),
		releaseSecret("sh.helm.release.v1.app.v2", encodeRelease(t, "app", newManifest)),
	)

	inspector := NewHelmInspector(clientset, "default")
	resources, err := inspector.DeployedResources(context.Background(), "app")
	if err != nil {
		t.Fatalf("DeployedResources failed: %v", err)
	}

	if len(resources) != 1 {
		t.Fatalf("Expected 1 resource, got %d", len(resources))
	}
	if resources[0].MinReplicas == nil || *resources[0].MinReplicas != 5 {
		t.Errorf("Expected minReplicas 5 from latest revision, got %v", resources[0].MinReplicas)
	}
}

func TestDeployedResourcesConfigMapFallback(t *testing.T) {
	payload := encodeRelease(t, "app", appManifest)
	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "sh.helm.release.v1.app.v1",
			Namespace: "default",
		},
		Data: map[string]string{"release": payload},
	}
	clientset := fake.NewSimpleClientset(cm)

	inspector := NewHelmInspector(clientset, "default")
	resources, err := inspector.DeployedResources(context.Background(), "app")
	if err != nil {
		t.Fatalf("DeployedResources via ConfigMap failed: %v", err)
	}
	if len(resources) != 3 {
		t.Errorf("Expected 3 resources from ConfigMap storage, got %d", len(resources))
	}
}

func TestDeployedResourcesNotFound(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	inspector := NewHelmInspector(clientset, "default")

	if _, err := inspector.DeployedResources(context.Background(), "missing"); err == nil {
		t.Fatal("Expected error for missing release, got none")
	}
}

func TestDeployedResourcesBadPayload(t *testing.T) {
	clientset := fake.NewSimpleClientset(releaseSecret("sh.helm.release.v1.app.v1", "not-base64!!"))
	inspector := NewHelmInspector(clientset, "default")

	if _, err := inspector.DeployedResources(context.Background(), "app"); err == nil {
		t.Fatal("Expected error for corrupt payload, got none")
	}
}
