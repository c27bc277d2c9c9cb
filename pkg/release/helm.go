package release

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/opscart/k8s-replica-scaler/pkg/logging"
	"gopkg.in/yaml.v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

var versionRegexp = regexp.MustCompile(`\.v(\d+)$`)

// helmRelease is the minimal slice of the Helm v3 release payload we decode.
type helmRelease struct {
	Name     string `json:"name"`
	Manifest string `json:"manifest"`
}

// manifestDoc is the minimal shape of a rendered manifest document. Fields
// outside kind and the autoscaler spec are ignored.
type manifestDoc struct {
	Kind     string `yaml:"kind"`
	Metadata struct {
		Name string `yaml:"name"`
	} `yaml:"metadata"`
	Spec struct {
		MinReplicas    *int32 `yaml:"minReplicas"`
		ScaleTargetRef struct {
			Name string `yaml:"name"`
		} `yaml:"scaleTargetRef"`
	} `yaml:"spec"`
}

// HelmInspector reads Helm v3 release storage (sh.helm.release.v1 Secrets,
// with a ConfigMap-driver fallback) directly from the cluster and decodes the
// rendered manifest of the latest revision.
type HelmInspector struct {
	clientset kubernetes.Interface
	namespace string
}

// NewHelmInspector builds an inspector for one namespace.
func NewHelmInspector(clientset kubernetes.Interface, namespace string) *HelmInspector {
	return &HelmInspector{
		clientset: clientset,
		namespace: namespace,
	}
}

// DeployedResources returns the deployed resource set of the latest revision
// of releaseName, in manifest order.
func (h *HelmInspector) DeployedResources(ctx context.Context, releaseName string) ([]Resource, error) {
	payload, err := h.latestReleasePayload(ctx, releaseName)
	if err != nil {
		return nil, err
	}

	rel, err := decodeRelease(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode release %q: %w", releaseName, err)
	}

	return parseManifest(rel.Manifest)
}

// latestReleasePayload finds the highest-revision storage object for the
// release and returns its raw payload.
func (h *HelmInspector) latestReleasePayload(ctx context.Context, releaseName string) (string, error) {
	prefix := fmt.Sprintf("sh.helm.release.v1.%s.v", releaseName)

	secrets, err := h.clientset.CoreV1().Secrets(h.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("error listing release secrets: %w", err)
	}

	maxVersion := 0
	var payload string
	for _, secret := range secrets.Items {
		rev, ok := revisionOf(secret.Name, prefix)
		if !ok {
			continue
		}
		if rev > maxVersion {
			maxVersion = rev
			payload = string(secret.Data["release"])
		}
	}
	if maxVersion > 0 {
		logging.Debug("Release", "using secret revision %d for release %s", maxVersion, releaseName)
		return payload, nil
	}

	// Some installations use the ConfigMap storage driver.
	cms, err := h.clientset.CoreV1().ConfigMaps(h.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("error listing release ConfigMaps: %w", err)
	}
	for _, cm := range cms.Items {
		rev, ok := revisionOf(cm.Name, prefix)
		if !ok {
			continue
		}
		if rev > maxVersion {
			maxVersion = rev
			payload = cm.Data["release"]
		}
	}
	if maxVersion > 0 {
		logging.Debug("Release", "using ConfigMap revision %d for release %s", maxVersion, releaseName)
		return payload, nil
	}

	return "", fmt.Errorf("no release storage found for release %q in %s", releaseName, h.namespace)
}

func revisionOf(objectName, prefix string) (int, bool) {
	if !strings.HasPrefix(objectName, prefix) {
		return 0, false
	}
	match := versionRegexp.FindStringSubmatch(objectName)
	if len(match) != 2 {
		return 0, false
	}
	rev, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return rev, true
}

// decodeRelease unwraps the Helm storage encoding: base64, then gzip, then
// JSON.
func decodeRelease(payload string) (*helmRelease, error) {
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("base64 decode error: %w", err)
	}

	gr, err := gzip.NewReader(bytes.NewReader(decoded))
	if err != nil {
		return nil, fmt.Errorf("gzip decompression error: %w", err)
	}
	defer gr.Close()

	var decompressed bytes.Buffer
	if _, err := io.Copy(&decompressed, gr); err != nil {
		return nil, fmt.Errorf("gzip read error: %w", err)
	}

	var rel helmRelease
	if err := json.Unmarshal(decompressed.Bytes(), &rel); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}
	return &rel, nil
}

// parseManifest splits a rendered multi-document manifest and extracts each
// document's kind plus autoscaler fields, preserving document order.
func parseManifest(manifest string) ([]Resource, error) {
	var resources []Resource
	for _, doc := range strings.Split(manifest, "\n---") {
		doc = strings.TrimSpace(doc)
		doc = strings.TrimPrefix(doc, "---")
		if doc == "" {
			continue
		}

		var parsed manifestDoc
		if err := yaml.Unmarshal([]byte(doc), &parsed); err != nil {
			logging.Warn("Release", "skipping unparseable manifest document: %v", err)
			continue
		}
		if parsed.Kind == "" {
			continue
		}

		resources = append(resources, Resource{
			Kind:               parsed.Kind,
			Name:               parsed.Metadata.Name,
			ScaleTargetRefName: parsed.Spec.ScaleTargetRef.Name,
			MinReplicas:        parsed.Spec.MinReplicas,
		})
	}
	return resources, nil
}
