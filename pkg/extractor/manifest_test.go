package extractor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scoutflo/platform-observability-agent/pkg/classifier"
)

func mustRegistry(t *testing.T) *classifier.Registry {
	t.Helper()
	r, err := classifier.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

const deploymentManifest = `
apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
  namespace: default
  labels:
    app: web
spec:
  replicas: 3
  selector:
    matchLabels:
      app: web
  template:
    metadata:
      annotations:
        prometheus.io/scrape: "true"
    spec:
      containers:
      - name: web
        image: postgres:15
        ports:
        - containerPort: 5432
        env:
        - name: POSTGRES_DB
          value: app
`

func TestExtractManifests_MissingRoot(t *testing.T) {
	registry := mustRegistry(t)
	_, err := ExtractManifests(filepath.Join(t.TempDir(), "does-not-exist"), registry)
	if err == nil {
		t.Fatal("want error for missing repo root, got nil")
	}
}

func TestExtractManifests_EmptyRepoIsNotAnError(t *testing.T) {
	registry := mustRegistry(t)
	res, err := ExtractManifests(t.TempDir(), registry)
	if err != nil {
		t.Fatalf("ExtractManifests: %v", err)
	}
	if len(res.Workloads) != 0 {
		t.Fatalf("want 0 workloads in empty repo, got %d", len(res.Workloads))
	}
}

func TestExtractManifests_Deployment(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deployment.yaml", deploymentManifest)
	registry := mustRegistry(t)

	res, err := ExtractManifests(dir, registry)
	if err != nil {
		t.Fatalf("ExtractManifests: %v", err)
	}
	if len(res.Workloads) != 1 {
		t.Fatalf("want 1 workload, got %d", len(res.Workloads))
	}

	w := res.Workloads[0]
	if w.Name != "web" || w.Namespace != "default" || w.Replicas != 3 {
		t.Fatalf("unexpected workload: %+v", w)
	}
	if len(w.Containers) != 1 || w.Containers[0].Image != "postgres:15" {
		t.Fatalf("unexpected containers: %+v", w.Containers)
	}
	if w.Containers[0].Classification.Family != classifier.FamilyDatabase {
		t.Fatalf("Classification.Family = %q, want database", w.Containers[0].Classification.Family)
	}
	if len(w.Telemetry) == 0 {
		t.Fatalf("want at least one telemetry tag from the scrape annotation, got none")
	}
}

func TestExtractManifests_KindListIsUnwrapped(t *testing.T) {
	const listManifest = `
apiVersion: v1
kind: List
items:
- apiVersion: v1
  kind: Service
  metadata:
    name: svc-a
    namespace: default
  spec:
    selector:
      app: web
    ports:
    - port: 80
`
	dir := t.TempDir()
	writeFile(t, dir, "list.yaml", listManifest)
	registry := mustRegistry(t)

	res, err := ExtractManifests(dir, registry)
	if err != nil {
		t.Fatalf("ExtractManifests: %v", err)
	}
	if len(res.Services) != 1 || res.Services[0].Name != "svc-a" {
		t.Fatalf("want svc-a unwrapped from List, got %+v", res.Services)
	}
}

func TestExtractManifests_SecretValuesAreRedacted(t *testing.T) {
	const secretManifest = `
apiVersion: v1
kind: Secret
metadata:
  name: db-creds
  namespace: default
type: Opaque
data:
  password: cGFzc3dvcmQ=
stringData:
  username: admin
`
	dir := t.TempDir()
	writeFile(t, dir, "secret.yaml", secretManifest)
	registry := mustRegistry(t)

	res, err := ExtractManifests(dir, registry)
	if err != nil {
		t.Fatalf("ExtractManifests: %v", err)
	}
	if len(res.Secrets) != 1 {
		t.Fatalf("want 1 secret, got %d", len(res.Secrets))
	}
	sec := res.Secrets[0]
	for key, value := range sec.DataKeys {
		if value == "password" || value == "admin" {
			t.Fatalf("secret key %s retained its raw value %q", key, value)
		}
	}
	if _, ok := sec.DataKeys["password"]; !ok {
		t.Fatal("want password key name preserved")
	}
	if _, ok := sec.DataKeys["username"]; !ok {
		t.Fatal("want username key name preserved")
	}
}

func TestExtractManifests_OversizedFileIsSkipped(t *testing.T) {
	dir := t.TempDir()
	big := strings.Repeat("a", maxManifestFileSize+1)
	writeFile(t, dir, "huge.yaml", "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: x\n# "+big)
	registry := mustRegistry(t)

	res, err := ExtractManifests(dir, registry)
	if err != nil {
		t.Fatalf("ExtractManifests: %v", err)
	}
	if len(res.ConfigMaps) != 0 {
		t.Fatalf("want oversized file skipped, got %d configmaps", len(res.ConfigMaps))
	}
}

func TestExtractManifests_CronJobReadsNestedPodTemplate(t *testing.T) {
	const cronJobManifest = `
apiVersion: batch/v1
kind: CronJob
metadata:
  name: nightly
  namespace: default
spec:
  schedule: "0 0 * * *"
  jobTemplate:
    spec:
      template:
        metadata:
          annotations:
            prometheus.io/scrape: "true"
        spec:
          containers:
          - name: job
            image: busybox
`
	dir := t.TempDir()
	writeFile(t, dir, "cronjob.yaml", cronJobManifest)
	registry := mustRegistry(t)

	res, err := ExtractManifests(dir, registry)
	if err != nil {
		t.Fatalf("ExtractManifests: %v", err)
	}
	if len(res.Workloads) != 1 {
		t.Fatalf("want 1 workload, got %d", len(res.Workloads))
	}
	if len(res.Workloads[0].Containers) != 1 || res.Workloads[0].Containers[0].Image != "busybox" {
		t.Fatalf("want the jobTemplate's pod spec read, got %+v", res.Workloads[0])
	}
}
