package capability

import (
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

func TestInfer_ExporterSidecar(t *testing.T) {
	r := mustRegistry(t)
	containers := []ContainerSpec{
		{Name: "postgres", Image: "postgres:15"},
		{Name: "exporter", Image: "prometheuscommunity/postgres-exporter:v0.15.0"},
	}
	classifications := []classifier.Classification{
		r.Classify("postgres:15", nil, nil, nil),
		r.Classify("prometheuscommunity/postgres-exporter:v0.15.0", nil, nil, nil),
	}

	tags := Infer(containers, classifications, nil, r)

	if !containsTag(tags, "exporter:postgres_exporter") {
		t.Fatalf("tags = %v, want exporter:postgres_exporter", tags)
	}
	if !HasExporter(tags) {
		t.Fatal("HasExporter = false, want true")
	}
}

func TestInfer_BuiltinMetricsSynthesizesExporterTag(t *testing.T) {
	r := mustRegistry(t)
	containers := []ContainerSpec{{Name: "envoy", Image: "envoyproxy/envoy:v1.28.0"}}
	classifications := []classifier.Classification{
		r.Classify("envoyproxy/envoy:v1.28.0", nil, nil, nil),
	}

	tags := Infer(containers, classifications, nil, r)

	if !containsTag(tags, TagBuiltinMetrics) {
		t.Fatalf("tags = %v, want builtin_metrics", tags)
	}
	if !containsTag(tags, "exporter:envoy_builtin") {
		t.Fatalf("tags = %v, want synthesized exporter:envoy_builtin", tags)
	}
}

func TestInfer_MetricsPortByName(t *testing.T) {
	r := mustRegistry(t)
	containers := []ContainerSpec{
		{Name: "app", Image: "myorg/app:v1", Ports: []PortSpec{{Name: "metrics", ContainerPort: 9100}}},
	}

	tags := Infer(containers, nil, nil, r)

	if !containsTag(tags, "metrics_port:9100") {
		t.Fatalf("tags = %v, want metrics_port:9100", tags)
	}
	if !HasScrapePath(tags) {
		t.Fatal("HasScrapePath = false, want true")
	}
}

func TestInfer_PrometheusAnnotations(t *testing.T) {
	r := mustRegistry(t)
	annotations := map[string]string{
		"prometheus.io/scrape": "TRUE",
		"prometheus.io/port":   "8080",
	}

	tags := Infer(nil, nil, annotations, r)

	if !containsTag(tags, TagScrapeAnnotation) {
		t.Fatalf("tags = %v, want scrape_annotations", tags)
	}
	if !containsTag(tags, "metrics_port:8080") {
		t.Fatalf("tags = %v, want metrics_port:8080", tags)
	}
}

func TestReadinessFor_ThreeBuckets(t *testing.T) {
	cases := []struct {
		name string
		tags []string
		want Readiness
	}{
		{"neither", nil, ReadinessNotReady},
		{"exporter only", []string{"exporter:postgres_exporter"}, ReadinessPartial},
		{"scrape path only", []string{"metrics_port:9100"}, ReadinessPartial},
		{"both", []string{"exporter:postgres_exporter", "scrape_annotations"}, ReadinessReady},
	}
	for _, c := range cases {
		if got := ReadinessFor(c.tags); got != c.want {
			t.Errorf("%s: ReadinessFor = %q, want %q", c.name, got, c.want)
		}
	}
}

// Property: every tag produced by Infer matches the documented grammar.
func TestInfer_TagGrammar(t *testing.T) {
	r := mustRegistry(t)
	containers := []ContainerSpec{
		{Name: "postgres", Image: "postgres:15", Ports: []PortSpec{{Name: "metrics", ContainerPort: 9187}}},
		{Name: "exporter", Image: "prometheuscommunity/postgres-exporter:v0.15.0"},
		{Name: "envoy", Image: "envoyproxy/envoy:v1.28.0"},
	}
	classifications := []classifier.Classification{
		r.Classify("postgres:15", nil, nil, nil),
		r.Classify("prometheuscommunity/postgres-exporter:v0.15.0", nil, nil, nil),
		r.Classify("envoyproxy/envoy:v1.28.0", nil, nil, nil),
	}
	annotations := map[string]string{"prometheus.io/scrape": "true", "prometheus.io/port": "9100"}

	tags := Infer(containers, classifications, annotations, r)
	if len(tags) == 0 {
		t.Fatal("expected non-empty tag set")
	}
	for _, tag := range tags {
		switch {
		case tag == TagBuiltinMetrics, tag == TagScrapeAnnotation:
		case hasDigitSuffix("metrics_port:", tag):
		case hasNonEmptySuffix("exporter:", tag):
		default:
			t.Errorf("tag %q does not match the documented grammar", tag)
		}
	}
}

func containsTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

func hasDigitSuffix(prefix, tag string) bool {
	if len(tag) <= len(prefix) || tag[:len(prefix)] != prefix {
		return false
	}
	for _, r := range tag[len(prefix):] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func hasNonEmptySuffix(prefix, tag string) bool {
	return len(tag) > len(prefix) && tag[:len(prefix)] == prefix
}
