// Package capability implements the telemetry capability inferencer
// (component C2): it derives the set of observability capability tags a
// workload's pod template can actually emit, independent of whether a
// golden metric for its archetype exists.
package capability

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/scoutflo/platform-observability-agent/pkg/classifier"
)

// Tag grammar constants for the two fixed-text tags Infer produces; the
// parameterized exporter:<name> and metrics_port:<n> tags are built
// inline.
const (
	TagBuiltinMetrics   = "builtin_metrics"
	TagScrapeAnnotation = "scrape_annotations"
)

// PortSpec is the subset of a container port needed for inference.
type PortSpec struct {
	Name          string
	ContainerPort int
}

// ContainerSpec is the subset of a container needed for inference. It
// mirrors classifier.Classify's inputs plus ports, rather than depending
// on any live Kubernetes type, so C2 stays independently testable.
type ContainerSpec struct {
	Name  string
	Image string
	Ports []PortSpec
}

// exporterRule is one entry in the curated sidecar-exporter image table.
type exporterRule struct {
	pattern *regexp.Regexp
	name    string
}

var exporterRules = []exporterRule{
	{regexp.MustCompile(`(?i)postgres.?exporter`), "postgres_exporter"},
	{regexp.MustCompile(`(?i)mysqld.?exporter`), "mysqld_exporter"},
	{regexp.MustCompile(`(?i)redis.?exporter`), "redis_exporter"},
	{regexp.MustCompile(`(?i)memcached.?exporter`), "memcached_exporter"},
	{regexp.MustCompile(`(?i)mongodb.?exporter`), "mongodb_exporter"},
	{regexp.MustCompile(`(?i)elasticsearch.?exporter`), "elasticsearch_exporter"},
	{regexp.MustCompile(`(?i)kafka.?exporter|jmx.?exporter`), "kafka_exporter"},
	{regexp.MustCompile(`(?i)nats.?exporter`), "nats_exporter"},
	{regexp.MustCompile(`(?i)nginx.?exporter|nginx-prometheus-exporter`), "nginx_exporter"},
	{regexp.MustCompile(`(?i)haproxy.?exporter`), "haproxy_exporter"},
	{regexp.MustCompile(`(?i)node.?exporter`), "node_exporter"},
}

// Infer derives the telemetry capability tag set for one workload's pod
// template. classifications must be parallel to containers (same index
// refers to the same container), as produced by classifying each
// container via the registry during manifest extraction.
//
// Tags are returned as a slice, not a set: order is insignificant and
// duplicates may appear in the intermediate representation (e.g. two
// sidecars matching the same exporter pattern), per spec contract —
// callers that need set semantics dedupe at the point of use.
func Infer(containers []ContainerSpec, classifications []classifier.Classification, podAnnotations map[string]string, registry *classifier.Registry) []string {
	var tags []string

	for _, c := range containers {
		for _, rule := range exporterRules {
			if rule.pattern.MatchString(c.Image) {
				tags = append(tags, fmt.Sprintf("exporter:%s", rule.name))
				break
			}
		}
	}

	for _, cl := range classifications {
		profile, ok := cl.Profile(registry)
		if !ok || !profile.ExposesBuiltinMetrics {
			continue
		}
		tags = append(tags, TagBuiltinMetrics)
		tags = append(tags, fmt.Sprintf("exporter:%s", profile.ExporterName))
	}

	for _, c := range containers {
		for _, p := range c.Ports {
			if strings.EqualFold(p.Name, "metrics") {
				tags = append(tags, fmt.Sprintf("metrics_port:%d", p.ContainerPort))
			}
		}
	}
	if port, ok := podAnnotations["prometheus.io/port"]; ok && port != "" {
		tags = append(tags, fmt.Sprintf("metrics_port:%s", port))
	}

	if strings.EqualFold(podAnnotations["prometheus.io/scrape"], "true") {
		tags = append(tags, TagScrapeAnnotation)
	}

	return tags
}

// HasExporter reports whether the tag set contains evidence the workload
// can expose an exporter-style /metrics endpoint.
func HasExporter(tags []string) bool {
	for _, t := range tags {
		if t == TagBuiltinMetrics || strings.HasPrefix(t, "exporter:") {
			return true
		}
	}
	return false
}

// HasScrapePath reports whether the tag set contains evidence Prometheus
// has actually been told where to scrape.
func HasScrapePath(tags []string) bool {
	for _, t := range tags {
		if t == TagScrapeAnnotation || strings.HasPrefix(t, "metrics_port:") {
			return true
		}
	}
	return false
}

// Readiness is the three-bucket observability-readiness verdict derived
// from a workload's capability tags, per spec.md §4.4.
type Readiness string

const (
	ReadinessReady    Readiness = "ready"
	ReadinessPartial  Readiness = "partial"
	ReadinessNotReady Readiness = "not-ready"
)

// ReadinessFor maps hasExporter/hasScrapePath into the three-bucket
// verdict: ready requires both signals, partial requires exactly one,
// not-ready requires neither.
func ReadinessFor(tags []string) Readiness {
	exporter := HasExporter(tags)
	scrape := HasScrapePath(tags)
	switch {
	case exporter && scrape:
		return ReadinessReady
	case exporter || scrape:
		return ReadinessPartial
	default:
		return ReadinessNotReady
	}
}
