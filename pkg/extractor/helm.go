package extractor

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/chartutil"
	"helm.sh/helm/v3/pkg/engine"

	"github.com/scoutflo/platform-observability-agent/pkg/classifier"
	"github.com/scoutflo/platform-observability-agent/pkg/platform"
)

// helmChartArchetypeTable maps a chart-name substring to the archetype
// this extractor assigns it, per spec.md §4.3(b)'s "chart-name
// substring table" rule.
var helmChartArchetypeTable = []struct {
	substring string
	archetype string
}{
	{"postgres", "database"},
	{"mysql", "database"},
	{"mariadb", "database"},
	{"mongodb", "database"},
	{"redis", "cache"},
	{"memcached", "cache"},
	{"kafka", "message-queue"},
	{"rabbitmq", "message-queue"},
	{"nats", "message-queue"},
	{"elasticsearch", "search-engine"},
	{"opensearch", "search-engine"},
	{"nginx-ingress", "reverse-proxy"},
	{"ingress-nginx", "reverse-proxy"},
	{"haproxy", "reverse-proxy"},
	{"prometheus", "monitoring"},
	{"grafana", "monitoring"},
	{"fluentd", "logging"},
	{"fluent-bit", "logging"},
}

// HelmResult is the output of the Helm sub-extractor (4.3b).
type HelmResult struct {
	Charts       []platform.IaCResource
	Dependencies []platform.IaCResource
	Rendered     *ManifestResult
	Errors       []string
}

// ExtractHelm walks root for Chart.yaml directories, loads each chart
// in-process via helm.sh/helm/v3, and renders it (replacing the spec's
// "shell out to the helm binary" step with the SDK the dependency graph
// already carries) so the rendered manifests can be re-fed through the
// manifest extractor.
func ExtractHelm(root string, registry *classifier.Registry) *HelmResult {
	res := &HelmResult{Rendered: &ManifestResult{}}

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("walk %s: %v", path, err))
			return nil
		}
		if d.IsDir() {
			if d.Name() != "." && (strings.HasPrefix(d.Name(), ".") || manifestExcludeDirs[d.Name()]) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != "Chart.yaml" {
			return nil
		}
		chartDir := filepath.Dir(path)
		extractOneChart(chartDir, path, registry, res)
		return nil
	})

	return res
}

func extractOneChart(chartDir, chartYamlPath string, registry *classifier.Registry, res *HelmResult) {
	chrt, err := loader.LoadDir(chartDir)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("load chart %s: %v", chartDir, err))
		return
	}

	res.Charts = append(res.Charts, platform.IaCResource{
		Source: platform.SourceHelm, Origin: chartYamlPath,
		ResourceType: "helm_chart", Name: chrt.Name(),
		Properties: map[string]string{
			"version":     chrt.Metadata.Version,
			"app_version": chrt.Metadata.AppVersion,
		},
		Archetype:       lookupHelmArchetype(chrt.Name()),
		MonitoringNotes: helmImageSummary(chrt.Values),
	})

	for _, dep := range chrt.Metadata.Dependencies {
		res.Dependencies = append(res.Dependencies, platform.IaCResource{
			Source: platform.SourceHelm, Origin: chartYamlPath,
			ResourceType: "helm_dependency", Name: dep.Name,
			Properties: map[string]string{
				"version":    dep.Version,
				"repository": dep.Repository,
			},
			Archetype: lookupHelmArchetype(dep.Name),
		})
	}

	renderChart(chrt, chartYamlPath, registry, res)
}

func lookupHelmArchetype(name string) string {
	lower := strings.ToLower(name)
	for _, entry := range helmChartArchetypeTable {
		if strings.Contains(lower, entry.substring) {
			return entry.archetype
		}
	}
	return ""
}

// helmImageSummary recursively walks a chart's values looking for image
// references, by either the {repository, tag} convention or a direct
// "image: repo:tag" string, and summarizes what it found.
func helmImageSummary(values map[string]interface{}) string {
	images := collectHelmImages(values)
	if len(images) == 0 {
		return ""
	}
	return "images: " + strings.Join(images, ", ")
}

func collectHelmImages(node interface{}) []string {
	var out []string
	switch v := node.(type) {
	case map[string]interface{}:
		if repo, ok := v["repository"].(string); ok {
			tag, _ := v["tag"].(string)
			if tag == "" {
				tag = "latest"
			}
			out = append(out, repo+":"+tag)
		}
		for key, val := range v {
			if key == "image" {
				if s, ok := val.(string); ok {
					out = append(out, s)
					continue
				}
			}
			out = append(out, collectHelmImages(val)...)
		}
	case []interface{}:
		for _, item := range v {
			out = append(out, collectHelmImages(item)...)
		}
	}
	return out
}

// renderChart templates a chart in-process and re-feeds every rendered
// manifest (skipping NOTES.txt and empty output) through the manifest
// decode path.
func renderChart(chrt *chart.Chart, sourceFile string, registry *classifier.Registry, res *HelmResult) {
	renderOpts := chartutil.ReleaseOptions{
		Name:      chrt.Name(),
		Namespace: "default",
		IsInstall: true,
	}
	caps := chartutil.DefaultCapabilities

	renderVals, err := chartutil.ToRenderValues(chrt, chrt.Values, renderOpts, caps)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("render values for %s: %v", chrt.Name(), err))
		return
	}

	rendered, err := engine.Render(chrt, renderVals)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("render chart %s: %v", chrt.Name(), err))
		return
	}

	for name, content := range rendered {
		if strings.HasSuffix(name, "NOTES.txt") || strings.TrimSpace(content) == "" {
			continue
		}
		if err := decodeManifestStream([]byte(content), sourceFile+"::"+name, registry, res.Rendered); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("decode rendered %s: %v", name, err))
		}
	}
}
