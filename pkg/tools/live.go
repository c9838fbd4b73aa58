package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
)

// ClusterClient abstracts the kubectl-backed capabilities the live tool
// set needs, implemented by pkg/kclient against a real cluster (or a
// fake clientset in tests).
type ClusterClient interface {
	CurrentContext() string
	CheckConnectivity(ctx context.Context) error
	ClusterInfo(ctx context.Context) (string, error)
	FindServiceBySelector(ctx context.Context, namespace string, labels map[string]string) (serviceURL string, found bool, err error)
	ListResources(ctx context.Context, kind, namespace string) (string, error)
	DescribeResource(ctx context.Context, kind, namespace, name string) (string, error)
	PodLogs(ctx context.Context, namespace, pod, container string, tailLines int64) (string, error)
	Events(ctx context.Context, namespace string) (string, error)
	ResourceUsage(ctx context.Context, namespace string) (string, error)
	Apply(ctx context.Context, manifest string) (string, error)
	AllowWrites() bool
}

// PrometheusClient abstracts the Prometheus HTTP API v1 surface the live
// tool set needs, implemented by pkg/monitoring.
type PrometheusClient interface {
	CheckScrapeTargets(ctx context.Context, job string) (string, error)
	ValidateMetricsExist(ctx context.Context, metrics []string) (string, error)
	RunQuery(ctx context.Context, promql string) (string, error)
	Alerts(ctx context.Context) (string, error)
	Rules(ctx context.Context) (string, error)
}

// GrafanaClient abstracts the Grafana HTTP API surface the live tool set
// needs, implemented by pkg/monitoring.
type GrafanaClient interface {
	ListDashboards(ctx context.Context, query string) (string, error)
	CheckDatasources(ctx context.Context) (string, error)
	ImportDashboard(ctx context.Context, communityID int, folderUID string) (string, error)
}

// liveState holds the mutable, lazily-populated monitoring clients
// shared across live tool executors for one run. The cluster client is
// always present and never replaced; the Prometheus/Grafana clients are
// nil until find_monitoring_stack succeeds, per spec.md §4.6's routing
// invariant.
type liveState struct {
	cluster        ClusterClient
	newPrometheus  func(url string) PrometheusClient
	newGrafana     func(url, apiKey string) GrafanaClient
	grafanaAPIKey  string

	mu       sync.Mutex
	prom     PrometheusClient
	grafana  GrafanaClient
	promURL  string
	grafanaURL string
}

// NewLiveTools builds the fixed live tool set (component C5) over a
// cluster client and the Prometheus/Grafana client factories used by
// find_monitoring_stack.
func NewLiveTools(cluster ClusterClient, newPrometheus func(url string) PrometheusClient, newGrafana func(url, apiKey string) GrafanaClient, grafanaAPIKey string) []Tool {
	st := &liveState{
		cluster:       cluster,
		newPrometheus: newPrometheus,
		newGrafana:    newGrafana,
		grafanaAPIKey: grafanaAPIKey,
	}

	return []Tool{
		{Def: mcp.NewTool("check_cluster_connectivity",
			mcp.WithDescription("Verify the configured kubectl context can reach the cluster API server."),
		), Exec: st.checkConnectivity},

		{Def: mcp.NewTool("find_monitoring_stack",
			mcp.WithDescription("Discover Prometheus and Grafana services in the cluster by common label selectors and lazily instantiate their clients for subsequent tool calls."),
			mcp.WithString("namespace", mcp.Description("Namespace to search; omit to search common monitoring namespaces")),
		), Exec: st.findMonitoringStack},

		{Def: mcp.NewTool("get_cluster_resources",
			mcp.WithDescription("List live cluster resources by kind and namespace via kubectl."),
			mcp.WithString("kind", mcp.Description("Resource kind"), mcp.Required()),
			mcp.WithString("namespace", mcp.Description("Namespace; omit for all namespaces")),
		), Exec: st.getClusterResources},

		{Def: mcp.NewTool("describe_cluster_resource",
			mcp.WithDescription("Describe one live cluster resource via kubectl."),
			mcp.WithString("kind", mcp.Description("Resource kind"), mcp.Required()),
			mcp.WithString("namespace", mcp.Description("Namespace"), mcp.Required()),
			mcp.WithString("name", mcp.Description("Resource name"), mcp.Required()),
		), Exec: st.describeClusterResource},

		{Def: mcp.NewTool("get_pod_logs",
			mcp.WithDescription("Fetch a pod's logs via kubectl, truncated at 512 KiB."),
			mcp.WithString("namespace", mcp.Description("Namespace"), mcp.Required()),
			mcp.WithString("pod", mcp.Description("Pod name"), mcp.Required()),
			mcp.WithString("container", mcp.Description("Container name; omit for the pod's only container")),
			mcp.WithNumber("tail_lines", mcp.Description("Number of trailing lines to fetch; default 200")),
		), Exec: st.getPodLogs},

		{Def: mcp.NewTool("get_cluster_events",
			mcp.WithDescription("List recent cluster events via kubectl, optionally scoped to one namespace."),
			mcp.WithString("namespace", mcp.Description("Namespace; omit for all namespaces")),
		), Exec: st.getClusterEvents},

		{Def: mcp.NewTool("get_resource_usage",
			mcp.WithDescription("Report live per-pod CPU/memory usage from the metrics API (requires metrics-server); empty namespace covers all namespaces."),
			mcp.WithString("namespace", mcp.Description("Namespace; omit for all namespaces")),
		), Exec: st.getResourceUsage},

		{Def: mcp.NewTool("check_scrape_targets",
			mcp.WithDescription("Report per-job up/down scrape target counts, including failing-target detail, from Prometheus. Requires find_monitoring_stack to have succeeded first."),
			mcp.WithString("job", mcp.Description("Scrape job name to filter by; omit for all jobs")),
		), Exec: st.checkScrapeTargets},

		{Def: mcp.NewTool("validate_metric_exists",
			mcp.WithDescription("Batch-check whether each named metric has any series in Prometheus. Requires find_monitoring_stack to have succeeded first."),
			mcp.WithArray("metrics", mcp.Description("Metric names to check"),
				func(schema map[string]interface{}) { schema["type"] = "array"; schema["items"] = map[string]interface{}{"type": "string"} },
				mcp.Required()),
		), Exec: st.validateMetricExists},

		{Def: mcp.NewTool("run_promql_query",
			mcp.WithDescription("Validate and execute a PromQL instant query, returning a labeled value list. Requires find_monitoring_stack to have succeeded first."),
			mcp.WithString("query", mcp.Description("PromQL expression"), mcp.Required()),
		), Exec: st.runPromQLQuery},

		{Def: mcp.NewTool("get_prometheus_alerts",
			mcp.WithDescription("List currently firing Prometheus alerts. Requires find_monitoring_stack to have succeeded first."),
		), Exec: st.getPrometheusAlerts},

		{Def: mcp.NewTool("get_prometheus_rules",
			mcp.WithDescription("List configured Prometheus alerting/recording rule groups. Requires find_monitoring_stack to have succeeded first."),
		), Exec: st.getPrometheusRules},

		{Def: mcp.NewTool("list_grafana_dashboards",
			mcp.WithDescription("Search existing Grafana dashboards. Requires find_monitoring_stack to have succeeded first."),
			mcp.WithString("query", mcp.Description("Search text; omit to list all")),
		), Exec: st.listGrafanaDashboards},

		{Def: mcp.NewTool("check_grafana_datasources",
			mcp.WithDescription("List configured Grafana datasources and their health. Requires find_monitoring_stack to have succeeded first."),
		), Exec: st.checkGrafanaDatasources},

		{Def: mcp.NewTool("import_grafana_dashboard",
			mcp.WithDescription("Import a community dashboard into Grafana by its grafana.com numeric ID. Requires find_monitoring_stack to have succeeded first."),
			mcp.WithNumber("dashboard_id", mcp.Description("grafana.com dashboard ID"), mcp.Required()),
			mcp.WithString("folder_uid", mcp.Description("Destination folder UID; omit for the General folder")),
		), Exec: st.importGrafanaDashboard},

		{Def: mcp.NewTool("apply_kubernetes_manifest",
			mcp.WithDescription("Apply a Kubernetes manifest to the live cluster. Gated: requires explicit write opt-in; otherwise returns a permission denial."),
			mcp.WithString("manifest", mcp.Description("YAML or JSON manifest to apply"), mcp.Required()),
		), Exec: st.applyManifest},

		{Def: mcp.NewTool("generate_validation_report",
			mcp.WithDescription("Terminal tool. Call this once you have gathered enough information to emit the final validation report. Input is echoed back as the run's structured result."),
			mcp.WithString("cluster_context", mcp.Description("The cluster context this report covers"), mcp.Required()),
			mcp.WithString("cluster_summary", mcp.Description("Free-form summary of cluster observability state"), mcp.Required()),
			mcp.WithArray("checks", mcp.Description("Pass/fail/warn checks performed"),
				func(schema map[string]interface{}) { schema["type"] = "array"; schema["items"] = map[string]interface{}{"type": "object"} },
				mcp.Required()),
		), Exec: st.generateValidationReport},
	}
}

func (s *liveState) checkConnectivity(ctx context.Context, input json.RawMessage) (string, error) {
	if err := s.cluster.CheckConnectivity(ctx); err != nil {
		return "", fmt.Errorf("cluster unreachable: %w", err)
	}
	return fmt.Sprintf("connected to context %q", s.cluster.CurrentContext()), nil
}

func (s *liveState) findMonitoringStack(ctx context.Context, input json.RawMessage) (string, error) {
	var in struct {
		Namespace string `json:"namespace"`
	}
	if err := unmarshalInput(input, &in); err != nil {
		return "", err
	}

	namespaces := []string{in.Namespace}
	if in.Namespace == "" {
		namespaces = []string{"monitoring", "observability", "prometheus", "kube-prometheus-stack", "default"}
	}

	var promURL, grafanaURL string
	for _, ns := range namespaces {
		if promURL == "" {
			if url, found, err := s.cluster.FindServiceBySelector(ctx, ns, map[string]string{"app.kubernetes.io/name": "prometheus"}); err == nil && found {
				promURL = url
			}
		}
		if grafanaURL == "" {
			if url, found, err := s.cluster.FindServiceBySelector(ctx, ns, map[string]string{"app.kubernetes.io/name": "grafana"}); err == nil && found {
				grafanaURL = url
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var found []string
	if promURL != "" {
		s.promURL = promURL
		s.prom = s.newPrometheus(promURL)
		found = append(found, fmt.Sprintf("prometheus at %s", promURL))
	}
	if grafanaURL != "" {
		s.grafanaURL = grafanaURL
		s.grafana = s.newGrafana(grafanaURL, s.grafanaAPIKey)
		found = append(found, fmt.Sprintf("grafana at %s", grafanaURL))
	}
	if len(found) == 0 {
		return "no monitoring stack found in the searched namespaces", nil
	}
	return strings.Join(found, ", "), nil
}

func (s *liveState) getClusterResources(ctx context.Context, input json.RawMessage) (string, error) {
	var in struct {
		Kind      string `json:"kind"`
		Namespace string `json:"namespace"`
	}
	if err := unmarshalInput(input, &in); err != nil {
		return "", err
	}
	return s.cluster.ListResources(ctx, in.Kind, in.Namespace)
}

func (s *liveState) describeClusterResource(ctx context.Context, input json.RawMessage) (string, error) {
	var in struct {
		Kind      string `json:"kind"`
		Namespace string `json:"namespace"`
		Name      string `json:"name"`
	}
	if err := unmarshalInput(input, &in); err != nil {
		return "", err
	}
	return s.cluster.DescribeResource(ctx, in.Kind, in.Namespace, in.Name)
}

func (s *liveState) getPodLogs(ctx context.Context, input json.RawMessage) (string, error) {
	var in struct {
		Namespace string `json:"namespace"`
		Pod       string `json:"pod"`
		Container string `json:"container"`
		TailLines int64  `json:"tail_lines"`
	}
	if err := unmarshalInput(input, &in); err != nil {
		return "", err
	}
	if in.TailLines == 0 {
		in.TailLines = 200
	}
	return s.cluster.PodLogs(ctx, in.Namespace, in.Pod, in.Container, in.TailLines)
}

func (s *liveState) getClusterEvents(ctx context.Context, input json.RawMessage) (string, error) {
	var in struct {
		Namespace string `json:"namespace"`
	}
	if err := unmarshalInput(input, &in); err != nil {
		return "", err
	}
	return s.cluster.Events(ctx, in.Namespace)
}

func (s *liveState) getResourceUsage(ctx context.Context, input json.RawMessage) (string, error) {
	var in struct {
		Namespace string `json:"namespace"`
	}
	if err := unmarshalInput(input, &in); err != nil {
		return "", err
	}
	return s.cluster.ResourceUsage(ctx, in.Namespace)
}

func (s *liveState) prometheus() (PrometheusClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prom == nil {
		return nil, fmt.Errorf("no Prometheus client available; call find_monitoring_stack first")
	}
	return s.prom, nil
}

func (s *liveState) grafanaClient() (GrafanaClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grafana == nil {
		return nil, fmt.Errorf("no Grafana client available; call find_monitoring_stack first")
	}
	return s.grafana, nil
}

func (s *liveState) checkScrapeTargets(ctx context.Context, input json.RawMessage) (string, error) {
	var in struct {
		Job string `json:"job"`
	}
	if err := unmarshalInput(input, &in); err != nil {
		return "", err
	}
	prom, err := s.prometheus()
	if err != nil {
		return "", err
	}
	return prom.CheckScrapeTargets(ctx, in.Job)
}

func (s *liveState) validateMetricExists(ctx context.Context, input json.RawMessage) (string, error) {
	var in struct {
		Metrics []string `json:"metrics"`
	}
	if err := unmarshalInput(input, &in); err != nil {
		return "", err
	}
	prom, err := s.prometheus()
	if err != nil {
		return "", err
	}
	return prom.ValidateMetricsExist(ctx, in.Metrics)
}

func (s *liveState) runPromQLQuery(ctx context.Context, input json.RawMessage) (string, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := unmarshalInput(input, &in); err != nil {
		return "", err
	}
	prom, err := s.prometheus()
	if err != nil {
		return "", err
	}
	return prom.RunQuery(ctx, in.Query)
}

func (s *liveState) getPrometheusAlerts(ctx context.Context, input json.RawMessage) (string, error) {
	prom, err := s.prometheus()
	if err != nil {
		return "", err
	}
	return prom.Alerts(ctx)
}

func (s *liveState) getPrometheusRules(ctx context.Context, input json.RawMessage) (string, error) {
	prom, err := s.prometheus()
	if err != nil {
		return "", err
	}
	return prom.Rules(ctx)
}

func (s *liveState) listGrafanaDashboards(ctx context.Context, input json.RawMessage) (string, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := unmarshalInput(input, &in); err != nil {
		return "", err
	}
	g, err := s.grafanaClient()
	if err != nil {
		return "", err
	}
	return g.ListDashboards(ctx, in.Query)
}

func (s *liveState) checkGrafanaDatasources(ctx context.Context, input json.RawMessage) (string, error) {
	g, err := s.grafanaClient()
	if err != nil {
		return "", err
	}
	return g.CheckDatasources(ctx)
}

func (s *liveState) importGrafanaDashboard(ctx context.Context, input json.RawMessage) (string, error) {
	var in struct {
		DashboardID int    `json:"dashboard_id"`
		FolderUID   string `json:"folder_uid"`
	}
	if err := unmarshalInput(input, &in); err != nil {
		return "", err
	}
	g, err := s.grafanaClient()
	if err != nil {
		return "", err
	}
	return g.ImportDashboard(ctx, in.DashboardID, in.FolderUID)
}

func (s *liveState) applyManifest(ctx context.Context, input json.RawMessage) (string, error) {
	if !s.cluster.AllowWrites() {
		return "", fmt.Errorf("permission denied: cluster writes are not enabled for this run")
	}
	var in struct {
		Manifest string `json:"manifest"`
	}
	if err := unmarshalInput(input, &in); err != nil {
		return "", err
	}
	return s.cluster.Apply(ctx, in.Manifest)
}

func (s *liveState) generateValidationReport(ctx context.Context, input json.RawMessage) (string, error) {
	var raw map[string]interface{}
	if err := unmarshalInput(input, &raw); err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling report: %w", err)
	}
	return string(out), nil
}
