package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/scoutflo/platform-observability-agent/pkg/classifier"
	"github.com/scoutflo/platform-observability-agent/pkg/platform"
)

func testRegistry(t *testing.T) *classifier.Registry {
	t.Helper()
	r, err := classifier.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return r
}

func testPlatform(t *testing.T, registry *classifier.Registry) *platform.Platform {
	t.Helper()
	cl := registry.Classify("redis:7", []int{6379}, nil, nil)
	w := platform.Workload{
		Kind:      platform.KindDeployment,
		Name:      "cache",
		Namespace: "default",
		Replicas:  1,
		Containers: []platform.Container{
			{
				Name:           "redis",
				Image:          "redis:7",
				Classification: cl,
				Probes:         platform.Probes{Liveness: false, Readiness: false},
				Resources:      platform.ResourceRequirements{},
			},
		},
		Telemetry: nil,
	}
	p, err := platform.New("repo", []platform.Workload{w}, nil, nil, nil, nil, nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("platform.New() error = %v", err)
	}
	return p
}

func execTool(t *testing.T, tools []Tool, name string, input interface{}) (string, error) {
	t.Helper()
	var raw json.RawMessage
	if input != nil {
		b, err := json.Marshal(input)
		if err != nil {
			t.Fatalf("marshaling input: %v", err)
		}
		raw = b
	}
	for _, tl := range tools {
		if tl.Def.Name == name {
			return tl.Exec(context.Background(), raw)
		}
	}
	t.Fatalf("tool %q not found", name)
	return "", nil
}

func TestListResources_FiltersByKindAndNamespace(t *testing.T) {
	registry := testRegistry(t)
	p := testPlatform(t, registry)
	tools := NewAnalyzeTools(p, registry)

	out, err := execTool(t, tools, "list_resources", map[string]string{"kind": "Deployment"})
	if err != nil {
		t.Fatalf("list_resources error = %v", err)
	}
	if !strings.Contains(out, "default/Deployment/cache") {
		t.Fatalf("list_resources = %q, want it to mention the cache deployment", out)
	}

	out, err = execTool(t, tools, "list_resources", map[string]string{"namespace": "other"})
	if err != nil {
		t.Fatalf("list_resources error = %v", err)
	}
	if out != "no resources found" {
		t.Fatalf("list_resources for empty namespace = %q, want sentinel", out)
	}
}

func TestGetResourceDetail_NotFound(t *testing.T) {
	registry := testRegistry(t)
	p := testPlatform(t, registry)
	tools := NewAnalyzeTools(p, registry)

	_, err := execTool(t, tools, "get_resource_detail", map[string]string{"qualified_name": "default/Deployment/missing"})
	if err == nil {
		t.Fatal("expected an error for a missing resource")
	}
}

func TestGetResourceDetail_RedactsNothingButReportsArchetype(t *testing.T) {
	registry := testRegistry(t)
	p := testPlatform(t, registry)
	tools := NewAnalyzeTools(p, registry)

	out, err := execTool(t, tools, "get_resource_detail", map[string]string{"qualified_name": "default/Deployment/cache"})
	if err != nil {
		t.Fatalf("get_resource_detail error = %v", err)
	}
	var view workloadDetailView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decoding detail view: %v", err)
	}
	if view.Archetype != "cache" {
		t.Fatalf("Archetype = %q, want cache", view.Archetype)
	}
}

func TestCheckHealthGaps_FlagsMissingProbesAndExporter(t *testing.T) {
	registry := testRegistry(t)
	p := testPlatform(t, registry)
	tools := NewAnalyzeTools(p, registry)

	out, err := execTool(t, tools, "check_health_gaps", nil)
	if err != nil {
		t.Fatalf("check_health_gaps error = %v", err)
	}
	for _, want := range []string{"missing liveness probe", "missing readiness probe", "no resource limits", "no archetype-appropriate exporter"} {
		if !strings.Contains(out, want) {
			t.Errorf("check_health_gaps output missing %q:\n%s", want, out)
		}
	}
}

func TestCheckHealthGaps_FlagsServiceWithNoMatchingWorkload(t *testing.T) {
	registry := testRegistry(t)
	p := testPlatform(t, registry)
	svc := platform.Service{
		Name:      "orphan",
		Namespace: "default",
		Selector:  map[string]string{"app": "nothing-selects-this"},
	}
	p.Services = append(p.Services, svc)
	tools := NewAnalyzeTools(p, registry)

	out, err := execTool(t, tools, "check_health_gaps", nil)
	if err != nil {
		t.Fatalf("check_health_gaps error = %v", err)
	}
	if !strings.Contains(out, "default/Service/orphan: selector does not match any workload") {
		t.Errorf("check_health_gaps output missing dangling-selector gap:\n%s", out)
	}
}

func TestGetWorkloadInsights_AnnotatesConditionalSignal(t *testing.T) {
	registry := testRegistry(t)
	p := testPlatform(t, registry)
	tools := NewAnalyzeTools(p, registry)

	out, err := execTool(t, tools, "get_workload_insights", map[string]string{"qualified_name": "default/Deployment/cache"})
	if err != nil {
		t.Fatalf("get_workload_insights error = %v", err)
	}
	if !strings.Contains(out, "CONDITIONAL") {
		t.Fatalf("get_workload_insights output = %q, want a CONDITIONAL annotation since no exporter is deployed", out)
	}
	if !strings.Contains(out, "redis_exporter") {
		t.Fatalf("get_workload_insights output = %q, want the remediation to name redis_exporter", out)
	}
}

func TestGetWorkloadInsights_NoConditionalOnceExporterPresent(t *testing.T) {
	registry := testRegistry(t)
	cl := registry.Classify("redis:7", []int{6379}, nil, nil)
	w := platform.Workload{
		Kind:      platform.KindDeployment,
		Name:      "cache",
		Namespace: "default",
		Replicas:  1,
		Containers: []platform.Container{
			{Name: "redis", Image: "redis:7", Classification: cl},
		},
		Telemetry: []string{"exporter:redis_exporter"},
	}
	p, err := platform.New("repo", []platform.Workload{w}, nil, nil, nil, nil, nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("platform.New() error = %v", err)
	}
	tools := NewAnalyzeTools(p, registry)

	out, err := execTool(t, tools, "get_workload_insights", map[string]string{"qualified_name": "default/Deployment/cache"})
	if err != nil {
		t.Fatalf("get_workload_insights error = %v", err)
	}
	if strings.Contains(out, "CONDITIONAL") {
		t.Fatalf("get_workload_insights output = %q, want no CONDITIONAL annotation once an exporter is present", out)
	}
}

func TestGenerateObservabilityPlan_EchoesInputSortedByQualifiedName(t *testing.T) {
	registry := testRegistry(t)
	p := testPlatform(t, registry)
	tools := NewAnalyzeTools(p, registry)

	input := map[string]interface{}{
		"repo_path": "repo",
		"workloads": []map[string]interface{}{
			{"qualified_name": "default/Deployment/zzz", "archetype": "custom-app", "score": 0.1, "bucket": "low", "capabilities": []string{}, "golden_metrics": []interface{}{}, "alert_rules": []interface{}{}, "dashboards": []interface{}{}},
			{"qualified_name": "default/Deployment/aaa", "archetype": "custom-app", "score": 0.1, "bucket": "low", "capabilities": []string{}, "golden_metrics": []interface{}{}, "alert_rules": []interface{}{}, "dashboards": []interface{}{}},
		},
	}
	out, err := execTool(t, tools, "generate_observability_plan", input)
	if err != nil {
		t.Fatalf("generate_observability_plan error = %v", err)
	}
	aIdx := strings.Index(out, "aaa")
	zIdx := strings.Index(out, "zzz")
	if aIdx < 0 || zIdx < 0 || aIdx > zIdx {
		t.Fatalf("generate_observability_plan output not sorted by qualified name:\n%s", out)
	}
}

func TestRegistryDispatch_UnknownToolIsErrorStringNotPanic(t *testing.T) {
	registry := testRegistry(t)
	p := testPlatform(t, registry)
	analyzeTools := NewAnalyzeTools(p, registry)
	r := NewRegistry(analyzeTools, nil)

	out := r.Dispatch(context.Background(), "does_not_exist", nil)
	if !strings.Contains(out, "error") {
		t.Fatalf("Dispatch for unknown tool = %q, want an error string", out)
	}
}

func TestRegistryDispatch_ExecutorErrorBecomesString(t *testing.T) {
	registry := testRegistry(t)
	p := testPlatform(t, registry)
	analyzeTools := NewAnalyzeTools(p, registry)
	r := NewRegistry(analyzeTools, nil)

	input, _ := json.Marshal(map[string]string{"qualified_name": "default/Deployment/missing"})
	out := r.Dispatch(context.Background(), "get_resource_detail", input)
	if !strings.Contains(out, "Tool 'get_resource_detail' error:") {
		t.Fatalf("Dispatch result = %q, want the standard error-string prefix", out)
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal("generate_observability_plan") || !IsTerminal("generate_validation_report") {
		t.Fatal("expected both terminal tool names to report IsTerminal = true")
	}
	if IsTerminal("list_resources") {
		t.Fatal("list_resources must not be terminal")
	}
}

func TestEvaluateRequires(t *testing.T) {
	exporterWorkload := platform.Workload{Kind: platform.KindDeployment, Replicas: 1, Telemetry: []string{"exporter:redis_exporter"}}
	bareWorkload := platform.Workload{Kind: platform.KindDeployment, Replicas: 1}
	statefulWorkload := platform.Workload{Kind: platform.KindStatefulSet, Replicas: 3}

	tests := []struct {
		name     string
		requires string
		w        platform.Workload
		want     bool
	}{
		{"empty always true", "", bareWorkload, true},
		{"exporter satisfied", "exporter", exporterWorkload, true},
		{"exporter unsatisfied", "exporter", bareWorkload, false},
		{"statefulset satisfied", "statefulset", statefulWorkload, true},
		{"statefulset unsatisfied", "statefulset", bareWorkload, false},
		{"replicas threshold satisfied", "replicas>1", statefulWorkload, true},
		{"replicas threshold unsatisfied", "replicas>1", bareWorkload, false},
		{"conjunction requires all", "exporter,statefulset", exporterWorkload, false},
		{"unknown token assumed true", "some_future_token", bareWorkload, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := evaluateRequires(tt.requires, tt.w); got != tt.want {
				t.Errorf("evaluateRequires(%q) = %v, want %v", tt.requires, got, tt.want)
			}
		})
	}
}

func TestRemediationFor_NamesExporterWhenRequired(t *testing.T) {
	got := remediationFor("exporter", "redis_exporter")
	if !strings.Contains(got, "redis_exporter") {
		t.Fatalf("remediationFor = %q, want it to name redis_exporter", got)
	}
	got = remediationFor("replicas>1", "redis_exporter")
	if strings.Contains(got, "redis_exporter") {
		t.Fatalf("remediationFor = %q, should not name the exporter for a non-exporter prerequisite", got)
	}
}

// fakeCluster is a minimal ClusterClient for exercising the live tool
// set without a real cluster.
type fakeCluster struct {
	context     string
	connectErr  error
	services    map[string]string // namespace+label value -> url
	allowWrites bool
	applied     []string
}

func (f *fakeCluster) CurrentContext() string { return f.context }

func (f *fakeCluster) CheckConnectivity(ctx context.Context) error { return f.connectErr }

func (f *fakeCluster) ClusterInfo(ctx context.Context) (string, error) { return "v1.29", nil }

func (f *fakeCluster) FindServiceBySelector(ctx context.Context, namespace string, labels map[string]string) (string, bool, error) {
	url, ok := f.services[namespace+":"+labels["app.kubernetes.io/name"]]
	return url, ok, nil
}

func (f *fakeCluster) ListResources(ctx context.Context, kind, namespace string) (string, error) {
	return fmt.Sprintf("%s in %s", kind, namespace), nil
}

func (f *fakeCluster) DescribeResource(ctx context.Context, kind, namespace, name string) (string, error) {
	return fmt.Sprintf("%s/%s/%s", namespace, kind, name), nil
}

func (f *fakeCluster) PodLogs(ctx context.Context, namespace, pod, container string, tailLines int64) (string, error) {
	return "log lines", nil
}

func (f *fakeCluster) Events(ctx context.Context, namespace string) (string, error) {
	return "events", nil
}

func (f *fakeCluster) ResourceUsage(ctx context.Context, namespace string) (string, error) {
	return "usage", nil
}

func (f *fakeCluster) Apply(ctx context.Context, manifest string) (string, error) {
	f.applied = append(f.applied, manifest)
	return "applied", nil
}

func (f *fakeCluster) AllowWrites() bool { return f.allowWrites }

type fakePrometheus struct{ queried string }

func (f *fakePrometheus) CheckScrapeTargets(ctx context.Context, job string) (string, error) {
	return "targets up", nil
}
func (f *fakePrometheus) ValidateMetricsExist(ctx context.Context, metrics []string) (string, error) {
	return "all metrics present", nil
}
func (f *fakePrometheus) RunQuery(ctx context.Context, promql string) (string, error) {
	f.queried = promql
	return "1 result", nil
}
func (f *fakePrometheus) Alerts(ctx context.Context) (string, error) { return "no firing alerts", nil }
func (f *fakePrometheus) Rules(ctx context.Context) (string, error) { return "2 rule groups", nil }

type fakeGrafana struct{ imported int }

func (f *fakeGrafana) ListDashboards(ctx context.Context, query string) (string, error) {
	return "1 dashboard", nil
}
func (f *fakeGrafana) CheckDatasources(ctx context.Context) (string, error) {
	return "prometheus: ok", nil
}
func (f *fakeGrafana) ImportDashboard(ctx context.Context, communityID int, folderUID string) (string, error) {
	f.imported = communityID
	return "imported", nil
}

func TestLiveTools_GetResourceUsageDelegatesToCluster(t *testing.T) {
	cluster := &fakeCluster{context: "test-ctx"}
	tools := NewLiveTools(cluster,
		func(url string) PrometheusClient { return &fakePrometheus{} },
		func(url, apiKey string) GrafanaClient { return &fakeGrafana{} },
		"",
	)

	out, err := execTool(t, tools, "get_resource_usage", map[string]string{"namespace": "default"})
	if err != nil {
		t.Fatalf("get_resource_usage: %v", err)
	}
	if out != "usage" {
		t.Errorf("output = %q, want %q", out, "usage")
	}
}

func TestLiveTools_PrometheusToolsRequireFindMonitoringStackFirst(t *testing.T) {
	cluster := &fakeCluster{context: "test-ctx"}
	tools := NewLiveTools(cluster,
		func(url string) PrometheusClient { return &fakePrometheus{} },
		func(url, apiKey string) GrafanaClient { return &fakeGrafana{} },
		"",
	)

	_, err := execTool(t, tools, "run_promql_query", map[string]string{"query": "up"})
	if err == nil {
		t.Fatal("expected an error before find_monitoring_stack has run")
	}
}

func TestLiveTools_FindMonitoringStackCachesClients(t *testing.T) {
	prom := &fakePrometheus{}
	cluster := &fakeCluster{
		context: "test-ctx",
		services: map[string]string{
			"monitoring:prometheus": "http://prom.monitoring:9090",
			"monitoring:grafana":    "http://grafana.monitoring:3000",
		},
	}
	tools := NewLiveTools(cluster,
		func(url string) PrometheusClient { return prom },
		func(url, apiKey string) GrafanaClient { return &fakeGrafana{} },
		"",
	)

	out, err := execTool(t, tools, "find_monitoring_stack", map[string]string{"namespace": "monitoring"})
	if err != nil {
		t.Fatalf("find_monitoring_stack error = %v", err)
	}
	if !strings.Contains(out, "prometheus") || !strings.Contains(out, "grafana") {
		t.Fatalf("find_monitoring_stack = %q, want both stacks found", out)
	}

	out, err = execTool(t, tools, "run_promql_query", map[string]string{"query": "up"})
	if err != nil {
		t.Fatalf("run_promql_query error = %v", err)
	}
	if out != "1 result" {
		t.Fatalf("run_promql_query = %q, want the cached fake's canned result", out)
	}
	if prom.queried != "up" {
		t.Fatalf("prom.queried = %q, want %q", prom.queried, "up")
	}
}

func TestLiveTools_ApplyManifestGatedByAllowWrites(t *testing.T) {
	cluster := &fakeCluster{context: "test-ctx", allowWrites: false}
	tools := NewLiveTools(cluster,
		func(url string) PrometheusClient { return &fakePrometheus{} },
		func(url, apiKey string) GrafanaClient { return &fakeGrafana{} },
		"",
	)

	_, err := execTool(t, tools, "apply_kubernetes_manifest", map[string]string{"manifest": "kind: Pod"})
	if err == nil {
		t.Fatal("expected permission denial when AllowWrites is false")
	}
	if len(cluster.applied) != 0 {
		t.Fatal("manifest must not be applied when writes are disallowed")
	}

	cluster.allowWrites = true
	out, err := execTool(t, tools, "apply_kubernetes_manifest", map[string]string{"manifest": "kind: Pod"})
	if err != nil {
		t.Fatalf("apply_kubernetes_manifest error = %v", err)
	}
	if out != "applied" || len(cluster.applied) != 1 {
		t.Fatalf("expected exactly one applied manifest, got %v", cluster.applied)
	}
}

func TestLiveTools_CheckConnectivityPropagatesError(t *testing.T) {
	cluster := &fakeCluster{context: "test-ctx", connectErr: fmt.Errorf("dial tcp: timeout")}
	tools := NewLiveTools(cluster,
		func(url string) PrometheusClient { return &fakePrometheus{} },
		func(url, apiKey string) GrafanaClient { return &fakeGrafana{} },
		"",
	)

	_, err := execTool(t, tools, "check_cluster_connectivity", nil)
	if err == nil {
		t.Fatal("expected an error when the cluster is unreachable")
	}
}

func TestLiveTools_GenerateValidationReportEchoesInput(t *testing.T) {
	cluster := &fakeCluster{context: "test-ctx"}
	tools := NewLiveTools(cluster,
		func(url string) PrometheusClient { return &fakePrometheus{} },
		func(url, apiKey string) GrafanaClient { return &fakeGrafana{} },
		"",
	)

	input := map[string]interface{}{
		"cluster_context": "test-ctx",
		"cluster_summary": "all good",
		"checks":          []map[string]string{{"name": "RedisHasExporter", "status": "pass"}},
	}
	out, err := execTool(t, tools, "generate_validation_report", input)
	if err != nil {
		t.Fatalf("generate_validation_report error = %v", err)
	}
	if !strings.Contains(out, "RedisHasExporter") {
		t.Fatalf("generate_validation_report output = %q, want the check name echoed back", out)
	}
}
