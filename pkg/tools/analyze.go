package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/scoutflo/platform-observability-agent/pkg/capability"
	"github.com/scoutflo/platform-observability-agent/pkg/classifier"
	"github.com/scoutflo/platform-observability-agent/pkg/plan"
	"github.com/scoutflo/platform-observability-agent/pkg/platform"
)

// NewAnalyzeTools builds the fixed analyze tool set (component C5) over
// one frozen Platform and the process-wide classifier registry.
func NewAnalyzeTools(p *platform.Platform, registry *classifier.Registry) []Tool {
	return []Tool{
		{Def: mcp.NewTool("list_resources",
			mcp.WithDescription("List platform workloads and Services, optionally filtered by kind and/or namespace. Ingresses, HorizontalPodAutoscalers, ConfigMaps and Secrets are not listed. Use this to get an overview of what exists before drilling into specifics."),
			mcp.WithString("kind", mcp.Description("Resource kind to filter by (Deployment, StatefulSet, DaemonSet, Job, CronJob, Service); omit for all of these kinds")),
			mcp.WithString("namespace", mcp.Description("Namespace to filter by; omit for all namespaces")),
		), Exec: listResources(p)},

		{Def: mcp.NewTool("get_resource_detail",
			mcp.WithDescription("Get structured detail for one resource by its qualified name (namespace/Kind/name). Secret values are never included."),
			mcp.WithString("qualified_name", mcp.Description("namespace/Kind/name, e.g. default/Deployment/api"), mcp.Required()),
		), Exec: getResourceDetail(p)},

		{Def: mcp.NewTool("get_relationships",
			mcp.WithDescription("List directed relationships (selects, routes_to, scales) between resources, optionally filtered to those touching one endpoint."),
			mcp.WithString("qualified_name", mcp.Description("Restrict to relationships touching this qualified name; omit for all relationships")),
		), Exec: getRelationships(p)},

		{Def: mcp.NewTool("get_platform_summary",
			mcp.WithDescription("Get platform-wide counts, observability readiness roll-up, and IaC/cloud resource roll-up."),
		), Exec: getPlatformSummary(p)},

		{Def: mcp.NewTool("check_health_gaps",
			mcp.WithDescription("Find workloads missing liveness/readiness probes, resource limits, or an archetype-appropriate exporter, optionally restricted to one namespace."),
			mcp.WithString("namespace", mcp.Description("Restrict the check to this namespace; omit for all namespaces")),
		), Exec: checkHealthGaps(p)},

		{Def: mcp.NewTool("get_workload_insights",
			mcp.WithDescription("Get one workload's archetype, classification score, capability tags, golden metrics, alert rules, community dashboards, and recommendations. Conditional signals whose prerequisites are not met are annotated CONDITIONAL with a remediation."),
			mcp.WithString("qualified_name", mcp.Description("namespace/Kind/name"), mcp.Required()),
		), Exec: getWorkloadInsights(p, registry)},

		{Def: mcp.NewTool("get_iac_resources",
			mcp.WithDescription("List IaC-discovered resources, optionally filtered by source (terraform, helm, kustomize, pulumi)."),
			mcp.WithString("source", mcp.Description("terraform | helm | kustomize | pulumi; omit for all sources")),
		), Exec: getIaCResources(p)},

		{Def: mcp.NewTool("get_aws_resources",
			mcp.WithDescription("List cloud-live discovered AWS resources, optionally filtered by service (rds, elasticache, kafka, sqs, sns, lambda, ecs, eks, opensearch, dynamodb, s3)."),
			mcp.WithString("service", mcp.Description("AWS service name to filter by; omit for all services")),
		), Exec: getAWSResources(p)},

		{Def: mcp.NewTool("generate_observability_plan",
			mcp.WithDescription("Terminal tool. Call this once you have gathered enough information to emit the final observability plan for this repo. Input is echoed back as the run's structured result."),
			mcp.WithString("repo_path", mcp.Description("The repo path this plan covers"), mcp.Required()),
			mcp.WithArray("workloads", mcp.Description("Per-workload plan entries"),
				func(schema map[string]interface{}) { schema["type"] = "array"; schema["items"] = map[string]interface{}{"type": "object"} },
				mcp.Required()),
			mcp.WithArray("recommendations", mcp.Description("Free-form overall recommendations"),
				func(schema map[string]interface{}) { schema["type"] = "array"; schema["items"] = map[string]interface{}{"type": "string"} }),
		), Exec: generateObservabilityPlan()},
	}
}

func listResources(p *platform.Platform) Executor {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		var in struct {
			Kind      string `json:"kind"`
			Namespace string `json:"namespace"`
		}
		if err := unmarshalInput(input, &in); err != nil {
			return "", err
		}

		var b strings.Builder
		count := 0
		for _, w := range p.Workloads {
			if in.Kind != "" && string(w.Kind) != in.Kind {
				continue
			}
			if in.Namespace != "" && w.Namespace != in.Namespace {
				continue
			}
			fmt.Fprintf(&b, "%s (replicas=%d, readiness=%s)\n", w.QualifiedName(), w.Replicas, p.Readiness(w))
			count++
		}
		if in.Kind == "" || in.Kind == "Service" {
			for _, s := range p.Services {
				if in.Namespace != "" && s.Namespace != in.Namespace {
					continue
				}
				fmt.Fprintf(&b, "%s\n", s.QualifiedName())
				count++
			}
		}
		if count == 0 {
			return "no resources found", nil
		}
		return b.String(), nil
	}
}

func getResourceDetail(p *platform.Platform) Executor {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		var in struct {
			QualifiedName string `json:"qualified_name"`
		}
		if err := unmarshalInput(input, &in); err != nil {
			return "", err
		}
		if w, ok := p.Workload(in.QualifiedName); ok {
			b, _ := json.MarshalIndent(workloadDetail(w, p), "", "  ")
			return string(b), nil
		}
		if !p.Exists(in.QualifiedName) {
			return "", fmt.Errorf("resource %q not found", in.QualifiedName)
		}
		return fmt.Sprintf("resource %q exists but is not a workload", in.QualifiedName), nil
	}
}

type workloadDetailView struct {
	QualifiedName  string   `json:"qualified_name"`
	Kind           string   `json:"kind"`
	Replicas       int      `json:"replicas"`
	Containers     []string `json:"containers"`
	Telemetry      []string `json:"telemetry"`
	Readiness      string   `json:"readiness"`
	Archetype      string   `json:"archetype"`
	Score          float64  `json:"score"`
}

func workloadDetail(w platform.Workload, p *platform.Platform) workloadDetailView {
	var containers []string
	var archetype string
	var score float64
	for _, c := range w.Containers {
		containers = append(containers, fmt.Sprintf("%s (%s)", c.Name, c.Image))
		if c.Classification.RegistryKey != "" {
			archetype = string(c.Classification.Family)
			score = c.Classification.Score
		}
	}
	return workloadDetailView{
		QualifiedName: w.QualifiedName(),
		Kind:          string(w.Kind),
		Replicas:      w.Replicas,
		Containers:    containers,
		Telemetry:     w.Telemetry,
		Readiness:     string(p.Readiness(w)),
		Archetype:     archetype,
		Score:         score,
	}
}

func getRelationships(p *platform.Platform) Executor {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		var in struct {
			QualifiedName string `json:"qualified_name"`
		}
		if err := unmarshalInput(input, &in); err != nil {
			return "", err
		}
		rels := p.Relationships
		if in.QualifiedName != "" {
			rels = p.RelationshipsFor(in.QualifiedName, true, true)
		}
		if len(rels) == 0 {
			return "no relationships found", nil
		}
		var b strings.Builder
		for _, r := range rels {
			fmt.Fprintf(&b, "%s --%s--> %s\n", r.From, r.Type, r.To)
		}
		return b.String(), nil
	}
}

func getPlatformSummary(p *platform.Platform) Executor {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		s := p.Summarize()
		var b strings.Builder
		fmt.Fprintf(&b, "workloads: %d, services: %d, ingresses: %d, hpas: %d, configmaps: %d, secrets: %d\n",
			s.WorkloadCount, s.ServiceCount, s.IngressCount, s.HPACount, s.ConfigMapCount, s.SecretCount)
		fmt.Fprintf(&b, "namespaces: %d (%s)\n", s.NamespaceCount, strings.Join(p.SortedNamespaces(), ", "))
		fmt.Fprintf(&b, "readiness: ready=%d partial=%d not-ready=%d\n",
			s.ReadinessCounts[capability.ReadinessReady], s.ReadinessCounts[capability.ReadinessPartial], s.ReadinessCounts[capability.ReadinessNotReady])
		for _, src := range []platform.IaCSource{platform.SourceTerraform, platform.SourceHelm, platform.SourceKustomize, platform.SourcePulumi} {
			fmt.Fprintf(&b, "iac[%s]: %d\n", src, s.IaCResourceCount[src])
		}
		fmt.Fprintf(&b, "cloud-live: %d\n", s.CloudLiveCount)
		if s.ErrorCount > 0 {
			fmt.Fprintf(&b, "parse errors: %d\n", s.ErrorCount)
		}
		return b.String(), nil
	}
}

func checkHealthGaps(p *platform.Platform) Executor {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		var in struct {
			Namespace string `json:"namespace"`
		}
		if err := unmarshalInput(input, &in); err != nil {
			return "", err
		}

		var b strings.Builder
		gaps := 0
		for _, w := range p.Workloads {
			if in.Namespace != "" && w.Namespace != in.Namespace {
				continue
			}
			var missing []string
			for _, c := range w.Containers {
				if !c.Probes.Liveness {
					missing = append(missing, fmt.Sprintf("%s: missing liveness probe", c.Name))
				}
				if !c.Probes.Readiness {
					missing = append(missing, fmt.Sprintf("%s: missing readiness probe", c.Name))
				}
				if len(c.Resources.Limits) == 0 {
					missing = append(missing, fmt.Sprintf("%s: no resource limits", c.Name))
				}
			}
			if !capability.HasExporter(w.Telemetry) {
				missing = append(missing, "no archetype-appropriate exporter detected")
			}
			if len(missing) > 0 {
				fmt.Fprintf(&b, "%s:\n", w.QualifiedName())
				for _, m := range missing {
					fmt.Fprintf(&b, "  - %s\n", m)
					gaps++
				}
			}
		}

		workloadNames := make(map[string]struct{}, len(p.Workloads))
		for _, w := range p.Workloads {
			workloadNames[w.QualifiedName()] = struct{}{}
		}
		for _, svc := range p.Services {
			if in.Namespace != "" && svc.Namespace != in.Namespace {
				continue
			}
			if len(svc.Selector) == 0 {
				continue
			}
			hasTarget := false
			for _, rel := range p.Relationships {
				if rel.Type == platform.RelationSelects && rel.From == svc.QualifiedName() {
					if _, ok := workloadNames[rel.To]; ok {
						hasTarget = true
						break
					}
				}
			}
			if !hasTarget {
				fmt.Fprintf(&b, "%s: selector does not match any workload\n", svc.QualifiedName())
				gaps++
			}
		}

		if gaps == 0 {
			return "no health gaps found", nil
		}
		return b.String(), nil
	}
}

func getWorkloadInsights(p *platform.Platform, registry *classifier.Registry) Executor {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		var in struct {
			QualifiedName string `json:"qualified_name"`
		}
		if err := unmarshalInput(input, &in); err != nil {
			return "", err
		}
		w, ok := p.Workload(in.QualifiedName)
		if !ok {
			return "", fmt.Errorf("workload %q not found", in.QualifiedName)
		}

		var primary *classifier.Classification
		for i := range w.Containers {
			if w.Containers[i].Classification.RegistryKey != "" {
				primary = &w.Containers[i].Classification
				break
			}
		}
		if primary == nil && len(w.Containers) > 0 {
			primary = &w.Containers[0].Classification
		}

		var b strings.Builder
		fmt.Fprintf(&b, "workload: %s\n", w.QualifiedName())
		if primary == nil {
			b.WriteString("no classified containers\n")
			return b.String(), nil
		}
		fmt.Fprintf(&b, "archetype: %s (score %.2f, bucket %s, source %s)\n", primary.Family, primary.Score, primary.Bucket, primary.PrimarySource)
		fmt.Fprintf(&b, "capabilities: %s\n", strings.Join(w.Telemetry, ", "))

		profile, found := primary.Profile(registry)
		if !found {
			b.WriteString("no curated profile for this archetype\n")
			return b.String(), nil
		}

		b.WriteString("golden metrics:\n")
		for _, m := range profile.GoldenMetrics {
			writeSignal(&b, m.Name, m.PromQL, m.Requires, profile.ExporterName, w)
		}
		b.WriteString("alert rules:\n")
		for _, a := range profile.AlertRules {
			writeSignal(&b, a.Name, a.PromQL, a.Requires, profile.ExporterName, w)
		}
		if len(profile.CommunityDashboardIDs) > 0 {
			ids := make([]string, len(profile.CommunityDashboardIDs))
			for i, id := range profile.CommunityDashboardIDs {
				ids[i] = fmt.Sprintf("%d", id)
			}
			fmt.Fprintf(&b, "community dashboards: %s\n", strings.Join(ids, ", "))
		}
		if len(profile.Recommendations) > 0 {
			fmt.Fprintf(&b, "recommendations: %s\n", strings.Join(profile.Recommendations, "; "))
		}
		return b.String(), nil
	}
}

func writeSignal(b *strings.Builder, name, promql, requires, exporterName string, w platform.Workload) {
	if evaluateRequires(requires, w) {
		fmt.Fprintf(b, "  - %s: %s\n", name, promql)
		return
	}
	fmt.Fprintf(b, "  - %s: %s [CONDITIONAL: %s]\n", name, promql, remediationFor(requires, exporterName))
}

func getIaCResources(p *platform.Platform) Executor {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		var in struct {
			Source string `json:"source"`
		}
		if err := unmarshalInput(input, &in); err != nil {
			return "", err
		}

		sources := []platform.IaCSource{platform.SourceTerraform, platform.SourceHelm, platform.SourceKustomize, platform.SourcePulumi}
		if in.Source != "" {
			sources = []platform.IaCSource{platform.IaCSource(in.Source)}
		}

		var b strings.Builder
		count := 0
		for _, src := range sources {
			resources := p.IaCResources[src]
			if len(resources) == 0 {
				continue
			}
			fmt.Fprintf(&b, "%s:\n", src)
			for _, r := range resources {
				fmt.Fprintf(&b, "  - %s/%s (archetype=%s) [%s]\n", r.ResourceType, r.Name, r.Archetype, r.Origin)
				count++
			}
		}
		if count == 0 {
			return "no IaC resources found", nil
		}
		return b.String(), nil
	}
}

func getAWSResources(p *platform.Platform) Executor {
	serviceTypes := map[string]string{
		"rds": "aws_db_instance", "elasticache": "aws_elasticache_cluster", "kafka": "aws_msk_cluster",
		"sqs": "aws_sqs_queue", "sns": "aws_sns_topic", "lambda": "aws_lambda_function",
		"ecs": "aws_ecs_cluster", "eks": "aws_eks_cluster", "opensearch": "aws_opensearch_domain",
		"dynamodb": "aws_dynamodb_table", "s3": "aws_s3_bucket",
	}
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		var in struct {
			Service string `json:"service"`
		}
		if err := unmarshalInput(input, &in); err != nil {
			return "", err
		}
		wantType := in.Service
		if t, ok := serviceTypes[strings.ToLower(in.Service)]; ok {
			wantType = t
		}

		var b strings.Builder
		count := 0
		for _, r := range p.CloudLive {
			if in.Service != "" && !strings.EqualFold(r.ResourceType, wantType) {
				continue
			}
			fmt.Fprintf(&b, "%s/%s (archetype=%s) [%s]\n", r.ResourceType, r.Name, r.Archetype, r.Origin)
			count++
		}
		if count == 0 {
			return "no AWS resources found", nil
		}
		return b.String(), nil
	}
}

func generateObservabilityPlan() Executor {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		var p plan.ObservabilityPlan
		if err := unmarshalInput(input, &p); err != nil {
			return "", err
		}
		sort.Slice(p.Workloads, func(i, j int) bool { return p.Workloads[i].QualifiedName < p.Workloads[j].QualifiedName })
		out, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling plan: %w", err)
		}
		return string(out), nil
	}
}

func unmarshalInput(input json.RawMessage, dst interface{}) error {
	if len(input) == 0 {
		return nil
	}
	if err := json.Unmarshal(input, dst); err != nil {
		return fmt.Errorf("decoding tool input: %w", err)
	}
	return nil
}
