// Package plan defines the pure-data aggregates the agent driver parses
// terminal tool input into: ObservabilityPlan for analyze/scan mode,
// ValidationReport for validate mode. Both are plain data — no behavior,
// no pointers into the Platform — so they serialize cleanly to JSON for
// the history store and for the terminal tool's "echo of structured
// input" contract.
package plan

// NoDataState is the closed set of Prometheus alert no-data behaviors.
type NoDataState string

const (
	NoDataOK       NoDataState = "ok"
	NoDataAlerting NoDataState = "alerting"
	NoDataNoData   NoDataState = "nodata"
)

// MetricRecommendation is one golden metric recommended for a workload,
// annotated with whether its prerequisites are currently met.
type MetricRecommendation struct {
	Name        string `json:"name"`
	PromQL      string `json:"promql"`
	Description string `json:"description"`
	PanelHint   string `json:"panel_hint"`
	Requires    string `json:"requires,omitempty"`
	Conditional bool   `json:"conditional"`
	Remediation string `json:"remediation,omitempty"`
}

// AlertRecommendation is one curated alert rule recommended for a
// workload.
type AlertRecommendation struct {
	Name        string      `json:"name"`
	PromQL      string      `json:"promql"`
	Severity    string      `json:"severity"`
	For         string      `json:"for"`
	Summary     string      `json:"summary"`
	Requires    string      `json:"requires,omitempty"`
	Conditional bool        `json:"conditional"`
	Remediation string      `json:"remediation,omitempty"`
	NoDataState NoDataState `json:"nodata_state"`
}

// DashboardRecommendation points at a community dashboard, or a
// freeform one the agent describes in prose.
type DashboardRecommendation struct {
	Name        string `json:"name"`
	CommunityID int    `json:"community_id,omitempty"`
	Source      string `json:"source,omitempty"`
}

// WorkloadPlanEntry is one workload's observability plan within an
// ObservabilityPlan.
type WorkloadPlanEntry struct {
	QualifiedName   string                     `json:"qualified_name"`
	Archetype       string                     `json:"archetype"`
	Score           float64                    `json:"score"`
	Bucket          string                     `json:"bucket"`
	Capabilities    []string                   `json:"capabilities"`
	GoldenMetrics   []MetricRecommendation     `json:"golden_metrics"`
	AlertRules      []AlertRecommendation      `json:"alert_rules"`
	Dashboards      []DashboardRecommendation  `json:"dashboards"`
	Recommendations []string                   `json:"recommendations,omitempty"`
}

// ObservabilityPlan is the terminal output of analyze/scan mode.
type ObservabilityPlan struct {
	RepoPath                string                 `json:"repo_path"`
	GeneratedAt             string                 `json:"generated_at"`
	Workloads               []WorkloadPlanEntry    `json:"workloads"`
	DashboardRecommendations []DashboardRecommendation `json:"dashboard_recommendations,omitempty"`
	Recommendations         []string               `json:"recommendations,omitempty"`
}

// ValidationCheck is one pass/fail/warn assertion made during validate
// mode.
type ValidationCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // pass | fail | warn
	Detail string `json:"detail,omitempty"`
}

// RemediationStep is one free-form corrective action recommended by
// validate mode.
type RemediationStep struct {
	Description string `json:"description"`
	Priority    string `json:"priority,omitempty"` // high | medium | low
}

// ValidationReport is the terminal output of validate mode.
type ValidationReport struct {
	ClusterContext     string            `json:"cluster_context"`
	GeneratedAt        string            `json:"generated_at"`
	ClusterSummary     string            `json:"cluster_summary"`
	Checks             []ValidationCheck `json:"checks"`
	DashboardsToImport []int             `json:"dashboards_to_import,omitempty"`
	Recommendations    []string          `json:"recommendations,omitempty"`
	RemediationSteps   []RemediationStep `json:"remediation_steps,omitempty"`
}

// UnstructuredFallback builds the near-empty result the driver returns
// when the LLM ends the run without emitting a terminal tool, per
// spec.md §4.6 step 5.
func UnstructuredFallback(generatedAt, repoPath string) ObservabilityPlan {
	return ObservabilityPlan{
		RepoPath:        repoPath,
		GeneratedAt:     generatedAt,
		Recommendations: []string{"review agent output"},
	}
}

// UnstructuredValidationFallback is ValidationReport's counterpart to
// UnstructuredFallback.
func UnstructuredValidationFallback(generatedAt, clusterContext string) ValidationReport {
	return ValidationReport{
		ClusterContext:  clusterContext,
		GeneratedAt:     generatedAt,
		ClusterSummary:  "agent ended without a structured report",
		Recommendations: []string{"review agent output"},
	}
}
