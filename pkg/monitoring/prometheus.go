// Package monitoring implements the live Prometheus and Grafana clients
// (satisfying tools.PrometheusClient / tools.GrafanaClient) that back
// validate mode's check_scrape_targets, validate_metric_exists,
// run_promql_query, get_prometheus_alerts/rules, and the Grafana
// dashboard/datasource tools.
package monitoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// PrometheusClient wraps the prometheus/client_golang v1 API client,
// the canonical ecosystem Prometheus HTTP client, replacing the
// hand-rolled HTTP-plus-manual-JSON-decoding calls a dashboard-proxy
// style client would otherwise need.
type PrometheusClient struct {
	api     v1.API
	initErr error
	timeout time.Duration
}

// NewPrometheusClient builds a PrometheusClient against baseURL (e.g.
// http://prometheus.monitoring.svc.cluster.local:9090). Construction
// cannot fail an interface that returns no error, so a malformed
// baseURL is recorded and surfaced lazily by every method instead.
func NewPrometheusClient(baseURL string) *PrometheusClient {
	client, err := api.NewClient(api.Config{Address: baseURL})
	if err != nil {
		return &PrometheusClient{initErr: fmt.Errorf("monitoring: building prometheus client: %w", err), timeout: 10 * time.Second}
	}
	return &PrometheusClient{api: v1.NewAPI(client), timeout: 10 * time.Second}
}

// CheckScrapeTargets reports up/down counts of active targets per job
// and in total, and enumerates any target whose health is not "up",
// filtered to job if non-empty. Dropped targets are not counted.
func (p *PrometheusClient) CheckScrapeTargets(ctx context.Context, job string) (string, error) {
	if p.initErr != nil {
		return "", p.initErr
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	targets, err := p.api.Targets(ctx)
	if err != nil {
		return "", fmt.Errorf("monitoring: fetching targets: %w", err)
	}

	var b strings.Builder
	up, down := 0, 0
	perJob, jobs := map[string][2]int{}, []string(nil)
	for _, t := range targets.Active {
		jobName := string(t.Labels["job"])
		if job != "" && jobName != job {
			continue
		}
		counts, seen := perJob[jobName]
		if !seen {
			jobs = append(jobs, jobName)
		}
		if t.Health == v1.HealthGood {
			up++
			counts[0]++
			perJob[jobName] = counts
			continue
		}
		down++
		counts[1]++
		perJob[jobName] = counts
		fmt.Fprintf(&b, "DOWN: job=%s instance=%s scrape_url=%s error=%s\n",
			t.Labels["job"], t.Labels["instance"], t.ScrapeURL, t.LastError)
	}
	for _, j := range jobs {
		fmt.Fprintf(&b, "job %s: %d up, %d down\n", j, perJob[j][0], perJob[j][1])
	}
	fmt.Fprintf(&b, "targets: %d up, %d down\n", up, down)
	return b.String(), nil
}

// ValidateMetricsExist checks each metric name for at least one series
// by running count(<metric>) and reporting whether it returned data.
func (p *PrometheusClient) ValidateMetricsExist(ctx context.Context, metrics []string) (string, error) {
	if p.initErr != nil {
		return "", p.initErr
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var b strings.Builder
	for _, m := range metrics {
		value, _, err := p.api.Query(ctx, fmt.Sprintf("count(%s)", m), time.Now())
		if err != nil {
			fmt.Fprintf(&b, "%s: query error: %v\n", m, err)
			continue
		}
		if vectorHasSamples(value) {
			fmt.Fprintf(&b, "%s: present\n", m)
		} else {
			fmt.Fprintf(&b, "%s: NO DATA\n", m)
		}
	}
	return b.String(), nil
}

func vectorHasSamples(v model.Value) bool {
	vec, ok := v.(model.Vector)
	if !ok {
		return false
	}
	return len(vec) > 0
}

// RunQuery executes an instant PromQL query and returns a compact
// label=value listing, one series per line.
func (p *PrometheusClient) RunQuery(ctx context.Context, promql string) (string, error) {
	if p.initErr != nil {
		return "", p.initErr
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	value, warnings, err := p.api.Query(ctx, promql, time.Now())
	if err != nil {
		return "", fmt.Errorf("monitoring: query %q: %w", promql, err)
	}

	var b strings.Builder
	for _, w := range warnings {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}

	vec, ok := value.(model.Vector)
	if !ok {
		fmt.Fprintf(&b, "%s\n", value.String())
		return b.String(), nil
	}
	if len(vec) == 0 {
		b.WriteString("no data\n")
		return b.String(), nil
	}
	for _, sample := range vec {
		fmt.Fprintf(&b, "%s => %s\n", sample.Metric.String(), sample.Value.String())
	}
	return b.String(), nil
}

// Alerts lists currently firing Prometheus alerts.
func (p *PrometheusClient) Alerts(ctx context.Context) (string, error) {
	if p.initErr != nil {
		return "", p.initErr
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, err := p.api.Alerts(ctx)
	if err != nil {
		return "", fmt.Errorf("monitoring: fetching alerts: %w", err)
	}
	firing := make([]v1.Alert, 0, len(result.Alerts))
	for _, a := range result.Alerts {
		if a.State == v1.AlertStateFiring {
			firing = append(firing, a)
		}
	}
	if len(firing) == 0 {
		return "no alerts are currently firing", nil
	}
	var b strings.Builder
	for _, a := range firing {
		fmt.Fprintf(&b, "%s: %s (since %s)\n", a.Labels["alertname"], a.Annotations["summary"], a.ActiveAt.Format(time.RFC3339))
	}
	return b.String(), nil
}

// Rules lists configured alerting/recording rule groups.
func (p *PrometheusClient) Rules(ctx context.Context) (string, error) {
	if p.initErr != nil {
		return "", p.initErr
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, err := p.api.Rules(ctx)
	if err != nil {
		return "", fmt.Errorf("monitoring: fetching rules: %w", err)
	}
	if len(result.Groups) == 0 {
		return "no rule groups configured", nil
	}
	var b strings.Builder
	for _, g := range result.Groups {
		fmt.Fprintf(&b, "group %s (%s): %d rules\n", g.Name, g.File, len(g.Rules))
	}
	return b.String(), nil
}
