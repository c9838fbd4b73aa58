package tools

import (
	"strconv"
	"strings"

	"github.com/scoutflo/platform-observability-agent/pkg/capability"
	"github.com/scoutflo/platform-observability-agent/pkg/platform"
)

// evaluateRequires evaluates a comma-separated conjunction of tokens
// over {exporter, replicas>1, statefulset} against a workload, per
// spec.md §4.5's conditional-signal algorithm. An unknown token is
// assumed true ("the LLM decides").
func evaluateRequires(requires string, w platform.Workload) bool {
	requires = strings.TrimSpace(requires)
	if requires == "" {
		return true
	}
	for _, token := range strings.Split(requires, ",") {
		token = strings.TrimSpace(token)
		if !evaluateToken(token, w) {
			return false
		}
	}
	return true
}

func evaluateToken(token string, w platform.Workload) bool {
	switch {
	case token == "exporter":
		return capability.HasExporter(w.Telemetry)
	case token == "statefulset":
		return w.Kind == platform.KindStatefulSet
	case strings.HasPrefix(token, "replicas>"):
		threshold, err := strconv.Atoi(strings.TrimPrefix(token, "replicas>"))
		if err != nil {
			return true
		}
		replicas := w.Replicas
		if replicas == 0 {
			replicas = 1
		}
		return replicas > threshold
	default:
		return true
	}
}

// remediationFor produces a human-readable remediation string for a
// golden metric or alert whose requires conjunction evaluated false,
// naming the specific exporter the archetype profile recommends.
func remediationFor(requires, exporterName string) string {
	if strings.Contains(requires, "exporter") && exporterName != "" {
		return "deploy " + exporterName + " to satisfy: " + requires
	}
	return "satisfy the prerequisite: " + requires
}
