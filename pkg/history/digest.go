package history

import (
	"encoding/json"
	"fmt"
	"strings"
)

// checkSummary is the minimal shape digest needs from a serialized
// ValidationCheck — decoded independently of pkg/plan to avoid an
// import cycle (pkg/plan never depends on pkg/history).
type checkSummary struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Digest renders the most recent run for a cluster context into the
// textual prior-run digest prepended to validate mode's initial user
// message, per spec.md §4.6. Returns ("", false) when there is no prior
// run to digest.
func Digest(clusterContext string, rec Record, found bool) (string, bool) {
	if !found {
		return "", false
	}

	var checks []checkSummary
	_ = json.Unmarshal([]byte(rec.ChecksJSON), &checks)

	var failed []string
	for _, c := range checks {
		if strings.EqualFold(c.Status, "fail") {
			failed = append(failed, c.Name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Previous validation run for %s at %s:\n", clusterContext, rec.RunAt)
	fmt.Fprintf(&b, "%s\n", rec.ClusterSummary)
	if len(failed) == 0 {
		b.WriteString("All checks passed in the previous run.\n")
	} else {
		b.WriteString("Previously failing checks (re-check first):\n")
		for _, name := range failed {
			fmt.Fprintf(&b, "  - %s\n", name)
		}
	}
	return b.String(), true
}
