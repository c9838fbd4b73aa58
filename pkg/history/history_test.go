package history

import (
	"strings"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveAndRecentRoundTrip(t *testing.T) {
	s := openTestStore(t)

	rec := Record{
		ClusterContext:         "kind-dev",
		RunAt:                  "2026-07-29T10:00:00Z",
		ClusterSummary:         "12 workloads, 3 not-ready",
		ChecksJSON:             `[{"name":"PostgresHasExporter","status":"fail"}]`,
		DashboardsJSON:         `[]`,
		RecommendationsJSON:    `[]`,
		RemediationJSON:        `[]`,
		DashboardsToImportJSON: `[]`,
		PlanHash:               "abc123",
	}
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, found, err := s.Latest("kind-dev")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !found {
		t.Fatal("expected a record")
	}
	if got.ClusterSummary != rec.ClusterSummary {
		t.Fatalf("ClusterSummary = %q, want %q", got.ClusterSummary, rec.ClusterSummary)
	}
	if got.PlanHash != rec.PlanHash {
		t.Fatalf("PlanHash = %q, want %q", got.PlanHash, rec.PlanHash)
	}
}

func TestStore_RetentionPrunesBeyond20(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 25; i++ {
		rec := Record{
			ClusterContext:         "kind-dev",
			RunAt:                  timestampFor(i),
			ClusterSummary:         "summary",
			ChecksJSON:             `[]`,
			DashboardsJSON:         `[]`,
			RecommendationsJSON:    `[]`,
			RemediationJSON:        `[]`,
			DashboardsToImportJSON: `[]`,
			PlanHash:               "hash",
		}
		if err := s.Save(rec); err != nil {
			t.Fatalf("Save[%d]: %v", i, err)
		}
	}

	recs, err := s.Recent("kind-dev", 100)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != maxRunsPerContext {
		t.Fatalf("len(recs) = %d, want %d", len(recs), maxRunsPerContext)
	}
}

func TestStore_OtherContextsUnaffectedByRetention(t *testing.T) {
	s := openTestStore(t)

	base := Record{
		RunAt: "2026-07-29T10:00:00Z", ChecksJSON: `[]`, DashboardsJSON: `[]`,
		RecommendationsJSON: `[]`, RemediationJSON: `[]`, DashboardsToImportJSON: `[]`, PlanHash: "h",
	}
	a := base
	a.ClusterContext = "cluster-a"
	b := base
	b.ClusterContext = "cluster-b"

	if err := s.Save(a); err != nil {
		t.Fatalf("Save a: %v", err)
	}
	if err := s.Save(b); err != nil {
		t.Fatalf("Save b: %v", err)
	}

	recsA, _ := s.Recent("cluster-a", 10)
	recsB, _ := s.Recent("cluster-b", 10)
	if len(recsA) != 1 || len(recsB) != 1 {
		t.Fatalf("expected one record per context, got a=%d b=%d", len(recsA), len(recsB))
	}
}

// S7 — validate-mode history digest: the second run's digest must
// contain "Previous validation run" and the first run's failed check
// name.
func TestDigest_ContainsPreviousRunMarkerAndFailedCheck(t *testing.T) {
	s := openTestStore(t)

	first := Record{
		ClusterContext: "kind-dev",
		RunAt:          "2026-07-29T10:00:00Z",
		ClusterSummary: "first run summary",
		ChecksJSON:     `[{"name":"RedisHasExporter","status":"fail"},{"name":"PostgresHasExporter","status":"pass"}]`,
		DashboardsJSON: `[]`, RecommendationsJSON: `[]`, RemediationJSON: `[]`, DashboardsToImportJSON: `[]`,
		PlanHash: "h1",
	}
	if err := s.Save(first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec, found, err := s.Latest("kind-dev")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}

	digest, ok := Digest("kind-dev", rec, found)
	if !ok {
		t.Fatal("expected a digest")
	}
	if !strings.Contains(digest, "Previous validation run") {
		t.Fatalf("digest = %q, want to contain %q", digest, "Previous validation run")
	}
	if !strings.Contains(digest, "RedisHasExporter") {
		t.Fatalf("digest = %q, want to contain failed check name", digest)
	}
}

func TestDigest_NoPriorRun(t *testing.T) {
	_, ok := Digest("kind-dev", Record{}, false)
	if ok {
		t.Fatal("expected no digest when no prior run found")
	}
}

func TestComputeHash_Deterministic(t *testing.T) {
	v := map[string]interface{}{"a": 1, "b": "two"}
	h1, err := ComputeHash(v)
	if err != nil {
		t.Fatalf("ComputeHash: %v", err)
	}
	h2, _ := ComputeHash(v)
	if h1 != h2 {
		t.Fatalf("hash not deterministic: %q vs %q", h1, h2)
	}
}

func timestampFor(i int) string {
	// Monotonic but distinct RFC3339-shaped strings; exact calendar
	// validity does not matter for ORDER BY comparison purposes.
	return "2026-07-" + padDay(i) + "T00:00:00Z"
}

func padDay(i int) string {
	day := 1 + i
	if day < 10 {
		return "0" + itoa(day)
	}
	return itoa(day)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}
