package platform

import "testing"

func TestNewSecret_RedactsValues(t *testing.T) {
	sec := NewSecret(
		"db-creds", "default", "Opaque",
		map[string]string{"app": "postgres"}, nil, "secrets.yaml",
		map[string]string{"password": "base64-encoded-actual-secret"},
		map[string]string{"username": "admin"},
	)

	if sec.DataKeys["password"] != RedactedValue {
		t.Fatalf("password = %q, want redacted", sec.DataKeys["password"])
	}
	if sec.DataKeys["username"] != RedactedValue {
		t.Fatalf("username = %q, want redacted", sec.DataKeys["username"])
	}
	if len(sec.DataKeys) != 2 {
		t.Fatalf("DataKeys len = %d, want 2 (key names only)", len(sec.DataKeys))
	}
}

func TestNew_QualifiedNameUniqueness(t *testing.T) {
	workloads := []Workload{
		{Kind: KindDeployment, Name: "api", Namespace: "default"},
		{Kind: KindDeployment, Name: "api", Namespace: "default"},
	}
	_, err := New("/repo", workloads, nil, nil, nil, nil, nil, nil, nil, nil, nil)
	if err == nil {
		t.Fatal("expected duplicate qualified name error")
	}
}

func TestNew_RelationshipEndpointMustResolve(t *testing.T) {
	workloads := []Workload{{Kind: KindDeployment, Name: "api", Namespace: "default"}}
	rels := []Relationship{
		{Type: RelationSelects, From: "default/Service/api", To: "default/Deployment/api"},
	}
	_, err := New("/repo", workloads, nil, nil, nil, nil, nil, rels, nil, nil, nil)
	if err == nil {
		t.Fatal("expected unresolved relationship endpoint error")
	}
}

func TestNew_ValidRelationshipResolves(t *testing.T) {
	workloads := []Workload{{Kind: KindDeployment, Name: "api", Namespace: "default"}}
	services := []Service{{Name: "api", Namespace: "default"}}
	rels := []Relationship{
		{Type: RelationSelects, From: "default/Service/api", To: "default/Deployment/api"},
	}
	p, err := New("/repo", workloads, services, nil, nil, nil, nil, rels, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := p.RelationshipsFor("default/Deployment/api", false, true)
	if len(got) != 1 {
		t.Fatalf("RelationshipsFor = %d, want 1", len(got))
	}
}

func TestPlatform_WorkloadLookupAndByKind(t *testing.T) {
	workloads := []Workload{
		{Kind: KindDeployment, Name: "api", Namespace: "default"},
		{Kind: KindStatefulSet, Name: "db", Namespace: "default"},
	}
	p, err := New("/repo", workloads, nil, nil, nil, nil, nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	w, ok := p.Workload("default/Deployment/api")
	if !ok || w.Name != "api" {
		t.Fatalf("Workload lookup failed: %+v, %v", w, ok)
	}
	if len(p.ByKind(KindStatefulSet)) != 1 {
		t.Fatalf("ByKind(StatefulSet) = %d, want 1", len(p.ByKind(KindStatefulSet)))
	}
	if !p.Exists("default/StatefulSet/db") {
		t.Fatal("Exists = false, want true")
	}
	if p.Exists("default/StatefulSet/missing") {
		t.Fatal("Exists = true, want false")
	}
}

func TestPlatform_Summarize(t *testing.T) {
	workloads := []Workload{
		{Kind: KindDeployment, Name: "ready", Namespace: "default", Telemetry: []string{"exporter:postgres_exporter", "scrape_annotations"}},
		{Kind: KindDeployment, Name: "bare", Namespace: "default"},
	}
	p, err := New("/repo", workloads, nil, nil, nil, nil, nil, nil, nil, nil, []string{"parse error in foo.yaml"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s := p.Summarize()
	if s.WorkloadCount != 2 {
		t.Fatalf("WorkloadCount = %d, want 2", s.WorkloadCount)
	}
	if s.ErrorCount != 1 {
		t.Fatalf("ErrorCount = %d, want 1", s.ErrorCount)
	}
	if s.ReadinessCounts["ready"] != 1 || s.ReadinessCounts["not-ready"] != 1 {
		t.Fatalf("ReadinessCounts = %+v, want one ready one not-ready", s.ReadinessCounts)
	}
}

