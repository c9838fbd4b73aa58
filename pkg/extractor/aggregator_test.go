package extractor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/scoutflo/platform-observability-agent/pkg/platform"
)

func TestAggregate_MissingRootIsFatal(t *testing.T) {
	registry := mustRegistry(t)
	_, err := Aggregate(context.Background(), filepath.Join(t.TempDir(), "nope"), registry, Options{})
	if err == nil {
		t.Fatal("want error for missing repo root, got nil")
	}
}

func TestAggregate_EmptyRepoYieldsEmptyPlatformNotError(t *testing.T) {
	registry := mustRegistry(t)
	p, err := Aggregate(context.Background(), t.TempDir(), registry, Options{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(p.Workloads) != 0 || len(p.Services) != 0 {
		t.Fatalf("want empty platform, got %+v", p)
	}
}

const serviceSelectingWorkload = `
apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
  namespace: default
  labels:
    app: web
spec:
  replicas: 1
  selector:
    matchLabels:
      app: web
  template:
    spec:
      containers:
      - name: web
        image: nginx
---
apiVersion: v1
kind: Service
metadata:
  name: web-svc
  namespace: default
spec:
  selector:
    app: web
  ports:
  - port: 80
---
apiVersion: networking.k8s.io/v1
kind: Ingress
metadata:
  name: web-ing
  namespace: default
spec:
  rules:
  - host: example.com
    http:
      paths:
      - path: /
        pathType: Prefix
        backend:
          service:
            name: web-svc
            port:
              number: 80
---
apiVersion: autoscaling/v2
kind: HorizontalPodAutoscaler
metadata:
  name: web-hpa
  namespace: default
spec:
  scaleTargetRef:
    kind: Deployment
    name: web
  minReplicas: 1
  maxReplicas: 5
`

func TestAggregate_BuildsRelationships(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "all.yaml", serviceSelectingWorkload)
	registry := mustRegistry(t)

	p, err := Aggregate(context.Background(), dir, registry, Options{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	wantEdge := func(typ platform.RelationshipType, from, to string) {
		t.Helper()
		for _, rel := range p.Relationships {
			if rel.Type == typ && rel.From == from && rel.To == to {
				return
			}
		}
		t.Errorf("missing relationship %s %s -> %s; got %+v", typ, from, to, p.Relationships)
	}

	wantEdge(platform.RelationSelects, "default/Service/web-svc", "default/Deployment/web")
	wantEdge(platform.RelationRoutesTo, "default/Ingress/web-ing", "default/Service/web-svc")
	wantEdge(platform.RelationScales, "default/HorizontalPodAutoscaler/web-hpa", "default/Deployment/web")
}

func TestBuildRelationships_NoSelectorNeverMatches(t *testing.T) {
	workloads := []platform.Workload{
		{Kind: platform.KindDeployment, Name: "w", Namespace: "ns", Labels: map[string]string{"app": "w"}},
	}
	services := []platform.Service{
		{Name: "svc", Namespace: "ns", Selector: nil},
	}
	rels := buildRelationships(workloads, services, nil, nil)
	if len(rels) != 0 {
		t.Fatalf("want no relationships for a selector-less service, got %+v", rels)
	}
}

func TestDedupeRelationships(t *testing.T) {
	rel := platform.Relationship{Type: platform.RelationSelects, From: "a", To: "b"}
	out := dedupeRelationships([]platform.Relationship{rel, rel, rel})
	if len(out) != 1 {
		t.Fatalf("want 1 deduplicated relationship, got %d", len(out))
	}
}
