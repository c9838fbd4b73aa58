package kclient

import (
	"strings"
	"testing"

	corev1 "k8s.io/api/core/v1"
)

func TestGroupVersionResourceFor(t *testing.T) {
	gvr, err := GroupVersionResourceFor("Deployment")
	if err != nil {
		t.Fatalf("GroupVersionResourceFor(Deployment) error = %v", err)
	}
	if gvr.Group != "apps" || gvr.Resource != "deployments" {
		t.Fatalf("GroupVersionResourceFor(Deployment) = %+v, want apps/deployments", gvr)
	}

	if _, err := GroupVersionResourceFor("NotARealKind"); err == nil {
		t.Fatal("expected an error for an unsupported kind")
	}
}

func TestLabelSelectorString(t *testing.T) {
	got := labelSelectorString(map[string]string{"app.kubernetes.io/name": "prometheus"})
	if got != "app.kubernetes.io/name=prometheus" {
		t.Fatalf("labelSelectorString = %q", got)
	}
}

func TestInferHTTPPort_PrefersNamedHTTPPort(t *testing.T) {
	svc := corev1.Service{
		Spec: corev1.ServiceSpec{
			Ports: []corev1.ServicePort{
				{Name: "metrics", Port: 9100},
				{Name: "http", Port: 9090},
			},
		},
	}
	if got := inferHTTPPort(svc); got != 9090 {
		t.Fatalf("inferHTTPPort = %d, want 9090", got)
	}
}

func TestInferHTTPPort_FallsBackToFirstPort(t *testing.T) {
	svc := corev1.Service{
		Spec: corev1.ServiceSpec{
			Ports: []corev1.ServicePort{{Name: "grpc", Port: 9999}},
		},
	}
	if got := inferHTTPPort(svc); got != 9999 {
		t.Fatalf("inferHTTPPort = %d, want 9999", got)
	}
}

func TestInferHTTPPort_DefaultsTo80WhenNoPorts(t *testing.T) {
	if got := inferHTTPPort(corev1.Service{}); got != 80 {
		t.Fatalf("inferHTTPPort = %d, want 80", got)
	}
}

func TestTruncate(t *testing.T) {
	s := strings.Repeat("a", 10)
	if got := truncate(s, 20); got != s {
		t.Fatalf("truncate under limit changed the string: %q", got)
	}
	got := truncate(s, 5)
	if !strings.HasPrefix(got, "aaaaa") || !strings.HasSuffix(got, "(truncated)") {
		t.Fatalf("truncate over limit = %q, want a 5-char prefix plus a truncation marker", got)
	}
}
