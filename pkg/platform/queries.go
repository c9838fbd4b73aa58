package platform

import (
	"fmt"
	"sort"

	"github.com/scoutflo/platform-observability-agent/pkg/capability"
)

// New builds a Platform from its constituent resource slices and
// establishes the cross-cutting invariants: qualified-name uniqueness,
// relationship-endpoint resolution, and namespace derivation. Call sites
// are the aggregator (pkg/extractor) and tests; nothing outside this
// package should construct a Platform by hand.
func New(repoPath string, workloads []Workload, services []Service, ingresses []Ingress, hpas []HPA, configMaps []ConfigMap, secrets []Secret, relationships []Relationship, iacResources map[IaCSource][]IaCResource, cloudLive []IaCResource, parseErrors []string) (*Platform, error) {
	p := &Platform{
		RepoPath:        repoPath,
		Workloads:       workloads,
		Services:        services,
		Ingresses:       ingresses,
		HPAs:            hpas,
		ConfigMaps:      configMaps,
		Secrets:         secrets,
		Relationships:   relationships,
		IaCResources:    iacResources,
		CloudLive:       cloudLive,
		Namespaces:      make(map[string]struct{}),
		Errors:          append([]string(nil), parseErrors...),
		byQualifiedName: make(map[string]resourceRef),
	}
	if p.IaCResources == nil {
		p.IaCResources = make(map[IaCSource][]IaCResource)
	}

	for i, w := range workloads {
		if err := p.index(w.QualifiedName(), "workload", i); err != nil {
			return nil, err
		}
		p.Namespaces[w.Namespace] = struct{}{}
	}
	for i, s := range services {
		if err := p.index(s.QualifiedName(), "service", i); err != nil {
			return nil, err
		}
		p.Namespaces[s.Namespace] = struct{}{}
	}
	for i, ing := range ingresses {
		if err := p.index(ing.QualifiedName(), "ingress", i); err != nil {
			return nil, err
		}
		p.Namespaces[ing.Namespace] = struct{}{}
	}
	for i, h := range hpas {
		if err := p.index(h.QualifiedName(), "hpa", i); err != nil {
			return nil, err
		}
		p.Namespaces[h.Namespace] = struct{}{}
	}
	for i, cm := range configMaps {
		if err := p.index(cm.QualifiedName(), "configmap", i); err != nil {
			return nil, err
		}
		p.Namespaces[cm.Namespace] = struct{}{}
	}
	for i, sec := range secrets {
		if err := p.index(sec.QualifiedName(), "secret", i); err != nil {
			return nil, err
		}
		p.Namespaces[sec.Namespace] = struct{}{}
	}

	for _, rel := range relationships {
		if _, ok := p.byQualifiedName[rel.From]; !ok {
			return nil, fmt.Errorf("platform: relationship %s %q -> %q: endpoint %q not present", rel.Type, rel.From, rel.To, rel.From)
		}
		if _, ok := p.byQualifiedName[rel.To]; !ok {
			return nil, fmt.Errorf("platform: relationship %s %q -> %q: endpoint %q not present", rel.Type, rel.From, rel.To, rel.To)
		}
	}

	return p, nil
}

func (p *Platform) index(qualifiedName, kind string, i int) error {
	if _, exists := p.byQualifiedName[qualifiedName]; exists {
		return fmt.Errorf("platform: duplicate qualified name %q", qualifiedName)
	}
	p.byQualifiedName[qualifiedName] = resourceRef{kind: kind, index: i}
	return nil
}

// ByKind returns every Workload of the given kind, in extraction order.
func (p *Platform) ByKind(kind WorkloadKind) []Workload {
	var out []Workload
	for _, w := range p.Workloads {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

// ByNamespace returns every Workload in the given namespace.
func (p *Platform) ByNamespace(namespace string) []Workload {
	var out []Workload
	for _, w := range p.Workloads {
		if w.Namespace == namespace {
			out = append(out, w)
		}
	}
	return out
}

// Workload looks up a workload by qualified name.
func (p *Platform) Workload(qualifiedName string) (Workload, bool) {
	ref, ok := p.byQualifiedName[qualifiedName]
	if !ok || ref.kind != "workload" {
		return Workload{}, false
	}
	return p.Workloads[ref.index], true
}

// Exists reports whether any resource (of any kind) carries this
// qualified name.
func (p *Platform) Exists(qualifiedName string) bool {
	_, ok := p.byQualifiedName[qualifiedName]
	return ok
}

// RelationshipsFor returns every Relationship touching the given
// qualified name as an endpoint, optionally restricted to one role.
func (p *Platform) RelationshipsFor(qualifiedName string, asSource, asTarget bool) []Relationship {
	var out []Relationship
	for _, rel := range p.Relationships {
		if asSource && rel.From == qualifiedName {
			out = append(out, rel)
		}
		if asTarget && rel.To == qualifiedName {
			out = append(out, rel)
		}
	}
	return out
}

// Summary is the set of roll-up counts get_platform_summary reports.
type Summary struct {
	WorkloadCount   int
	ServiceCount    int
	IngressCount    int
	HPACount        int
	ConfigMapCount  int
	SecretCount     int
	NamespaceCount  int
	IaCResourceCount map[IaCSource]int
	CloudLiveCount  int
	ReadinessCounts map[capability.Readiness]int
	ErrorCount      int
}

// Summarize computes the Summary over the whole Platform.
func (p *Platform) Summarize() Summary {
	s := Summary{
		WorkloadCount:    len(p.Workloads),
		ServiceCount:     len(p.Services),
		IngressCount:     len(p.Ingresses),
		HPACount:         len(p.HPAs),
		ConfigMapCount:   len(p.ConfigMaps),
		SecretCount:      len(p.Secrets),
		NamespaceCount:   len(p.Namespaces),
		IaCResourceCount: make(map[IaCSource]int, len(p.IaCResources)),
		CloudLiveCount:   len(p.CloudLive),
		ReadinessCounts:  make(map[capability.Readiness]int, 3),
		ErrorCount:       len(p.Errors),
	}
	for source, resources := range p.IaCResources {
		s.IaCResourceCount[source] = len(resources)
	}
	for _, w := range p.Workloads {
		s.ReadinessCounts[capability.ReadinessFor(w.Telemetry)]++
	}
	return s
}

// Readiness derives the observability-readiness verdict for one
// workload's capability tags.
func (p *Platform) Readiness(w Workload) capability.Readiness {
	return capability.ReadinessFor(w.Telemetry)
}

// SortedNamespaces returns the namespace set as a sorted slice, for
// deterministic tool output.
func (p *Platform) SortedNamespaces() []string {
	out := make([]string, 0, len(p.Namespaces))
	for ns := range p.Namespaces {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}
