// Package platform holds the in-memory Platform aggregate (component C4):
// the unified view of a repo's Kubernetes manifests, IaC declarations, and
// live cloud resources, plus the O(N) read primitives the tool layer uses
// to answer questions about it.
package platform

import "github.com/scoutflo/platform-observability-agent/pkg/classifier"

// RedactedValue replaces every Secret data/stringData value retained in
// the model, per the Secret invariant in spec.md §3: only key names
// survive extraction.
const RedactedValue = "***REDACTED***"

// Probe flags record presence, never content, of a container's probes.
type Probes struct {
	Liveness  bool
	Readiness bool
	Startup   bool
}

// ResourceRequirements mirrors the subset of a container's resources
// block the model cares about: presence and raw values for display, not
// parsed quantities (the agent never does capacity planning).
type ResourceRequirements struct {
	Requests map[string]string
	Limits   map[string]string
}

// Container is one container within a Workload's pod template.
type Container struct {
	Name           string
	Image          string
	Ports          []ContainerPort
	EnvNames       []string // values are never retained
	Resources      ResourceRequirements
	Probes         Probes
	Classification classifier.Classification
}

// ContainerPort is a declared container port.
type ContainerPort struct {
	Name          string
	ContainerPort int
	Protocol      string
}

// WorkloadKind is the closed set of workload-shaped resource kinds.
type WorkloadKind string

const (
	KindDeployment  WorkloadKind = "Deployment"
	KindStatefulSet WorkloadKind = "StatefulSet"
	KindDaemonSet   WorkloadKind = "DaemonSet"
	KindJob         WorkloadKind = "Job"
	KindCronJob     WorkloadKind = "CronJob"
)

// Workload is a Deployment/StatefulSet/DaemonSet/Job/CronJob abstraction.
type Workload struct {
	Kind       WorkloadKind
	Name       string
	Namespace  string
	Replicas   int
	Containers []Container
	Selector   map[string]string
	Labels     map[string]string
	Telemetry  []string // capability tags from pkg/capability
	SourceFile string
}

// QualifiedName is the cross-reference key used throughout the Platform:
// namespace/Kind/name, unique within one Platform.
func (w Workload) QualifiedName() string {
	return qualifiedName(w.Namespace, string(w.Kind), w.Name)
}

func qualifiedName(namespace, kind, name string) string {
	return namespace + "/" + kind + "/" + name
}

// ServicePort is a declared Service port.
type ServicePort struct {
	Name       string
	Port       int32
	TargetPort string
	Protocol   string
}

// Service is a uniform-shape K8s resource plus its kind-specific fields.
type Service struct {
	Name        string
	Namespace   string
	Labels      map[string]string
	Annotations map[string]string
	SourceFile  string
	Type        string
	Selector    map[string]string
	Ports       []ServicePort
}

func (s Service) QualifiedName() string { return qualifiedName(s.Namespace, "Service", s.Name) }

// IngressRule captures one host/path/backend-service triple.
type IngressRule struct {
	Host           string
	Path           string
	BackendService string
	BackendPort    string
}

// Ingress is a uniform-shape K8s resource plus its kind-specific fields.
type Ingress struct {
	Name        string
	Namespace   string
	Labels      map[string]string
	Annotations map[string]string
	SourceFile  string
	Rules       []IngressRule
}

func (i Ingress) QualifiedName() string { return qualifiedName(i.Namespace, "Ingress", i.Name) }

// HPA is a uniform-shape K8s resource plus its kind-specific fields.
type HPA struct {
	Name            string
	Namespace       string
	Labels          map[string]string
	Annotations     map[string]string
	SourceFile      string
	ScaleTargetKind string
	ScaleTargetName string
	MinReplicas     int
	MaxReplicas     int
}

func (h HPA) QualifiedName() string { return qualifiedName(h.Namespace, "HorizontalPodAutoscaler", h.Name) }

// ConfigMap is a uniform-shape K8s resource. Data values are retained
// (ConfigMaps carry no secrecy invariant).
type ConfigMap struct {
	Name        string
	Namespace   string
	Labels      map[string]string
	Annotations map[string]string
	SourceFile  string
	Data        map[string]string
}

func (c ConfigMap) QualifiedName() string { return qualifiedName(c.Namespace, "ConfigMap", c.Name) }

// Secret is a uniform-shape K8s resource. Data and StringData key names
// are preserved; every value is replaced with RedactedValue at
// construction, per spec.md §3's Secret invariant. NewSecret is the only
// supported constructor, enforcing redaction can never be skipped.
type Secret struct {
	Name        string
	Namespace   string
	Labels      map[string]string
	Annotations map[string]string
	SourceFile  string
	Type        string
	DataKeys    map[string]string // every value forced to RedactedValue
}

func (s Secret) QualifiedName() string { return qualifiedName(s.Namespace, "Secret", s.Name) }

// NewSecret builds a Secret from raw data/stringData maps, redacting
// every value while preserving key names.
func NewSecret(name, namespace, secretType string, labels, annotations map[string]string, sourceFile string, data, stringData map[string]string) Secret {
	keys := make(map[string]string, len(data)+len(stringData))
	for k := range data {
		keys[k] = RedactedValue
	}
	for k := range stringData {
		keys[k] = RedactedValue
	}
	return Secret{
		Name:        name,
		Namespace:   namespace,
		Labels:      labels,
		Annotations: annotations,
		SourceFile:  sourceFile,
		Type:        secretType,
		DataKeys:    keys,
	}
}

// RelationshipType is the closed set of directed edges between
// resources.
type RelationshipType string

const (
	RelationSelects  RelationshipType = "selects"   // Service -> Workload
	RelationRoutesTo RelationshipType = "routes_to" // Ingress -> Service
	RelationScales   RelationshipType = "scales"    // HPA -> Workload
)

// Relationship is a directed edge between two qualified names.
type Relationship struct {
	Type RelationshipType
	From string
	To   string
}

// IaCSource is the closed set of IaC/cloud-discovery origins.
type IaCSource string

const (
	SourceTerraform IaCSource = "terraform"
	SourceHelm      IaCSource = "helm"
	SourceKustomize IaCSource = "kustomize"
	SourcePulumi    IaCSource = "pulumi"
	SourceCloudLive IaCSource = "cloud-live"
)

// IaCResource is one resource discovered by the multi-source extractor
// outside of raw K8s manifests.
type IaCResource struct {
	Source          IaCSource
	Origin          string // source file path, or "<region>:<name>" for cloud-live
	ResourceType    string
	Name            string
	CloudProvider   string
	Properties      map[string]string
	Archetype       string // may be empty
	MonitoringNotes string
}

// HistoryRun is an append-only record of one prior validate-mode run.
type HistoryRun struct {
	ID            int64
	ClusterContext string
	Timestamp     string // RFC3339; stamped by the caller, never time.Now() inside this package
	SummaryJSON   string
	ChecksJSON    string
	RemediationJSON string
	RecommendationsJSON string
}

// Platform is the root aggregate produced by the multi-source extractor.
type Platform struct {
	RepoPath string

	Workloads  []Workload
	Services   []Service
	Ingresses  []Ingress
	HPAs       []HPA
	ConfigMaps []ConfigMap
	Secrets    []Secret

	Relationships []Relationship

	IaCResources map[IaCSource][]IaCResource
	CloudLive    []IaCResource

	Namespaces map[string]struct{}
	Errors     []string

	// byQualifiedName indexes every K8s resource's qualified name to its
	// kind and position in the corresponding slice above, giving O(1)
	// Get lookups instead of an O(N) scan per DESIGN NOTES' "no
	// resource-to-resource pointers" guidance: the index stores a
	// position, never a pointer into another resource.
	byQualifiedName map[string]resourceRef
}

// resourceRef locates one resource within its kind-specific slice.
type resourceRef struct {
	kind  string
	index int
}
