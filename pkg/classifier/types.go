// Package classifier implements the archetype registry and the
// evidence-weighted container classification algorithm (component C1).
//
// The registry is table-driven, process-wide, and initialized once by
// NewRegistry. Nothing here performs runtime introspection or duck-typed
// name matching: every profile carries an explicit RegistryKey, per the
// redesign flag in spec.md §9 ("Duck-typed profile lookup").
package classifier

// Family is the closed set of semantic workload archetypes.
type Family string

const (
	FamilyDatabase     Family = "database"
	FamilyCache        Family = "cache"
	FamilyMessageQueue Family = "message-queue"
	FamilySearchEngine Family = "search-engine"
	FamilyWebServer    Family = "web-server"
	FamilyReverseProxy Family = "reverse-proxy"
	FamilyAPIGateway   Family = "api-gateway"
	FamilyMonitoring   Family = "monitoring"
	FamilyLogging      Family = "logging"
	FamilyCustomApp    Family = "custom-app"
)

// Bucket is the qualitative classification confidence bucket.
type Bucket string

const (
	BucketHigh   Bucket = "high"
	BucketMedium Bucket = "medium"
	BucketLow    Bucket = "low"
)

// BucketFor maps a numeric score to its qualitative bucket, per spec.md
// §3's invariant: high iff score >= 0.60, medium iff 0.15 <= score < 0.60,
// else low.
func BucketFor(score float64) Bucket {
	switch {
	case score >= 0.60:
		return BucketHigh
	case score >= 0.15:
		return BucketMedium
	default:
		return BucketLow
	}
}

// GoldenMetric is one curated essential metric for a profile.
type GoldenMetric struct {
	Name        string
	PromQL      string
	Description string
	PanelHint   string
	// Requires is a comma-separated conjunction of tokens over
	// {exporter, replicas>1, statefulset}, evaluated by pkg/tools.
	Requires string
}

// AlertRule is one curated alert definition for a profile.
type AlertRule struct {
	Name     string
	PromQL   string
	Severity string
	For      string
	Summary  string
	Requires string
}

// ArchetypeProfile is the curated observability-knowledge unit for one
// specific technology. Profiles are immutable after registry construction.
type ArchetypeProfile struct {
	RegistryKey          string
	Family               Family
	DisplayName          string
	ExporterName         string
	ExporterPort         int
	GoldenMetrics        []GoldenMetric
	AlertRules           []AlertRule
	CommunityDashboardIDs []int
	HealthPrerequisites  []string
	Recommendations      []string
	// ExposesBuiltinMetrics marks profiles (Envoy, RabbitMQ, HAProxy,
	// Prometheus, Grafana, Fluentd/Fluent Bit) whose own workload serves
	// /metrics without a sidecar exporter, per spec.md §4.2.
	ExposesBuiltinMetrics bool
}

// Evidence is one scored signal that contributed to a Classification.
type Evidence struct {
	Source string // e.g. "image", "port:5432", "env:POSTGRES_DB", "label"
	Weight float64
}

// Classification is the result of scoring one container against the
// registry.
type Classification struct {
	Family        Family
	RegistryKey   string // empty when no profile matched (fallback)
	Bucket        Bucket
	Score         float64
	PrimarySource string
	Evidence      []Evidence
}

// Profile resolves the Classification's profile, or (nil, false) for the
// fallback custom-app classification.
func (c Classification) Profile(r *Registry) (*ArchetypeProfile, bool) {
	if c.RegistryKey == "" {
		return nil, false
	}
	p, ok := r.profiles[c.RegistryKey]
	return p, ok
}
