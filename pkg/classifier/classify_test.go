package classifier

import (
	"testing"
)

func mustRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

// S1: image alone identifies the profile at high confidence via image
// evidence.
func TestClassify_ImageAlone(t *testing.T) {
	r := mustRegistry(t)
	got := r.Classify("postgres:15", nil, nil, nil)

	if got.RegistryKey != "postgresql" {
		t.Fatalf("RegistryKey = %q, want postgresql", got.RegistryKey)
	}
	if got.Family != FamilyDatabase {
		t.Fatalf("Family = %q, want %q", got.Family, FamilyDatabase)
	}
	if got.Score != weightImage {
		t.Fatalf("Score = %v, want %v", got.Score, weightImage)
	}
	if got.Bucket != BucketHigh {
		t.Fatalf("Bucket = %q, want high", got.Bucket)
	}
	if got.PrimarySource != "image" {
		t.Fatalf("PrimarySource = %q, want image", got.PrimarySource)
	}
}

// S2: image + port + multiple env vars for the same profile cap at 1.0,
// and env evidence is contributed only once regardless of how many env
// vars matched.
func TestClassify_CappedScoreSingleEnvEvidence(t *testing.T) {
	r := mustRegistry(t)
	got := r.Classify(
		"postgres:15",
		[]int{5432},
		[]string{"POSTGRES_DB", "POSTGRES_USER"},
		nil,
	)

	if got.RegistryKey != "postgresql" {
		t.Fatalf("RegistryKey = %q, want postgresql", got.RegistryKey)
	}
	if got.Score != 1.0 {
		t.Fatalf("Score = %v, want 1.0 (capped)", got.Score)
	}
	if got.Bucket != BucketHigh {
		t.Fatalf("Bucket = %q, want high", got.Bucket)
	}

	envEvidence := 0
	for _, e := range got.Evidence {
		if len(e.Source) >= 4 && e.Source[:4] == "env:" {
			envEvidence++
		}
	}
	if envEvidence != 1 {
		t.Fatalf("env evidence items = %d, want exactly 1", envEvidence)
	}
}

// S3: conflicting signals across profiles. A port match (0.25) outranks
// a single env match (0.15) for a competing profile.
func TestClassify_ConflictingSignalsPortBeatsEnv(t *testing.T) {
	r := mustRegistry(t)
	got := r.Classify(
		"custom/sidecar:latest",
		[]int{6379},
		[]string{"POSTGRES_DB"},
		nil,
	)

	if got.RegistryKey != "redis" {
		t.Fatalf("RegistryKey = %q, want redis", got.RegistryKey)
	}
	if got.Score != weightPort {
		t.Fatalf("Score = %v, want %v", got.Score, weightPort)
	}
	if got.Bucket != BucketMedium {
		t.Fatalf("Bucket = %q, want medium", got.Bucket)
	}
}

// Fallback: no signal matches any profile.
func TestClassify_Fallback(t *testing.T) {
	r := mustRegistry(t)
	got := r.Classify("myorg/custom-app:v1", []int{8080}, []string{"APP_ENV"}, nil)

	if got.Family != FamilyCustomApp {
		t.Fatalf("Family = %q, want %q", got.Family, FamilyCustomApp)
	}
	if got.RegistryKey != "" {
		t.Fatalf("RegistryKey = %q, want empty", got.RegistryKey)
	}
	if got.Score != fallbackScore {
		t.Fatalf("Score = %v, want %v", got.Score, fallbackScore)
	}
	if got.Bucket != BucketLow {
		t.Fatalf("Bucket = %q, want low", got.Bucket)
	}
	if got.PrimarySource != "fallback" {
		t.Fatalf("PrimarySource = %q, want fallback", got.PrimarySource)
	}
}

// Label evidence: a bare label value is re-scanned with a trailing
// colon appended, so it matches the same image-style pattern.
func TestClassify_LabelRescanTrailingColon(t *testing.T) {
	r := mustRegistry(t)
	got := r.Classify(
		"myorg/sidecar:v1",
		nil,
		nil,
		map[string]string{"app.kubernetes.io/name": "redis"},
	)

	if got.RegistryKey != "redis" {
		t.Fatalf("RegistryKey = %q, want redis", got.RegistryKey)
	}
	if got.Score != weightLabel {
		t.Fatalf("Score = %v, want %v", got.Score, weightLabel)
	}
	if got.PrimarySource != "label" {
		t.Fatalf("PrimarySource = %q, want label", got.PrimarySource)
	}
}

// Property: BucketFor is monotonic and matches the documented thresholds.
func TestBucketFor_Monotonic(t *testing.T) {
	cases := []struct {
		score float64
		want  Bucket
	}{
		{0.0, BucketLow},
		{0.14, BucketLow},
		{0.15, BucketMedium},
		{0.59, BucketMedium},
		{0.60, BucketHigh},
		{1.0, BucketHigh},
	}
	for _, c := range cases {
		if got := BucketFor(c.score); got != c.want {
			t.Errorf("BucketFor(%v) = %q, want %q", c.score, got, c.want)
		}
	}
}

// Property: every Classification's Bucket is consistent with its Score
// under BucketFor, for arbitrary accumulated combinations.
func TestClassify_BucketConsistentWithScore(t *testing.T) {
	r := mustRegistry(t)
	inputs := []struct {
		image    string
		ports    []int
		envNames []string
		labels   map[string]string
	}{
		{"redis:7", []int{6379}, []string{"REDIS_PASSWORD"}, nil},
		{"bitnami/kafka:3", []int{9092}, nil, nil},
		{"unknown/app:v2", nil, nil, nil},
		{"nginx:1.25", []int{80}, nil, map[string]string{"tier": "frontend"}},
	}
	for _, in := range inputs {
		got := r.Classify(in.image, in.ports, in.envNames, in.labels)
		if BucketFor(got.Score) != got.Bucket {
			t.Errorf("Classify(%q): Bucket %q inconsistent with Score %v", in.image, got.Bucket, got.Score)
		}
	}
}

// Property: Classify is deterministic across repeated calls with
// identical inputs.
func TestClassify_Deterministic(t *testing.T) {
	r := mustRegistry(t)
	first := r.Classify("mongo:6", []int{27017, 6379}, []string{"MONGO_INITDB_DATABASE"}, nil)
	for i := 0; i < 5; i++ {
		got := r.Classify("mongo:6", []int{27017, 6379}, []string{"MONGO_INITDB_DATABASE"}, nil)
		if got.RegistryKey != first.RegistryKey || got.Score != first.Score || got.Bucket != first.Bucket {
			t.Fatalf("iteration %d: got %+v, want %+v", i, got, first)
		}
	}
}

func TestNewRegistry_ProfileLookup(t *testing.T) {
	r := mustRegistry(t)
	c := Classification{RegistryKey: "postgresql"}
	p, ok := c.Profile(r)
	if !ok {
		t.Fatal("expected profile to resolve")
	}
	if p.DisplayName != "PostgreSQL" {
		t.Fatalf("DisplayName = %q, want PostgreSQL", p.DisplayName)
	}

	fallback := Classification{RegistryKey: ""}
	if _, ok := fallback.Profile(r); ok {
		t.Fatal("expected fallback classification to not resolve a profile")
	}
}
