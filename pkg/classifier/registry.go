package classifier

import (
	"fmt"
	"regexp"
)

// compiledImageRule is an imageRule with its pattern pre-compiled.
type compiledImageRule struct {
	re  *regexp.Regexp
	key string
}

// Registry is the process-wide, read-only archetype knowledge base. It is
// built once by NewRegistry and then shared across every Classify call.
type Registry struct {
	profiles    map[string]*ArchetypeProfile
	imageRules  []compiledImageRule
	portRules   map[int]string
	envRules    map[string]string
}

// NewRegistry compiles the literal profile table into a Registry. A
// malformed image regex is a programming error, not a runtime condition:
// per spec.md §4.1 ("Regex compile errors at startup are fatal"),
// NewRegistry returns an error so the caller can fail fast at process
// start rather than panic deep in a request path.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		profiles:   make(map[string]*ArchetypeProfile, len(profileData)),
		imageRules: make([]compiledImageRule, 0, len(imageRules)),
		portRules:  portRules,
		envRules:   envRules,
	}

	for _, p := range profileData {
		if _, exists := r.profiles[p.RegistryKey]; exists {
			return nil, fmt.Errorf("classifier: duplicate registry key %q", p.RegistryKey)
		}
		r.profiles[p.RegistryKey] = p
	}

	for _, rule := range imageRules {
		re, err := regexp.Compile(rule.pattern)
		if err != nil {
			return nil, fmt.Errorf("classifier: compiling image rule %q: %w", rule.pattern, err)
		}
		if _, ok := r.profiles[rule.key]; !ok {
			return nil, fmt.Errorf("classifier: image rule references unknown profile %q", rule.key)
		}
		r.imageRules = append(r.imageRules, compiledImageRule{re: re, key: rule.key})
	}

	for port, key := range portRules {
		if _, ok := r.profiles[key]; !ok {
			return nil, fmt.Errorf("classifier: port rule %d references unknown profile %q", port, key)
		}
	}
	for env, key := range envRules {
		if _, ok := r.profiles[key]; !ok {
			return nil, fmt.Errorf("classifier: env rule %q references unknown profile %q", env, key)
		}
	}

	return r, nil
}

// MustNewRegistry is a convenience wrapper for callers (tests, cmd/main)
// that want to treat a malformed registry as an unrecoverable startup
// error.
func MustNewRegistry() *Registry {
	r, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	return r
}

// Profile looks up a profile by its registry key.
func (r *Registry) Profile(key string) (*ArchetypeProfile, bool) {
	p, ok := r.profiles[key]
	return p, ok
}

// Profiles returns every registered profile, for listing/documentation
// purposes (e.g. get_platform_summary's archetype coverage report).
func (r *Registry) Profiles() []*ArchetypeProfile {
	out := make([]*ArchetypeProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	return out
}
