package extractor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/scoutflo/platform-observability-agent/pkg/platform"
)

// pulumiArchetypeTable maps a normalized Pulumi resource type (after
// "." and "/" collapse to ":" and "k8s:" normalizes to "kubernetes:")
// to the archetype this extractor assigns it.
var pulumiArchetypeTable = map[string]string{
	"aws:rds:Instance":                 "database",
	"aws:rds:Cluster":                  "database",
	"aws:elasticache:Cluster":          "cache",
	"aws:elasticache:ReplicationGroup": "cache",
	"aws:msk:Cluster":                  "message-queue",
	"aws:sqs:Queue":                    "message-queue",
	"aws:sns:Topic":                    "message-queue",
	"aws:lambda:Function":              "custom-app",
	"aws:ecs:Service":                  "custom-app",
	"aws:eks:Cluster":                  "custom-app",
	"aws:opensearch:Domain":            "search-engine",
	"aws:dynamodb:Table":               "database",
	"aws:s3:Bucket":                    "custom-app",
}

// pulumiDoc is the subset of Pulumi.yaml fields this extractor reads.
type pulumiDoc struct {
	Name    string      `json:"name"`
	Runtime interface{} `json:"runtime"` // string or {name: string}
}

// pulumiResourceRegex matches the three grep-parsed runtimes' resource
// declaration idioms, per spec.md §4.3(b):
//
//	Python:   aws.rds.Instance("name", ...)
//	Node/TS:  new aws.rds.Instance("name", {...})
//	Go:       rds.NewInstance(ctx, "name", ...)
//
// The Python/Node pattern matches any dotted call whose first argument
// is a string literal, so calls that are not Pulumi resources (such as
// a local helper named like a provider type) are captured as well.
var (
	pulumiPythonOrNodeRegex = regexp.MustCompile(`(?:new\s+)?([A-Za-z0-9_]+(?:\.[A-Za-z0-9_]+)+)\(\s*(?:ctx,\s*)?"([^"]+)"`)
	pulumiGoRegex           = regexp.MustCompile(`([A-Za-z0-9_]+)\.New([A-Za-z0-9_]+)\(\s*ctx,\s*"([^"]+)"`)
)

// ExtractPulumi walks root for Pulumi.yaml project files and
// grep-parses each declared program file for resource declarations,
// per the declared runtime.
func ExtractPulumi(root string) (resources []platform.IaCResource, errs []string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, fmt.Sprintf("walk %s: %v", path, err))
			return nil
		}
		if d.IsDir() {
			if d.Name() != "." && (strings.HasPrefix(d.Name(), ".") || manifestExcludeDirs[d.Name()]) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != "Pulumi.yaml" && d.Name() != "Pulumi.yml" {
			return nil
		}

		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			errs = append(errs, fmt.Sprintf("read %s: %v", path, readErr))
			return nil
		}
		var doc pulumiDoc
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			errs = append(errs, fmt.Sprintf("parse %s: %v", path, err))
			return nil
		}

		resources = append(resources, platform.IaCResource{
			Source: platform.SourcePulumi, Origin: path,
			ResourceType: "pulumi_project", Name: doc.Name,
			Properties: map[string]string{"runtime": runtimeName(doc.Runtime)},
		})

		projectDir := filepath.Dir(path)
		found, scanErrs := scanPulumiProgram(projectDir, runtimeName(doc.Runtime), path)
		resources = append(resources, found...)
		errs = append(errs, scanErrs...)
		return nil
	})
	return resources, errs
}

func runtimeName(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case map[string]interface{}:
		if name, ok := v["name"].(string); ok {
			return name
		}
	}
	return ""
}

// scanPulumiProgram grep-parses every source file matching the
// project's runtime for resource-constructor calls. YAML-runtime
// projects are not grep-parsed; their Pulumi.yaml is read directly
// (handled by the caller), so this returns immediately for "yaml".
func scanPulumiProgram(projectDir, runtime, origin string) (resources []platform.IaCResource, errs []string) {
	ext, ok := map[string]string{"python": ".py", "nodejs": ".ts", "go": ".go"}[runtime]
	if !ok {
		return nil, nil
	}

	_ = filepath.WalkDir(projectDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, fmt.Sprintf("walk %s: %v", path, err))
			return nil
		}
		if d.IsDir() {
			if d.Name() != "." && (strings.HasPrefix(d.Name(), ".") || manifestExcludeDirs[d.Name()]) {
				return filepath.SkipDir
			}
			return nil
		}
		if runtime == "nodejs" {
			if !strings.HasSuffix(path, ".ts") && !strings.HasSuffix(path, ".js") {
				return nil
			}
		} else if filepath.Ext(path) != ext {
			return nil
		}

		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			errs = append(errs, fmt.Sprintf("read %s: %v", path, readErr))
			return nil
		}
		resources = append(resources, grepPulumiResources(string(raw), runtime, path)...)
		return nil
	})
	return resources, errs
}

func grepPulumiResources(src, runtime, sourceFile string) []platform.IaCResource {
	var out []platform.IaCResource

	if runtime == "go" {
		// The Go SDK's call site (rds.NewInstance(ctx, "name", ...))
		// never spells out the "aws" provider prefix the registry
		// table keys on, so archetype lookups for Go programs are
		// best-effort: the package name alone often isn't enough.
		for _, m := range pulumiGoRegex.FindAllStringSubmatch(src, -1) {
			pkg, ctor, name := m[1], m[2], m[3]
			typeName := normalizePulumiType(pkg + "." + ctor)
			out = append(out, platform.IaCResource{
				Source: platform.SourcePulumi, Origin: sourceFile,
				ResourceType: typeName, Name: name,
				Archetype: pulumiArchetypeTable[typeName],
			})
		}
		return out
	}

	for _, m := range pulumiPythonOrNodeRegex.FindAllStringSubmatch(src, -1) {
		rawType, name := m[1], m[2]
		typeName := normalizePulumiType(rawType)
		out = append(out, platform.IaCResource{
			Source: platform.SourcePulumi, Origin: sourceFile,
			ResourceType: typeName, Name: name,
			Archetype: pulumiArchetypeTable[typeName],
		})
	}
	return out
}

// normalizePulumiType converts a grep-captured dotted/slashed type name
// into the Pulumi registry's canonical "provider:module:Resource" form.
func normalizePulumiType(raw string) string {
	s := strings.ReplaceAll(raw, ".", ":")
	s = strings.ReplaceAll(s, "/", ":")
	if strings.HasPrefix(s, "k8s:") {
		s = "kubernetes:" + strings.TrimPrefix(s, "k8s:")
	}
	return s
}
