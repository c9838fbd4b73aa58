package extractor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/scoutflo/platform-observability-agent/pkg/platform"
)

// terraformPropertyWhitelist is the fixed set of attributes extracted
// from a resource block, regardless of resource type, per spec.md
// §4.3(b).
var terraformPropertyWhitelist = []string{
	"engine", "engine_version", "instance_class", "node_type", "cluster_size",
	"chart", "repository", "namespace", "runtime", "memory_size", "kafka_version",
}

// terraformArchetypeTable maps a resource type to the archetype and
// monitoring notes this extractor assigns it, curated for the cloud
// services this repo's domain cares about.
var terraformArchetypeTable = map[string]struct {
	archetype string
	notes     string
}{
	"aws_db_instance":                   {"database", "attach postgres_exporter or mysqld_exporter depending on engine"},
	"aws_rds_cluster":                   {"database", "attach postgres_exporter or mysqld_exporter depending on engine"},
	"aws_elasticache_cluster":           {"cache", "attach redis_exporter or memcached_exporter depending on engine"},
	"aws_elasticache_replication_group": {"cache", "attach redis_exporter"},
	"aws_msk_cluster":                   {"message-queue", "attach kafka_exporter via JMX"},
	"aws_mq_broker":                     {"message-queue", "broker exposes CloudWatch metrics only"},
	"aws_sqs_queue":                     {"message-queue", "CloudWatch metrics only, no exporter"},
	"aws_sns_topic":                     {"message-queue", "CloudWatch metrics only, no exporter"},
	"aws_lambda_function":               {"custom-app", "CloudWatch metrics only"},
	"aws_ecs_cluster":                   {"custom-app", "enable container insights for metrics"},
	"aws_ecs_service":                   {"custom-app", "enable container insights for metrics"},
	"aws_eks_cluster":                   {"custom-app", "deploy kube-state-metrics and node_exporter in-cluster"},
	"aws_opensearch_domain":             {"search-engine", "domain exposes CloudWatch metrics only"},
	"aws_elasticsearch_domain":          {"search-engine", "domain exposes CloudWatch metrics only"},
	"aws_dynamodb_table":                {"database", "CloudWatch metrics only, no exporter"},
	"aws_s3_bucket":                     {"custom-app", "CloudWatch request metrics must be enabled explicitly"},
	"helm_release":                      {"", ""},
}

// ExtractTerraform walks root for .tf files and returns one IaCResource
// per resource block, plus a separate list of helm_release resources
// promoted out of the general list per spec.
func ExtractTerraform(root string) (resources []platform.IaCResource, helmReleases []platform.IaCResource, errs []string) {
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
		if filepath.Ext(path) != ".tf" {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Sprintf("read %s: %v", path, err))
			return nil
		}
		found, parseErr := parseTerraformFileHCL(raw, path)
		if parseErr != nil {
			found = parseTerraformFileRegex(raw, path)
		}
		for _, res := range found {
			if res.ResourceType == "helm_release" {
				helmReleases = append(helmReleases, res)
			} else {
				resources = append(resources, res)
			}
		}
		return nil
	})
	return resources, helmReleases, errs
}

// parseTerraformFileHCL attempts a full HCL parse and, for each
// top-level resource block, decodes the whitelisted attributes.
func parseTerraformFileHCL(raw []byte, path string) ([]platform.IaCResource, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(raw, path)
	if diags.HasErrors() {
		return nil, diags
	}

	schema := &hcl.BodySchema{
		Blocks: []hcl.BlockHeaderSchema{
			{Type: "resource", LabelNames: []string{"type", "name"}},
		},
	}
	content, _, diags := file.Body.PartialContent(schema)
	if diags.HasErrors() {
		return nil, diags
	}

	var out []platform.IaCResource
	for _, block := range content.Blocks {
		resType := block.Labels[0]
		resName := block.Labels[1]

		attrs, diags := block.Body.JustAttributes()
		if diags.HasErrors() {
			// Attribute-level diagnostics (e.g. an attribute that's
			// actually a nested block) still leave the rest readable.
		}

		props := make(map[string]string)
		for _, key := range terraformPropertyWhitelist {
			attr, ok := attrs[key]
			if !ok {
				continue
			}
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				continue
			}
			if s, ok := ctyToString(val); ok {
				props[key] = s
			}
		}

		archetype, notes := lookupTerraformArchetype(resType)
		out = append(out, platform.IaCResource{
			Source: platform.SourceTerraform, Origin: path,
			ResourceType: resType, Name: resName, CloudProvider: terraformCloudProvider(resType),
			Properties: props, Archetype: archetype, MonitoringNotes: notes,
		})
	}
	return out, nil
}

// terraformResourceRegex matches a resource block's opening line; the
// regex fallback scans forward counting braces to find the block's end.
var terraformResourceRegex = regexp.MustCompile(`^\s*resource\s+"([^"]+)"\s+"([^"]+)"\s*\{`)

var terraformPropertyLineRegex = regexp.MustCompile(`^\s*(\w+)\s*=\s*"?([^"\n]*?)"?\s*$`)

// parseTerraformFileRegex is the spec's fallback for HCL the parser
// cannot handle: line-oriented extraction of resource blocks and a
// whitelisted set of "key = value" properties within each.
func parseTerraformFileRegex(raw []byte, path string) []platform.IaCResource {
	lines := strings.Split(string(raw), "\n")
	whitelist := make(map[string]bool, len(terraformPropertyWhitelist))
	for _, k := range terraformPropertyWhitelist {
		whitelist[k] = true
	}

	var out []platform.IaCResource
	for i := 0; i < len(lines); i++ {
		m := terraformResourceRegex.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		resType, resName := m[1], m[2]
		props := make(map[string]string)

		depth := 1
		for j := i + 1; j < len(lines) && depth > 0; j++ {
			line := lines[j]
			depth += strings.Count(line, "{") - strings.Count(line, "}")
			if pm := terraformPropertyLineRegex.FindStringSubmatch(strings.TrimSpace(line)); pm != nil {
				if whitelist[pm[1]] {
					props[pm[1]] = pm[2]
				}
			}
		}

		archetype, notes := lookupTerraformArchetype(resType)
		out = append(out, platform.IaCResource{
			Source: platform.SourceTerraform, Origin: path,
			ResourceType: resType, Name: resName, CloudProvider: terraformCloudProvider(resType),
			Properties: props, Archetype: archetype, MonitoringNotes: notes,
		})
	}
	return out
}

func lookupTerraformArchetype(resType string) (archetype, notes string) {
	if entry, ok := terraformArchetypeTable[resType]; ok {
		return entry.archetype, entry.notes
	}
	return "", ""
}

func terraformCloudProvider(resType string) string {
	switch {
	case strings.HasPrefix(resType, "aws_"):
		return "aws"
	case strings.HasPrefix(resType, "google_"):
		return "gcp"
	case strings.HasPrefix(resType, "azurerm_"):
		return "azure"
	case resType == "helm_release" || resType == "kubernetes_manifest":
		return "kubernetes"
	default:
		return "unknown"
	}
}

// ctyToString renders a cty.Value's scalar form, or reports false for
// anything it can't meaningfully stringify (lists, objects, unknowns).
func ctyToString(v cty.Value) (string, bool) {
	if v.IsNull() || !v.IsWhollyKnown() {
		return "", false
	}
	switch v.Type() {
	case cty.String:
		return v.AsString(), true
	case cty.Number:
		bf := v.AsBigFloat()
		return bf.String(), true
	case cty.Bool:
		return strconv.FormatBool(v.True()), true
	default:
		return "", false
	}
}
