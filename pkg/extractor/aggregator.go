package extractor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/scoutflo/platform-observability-agent/pkg/classifier"
	"github.com/scoutflo/platform-observability-agent/pkg/platform"
)

// Options configures one Aggregate run.
type Options struct {
	// Regions, when non-empty, enables the cloud-live discovery sub-pass
	// (4.3c) against each listed AWS region. Leave empty to skip it.
	Regions []string
}

// Aggregate is the single entry point for the multi-source extractor
// (4.3): it runs every sub-extractor against root, merges their output
// into one resource set, derives cross-resource relationships, and
// builds the Platform aggregate. Per spec.md §4.3's fault-tolerance
// policy, the repo root not existing is the only fatal error; every
// other sub-extractor failure is captured as a string in the returned
// Platform's Errors and processing continues.
func Aggregate(ctx context.Context, root string, registry *classifier.Registry, opts Options) (*platform.Platform, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("aggregator: repo root %s: %w", root, err)
	}

	var parseErrors []string

	manifests, err := ExtractManifests(root, registry)
	if err != nil {
		return nil, fmt.Errorf("aggregator: %w", err)
	}

	terraformResources, terraformHelmReleases, terraformErrs := ExtractTerraform(root)
	parseErrors = append(parseErrors, terraformErrs...)

	helmRes := ExtractHelm(root, registry)
	parseErrors = append(parseErrors, helmRes.Errors...)

	kustomizeRes := ExtractKustomize(root, registry)
	parseErrors = append(parseErrors, kustomizeRes.Errors...)

	pulumiResources, pulumiErrs := ExtractPulumi(root)
	parseErrors = append(parseErrors, pulumiErrs...)

	var cloudLive []platform.IaCResource
	if len(opts.Regions) > 0 {
		cloudRes := DiscoverCloud(ctx, opts.Regions)
		cloudLive = cloudRes.Resources
		parseErrors = append(parseErrors, cloudRes.Errors...)
	}

	mergeManifestResult(manifests, helmRes.Rendered)
	mergeManifestResult(manifests, kustomizeRes.Rendered)
	parseErrors = append(parseErrors, manifests.Errors...)

	iacResources := map[platform.IaCSource][]platform.IaCResource{
		platform.SourceTerraform: append(terraformResources, terraformHelmReleases...),
		platform.SourceHelm:      append(helmRes.Charts, helmRes.Dependencies...),
		platform.SourceKustomize: kustomizeRes.Kustomizations,
		platform.SourcePulumi:    pulumiResources,
	}

	relationships := buildRelationships(manifests.Workloads, manifests.Services, manifests.Ingresses, manifests.HPAs)

	return platform.New(root, manifests.Workloads, manifests.Services, manifests.Ingresses, manifests.HPAs,
		manifests.ConfigMaps, manifests.Secrets, relationships, iacResources, cloudLive, parseErrors)
}

// mergeManifestResult folds src's resources into dst in place; used to
// combine Helm's and Kustomize's in-process-rendered output with the
// primary on-disk manifest pass.
func mergeManifestResult(dst, src *ManifestResult) {
	if src == nil {
		return
	}
	dst.Workloads = append(dst.Workloads, src.Workloads...)
	dst.Services = append(dst.Services, src.Services...)
	dst.Ingresses = append(dst.Ingresses, src.Ingresses...)
	dst.HPAs = append(dst.HPAs, src.HPAs...)
	dst.ConfigMaps = append(dst.ConfigMaps, src.ConfigMaps...)
	dst.Secrets = append(dst.Secrets, src.Secrets...)
	dst.Errors = append(dst.Errors, src.Errors...)
}

// buildRelationships derives the three directed edge types (4.4): a
// Service selects every Workload in its namespace whose labels satisfy
// the Service's selector; an Ingress routes_to the Service named by
// each of its rules' backends; an HPA scales the workload its
// scaleTargetRef names.
func buildRelationships(workloads []platform.Workload, services []platform.Service, ingresses []platform.Ingress, hpas []platform.HPA) []platform.Relationship {
	var rels []platform.Relationship

	for _, svc := range services {
		for _, w := range workloads {
			if w.Namespace != svc.Namespace {
				continue
			}
			if len(svc.Selector) == 0 || !labelsMatch(svc.Selector, w.Labels) {
				continue
			}
			rels = append(rels, platform.Relationship{
				Type: platform.RelationSelects,
				From: svc.QualifiedName(),
				To:   w.QualifiedName(),
			})
		}
	}

	for _, ing := range ingresses {
		for _, rule := range ing.Rules {
			if rule.BackendService == "" {
				continue
			}
			for _, svc := range services {
				if svc.Namespace == ing.Namespace && svc.Name == rule.BackendService {
					rels = append(rels, platform.Relationship{
						Type: platform.RelationRoutesTo,
						From: ing.QualifiedName(),
						To:   svc.QualifiedName(),
					})
					break
				}
			}
		}
	}

	for _, hpa := range hpas {
		for _, w := range workloads {
			if w.Namespace == hpa.Namespace && w.Name == hpa.ScaleTargetName && strings.EqualFold(string(w.Kind), hpa.ScaleTargetKind) {
				rels = append(rels, platform.Relationship{
					Type: platform.RelationScales,
					From: hpa.QualifiedName(),
					To:   w.QualifiedName(),
				})
				break
			}
		}
	}

	return dedupeRelationships(rels)
}

// labelsMatch reports whether every key/value in selector is present in
// labels (a Service's label selector matching against a workload's
// metadata labels).
func labelsMatch(selector, labels map[string]string) bool {
	for k, v := range selector {
		if labels[k] != v {
			return false
		}
	}
	return true
}

// dedupeRelationships collapses duplicate edges; two sub-extractor
// passes (e.g. a Helm-rendered Service alongside the same Service
// declared on disk) can otherwise produce the same selects/routes_to/
// scales edge twice.
func dedupeRelationships(rels []platform.Relationship) []platform.Relationship {
	seen := make(map[platform.Relationship]bool, len(rels))
	out := make([]platform.Relationship, 0, len(rels))
	for _, r := range rels {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
