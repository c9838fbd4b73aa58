package extractor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/kustomize/api/filesys"
	"sigs.k8s.io/kustomize/api/krusty"
	"sigs.k8s.io/yaml"

	"github.com/scoutflo/platform-observability-agent/pkg/classifier"
	"github.com/scoutflo/platform-observability-agent/pkg/platform"
)

// kustomizationDoc is the subset of kustomization.yaml fields the
// `kustomization` resource record captures, per spec.md §4.3(b).
type kustomizationDoc struct {
	Resources  []string                 `json:"resources"`
	Bases      []string                 `json:"bases"`
	Patches    []interface{}            `json:"patches"`
	Namespace  string                   `json:"namespace"`
	HelmCharts []map[string]interface{} `json:"helmCharts"`
}

// KustomizeResult is the output of the kustomize sub-extractor (4.3b).
type KustomizeResult struct {
	Kustomizations []platform.IaCResource
	Rendered       *ManifestResult
	Errors         []string
}

// ExtractKustomize walks root for kustomization.yaml/.yml files, records
// one `kustomization` resource per overlay/base, and builds the
// overlay in-process via sigs.k8s.io/kustomize/api (replacing the
// spec's "shell out to kubectl kustomize" step), re-feeding the
// rendered manifests through the manifest decode path.
func ExtractKustomize(root string, registry *classifier.Registry) *KustomizeResult {
	res := &KustomizeResult{Rendered: &ManifestResult{}}
	fSys := filesys.MakeFsOnDisk()

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("walk %s: %v", path, err))
			return nil
		}
		if d.IsDir() {
			if d.Name() != "." && (strings.HasPrefix(d.Name(), ".") || manifestExcludeDirs[d.Name()]) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != "kustomization.yaml" && d.Name() != "kustomization.yml" {
			return nil
		}
		extractOneKustomization(fSys, path, registry, res)
		return nil
	})

	return res
}

func extractOneKustomization(fSys filesys.FileSystem, kustomizationPath string, registry *classifier.Registry, res *KustomizeResult) {
	raw, err := os.ReadFile(kustomizationPath)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("read %s: %v", kustomizationPath, err))
		return
	}

	var doc kustomizationDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("parse %s: %v", kustomizationPath, err))
		return
	}

	props := map[string]string{
		"resources": strings.Join(doc.Resources, ","),
		"bases":     strings.Join(doc.Bases, ","),
		"namespace": doc.Namespace,
		"patches":   fmt.Sprintf("%d", len(doc.Patches)),
	}
	var notes string
	if len(doc.HelmCharts) > 0 {
		notes = fmt.Sprintf("inlines %d helm chart generator(s)", len(doc.HelmCharts))
	}

	res.Kustomizations = append(res.Kustomizations, platform.IaCResource{
		Source: platform.SourceKustomize, Origin: kustomizationPath,
		ResourceType: "kustomization", Name: filepath.Base(filepath.Dir(kustomizationPath)),
		Properties: props, MonitoringNotes: notes,
	})

	dir := filepath.Dir(kustomizationPath)
	opts := krusty.MakeDefaultOptions()
	resMap, err := krusty.MakeKustomizer(opts).Run(fSys, dir)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("render kustomization %s: %v", kustomizationPath, err))
		return
	}
	rendered, err := resMap.AsYaml()
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("serialize rendered kustomization %s: %v", kustomizationPath, err))
		return
	}
	if err := decodeManifestStream(rendered, kustomizationPath+"::rendered", registry, res.Rendered); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("decode rendered %s: %v", kustomizationPath, err))
	}
}
