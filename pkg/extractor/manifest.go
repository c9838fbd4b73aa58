// Package extractor implements the multi-source extractor (component C3):
// four independent sub-passes (manifest, IaC, cloud-live) feeding a single
// aggregator that builds the platform.Platform aggregate.
package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	netv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/yaml"

	"github.com/scoutflo/platform-observability-agent/pkg/capability"
	"github.com/scoutflo/platform-observability-agent/pkg/classifier"
	"github.com/scoutflo/platform-observability-agent/pkg/platform"
)

// maxManifestFileSize is the 1 MiB per-file cap from spec.md §4.3(a).
const maxManifestFileSize = 1 << 20

// manifestExcludeDirs names directories the walk never descends into.
var manifestExcludeDirs = map[string]bool{
	"vendor":       true,
	"node_modules": true,
	".git":         true,
	"dist":         true,
	"build":        true,
	"target":       true,
	".terraform":   true,
}

// ManifestResult is the output of the manifest sub-extractor (4.3a).
type ManifestResult struct {
	Workloads  []platform.Workload
	Services   []platform.Service
	Ingresses  []platform.Ingress
	HPAs       []platform.HPA
	ConfigMaps []platform.ConfigMap
	Secrets    []platform.Secret
	Errors     []string
}

// ExtractManifests walks root for Kubernetes manifests and decodes every
// workload/Service/Ingress/HPA/ConfigMap/Secret document it finds,
// classifying every workload's containers against registry and deriving
// each workload's telemetry capability set along the way.
func ExtractManifests(root string, registry *classifier.Registry) (*ManifestResult, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("extractor: repo root %q: %w", root, err)
	}

	res := &ManifestResult{}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
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
		if !isManifestCandidate(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("stat %s: %v", path, err))
			return nil
		}
		if info.Size() > maxManifestFileSize {
			return nil
		}
		if err := extractManifestFile(path, registry, res); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("parse %s: %v", path, err))
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("extractor: walking %q: %w", root, walkErr)
	}
	return res, nil
}

func isManifestCandidate(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}

// extractManifestFile decodes every document in a YAML/JSON file and
// feeds each one through decodeManifestDoc. A YAML/JSON syntax error in
// one document ends the file at that document and is returned.
func extractManifestFile(path string, registry *classifier.Registry, res *ManifestResult) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return decodeManifestStream(raw, path, registry, res)
}

// decodeManifestStream is factored out of extractManifestFile so the
// Helm/Kustomize render passes can re-feed in-memory rendered output
// through the same manifest logic without a round trip to disk.
func decodeManifestStream(raw []byte, sourceFile string, registry *classifier.Registry, res *ManifestResult) error {
	dec := yaml.NewYAMLOrJSONDecoder(bytes.NewReader(raw), 4096)
	for {
		var doc map[string]interface{}
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			// A malformed document terminates this stream; prior
			// documents in it were already processed.
			return fmt.Errorf("%s: %w", sourceFile, err)
		}
		if doc == nil {
			continue
		}
		decodeManifestDoc(doc, sourceFile, registry, res)
	}
}

func decodeManifestDoc(doc map[string]interface{}, sourceFile string, registry *classifier.Registry, res *ManifestResult) {
	if !isK8sManifest(doc) {
		return
	}
	kind, _ := doc["kind"].(string)

	if kind == "List" {
		items, _ := doc["items"].([]interface{})
		for _, item := range items {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			decodeManifestDoc(m, sourceFile, registry, res)
		}
		return
	}

	body, err := jsonRoundTrip(doc)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("%s: re-marshaling %s: %v", sourceFile, kind, err))
		return
	}

	switch kind {
	case "Deployment":
		var obj appsv1.Deployment
		if err := unmarshalInto(body, &obj); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: decoding Deployment: %v", sourceFile, err))
			return
		}
		res.Workloads = append(res.Workloads, buildWorkload(platform.KindDeployment, obj.Name, obj.Namespace, obj.Labels,
			derefInt32(obj.Spec.Replicas, 1), matchLabels(obj.Spec.Selector), obj.Spec.Template.Spec, obj.Spec.Template.Annotations, sourceFile, registry))
	case "StatefulSet":
		var obj appsv1.StatefulSet
		if err := unmarshalInto(body, &obj); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: decoding StatefulSet: %v", sourceFile, err))
			return
		}
		res.Workloads = append(res.Workloads, buildWorkload(platform.KindStatefulSet, obj.Name, obj.Namespace, obj.Labels,
			derefInt32(obj.Spec.Replicas, 1), matchLabels(obj.Spec.Selector), obj.Spec.Template.Spec, obj.Spec.Template.Annotations, sourceFile, registry))
	case "DaemonSet":
		var obj appsv1.DaemonSet
		if err := unmarshalInto(body, &obj); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: decoding DaemonSet: %v", sourceFile, err))
			return
		}
		res.Workloads = append(res.Workloads, buildWorkload(platform.KindDaemonSet, obj.Name, obj.Namespace, obj.Labels,
			1, matchLabels(obj.Spec.Selector), obj.Spec.Template.Spec, obj.Spec.Template.Annotations, sourceFile, registry))
	case "Job":
		var obj batchv1.Job
		if err := unmarshalInto(body, &obj); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: decoding Job: %v", sourceFile, err))
			return
		}
		res.Workloads = append(res.Workloads, buildWorkload(platform.KindJob, obj.Name, obj.Namespace, obj.Labels,
			1, matchLabels(obj.Spec.Selector), obj.Spec.Template.Spec, obj.Spec.Template.Annotations, sourceFile, registry))
	case "CronJob":
		var obj batchv1.CronJob
		if err := unmarshalInto(body, &obj); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: decoding CronJob: %v", sourceFile, err))
			return
		}
		template := obj.Spec.JobTemplate.Spec.Template
		res.Workloads = append(res.Workloads, buildWorkload(platform.KindCronJob, obj.Name, obj.Namespace, obj.Labels,
			1, nil, template.Spec, template.Annotations, sourceFile, registry))
	case "Service":
		var obj corev1.Service
		if err := unmarshalInto(body, &obj); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: decoding Service: %v", sourceFile, err))
			return
		}
		res.Services = append(res.Services, buildService(obj, sourceFile))
	case "Ingress":
		var obj netv1.Ingress
		if err := unmarshalInto(body, &obj); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: decoding Ingress: %v", sourceFile, err))
			return
		}
		res.Ingresses = append(res.Ingresses, buildIngress(obj, sourceFile))
	case "HorizontalPodAutoscaler":
		var obj autoscalingv2.HorizontalPodAutoscaler
		if err := unmarshalInto(body, &obj); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: decoding HorizontalPodAutoscaler: %v", sourceFile, err))
			return
		}
		res.HPAs = append(res.HPAs, buildHPA(obj, sourceFile))
	case "ConfigMap":
		var obj corev1.ConfigMap
		if err := unmarshalInto(body, &obj); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: decoding ConfigMap: %v", sourceFile, err))
			return
		}
		res.ConfigMaps = append(res.ConfigMaps, platform.ConfigMap{
			Name: obj.Name, Namespace: obj.Namespace, Labels: obj.Labels,
			Annotations: obj.Annotations, SourceFile: sourceFile, Data: obj.Data,
		})
	case "Secret":
		var obj corev1.Secret
		if err := unmarshalInto(body, &obj); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: decoding Secret: %v", sourceFile, err))
			return
		}
		data := make(map[string]string, len(obj.Data))
		for k := range obj.Data {
			data[k] = ""
		}
		stringData := make(map[string]string, len(obj.StringData))
		for k := range obj.StringData {
			stringData[k] = ""
		}
		res.Secrets = append(res.Secrets, platform.NewSecret(obj.Name, obj.Namespace, string(obj.Type),
			obj.Labels, obj.Annotations, sourceFile, data, stringData))
	}
}

// isK8sManifest is the spec.md §4.3(a) manifest test: a mapping with
// apiVersion, kind, and metadata all present.
func isK8sManifest(doc map[string]interface{}) bool {
	if _, ok := doc["apiVersion"]; !ok {
		return false
	}
	if _, ok := doc["kind"]; !ok {
		return false
	}
	if _, ok := doc["metadata"]; !ok {
		return false
	}
	return true
}

func jsonRoundTrip(doc map[string]interface{}) ([]byte, error) {
	return json.Marshal(doc)
}

func unmarshalInto(body []byte, out interface{}) error {
	return json.Unmarshal(body, out)
}

func buildWorkload(kind platform.WorkloadKind, name, namespace string, labels map[string]string, replicas int,
	selector map[string]string, podSpec corev1.PodSpec, podAnnotations map[string]string, sourceFile string, registry *classifier.Registry) platform.Workload {

	containers := make([]platform.Container, 0, len(podSpec.Containers))
	capSpecs := make([]capability.ContainerSpec, 0, len(podSpec.Containers))
	classifications := make([]classifier.Classification, 0, len(podSpec.Containers))

	for _, c := range podSpec.Containers {
		ports := make([]platform.ContainerPort, 0, len(c.Ports))
		portNums := make([]int, 0, len(c.Ports))
		capPorts := make([]capability.PortSpec, 0, len(c.Ports))
		for _, p := range c.Ports {
			ports = append(ports, platform.ContainerPort{
				Name: p.Name, ContainerPort: int(p.ContainerPort), Protocol: string(p.Protocol),
			})
			portNums = append(portNums, int(p.ContainerPort))
			capPorts = append(capPorts, capability.PortSpec{Name: p.Name, ContainerPort: int(p.ContainerPort)})
		}
		envNames := make([]string, 0, len(c.Env))
		for _, e := range c.Env {
			envNames = append(envNames, e.Name)
		}
		classification := registry.Classify(c.Image, portNums, envNames, labels)
		classifications = append(classifications, classification)
		capSpecs = append(capSpecs, capability.ContainerSpec{Name: c.Name, Image: c.Image, Ports: capPorts})

		containers = append(containers, platform.Container{
			Name:     c.Name,
			Image:    c.Image,
			Ports:    ports,
			EnvNames: envNames,
			Resources: platform.ResourceRequirements{
				Requests: resourceListToStrings(c.Resources.Requests),
				Limits:   resourceListToStrings(c.Resources.Limits),
			},
			Probes: platform.Probes{
				Liveness:  c.LivenessProbe != nil,
				Readiness: c.ReadinessProbe != nil,
				Startup:   c.StartupProbe != nil,
			},
			Classification: classification,
		})
	}

	telemetry := capability.Infer(capSpecs, classifications, podAnnotations, registry)

	return platform.Workload{
		Kind: kind, Name: name, Namespace: namespace, Replicas: replicas,
		Containers: containers, Selector: selector, Labels: labels,
		Telemetry: telemetry, SourceFile: sourceFile,
	}
}

func resourceListToStrings(rl corev1.ResourceList) map[string]string {
	if len(rl) == 0 {
		return nil
	}
	out := make(map[string]string, len(rl))
	for k, v := range rl {
		out[string(k)] = v.String()
	}
	return out
}

func matchLabels(sel *metav1.LabelSelector) map[string]string {
	if sel == nil {
		return nil
	}
	return sel.MatchLabels
}

func derefInt32(p *int32, fallback int) int {
	if p == nil {
		return fallback
	}
	return int(*p)
}

func buildService(obj corev1.Service, sourceFile string) platform.Service {
	ports := make([]platform.ServicePort, 0, len(obj.Spec.Ports))
	for _, p := range obj.Spec.Ports {
		ports = append(ports, platform.ServicePort{
			Name: p.Name, Port: p.Port, TargetPort: p.TargetPort.String(), Protocol: string(p.Protocol),
		})
	}
	return platform.Service{
		Name: obj.Name, Namespace: obj.Namespace, Labels: obj.Labels, Annotations: obj.Annotations,
		SourceFile: sourceFile, Type: string(obj.Spec.Type), Selector: obj.Spec.Selector, Ports: ports,
	}
}

func buildIngress(obj netv1.Ingress, sourceFile string) platform.Ingress {
	var rules []platform.IngressRule
	for _, r := range obj.Spec.Rules {
		if r.HTTP == nil {
			continue
		}
		for _, p := range r.HTTP.Paths {
			rule := platform.IngressRule{Host: r.Host, Path: p.Path}
			if p.Backend.Service != nil {
				rule.BackendService = p.Backend.Service.Name
				if p.Backend.Service.Port.Name != "" {
					rule.BackendPort = p.Backend.Service.Port.Name
				} else {
					rule.BackendPort = strconv.Itoa(int(p.Backend.Service.Port.Number))
				}
			}
			rules = append(rules, rule)
		}
	}
	return platform.Ingress{
		Name: obj.Name, Namespace: obj.Namespace, Labels: obj.Labels,
		Annotations: obj.Annotations, SourceFile: sourceFile, Rules: rules,
	}
}

func buildHPA(obj autoscalingv2.HorizontalPodAutoscaler, sourceFile string) platform.HPA {
	return platform.HPA{
		Name: obj.Name, Namespace: obj.Namespace, Labels: obj.Labels, Annotations: obj.Annotations,
		SourceFile:      sourceFile,
		ScaleTargetKind: obj.Spec.ScaleTargetRef.Kind,
		ScaleTargetName: obj.Spec.ScaleTargetRef.Name,
		MinReplicas:     derefInt32(obj.Spec.MinReplicas, 1),
		MaxReplicas:     int(obj.Spec.MaxReplicas),
	}
}
