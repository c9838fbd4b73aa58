// Package kclient wraps k8s.io/client-go's typed clientset, dynamic
// client, and discovery client behind the small surface the live tool
// set needs (tools.ClusterClient). Apply is the one operation that
// shells out to kubectl; every other operation goes through client-go.
package kclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	apiextensionsclientset "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	metricsclientset "k8s.io/metrics/pkg/client/clientset/versioned"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"
	"sigs.k8s.io/yaml"
)

// kubectlOutputCap bounds how much of a kubectl subprocess's combined
// output this package retains, so a runaway describe/logs call can
// never blow up the agent's context window.
const kubectlOutputCap = 512 * 1024

// resourceMap maps the lower-case kind names the tool layer accepts to
// their GroupVersionResource, covering the workload-shaped and
// networking kinds the Platform model and the tool contracts name.
var resourceMap = map[string]schema.GroupVersionResource{
	"pod":                     {Group: "", Version: "v1", Resource: "pods"},
	"service":                 {Group: "", Version: "v1", Resource: "services"},
	"configmap":               {Group: "", Version: "v1", Resource: "configmaps"},
	"secret":                  {Group: "", Version: "v1", Resource: "secrets"},
	"namespace":               {Group: "", Version: "v1", Resource: "namespaces"},
	"event":                   {Group: "", Version: "v1", Resource: "events"},
	"deployment":              {Group: "apps", Version: "v1", Resource: "deployments"},
	"statefulset":             {Group: "apps", Version: "v1", Resource: "statefulsets"},
	"daemonset":                {Group: "apps", Version: "v1", Resource: "daemonsets"},
	"job":                     {Group: "batch", Version: "v1", Resource: "jobs"},
	"cronjob":                 {Group: "batch", Version: "v1", Resource: "cronjobs"},
	"ingress":                 {Group: "networking.k8s.io", Version: "v1", Resource: "ingresses"},
	"horizontalpodautoscaler": {Group: "autoscaling", Version: "v2", Resource: "horizontalpodautoscalers"},
}

// GroupVersionResourceFor resolves a lower-case kind name to its GVR.
func GroupVersionResourceFor(kind string) (schema.GroupVersionResource, error) {
	gvr, ok := resourceMap[strings.ToLower(kind)]
	if !ok {
		return schema.GroupVersionResource{}, fmt.Errorf("kclient: unsupported resource kind %q", kind)
	}
	return gvr, nil
}

// Client is the concrete implementation of tools.ClusterClient over a
// real cluster connection.
type Client struct {
	cfg                  *rest.Config
	clientSet            kubernetes.Interface
	dynamicClient        dynamic.Interface
	discoveryClient      discovery.DiscoveryInterface
	metricsClient        metricsclientset.Interface
	apiextensionsClient  apiextensionsclientset.Interface
	contextName          string
	allowWrites          bool
	kubectlPath          string
}

// Options configures New.
type Options struct {
	// Kubeconfig path; empty uses the default loading rules (KUBECONFIG
	// env var, then $HOME/.kube/config), falling back to in-cluster
	// config when neither resolves.
	Kubeconfig string
	// AllowWrites gates apply_kubernetes_manifest. Default (zero value)
	// is false: writes are denied unless explicitly enabled.
	AllowWrites bool
}

// New builds a Client, preferring in-cluster config and falling back to
// the kubeconfig loading rules, mirroring how most client-go consumers
// bootstrap against either environment without the caller needing to
// know which one it's running in.
func New(opts Options) (*Client, error) {
	cfg, contextName, err := resolveConfig(opts.Kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("kclient: resolving kubeconfig: %w", err)
	}

	clientSet, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("kclient: building clientset: %w", err)
	}
	dynamicClient, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("kclient: building dynamic client: %w", err)
	}
	discoveryClient, err := discovery.NewDiscoveryClientForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("kclient: building discovery client: %w", err)
	}
	metricsClient, err := metricsclientset.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("kclient: building metrics client: %w", err)
	}
	apiextensionsClient, err := apiextensionsclientset.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("kclient: building apiextensions client: %w", err)
	}

	kubectlPath, _ := exec.LookPath("kubectl")

	return &Client{
		cfg:                 cfg,
		clientSet:           clientSet,
		dynamicClient:       dynamicClient,
		discoveryClient:     discoveryClient,
		metricsClient:       metricsClient,
		apiextensionsClient: apiextensionsClient,
		contextName:         contextName,
		allowWrites:         opts.AllowWrites,
		kubectlPath:         kubectlPath,
	}, nil
}

func resolveConfig(kubeconfigPath string) (*rest.Config, string, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, "in-cluster", nil
	}

	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfigPath != "" {
		loadingRules.ExplicitPath = kubeconfigPath
	}
	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{})

	raw, err := clientConfig.RawConfig()
	if err != nil {
		return nil, "", err
	}
	cfg, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, "", err
	}
	return cfg, raw.CurrentContext, nil
}

// CurrentContext reports the kubeconfig context (or "in-cluster") this
// client was built from.
func (c *Client) CurrentContext() string { return c.contextName }

// AllowWrites reports whether mutating operations are permitted.
func (c *Client) AllowWrites() bool { return c.allowWrites }

// CheckConnectivity verifies the API server is reachable by hitting the
// discovery endpoint, the cheapest authenticated round trip available.
func (c *Client) CheckConnectivity(ctx context.Context) error {
	_, err := c.discoveryClient.ServerVersion()
	if err != nil {
		return fmt.Errorf("kclient: API server unreachable: %w", err)
	}
	return nil
}

// ClusterInfo reports the server version and the count of discovered
// API groups, a cheap summary of what the cluster exposes.
func (c *Client) ClusterInfo(ctx context.Context) (string, error) {
	version, err := c.discoveryClient.ServerVersion()
	if err != nil {
		return "", fmt.Errorf("kclient: fetching server version: %w", err)
	}
	groups, err := c.discoveryClient.ServerGroups()
	if err != nil {
		return "", fmt.Errorf("kclient: fetching API groups: %w", err)
	}
	return fmt.Sprintf("context=%s version=%s apiGroups=%d", c.contextName, version.String(), len(groups.Groups)), nil
}

// FindServiceBySelector looks for a Service in namespace whose own
// labels carry every given key/value, returning the first match's
// in-cluster DNS URL. Used by find_monitoring_stack to locate Prometheus/Grafana
// without the caller needing to know the exact Service name.
func (c *Client) FindServiceBySelector(ctx context.Context, namespace string, labels map[string]string) (string, bool, error) {
	svcs, err := c.clientSet.CoreV1().Services(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelectorString(labels),
	})
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return "", false, nil
		}
		return "", false, fmt.Errorf("kclient: listing services in %q: %w", namespace, err)
	}
	if len(svcs.Items) == 0 {
		return "", false, nil
	}
	svc := svcs.Items[0]
	port := inferHTTPPort(svc)
	return fmt.Sprintf("http://%s.%s.svc.cluster.local:%d", svc.Name, svc.Namespace, port), true, nil
}

func labelSelectorString(labels map[string]string) string {
	var parts []string
	for k, v := range labels {
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	return strings.Join(parts, ",")
}

func inferHTTPPort(svc corev1.Service) int32 {
	for _, p := range svc.Spec.Ports {
		if p.Name == "http" || p.Name == "web" {
			return p.Port
		}
	}
	if len(svc.Spec.Ports) > 0 {
		return svc.Spec.Ports[0].Port
	}
	return 80
}

// ListResources lists every resource of kind in namespace (all
// namespaces if empty) as YAML, via the dynamic client.
func (c *Client) ListResources(ctx context.Context, kind, namespace string) (string, error) {
	if strings.ToLower(kind) == "customresourcedefinition" {
		return c.ListCustomResourceDefinitions(ctx)
	}
	gvr, err := GroupVersionResourceFor(kind)
	if err != nil {
		return "", err
	}
	var list *unstructured.UnstructuredList
	if namespace == "" {
		list, err = c.dynamicClient.Resource(gvr).List(ctx, metav1.ListOptions{})
	} else {
		list, err = c.dynamicClient.Resource(gvr).Namespace(namespace).List(ctx, metav1.ListOptions{})
	}
	if err != nil {
		return "", fmt.Errorf("kclient: listing %s: %w", kind, err)
	}
	for i := range list.Items {
		list.Items[i].SetManagedFields(nil)
	}
	return marshalYAML(list)
}

// DescribeResource fetches one resource as YAML via the dynamic client.
func (c *Client) DescribeResource(ctx context.Context, kind, namespace, name string) (string, error) {
	gvr, err := GroupVersionResourceFor(kind)
	if err != nil {
		return "", err
	}
	obj, err := c.dynamicClient.Resource(gvr).Namespace(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("kclient: getting %s/%s/%s: %w", namespace, kind, name, err)
	}
	obj.SetManagedFields(nil)
	return marshalYAML(obj)
}

// PodLogs fetches a pod's (container's) trailing log lines via the
// typed clientset.
func (c *Client) PodLogs(ctx context.Context, namespace, pod, container string, tailLines int64) (string, error) {
	opts := &corev1.PodLogOptions{TailLines: &tailLines}
	if container != "" {
		opts.Container = container
	}
	stream, err := c.clientSet.CoreV1().Pods(namespace).GetLogs(pod, opts).Stream(ctx)
	if err != nil {
		return "", fmt.Errorf("kclient: fetching logs for %s/%s: %w", namespace, pod, err)
	}
	defer stream.Close()

	body, err := io.ReadAll(io.LimitReader(stream, kubectlOutputCap))
	if err != nil {
		return "", fmt.Errorf("kclient: reading log stream: %w", err)
	}
	return string(body), nil
}

// Events lists events in namespace (all namespaces if empty) via the
// typed clientset, in the order the API server returns them; the list
// is not sorted by time.
func (c *Client) Events(ctx context.Context, namespace string) (string, error) {
	var (
		list *corev1.EventList
		err  error
	)
	if namespace == "" {
		list, err = c.clientSet.CoreV1().Events("").List(ctx, metav1.ListOptions{})
	} else {
		list, err = c.clientSet.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{})
	}
	if err != nil {
		return "", fmt.Errorf("kclient: listing events: %w", err)
	}
	if len(list.Items) == 0 {
		return "no events found", nil
	}
	var b strings.Builder
	for _, ev := range list.Items {
		fmt.Fprintf(&b, "[%s] %s/%s: %s (%s)\n", ev.Type, ev.InvolvedObject.Kind, ev.InvolvedObject.Name, ev.Message, ev.Reason)
	}
	return b.String(), nil
}

// ResourceUsage reports live pod CPU/memory usage from the metrics API
// (requires metrics-server), the same data the teacher's kubectl-top
// style node/pod inspection surfaced, served here through the
// get_resource_usage live tool.
func (c *Client) ResourceUsage(ctx context.Context, namespace string) (string, error) {
	var (
		list *metricsv1beta1.PodMetricsList
		err  error
	)
	if namespace == "" {
		list, err = c.metricsClient.MetricsV1beta1().PodMetricses("").List(ctx, metav1.ListOptions{})
	} else {
		list, err = c.metricsClient.MetricsV1beta1().PodMetricses(namespace).List(ctx, metav1.ListOptions{})
	}
	if err != nil {
		return "", fmt.Errorf("kclient: fetching pod metrics (is metrics-server installed?): %w", err)
	}
	if len(list.Items) == 0 {
		return "no pod metrics found", nil
	}
	var b strings.Builder
	for _, pm := range list.Items {
		var cpu, mem int64
		for _, container := range pm.Containers {
			cpu += container.Usage.Cpu().MilliValue()
			mem += container.Usage.Memory().Value() / (1024 * 1024)
		}
		fmt.Fprintf(&b, "%s/%s: cpu=%dm memory=%dMi\n", pm.Namespace, pm.Name, cpu, mem)
	}
	return b.String(), nil
}

// ListCustomResourceDefinitions lists installed CRDs via the typed
// apiextensions clientset, used by get_cluster_resources for
// kind=customresourcedefinition since CRDs aren't a Platform-modeled
// kind and so have no dynamic-client GVR entry in resourceMap.
func (c *Client) ListCustomResourceDefinitions(ctx context.Context) (string, error) {
	list, err := c.apiextensionsClient.ApiextensionsV1().CustomResourceDefinitions().List(ctx, metav1.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("kclient: listing CustomResourceDefinitions: %w", err)
	}
	if len(list.Items) == 0 {
		return "no CustomResourceDefinitions found", nil
	}
	var b strings.Builder
	for _, crd := range list.Items {
		fmt.Fprintf(&b, "%s (group=%s, kind=%s, scope=%s)\n", crd.Name, crd.Spec.Group, crd.Spec.Names.Kind, crd.Spec.Scope)
	}
	return b.String(), nil
}

// Apply shells out to kubectl apply -f - with the manifest on stdin,
// since server-side apply's field-manager and conflict semantics are
// easier to get right by delegating to kubectl than by reimplementing
// them over the dynamic client. Output is capped at 512 KiB.
func (c *Client) Apply(ctx context.Context, manifest string) (string, error) {
	if c.kubectlPath == "" {
		return "", fmt.Errorf("kclient: kubectl not found on PATH")
	}
	cmd := exec.CommandContext(ctx, c.kubectlPath, "apply", "-f", "-")
	cmd.Stdin = strings.NewReader(manifest)
	if c.contextName != "" && c.contextName != "in-cluster" {
		cmd.Args = append(cmd.Args, "--context", c.contextName)
	}
	return runKubectl(cmd)
}

func runKubectl(cmd *exec.Cmd) (string, error) {
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("kclient: %s: %w: %s", strings.Join(cmd.Args, " "), err, truncate(out.String(), kubectlOutputCap))
	}
	return truncate(out.String(), kubectlOutputCap), nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n...(truncated)"
}

func marshalYAML(v interface{}) (string, error) {
	out, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("kclient: marshaling to YAML: %w", err)
	}
	return string(out), nil
}

// Close releases no resources today (client-go clients are stateless
// HTTP wrappers) but is kept so callers can defer it without caring
// whether a future transport needs explicit teardown.
func (c *Client) Close() error { return nil }
