package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scoutflo/platform-observability-agent/pkg/agent"
	"github.com/scoutflo/platform-observability-agent/pkg/config"
	"github.com/scoutflo/platform-observability-agent/pkg/health"
	"github.com/scoutflo/platform-observability-agent/pkg/history"
	"github.com/scoutflo/platform-observability-agent/pkg/kclient"
	"github.com/scoutflo/platform-observability-agent/pkg/llm"
	"github.com/scoutflo/platform-observability-agent/pkg/monitoring"
	"github.com/scoutflo/platform-observability-agent/pkg/tools"
)

const validateSystemPrompt = `You are an SRE assistant that validates a live Kubernetes cluster's observability
posture. You have tools to inspect live cluster resources and resource usage, find and query a
cluster's Prometheus and Grafana stack, and check scrape targets/alerts/dashboards. Investigate using
the available tools, then call generate_validation_report exactly once with a cluster summary, a list
of pass/fail/warn checks, any dashboards worth importing, and remediation steps for anything failing.`

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run the agent against a live cluster to validate its observability posture",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runValidate()
	},
}

func init() {
	validateCmd.Flags().String("kubeconfig", "", "Path to kubeconfig; defaults to in-cluster config, then $KUBECONFIG")
	validateCmd.Flags().Bool("allow-writes", false, "Allow the apply_kubernetes_manifest tool to mutate the cluster")
	validateCmd.Flags().String("grafana-url", "", "Grafana base URL; stored in the config but not passed to the live tools, which use the Grafana URL find_monitoring_stack discovers")
	validateCmd.Flags().String("grafana-api-key", "", "Grafana API key")
	validateCmd.Flags().Int("health-port", 0, "Serve /healthz and /readyz on this port while the agent runs; 0 disables it")
	_ = viper.BindPFlags(validateCmd.Flags())
}

func runValidate() {
	viper.Set("command", "validate")
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		exitError(fmt.Errorf("loading config: %w", err))
	}

	cluster, err := kclient.New(kclient.Options{
		Kubeconfig:  viper.GetString("kubeconfig"),
		AllowWrites: cfg.AllowWrites,
	})
	if err != nil {
		exitError(fmt.Errorf("connecting to cluster: %w", err))
	}
	defer cluster.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectivityTimeout)
	defer cancel()
	if err := cluster.CheckConnectivity(ctx); err != nil {
		exitError(fmt.Errorf("cluster connectivity check failed: %w", err))
	}

	checker := health.NewHealthChecker()
	if port := viper.GetInt("health-port"); port > 0 {
		mux := http.NewServeMux()
		health.AttachHealthEndpoints(mux, checker)
		go http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
	}

	historyStore, err := history.Open(cfg.HistoryDBPath)
	if err != nil {
		exitError(fmt.Errorf("opening history store: %w", err))
	}
	defer historyStore.Close()

	liveTools := tools.NewLiveTools(
		cluster,
		func(url string) tools.PrometheusClient { return monitoring.NewPrometheusClient(url) },
		func(url, apiKey string) tools.GrafanaClient { return monitoring.NewGrafanaClient(url, apiKey) },
		cfg.GrafanaAPIKey,
	)
	registry := tools.NewRegistry(nil, liveTools)

	if cfg.AnthropicAPIKey == "" {
		exitError(fmt.Errorf("building LLM client: ANTHROPIC_API_KEY is not set"))
	}
	llmClient := llm.NewClient(llm.Config{
		APIKey:    cfg.AnthropicAPIKey,
		Model:     cfg.AnthropicModel,
		MaxTokens: cfg.AnthropicMaxTokens,
	})

	driver := agent.New(llmClient, registry, historyStore)
	checker.SetReady(true)

	clusterContext := cluster.CurrentContext()
	initialMessage := fmt.Sprintf("Validating cluster context %q.", clusterContext)

	runCtx := context.Background()
	out, err := driver.RunValidate(runCtx, validateSystemPrompt, initialMessage, clusterContext, cfg.MaxTurnsValidate)
	if err != nil {
		exitError(fmt.Errorf("running agent: %w", err))
	}

	encoded, err := json.MarshalIndent(out.Report, "", "  ")
	if err != nil {
		exitError(fmt.Errorf("marshaling validation report: %w", err))
	}
	fmt.Println(string(encoded))
}
