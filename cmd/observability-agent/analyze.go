package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scoutflo/platform-observability-agent/pkg/agent"
	"github.com/scoutflo/platform-observability-agent/pkg/classifier"
	"github.com/scoutflo/platform-observability-agent/pkg/config"
	"github.com/scoutflo/platform-observability-agent/pkg/extractor"
	"github.com/scoutflo/platform-observability-agent/pkg/llm"
	"github.com/scoutflo/platform-observability-agent/pkg/tools"
)

const analyzeSystemPrompt = `You are an SRE assistant that builds Kubernetes observability plans.
You are given read-only tools over a statically extracted platform: workloads, services, ingresses,
HPAs, IaC resources, and cloud-live resources. Use list_resources, get_resource_detail,
get_relationships, get_platform_summary, check_health_gaps, get_workload_insights, get_iac_resources,
and get_aws_resources to investigate before concluding. When you have enough information, call
generate_observability_plan exactly once with one entry per workload that needs observability work,
including golden metrics, alert rules, and dashboard recommendations appropriate to each workload's
archetype. Conditional recommendations (those needing an exporter or annotation that isn't present
yet) must be marked conditional with a remediation note, never presented as already satisfied.`

var analyzeCmd = &cobra.Command{
	Use:   "analyze <repo>",
	Short: "Scan a repo and run the agent to produce an observability plan",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runAnalyze(args[0])
	},
}

func runAnalyze(repoPath string) {
	viper.Set("command", "analyze")
	viper.Set("repo", repoPath)
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		exitError(fmt.Errorf("loading config: %w", err))
	}

	registry, err := classifier.NewRegistry()
	if err != nil {
		exitError(fmt.Errorf("building classifier registry: %w", err))
	}

	ctx := context.Background()
	p, err := extractor.Aggregate(ctx, cfg.RepoPath, registry, extractor.Options{
		Regions: cfg.AWSRegions,
	})
	if err != nil {
		exitError(fmt.Errorf("scanning %s: %w", cfg.RepoPath, err))
	}

	summary := p.Summarize()
	if summary.WorkloadCount == 0 && summary.ServiceCount == 0 {
		fmt.Fprintf(os.Stderr, "warning: no resources found under %s\n", cfg.RepoPath)
	}

	if cfg.AnthropicAPIKey == "" {
		exitError(fmt.Errorf("building LLM client: ANTHROPIC_API_KEY is not set"))
	}
	llmClient := llm.NewClient(llm.Config{
		APIKey:    cfg.AnthropicAPIKey,
		Model:     cfg.AnthropicModel,
		MaxTokens: cfg.AnthropicMaxTokens,
	})

	registryTools := tools.NewRegistry(tools.NewAnalyzeTools(p, registry), nil)
	driver := agent.New(llmClient, registryTools, nil)

	initialMessage := fmt.Sprintf(
		"Platform extracted from %s: %d workloads, %d services, %d ingresses, %d HPAs, "+
			"%d IaC resources, %d cloud-live resources across %d namespaces, %d extraction warnings.",
		cfg.RepoPath, summary.WorkloadCount, summary.ServiceCount, summary.IngressCount, summary.HPACount,
		sumIaC(summary.IaCResourceCount), summary.CloudLiveCount, summary.NamespaceCount, summary.ErrorCount,
	)

	out, err := driver.RunAnalyze(ctx, analyzeSystemPrompt, initialMessage, cfg.RepoPath, cfg.MaxTurnsAnalyze)
	if err != nil {
		exitError(fmt.Errorf("running agent: %w", err))
	}

	encoded, err := json.MarshalIndent(out.Plan, "", "  ")
	if err != nil {
		exitError(fmt.Errorf("marshaling observability plan: %w", err))
	}
	fmt.Println(string(encoded))
}
