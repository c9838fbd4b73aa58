package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"

	"github.com/scoutflo/platform-observability-agent/pkg/classifier"
	"github.com/scoutflo/platform-observability-agent/pkg/config"
	"github.com/scoutflo/platform-observability-agent/pkg/extractor"
)

var scanCmd = &cobra.Command{
	Use:   "scan <repo>",
	Short: "Extract the platform from a repo's manifests/IaC and print it, without invoking the agent",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runScan(args[0])
	},
}

func runScan(repoPath string) {
	viper.Set("command", "scan")
	viper.Set("repo", repoPath)
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		exitError(fmt.Errorf("loading config: %w", err))
	}

	registry, err := classifier.NewRegistry()
	if err != nil {
		exitError(fmt.Errorf("building classifier registry: %w", err))
	}

	start := time.Now()
	p, err := extractor.Aggregate(context.Background(), cfg.RepoPath, registry, extractor.Options{
		Regions: cfg.AWSRegions,
	})
	if err != nil {
		exitError(fmt.Errorf("scanning %s: %w", cfg.RepoPath, err))
	}
	klog.V(0).Infof("scan of %s completed in %v", cfg.RepoPath, time.Since(start))

	summary := p.Summarize()
	if summary.WorkloadCount == 0 && summary.ServiceCount == 0 {
		fmt.Fprintf(os.Stderr, "warning: no resources found under %s\n", cfg.RepoPath)
	}

	out, err := json.MarshalIndent(struct {
		RepoPath   string                 `json:"repo_path"`
		Summary    interface{}            `json:"summary"`
		Workloads  interface{}            `json:"workloads"`
		Services   interface{}            `json:"services"`
		Ingresses  interface{}            `json:"ingresses"`
		HPAs       interface{}            `json:"hpas"`
		ConfigMaps interface{}            `json:"config_maps"`
		Secrets    interface{}            `json:"secrets"`
		IaC        interface{}            `json:"iac_resources"`
		CloudLive  interface{}            `json:"cloud_live"`
		Errors     []string               `json:"errors,omitempty"`
	}{
		RepoPath:   p.RepoPath,
		Summary:    summary,
		Workloads:  p.Workloads,
		Services:   p.Services,
		Ingresses:  p.Ingresses,
		HPAs:       p.HPAs,
		ConfigMaps: p.ConfigMaps,
		Secrets:    p.Secrets,
		IaC:        p.IaCResources,
		CloudLive:  p.CloudLive,
		Errors:     p.Errors,
	}, "", "  ")
	if err != nil {
		exitError(fmt.Errorf("marshaling scan result: %w", err))
	}
	fmt.Println(string(out))
}
