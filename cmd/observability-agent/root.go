package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
	"k8s.io/klog/v2/textlogger"

	"github.com/scoutflo/platform-observability-agent/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "observability-agent",
	Short: "Analyzes a Kubernetes platform and produces or validates an observability plan",
	Long: `
observability-agent turns a repo's Kubernetes manifests and IaC declarations,
plus optional live AWS/cluster state, into a Prometheus/Grafana observability
plan via an LLM agent with structured tools.

  # scan a repo and print the extracted platform, no LLM call
  observability-agent scan ./infra

  # scan + agent + render an observability plan
  observability-agent analyze ./infra

  # validate a live cluster's observability posture
  observability-agent validate --kubeconfig ~/.kube/config
`,
	Version: version.Version,
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose (V(1)) logging")
	rootCmd.PersistentFlags().Int("max-turns", 0, "Override the agent's turn budget for this run (0 uses the mode default)")
	rootCmd.PersistentFlags().String("anthropic-api-key", "", "Anthropic API key (defaults to $ANTHROPIC_API_KEY)")
	rootCmd.PersistentFlags().String("anthropic-model", "", "Anthropic model name (defaults to claude-sonnet-4-5)")
	rootCmd.PersistentFlags().String("history-db", "", "Path to the sqlite history database")
	rootCmd.PersistentFlags().StringSlice("aws-regions", nil, "AWS regions to discover cloud-live resources in; omit to skip cloud discovery")
	_ = viper.BindPFlags(rootCmd.PersistentFlags())
	viper.AutomaticEnv()

	cobra.OnInitialize(initLogging)
	rootCmd.AddCommand(analyzeCmd, scanCmd, validateCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogging() {
	logLevel := 0
	if viper.GetBool("verbose") {
		logLevel = 1
	}
	config := textlogger.NewConfig(
		textlogger.Output(os.Stderr),
		textlogger.Verbosity(logLevel),
	)
	klog.SetLoggerWithOptions(textlogger.NewLogger(config))

	flagSet := flag.NewFlagSet("observability-agent", flag.ContinueOnError)
	klog.InitFlags(flagSet)
	if err := flagSet.Parse([]string{"--v", strconv.Itoa(logLevel)}); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing log level: %v\n", err)
	}
}

// exitError prints err and exits 1, per spec.md §6's "1 on API-key or I/O
// errors" contract.
func exitError(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
