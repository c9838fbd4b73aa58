// Package config assembles runtime configuration from flags, environment
// variables, and defaults via viper, mirroring the teacher CLI's
// flag/viper binding pattern.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration for any of the three CLI
// commands (analyze/scan/validate).
type Config struct {
	RepoPath string
	// AllowWrites gates apply_kubernetes_manifest; default false.
	AllowWrites bool
	MaxTurnsAnalyze  int
	MaxTurnsValidate int
	Verbose          bool

	AnthropicAPIKey string
	AnthropicModel  string
	AnthropicMaxTokens int

	GrafanaURL    string
	GrafanaAPIKey string

	AWSRegion  string
	AWSRegions []string

	HistoryDBPath string

	HTTPTimeout        time.Duration
	KubectlReadTimeout time.Duration
	KubectlApplyTimeout time.Duration
	ConnectivityTimeout time.Duration
}

// Defaults match spec.md §5's suspension-point timeouts and §4.6's turn
// budgets.
func Defaults() Config {
	return Config{
		AllowWrites:         false,
		MaxTurnsAnalyze:     30,
		MaxTurnsValidate:    40,
		AnthropicModel:      "claude-sonnet-4-5",
		AnthropicMaxTokens:  4096,
		HistoryDBPath:       "observability-agent-history.db",
		HTTPTimeout:         15 * time.Second,
		KubectlReadTimeout:  30 * time.Second,
		KubectlApplyTimeout: 30 * time.Second,
		ConnectivityTimeout: 10 * time.Second,
	}
}

// Load reads process environment and an already-bound viper instance
// (cobra command flags are bound to viper by the caller) into a Config.
func Load(v *viper.Viper) (Config, error) {
	cfg := Defaults()

	cfg.RepoPath = v.GetString("repo")
	cfg.AllowWrites = v.GetBool("allow-writes")
	cfg.Verbose = v.GetBool("verbose")
	if n := v.GetInt("max-turns"); n > 0 {
		cfg.MaxTurnsAnalyze = n
		cfg.MaxTurnsValidate = n
	}

	cfg.AnthropicAPIKey = firstNonEmpty(v.GetString("anthropic-api-key"), v.GetString("ANTHROPIC_API_KEY"))
	if m := v.GetString("anthropic-model"); m != "" {
		cfg.AnthropicModel = m
	}

	cfg.GrafanaURL = firstNonEmpty(v.GetString("grafana-url"), v.GetString("GRAFANA_URL"))
	cfg.GrafanaAPIKey = firstNonEmpty(v.GetString("grafana-api-key"), v.GetString("GRAFANA_API_KEY"))

	cfg.AWSRegion = v.GetString("AWS_REGION")
	if regions := v.GetStringSlice("aws-regions"); len(regions) > 0 {
		cfg.AWSRegions = regions
	} else if cfg.AWSRegion != "" {
		cfg.AWSRegions = []string{cfg.AWSRegion}
	}

	if p := v.GetString("history-db"); p != "" {
		cfg.HistoryDBPath = p
	}

	if cfg.RepoPath == "" && v.GetString("command") != "validate" {
		return cfg, fmt.Errorf("config: repo path is required")
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
