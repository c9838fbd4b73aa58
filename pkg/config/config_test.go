package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	v.Set("command", "scan")
	v.Set("repo", "./infra")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RepoPath != "./infra" {
		t.Errorf("RepoPath = %q, want ./infra", cfg.RepoPath)
	}
	if cfg.MaxTurnsAnalyze != 30 || cfg.MaxTurnsValidate != 40 {
		t.Errorf("turn budgets = %d/%d, want 30/40", cfg.MaxTurnsAnalyze, cfg.MaxTurnsValidate)
	}
	if cfg.AnthropicModel != "claude-sonnet-4-5" {
		t.Errorf("AnthropicModel = %q, want default", cfg.AnthropicModel)
	}
}

func TestLoad_MissingRepoIsErrorExceptForValidate(t *testing.T) {
	v := viper.New()
	v.Set("command", "scan")
	if _, err := Load(v); err == nil {
		t.Fatal("expected error for missing repo path on scan")
	}

	v = viper.New()
	v.Set("command", "validate")
	if _, err := Load(v); err != nil {
		t.Fatalf("validate should not require a repo path: %v", err)
	}
}

func TestLoad_MaxTurnsOverridesBothBudgets(t *testing.T) {
	v := viper.New()
	v.Set("command", "analyze")
	v.Set("repo", "./infra")
	v.Set("max-turns", 5)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxTurnsAnalyze != 5 || cfg.MaxTurnsValidate != 5 {
		t.Errorf("turn budgets = %d/%d, want 5/5", cfg.MaxTurnsAnalyze, cfg.MaxTurnsValidate)
	}
}

func TestLoad_AnthropicAPIKeyPrefersFlagOverEnvKey(t *testing.T) {
	v := viper.New()
	v.Set("command", "scan")
	v.Set("repo", "./infra")
	v.Set("ANTHROPIC_API_KEY", "env-key")
	v.Set("anthropic-api-key", "flag-key")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AnthropicAPIKey != "flag-key" {
		t.Errorf("AnthropicAPIKey = %q, want flag-key", cfg.AnthropicAPIKey)
	}
}

func TestLoad_AWSRegionsFallsBackToSingleRegion(t *testing.T) {
	v := viper.New()
	v.Set("command", "scan")
	v.Set("repo", "./infra")
	v.Set("AWS_REGION", "us-east-1")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.AWSRegions) != 1 || cfg.AWSRegions[0] != "us-east-1" {
		t.Errorf("AWSRegions = %v, want [us-east-1]", cfg.AWSRegions)
	}

	v.Set("aws-regions", []string{"eu-west-1", "ap-south-1"})
	cfg, err = Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.AWSRegions) != 2 {
		t.Errorf("AWSRegions = %v, want the explicit slice to win over AWS_REGION", cfg.AWSRegions)
	}
}
