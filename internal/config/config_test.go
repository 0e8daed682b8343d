package config

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.BaseURL == "" {
		t.Error("default base URL empty")
	}
	if got := cfg.Poll.RunInterval(); got != 2*time.Second {
		t.Errorf("run interval = %v, want 2s", got)
	}
	if got := cfg.Poll.ComparisonInterval(); got != 3*time.Second {
		t.Errorf("comparison interval = %v, want 3s", got)
	}
	if len(cfg.NewsFeeds) == 0 {
		t.Error("no default news feeds")
	}
}

func TestApplyDefaultsFillsDroppedFields(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Poll.RunIntervalMs != 2000 {
		t.Errorf("run interval not defaulted: %d", cfg.Poll.RunIntervalMs)
	}
	if cfg.UI.TableRows != 20 {
		t.Errorf("table rows not defaulted: %d", cfg.UI.TableRows)
	}
	if cfg.UI.Theme != "dark" {
		t.Errorf("theme not defaulted: %q", cfg.UI.Theme)
	}
}

func TestAutoPopulateFromEnv(t *testing.T) {
	t.Setenv("ANALYST_API_URL", "https://analysis.example.com")
	t.Setenv("ANALYST_API_KEY", "secret")

	cfg := DefaultConfig()
	cfg.AutoPopulateFromEnv()

	if cfg.API.BaseURL != "https://analysis.example.com" {
		t.Errorf("base URL = %q", cfg.API.BaseURL)
	}
	if cfg.API.APIKey != "secret" {
		t.Errorf("api key = %q", cfg.API.APIKey)
	}
}
