// Package config loads the persistent application configuration from
// ~/.analyst/config.json.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Config is the persistent application configuration
type Config struct {
	// Remote analysis service
	API APIConfig `json:"api"`

	// Polling cadence
	Poll PollConfig `json:"poll"`

	// UI Preferences
	UI UIConfig `json:"ui"`

	// Market headline feeds
	NewsFeeds []NewsFeed `json:"news_feeds"`
}

// APIConfig holds connection settings for the analysis service
type APIConfig struct {
	BaseURL        string  `json:"base_url"`
	APIKey         string  `json:"api_key,omitempty"`
	RequestsPerSec float64 `json:"requests_per_sec"` // 0 disables rate limiting
}

// PollConfig holds the poll intervals, in milliseconds for JSON friendliness
type PollConfig struct {
	RunIntervalMs        int `json:"run_interval_ms"`
	ComparisonIntervalMs int `json:"comparison_interval_ms"`
}

// RunInterval returns the single-run poll period.
func (p PollConfig) RunInterval() time.Duration {
	return time.Duration(p.RunIntervalMs) * time.Millisecond
}

// ComparisonInterval returns the comparison-group poll period.
func (p PollConfig) ComparisonInterval() time.Duration {
	return time.Duration(p.ComparisonIntervalMs) * time.Millisecond
}

// UIConfig holds UI preferences
type UIConfig struct {
	Theme      string `json:"theme"`
	TableRows  int    `json:"table_rows"`
	ShowClosed bool   `json:"show_closed"` // include terminal runs in the history tab
}

// NewsFeed is one headline source shown in the news tab
type NewsFeed struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8080",
			RequestsPerSec: 10,
		},
		Poll: PollConfig{
			RunIntervalMs:        2000,
			ComparisonIntervalMs: 3000,
		},
		UI: UIConfig{
			Theme:     "dark",
			TableRows: 20,
		},
		NewsFeeds: []NewsFeed{
			{Name: "MarketWatch", URL: "https://feeds.content.dowjones.io/public/rss/mw_topstories"},
			{Name: "CNBC Markets", URL: "https://www.cnbc.com/id/20910258/device/rss/rss.html"},
		},
	}
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".analyst", "config.json")
}

// DataDir returns the directory holding the config, cache, and logs
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".analyst")
}

// Load reads config from disk, or returns defaults
func Load() (*Config, error) {
	path := ConfigPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			cfg.AutoPopulateFromEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), nil
	}

	cfg.applyDefaults()
	cfg.AutoPopulateFromEnv()
	return &cfg, nil
}

// applyDefaults fills zero-valued fields a hand-edited file may have dropped.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.API.BaseURL == "" {
		c.API.BaseURL = def.API.BaseURL
	}
	if c.Poll.RunIntervalMs <= 0 {
		c.Poll.RunIntervalMs = def.Poll.RunIntervalMs
	}
	if c.Poll.ComparisonIntervalMs <= 0 {
		c.Poll.ComparisonIntervalMs = def.Poll.ComparisonIntervalMs
	}
	if c.UI.TableRows <= 0 {
		c.UI.TableRows = def.UI.TableRows
	}
	if c.UI.Theme == "" {
		c.UI.Theme = def.UI.Theme
	}
}

// Save writes config to disk
func (c *Config) Save() error {
	path := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600) // Restrictive permissions for API keys
}

// AutoPopulateFromEnv fills in connection settings from environment variables
func (c *Config) AutoPopulateFromEnv() {
	if url := os.Getenv("ANALYST_API_URL"); url != "" {
		c.API.BaseURL = url
	}
	if key := os.Getenv("ANALYST_API_KEY"); key != "" {
		c.API.APIKey = key
	}
}
