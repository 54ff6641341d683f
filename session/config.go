// CLAUDE:SUMMARY Configuration structs (browser, history, reanchor) and YAML loader for the annotation service.
package session

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all annotation service configuration.
type Config struct {
	DBPath   string         `yaml:"db_path"`
	HTTPAddr string         `yaml:"http_addr"`
	Browser  BrowserConfig  `yaml:"browser"`
	History  HistoryConfig  `yaml:"history"`
	Reanchor ReanchorConfig `yaml:"reanchor"`
}

// BrowserConfig controls the live viewer connection. Disabled means
// detached mode: sessions work on caller-supplied DOM snapshots.
type BrowserConfig struct {
	Enabled    bool          `yaml:"enabled"`
	RemoteURL  string        `yaml:"remote_url"`
	Headful    bool          `yaml:"headful"`
	NavTimeout time.Duration `yaml:"nav_timeout"`
}

// HistoryConfig controls the undo stack.
type HistoryConfig struct {
	Limit int `yaml:"limit"`
}

// ReanchorConfig controls the retry ladder for placing stored
// highlights after a document (re)load.
type ReanchorConfig struct {
	Attempts int           `yaml:"attempts"`
	Backoff  time.Duration `yaml:"backoff"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "annot.db"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8787"
	}
	if c.History.Limit <= 0 {
		c.History.Limit = 100
	}
	if c.Reanchor.Attempts <= 0 {
		c.Reanchor.Attempts = 3
	}
	if c.Reanchor.Backoff <= 0 {
		c.Reanchor.Backoff = 100 * time.Millisecond
	}
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
