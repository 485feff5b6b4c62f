package session

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the top-level daemon configuration.
type FileConfig struct {
	Browser   BrowserConfig    `yaml:"browser"`
	Page      PageConfig       `yaml:"page"`
	Coalesce  CoalesceConfig   `yaml:"coalesce"`
	Notifiers []NotifierConfig `yaml:"notifiers"`
	Clipboard string           `yaml:"clipboard"` // page | os
	Listen    string           `yaml:"listen"`
	EventLog  EventLogConfig   `yaml:"event_log"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Mode             string        `yaml:"mode"` // headful | headless
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
}

// PageConfig identifies the page to inspect.
type PageConfig struct {
	URL string `yaml:"url"`
}

// CoalesceConfig tunes event batching.
type CoalesceConfig struct {
	FrameInterval     time.Duration `yaml:"frame_interval"`
	ContentPeriod     time.Duration `yaml:"content_period"`
	SelectionDebounce time.Duration `yaml:"selection_debounce"`
}

// NotifierConfig defines an outbound signal backend.
type NotifierConfig struct {
	Type string `yaml:"type"` // stdout | webhook
	URL  string `yaml:"url"`  // for webhook
}

// EventLogConfig controls the lifecycle event database.
type EventLogConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: read config: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("session: parse config: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values with working defaults.
func (c *FileConfig) ApplyDefaults() {
	if c.Browser.Mode == "" {
		c.Browser.Mode = "headful"
	}
	if c.Browser.MemoryLimit == 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval == 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Coalesce.FrameInterval == 0 {
		c.Coalesce.FrameInterval = 16 * time.Millisecond
	}
	if c.Coalesce.ContentPeriod == 0 {
		c.Coalesce.ContentPeriod = 200 * time.Millisecond
	}
	if c.Coalesce.SelectionDebounce == 0 {
		c.Coalesce.SelectionDebounce = 100 * time.Millisecond
	}
	if c.Listen == "" {
		c.Listen = ":8748"
	}
	if len(c.Notifiers) == 0 {
		c.Notifiers = []NotifierConfig{{Type: "stdout"}}
	}
	if c.Clipboard == "" {
		c.Clipboard = "page"
	}
	if c.EventLog.RetentionDays == 0 {
		c.EventLog.RetentionDays = 30
	}
}
