// Package config handles plugin preferences: keyword bindings, the default
// list filter and paths to the external tools.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config.sample.yaml
var sampleConfig string

// GetSampleConfig returns the embedded sample configuration content.
func GetSampleConfig() string {
	return sampleConfig
}

// Keywords maps launcher keywords to plugin actions. These mirror the
// keyword preferences a launcher exposes per extension.
type Keywords struct {
	Add      string `yaml:"add"`
	List     string `yaml:"list"`
	Toggle   string `yaml:"toggle"`
	Done     string `yaml:"done"`
	Annotate string `yaml:"annotate"`
	Delete   string `yaml:"delete"`
	Open     string `yaml:"open"`
}

// HistoryConfig holds selection-history settings.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// CacheConfig holds export-cache settings for serve mode.
type CacheConfig struct {
	TTL string `yaml:"ttl"` // e.g. "5s", "1m"
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Config represents the plugin configuration.
type Config struct {
	Keywords      Keywords      `yaml:"keywords"`
	DefaultFilter string        `yaml:"default_filter"`
	MaxResults    int           `yaml:"max_results"`
	Icon          string        `yaml:"icon"`
	TaskBin       string        `yaml:"task_bin"`
	TaskopenBin   string        `yaml:"taskopen_bin"`
	DataDir       string        `yaml:"data_dir"` // taskwarrior data dir, watched in serve mode
	History       HistoryConfig `yaml:"history"`
	Cache         CacheConfig   `yaml:"cache"`
	Logging       LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Keywords: Keywords{
			Add:      "t",
			List:     "tl",
			Toggle:   "ts",
			Done:     "td",
			Annotate: "ta",
			Delete:   "tx",
			Open:     "to",
		},
		DefaultFilter: "+READY",
		MaxResults:    15,
		Icon:          "images/icon.png",
		TaskBin:       "task",
		TaskopenBin:   "taskopen",
		DataDir:       "~/.task",
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(GetDataDir(), "history.db"),
		},
		Cache: CacheConfig{
			TTL: "5s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the specified path, or the default XDG path
// if empty. A missing config file is created with defaults.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = filepath.Join(GetConfigDir(), "config.yaml")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		cfg.applyDefaults()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}
	cfg.applyDefaults()

	return cfg, nil
}

// applyDefaults fills unset fields so a partial config file keeps working.
func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.Keywords.Add == "" {
		c.Keywords.Add = def.Keywords.Add
	}
	if c.Keywords.List == "" {
		c.Keywords.List = def.Keywords.List
	}
	if c.Keywords.Toggle == "" {
		c.Keywords.Toggle = def.Keywords.Toggle
	}
	if c.Keywords.Done == "" {
		c.Keywords.Done = def.Keywords.Done
	}
	if c.Keywords.Annotate == "" {
		c.Keywords.Annotate = def.Keywords.Annotate
	}
	if c.Keywords.Delete == "" {
		c.Keywords.Delete = def.Keywords.Delete
	}
	if c.Keywords.Open == "" {
		c.Keywords.Open = def.Keywords.Open
	}
	if c.DefaultFilter == "" {
		c.DefaultFilter = def.DefaultFilter
	}
	if c.MaxResults == 0 {
		c.MaxResults = def.MaxResults
	}
	if c.Icon == "" {
		c.Icon = def.Icon
	}
	if c.TaskBin == "" {
		c.TaskBin = def.TaskBin
	}
	if c.TaskopenBin == "" {
		c.TaskopenBin = def.TaskopenBin
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.History.Path == "" {
		c.History.Path = def.History.Path
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = def.Cache.TTL
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}

	c.DataDir = ExpandPath(c.DataDir)
	c.History.Path = ExpandPath(c.History.Path)
}

// save writes the configuration to the specified path.
func (c *Config) save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The embedded sample documents every option and matches the defaults.
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CacheTTL parses the cache TTL, falling back to the default on bad input.
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxResults < 1 {
		return fmt.Errorf("max_results must be positive, got %d", c.MaxResults)
	}

	if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
		return fmt.Errorf("invalid cache.ttl %q: %w", c.Cache.TTL, err)
	}

	seen := map[string]string{}
	for action, kw := range map[string]string{
		"add":      c.Keywords.Add,
		"list":     c.Keywords.List,
		"toggle":   c.Keywords.Toggle,
		"done":     c.Keywords.Done,
		"annotate": c.Keywords.Annotate,
		"delete":   c.Keywords.Delete,
		"open":     c.Keywords.Open,
	} {
		if kw == "" {
			return fmt.Errorf("keyword for action %q is empty", action)
		}
		if strings.ContainsAny(kw, " \t") {
			return fmt.Errorf("keyword %q for action %q contains whitespace", kw, action)
		}
		if prev, ok := seen[kw]; ok {
			return fmt.Errorf("keyword %q bound to both %q and %q", kw, prev, action)
		}
		seen[kw] = action
	}

	return nil
}

// getXDGDir returns a directory path following the XDG spec. envVar is the
// XDG environment variable; fallbackPath is the relative path from home.
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, "twlaunch")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, "twlaunch")
	}
	return filepath.Join(home, fallbackPath, "twlaunch")
}

// GetConfigDir returns the configuration directory following the XDG spec.
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following the XDG spec.
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// ExpandPath expands ~ and environment variables in a path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
