package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/earscope/pkg/inspector"
)

// Config holds all configuration for earscope
type Config struct {
	// Strategy selects how class method inventories are extracted: auto, classfile or javap
	Strategy string `yaml:"strategy" env:"EARSCOPE_STRATEGY"`

	// JavapPath overrides the javap binary looked up on PATH
	JavapPath string `yaml:"javap_path" env:"EARSCOPE_JAVAP"`

	// Scratch space for extracted archives
	ScratchDir  string `yaml:"scratch_dir" env:"EARSCOPE_SCRATCH_DIR"`
	KeepScratch bool   `yaml:"keep_scratch" env:"EARSCOPE_KEEP_SCRATCH"`

	// Concurrency bounds how many modules are inspected at once
	Concurrency int `yaml:"concurrency" env:"EARSCOPE_CONCURRENCY"`

	// IncludeLibraries also inspects the jars bundled under WEB-INF/lib
	IncludeLibraries bool `yaml:"include_libraries" env:"EARSCOPE_INCLUDE_LIBRARIES"`

	// Exclude lists gitignore-style patterns for class paths to skip
	Exclude []string `yaml:"exclude" env:"EARSCOPE_EXCLUDE"`

	// Result cache
	CacheEnabled bool   `yaml:"cache_enabled" env:"EARSCOPE_CACHE"`
	CacheDir     string `yaml:"cache_dir" env:"EARSCOPE_CACHE_DIR"`
	CacheEntries int    `yaml:"cache_entries" env:"EARSCOPE_CACHE_ENTRIES"`

	// Logging
	Verbose  bool `yaml:"verbose" env:"EARSCOPE_VERBOSE"`
	JSONLogs bool `yaml:"json_logs" env:"EARSCOPE_JSON_LOGS"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Strategy:         string(inspector.StrategyAuto),
		JavapPath:        "",
		ScratchDir:       "",
		KeepScratch:      false,
		Concurrency:      4,
		IncludeLibraries: false,
		Exclude:          nil,
		CacheEnabled:     true,
		CacheDir:         defaultCacheDir(),
		CacheEntries:     64,
		Verbose:          false,
		JSONLogs:         false,
	}
}

// configDir returns the global configuration directory (~/.earscope)
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".earscope"
	}
	return filepath.Join(home, ".earscope")
}

func defaultCacheDir() string {
	return filepath.Join(configDir(), "cache")
}

// GlobalConfigFilePath returns the global config file path (~/.earscope/config.yaml)
func GlobalConfigFilePath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.earscope/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(".earscope", "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.earscope/config.yaml)
// 3. Global config (~/.earscope/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{GlobalConfigFilePath(), ProjectConfigFilePath()} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EARSCOPE_STRATEGY"); v != "" {
		cfg.Strategy = v
	}
	if v := os.Getenv("EARSCOPE_JAVAP"); v != "" {
		cfg.JavapPath = v
	}
	if v := os.Getenv("EARSCOPE_SCRATCH_DIR"); v != "" {
		cfg.ScratchDir = v
	}
	if v := os.Getenv("EARSCOPE_KEEP_SCRATCH"); v != "" {
		cfg.KeepScratch = parseBool(v)
	}
	if v := os.Getenv("EARSCOPE_CONCURRENCY"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.Concurrency = i
		}
	}
	if v := os.Getenv("EARSCOPE_INCLUDE_LIBRARIES"); v != "" {
		cfg.IncludeLibraries = parseBool(v)
	}
	if v := os.Getenv("EARSCOPE_EXCLUDE"); v != "" {
		cfg.Exclude = splitList(v)
	}
	if v := os.Getenv("EARSCOPE_CACHE"); v != "" {
		cfg.CacheEnabled = parseBool(v)
	}
	if v := os.Getenv("EARSCOPE_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("EARSCOPE_CACHE_ENTRIES"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.CacheEntries = i
		}
	}
	if v := os.Getenv("EARSCOPE_VERBOSE"); v != "" {
		cfg.Verbose = parseBool(v)
	}
	if v := os.Getenv("EARSCOPE_JSON_LOGS"); v != "" {
		cfg.JSONLogs = parseBool(v)
	}
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	strategy, err := inspector.ParseStrategy(c.Strategy)
	if err != nil {
		return fmt.Errorf("invalid strategy: %w", err)
	}
	c.Strategy = string(strategy)

	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.CacheEntries < 0 {
		return fmt.Errorf("cache_entries must be non-negative")
	}
	for _, pattern := range c.Exclude {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("exclude patterns must not be blank")
		}
	}

	return nil
}

// splitList splits a comma-separated environment value, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// parseInt attempts to parse a string as int
func parseInt(s string) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return 0
	}
	return i
}
