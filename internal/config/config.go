// Package config loads and validates noesis configuration from
// .noesis/config.yaml, with environment overrides for secrets and paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all noesis configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Phase execution engine
	Engine EngineConfig `yaml:"engine"`

	// Agent reasoning source
	Reasoning ReasoningConfig `yaml:"reasoning"`

	// Storage paths
	Storage StorageConfig `yaml:"storage"`

	// Simulated verification ledger
	Ledger LedgerConfig `yaml:"ledger"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig configures the phase execution engine.
type EngineConfig struct {
	// FailureRate is the per-phase failure probability outside sandbox mode.
	FailureRate float64 `yaml:"failure_rate"`

	// Pacing is the delay between agent turns outside sandbox mode.
	Pacing string `yaml:"pacing"`

	// PerfMin/PerfMax bound the per-phase agent performance samples.
	PerfMin float64 `yaml:"perf_min"`
	PerfMax float64 `yaml:"perf_max"`

	// DefaultTimeout is the whole-run deadline when the caller passes none.
	DefaultTimeout string `yaml:"default_timeout"`
}

// ReasoningConfig configures the reasoning source.
type ReasoningConfig struct {
	Provider string `yaml:"provider"` // genai, scripted
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

// StorageConfig configures persistence locations.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	ReportsDir   string `yaml:"reports_dir"`
}

// LedgerConfig configures the simulated verification ledger.
type LedgerConfig struct {
	Network string `yaml:"network"`
}

// LoggingConfig configures debug logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "noesis",
		Version: "1.0.0",
		Engine: EngineConfig{
			FailureRate:    0.02,
			Pacing:         "200ms",
			PerfMin:        0.85,
			PerfMax:        1.0,
			DefaultTimeout: "5m",
		},
		Reasoning: ReasoningConfig{
			Provider: "scripted",
			Model:    "gemini-2.0-flash",
		},
		Storage: StorageConfig{
			DatabasePath: filepath.Join(".noesis", "noesis.db"),
			ReportsDir:   filepath.Join(".noesis", "reports"),
		},
		Ledger: LedgerConfig{
			Network: "noesis-local",
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load loads configuration from a YAML file, returning defaults if the file
// does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Reasoning.APIKey = key
		if c.Reasoning.Provider == "" || c.Reasoning.Provider == "scripted" {
			c.Reasoning.Provider = "genai"
		}
	}
	if path := os.Getenv("NOESIS_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
	if dir := os.Getenv("NOESIS_REPORTS"); dir != "" {
		c.Storage.ReportsDir = dir
	}
}

// GetPacing returns the agent pacing delay.
func (c *Config) GetPacing() time.Duration {
	d, err := time.ParseDuration(c.Engine.Pacing)
	if err != nil {
		return 200 * time.Millisecond
	}
	return d
}

// GetDefaultTimeout returns the default whole-run deadline.
func (c *Config) GetDefaultTimeout() time.Duration {
	d, err := time.ParseDuration(c.Engine.DefaultTimeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.Engine.FailureRate < 0 || c.Engine.FailureRate > 1 {
		return fmt.Errorf("engine.failure_rate must be in [0,1], got %f", c.Engine.FailureRate)
	}
	if c.Engine.PerfMin < 0 || c.Engine.PerfMax > 1 || c.Engine.PerfMin > c.Engine.PerfMax {
		return fmt.Errorf("engine performance range [%f,%f] must satisfy 0 <= min <= max <= 1",
			c.Engine.PerfMin, c.Engine.PerfMax)
	}
	if c.Engine.Pacing != "" {
		if _, err := time.ParseDuration(c.Engine.Pacing); err != nil {
			return fmt.Errorf("invalid engine.pacing: %w", err)
		}
	}
	if c.Engine.DefaultTimeout != "" {
		if _, err := time.ParseDuration(c.Engine.DefaultTimeout); err != nil {
			return fmt.Errorf("invalid engine.default_timeout: %w", err)
		}
	}
	switch c.Reasoning.Provider {
	case "", "scripted", "genai":
	default:
		return fmt.Errorf("unknown reasoning.provider %q", c.Reasoning.Provider)
	}
	if c.Reasoning.Provider == "genai" && c.Reasoning.APIKey == "" {
		return fmt.Errorf("reasoning.provider genai requires an API key (set GEMINI_API_KEY)")
	}
	return nil
}
