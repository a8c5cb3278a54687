// Package config handles reading and writing .skipper/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for .skipper/config.yaml.
type Config struct {
	Version  int            `yaml:"version"`
	Engine   EngineConfig   `yaml:"engine"`
	Sessions SessionsConfig `yaml:"sessions"`
	Store    StoreConfig    `yaml:"store"`
	Safety   SafetyConfig   `yaml:"safety"`
}

// EngineConfig bounds flow execution and the inference collaborator.
type EngineConfig struct {
	MaxIterations    int `yaml:"max_iterations"`    // flow cycle guard
	InferenceTimeout int `yaml:"inference_timeout"` // seconds
	InferenceRetries int `yaml:"inference_retries"` // retries after the first attempt
}

// SessionsConfig controls interactive subprocess sessions.
type SessionsConfig struct {
	IdleTimeout    int `yaml:"idle_timeout"`    // seconds without activity before sweep
	SweepInterval  int `yaml:"sweep_interval"`  // seconds between idle sweeps
	OutputCapacity int `yaml:"output_capacity"` // output ring size in bytes
	GracePeriod    int `yaml:"grace_period"`    // seconds before force kill
	ReadTimeout    int `yaml:"read_timeout"`    // default ReadOutput wait, seconds
}

// StoreConfig controls the persistent context store.
type StoreConfig struct {
	Path          string `yaml:"path"`           // db path relative to .skipper/ unless absolute
	MaxRecords    int    `yaml:"max_records"`    // compaction trigger; 0 disables
	KeepRecent    int    `yaml:"keep_recent"`    // records left uncompacted
	HistoryWindow int    `yaml:"history_window"` // records loaded into request context
}

// SafetyConfig holds the denylist consumed by the default command validator.
type SafetyConfig struct {
	DeniedPatterns []string `yaml:"denied_patterns"`
}

// configFileName is the path relative to the project root.
const configDir = ".skipper"
const configFile = "config.yaml"

// Dir returns the .skipper directory under root.
func Dir(root string) string {
	return filepath.Join(root, configDir)
}

// ReadConfig reads .skipper/config.yaml from the given project directory.
// dir is the project root (not .skipper/ itself).
// Returns an error if the file is not found or YAML is malformed.
func ReadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, configDir, configFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// WriteConfig writes cfg to .skipper/config.yaml in the given project directory.
// Creates the .skipper/ directory if it does not exist.
func WriteConfig(dir string, cfg *Config) error {
	dirPath := filepath.Join(dir, configDir)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	path := filepath.Join(dirPath, configFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Engine: EngineConfig{
			MaxIterations:    50,
			InferenceTimeout: 30,
			InferenceRetries: 1,
		},
		Sessions: SessionsConfig{
			IdleTimeout:    300,
			SweepInterval:  30,
			OutputCapacity: 64 * 1024,
			GracePeriod:    5,
			ReadTimeout:    2,
		},
		Store: StoreConfig{
			Path:          "context.db",
			MaxRecords:    500,
			KeepRecent:    100,
			HistoryWindow: 20,
		},
		Safety: SafetyConfig{
			DeniedPatterns: []string{
				"rm -rf /",
				"rm -rf /*",
				"mkfs",
				"dd if=",
				":(){",
				"shutdown",
				"reboot",
				"> /dev/sda",
			},
		},
	}
}
