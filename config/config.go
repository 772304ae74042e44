// Package config loads talkscan settings from an optional YAML file with
// environment-variable overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Backend names for inference engine selection.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// DefaultThreshold is the speaking-confidence cutoff used when neither config
// nor flags override it.
const DefaultThreshold = 0.5

// Remote configures the cloud GPU inference service.
type Remote struct {
	URL            string `yaml:"url" env:"TALKSCAN_REMOTE_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"TALKSCAN_REMOTE_TIMEOUT"`
}

// Local configures the local TalkNet worker process.
type Local struct {
	Python string `yaml:"python" env:"TALKSCAN_PYTHON"`
	Worker string `yaml:"worker" env:"TALKSCAN_WORKER"`
}

// Config is the full application configuration.
type Config struct {
	Backend   string  `yaml:"backend" env:"TALKSCAN_BACKEND"`
	Threshold float64 `yaml:"threshold" env:"TALKSCAN_THRESHOLD"`
	BatchSize int     `yaml:"batch_size" env:"TALKSCAN_BATCH_SIZE"`
	LogLevel  string  `yaml:"log_level" env:"TALKSCAN_LOG_LEVEL"`
	Remote    Remote  `yaml:"remote"`
	Local     Local   `yaml:"local"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend:   BackendLocal,
		Threshold: DefaultThreshold,
		BatchSize: 16,
		LogLevel:  "info",
		Remote:    Remote{TimeoutSeconds: 300},
		Local:     Local{Python: "python3", Worker: "talknet/worker.py"},
	}
}

// candidatePaths are probed in order when no explicit config path is given.
func candidatePaths() []string {
	paths := []string{"talkscan.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "talkscan", "config.yaml"))
	}
	return paths
}

// Load builds the configuration: defaults, then the YAML file (the explicit
// path if given, otherwise the first candidate that exists), then environment
// overrides. A missing file is fine with no explicit path; an explicit path
// that cannot be read is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := readYAML(path, cfg); err != nil {
			return nil, err
		}
	} else {
		for _, p := range candidatePaths() {
			if _, err := os.Stat(p); err != nil {
				continue
			}
			if err := readYAML(p, cfg); err != nil {
				return nil, err
			}
			break
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readYAML(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects configurations the scan command cannot act on.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal, BackendRemote:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendLocal, BackendRemote, c.Backend)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be within [0, 1], got %g", c.Threshold)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be >= 1, got %d", c.BatchSize)
	}
	if c.Backend == BackendRemote && c.Remote.URL == "" {
		return fmt.Errorf("remote backend selected but remote.url is empty")
	}
	return nil
}
