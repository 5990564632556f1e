package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// DefaultPath returns the config file location under the user's home
// directory, honoring the UNISON_CONFIG override.
func DefaultPath() (string, error) {
	if path := os.Getenv("UNISON_CONFIG"); path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".unison", "config.yaml"), nil
}

// Load reads and parses configuration from a file. A missing file yields
// defaults rather than an error so first runs work before `unison config`
// has ever been touched.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	cfg := Defaults()

	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			applyPathDefaults(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", absPath, err)
	}

	expanded := expandEnvVars(data)
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", absPath, err)
	}

	applyPathDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// expandEnvVars substitutes ${VAR} references with environment values.
// Unset variables expand to the empty string.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

func applyPathDefaults(cfg *Config) {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	base := filepath.Join(home, ".unison")
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = filepath.Join(base, "unison.db")
	}
	if cfg.CachePath == "" {
		cfg.CachePath = filepath.Join(base, "job_cache.json")
	}
}

func validate(cfg *Config) error {
	switch cfg.DataProvider {
	case "", "databricks", "aws_redshift":
	default:
		return fmt.Errorf("unknown data_provider %q", cfg.DataProvider)
	}
	switch cfg.ComputeProvider {
	case "", "databricks", "aws_emr":
	default:
		return fmt.Errorf("unknown compute_provider %q", cfg.ComputeProvider)
	}
	switch cfg.LogFormat {
	case "", "json", "text":
	default:
		return fmt.Errorf("log_format must be json or text, got %q", cfg.LogFormat)
	}
	return nil
}
