package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file, applies defaults, applies
// SATURN_* environment overrides and validates the result. Validation
// failures are returned as a ValidationError carrying every violation,
// together with the parsed configuration so callers can still run
// environment checks against it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandPlaceholders(&cfg)
	cfg.Path = path

	if err := Validate(&cfg); err != nil {
		return &cfg, err
	}
	return &cfg, nil
}

// expandPlaceholders substitutes "{{ work_dir }}" in path-valued fields.
func expandPlaceholders(cfg *Config) {
	if cfg.LoadBalancer.ConfigPath != "" {
		cfg.LoadBalancer.ConfigPath = strings.ReplaceAll(
			cfg.LoadBalancer.ConfigPath, "{{ work_dir }}", cfg.General.WorkDir)
	}
	if cfg.Journal.Path != "" {
		cfg.Journal.Path = strings.ReplaceAll(
			cfg.Journal.Path, "{{ work_dir }}", cfg.General.WorkDir)
	}
}

// applyEnvOverrides applies environment variable overrides.
// Variables follow the convention SATURN_SECTION_FIELD and always take
// precedence over file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SATURN_GENERAL_WORK_DIR"); v != "" {
		cfg.General.WorkDir = v
	}
	if v := os.Getenv("SATURN_GENERAL_LOG_DIR"); v != "" {
		cfg.General.LogDir = v
	}
	if v := os.Getenv("SATURN_GENERAL_PID_DIR"); v != "" {
		cfg.General.PIDDir = v
	}
	if v := os.Getenv("SATURN_LB_BINARY"); v != "" {
		cfg.LoadBalancer.Binary = v
	}
	if v := os.Getenv("SATURN_WORKERS_BINARY"); v != "" {
		cfg.Workers.Binary = v
	}
	if v := os.Getenv("SATURN_WORKERS_INSTANCE_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers.InstanceCount = n
		}
	}
	if v := os.Getenv("SATURN_MONITORING_BIND"); v != "" {
		cfg.Monitoring.Bind = v
	}
	if v := os.Getenv("SATURN_MONITORING_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Monitoring.Port = n
		}
	}
	if v := os.Getenv("SATURN_MONITORING_PROBE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Monitoring.ProbeInterval = d
		}
	}
	if v := os.Getenv("SATURN_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
