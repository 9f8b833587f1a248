package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoad_MinimalDocument(t *testing.T) {
	path := writeConfigFile(t, "workers:\n  instance_count: 2\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Workers.InstanceCount != 2 {
		t.Errorf("instance_count = %d, want 2", cfg.Workers.InstanceCount)
	}
	if cfg.Workers.BaseHTTPPort != DefaultBaseHTTPPort {
		t.Errorf("base_http_port default not applied: %d", cfg.Workers.BaseHTTPPort)
	}
	if cfg.LoadBalancer.Frontends["http"].BindPort != DefaultHTTPFrontPort {
		t.Errorf("http frontend default not applied: %+v", cfg.LoadBalancer.Frontends)
	}
	if cfg.Monitoring.ProbeInterval != DefaultProbeInterval {
		t.Errorf("probe_interval default not applied: %v", cfg.Monitoring.ProbeInterval)
	}
	if cfg.Path != path {
		t.Errorf("Path = %q, want %q", cfg.Path, path)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Error("expected error for missing configuration file")
	}
}

func TestLoad_InvalidDocumentReturnsValidationError(t *testing.T) {
	path := writeConfigFile(t, `
workers:
  instance_count: -1
loadbalancer:
  balance:
    algorithm: magic
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if _, ok := err.(ValidationError); !ok {
		t.Errorf("expected ValidationError, got %T: %v", err, err)
	}
}

func TestLoad_WorkDirPlaceholder(t *testing.T) {
	path := writeConfigFile(t, `
general:
  work_dir: /srv/stack
loadbalancer:
  config_path: "{{ work_dir }}/lb.cfg"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LoadBalancer.ConfigPath != "/srv/stack/lb.cfg" {
		t.Errorf("placeholder not expanded: %q", cfg.LoadBalancer.ConfigPath)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfigFile(t, "workers:\n  instance_count: 2\n")

	t.Setenv("SATURN_WORKERS_INSTANCE_COUNT", "5")
	t.Setenv("SATURN_MONITORING_PROBE_INTERVAL", "7s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workers.InstanceCount != 5 {
		t.Errorf("env override not applied: instance_count = %d", cfg.Workers.InstanceCount)
	}
	if cfg.Monitoring.ProbeInterval != 7*time.Second {
		t.Errorf("env override not applied: probe_interval = %v", cfg.Monitoring.ProbeInterval)
	}
}
