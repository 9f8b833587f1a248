package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("expected default config to pass validation, got: %v", err)
	}
}

func TestValidate_ReportsEveryViolation(t *testing.T) {
	cfg := validConfig()
	cfg.Workers.InstanceCount = 0
	cfg.LoadBalancer.Balance.Algorithm = "random"
	cfg.Monitoring.RiseThreshold = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation to fail")
	}
	verr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Errors) < 3 {
		t.Errorf("expected at least 3 violations in one pass, got %d: %v", len(verr.Errors), verr)
	}
	msg := verr.Error()
	if !strings.Contains(msg, "workers.instance_count") ||
		!strings.Contains(msg, "loadbalancer.balance.algorithm") ||
		!strings.Contains(msg, "monitoring.rise_threshold") {
		t.Errorf("error message should name every violated field:\n%s", msg)
	}
}

func TestValidate_DistinctPorts(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults have disjoint ports",
			mutate:  func(cfg *Config) {},
			wantErr: false,
		},
		{
			name: "frontend collides with worker port",
			mutate: func(cfg *Config) {
				cfg.LoadBalancer.Frontends["http"] = FrontendConfig{BindPort: cfg.Workers.BaseHTTPPort}
			},
			wantErr: true,
		},
		{
			name: "worker port ranges overlap",
			mutate: func(cfg *Config) {
				cfg.Workers.BaseSOCKSPort = cfg.Workers.BaseHTTPPort + 1
			},
			wantErr: true,
		},
		{
			name: "monitoring port collides with frontend",
			mutate: func(cfg *Config) {
				cfg.Monitoring.Enabled = true
				cfg.Monitoring.Port = cfg.LoadBalancer.Frontends["socks"].BindPort
			},
			wantErr: true,
		},
		{
			name: "disabled monitoring does not claim its port",
			mutate: func(cfg *Config) {
				cfg.Monitoring.Enabled = false
				cfg.Monitoring.Port = cfg.LoadBalancer.Frontends["socks"].BindPort
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr && err == nil {
				t.Error("expected port collision to fail validation")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestValidate_WorkerAuth(t *testing.T) {
	cfg := validConfig()
	cfg.Workers.Auth.Enabled = true
	cfg.Workers.Auth.Type = "strong"
	cfg.Workers.Auth.Users = nil

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "workers.auth.users") {
		t.Errorf("expected missing users to be reported, got: %v", err)
	}

	cfg.Workers.Auth.Users = []AuthUser{{Login: "u", Password: "p"}}
	if err := Validate(cfg); err != nil {
		t.Errorf("expected auth with users to validate, got: %v", err)
	}
}

func TestValidate_StatsMustBindLocalhost(t *testing.T) {
	cfg := validConfig()
	cfg.LoadBalancer.Stats.Enabled = true
	cfg.LoadBalancer.Stats.Auth = "admin:secret"
	cfg.LoadBalancer.Stats.Bind = "0.0.0.0:8404"

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "loadbalancer.stats.bind") {
		t.Errorf("expected non-localhost stats bind to be rejected, got: %v", err)
	}
}

func TestValidate_ProbeTimeoutBound(t *testing.T) {
	cfg := validConfig()
	cfg.Monitoring.ProbeTimeout = cfg.Monitoring.ProbeInterval

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "monitoring.probe_timeout") {
		t.Errorf("expected probe_timeout >= probe_interval to be rejected, got: %v", err)
	}
}

func TestValidateEnvironment_MissingBinaries(t *testing.T) {
	cfg := validConfig()
	cfg.Workers.Binary = "saturn-no-such-worker-binary"
	cfg.LoadBalancer.Binary = "saturn-no-such-lb-binary"
	cfg.General.WorkDir = t.TempDir()
	cfg.General.LogDir = t.TempDir()
	cfg.General.PIDDir = t.TempDir()

	err := ValidateEnvironment(cfg)
	if err == nil {
		t.Fatal("expected missing binaries to fail environment validation")
	}
	msg := err.Error()
	if !strings.Contains(msg, "loadbalancer.binary") || !strings.Contains(msg, "workers.binary") {
		t.Errorf("expected both missing binaries reported together:\n%s", msg)
	}
}

func TestValidateAll_MergesStructuralAndEnvironmentFindings(t *testing.T) {
	cfg := validConfig()
	cfg.General.WorkDir = t.TempDir()
	cfg.General.LogDir = t.TempDir()
	cfg.General.PIDDir = t.TempDir()
	cfg.Workers.Binary = "sh"
	cfg.LoadBalancer.Binary = "saturn-no-such-lb-binary"
	cfg.LoadBalancer.Balance.Algorithm = "bogus"

	err := ValidateAll(cfg)
	if err == nil {
		t.Fatal("expected merged validation to fail")
	}
	verr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	msg := verr.Error()
	if !strings.Contains(msg, "loadbalancer.balance.algorithm") {
		t.Errorf("structural violation missing from merged report:\n%s", msg)
	}
	if !strings.Contains(msg, "loadbalancer.binary") {
		t.Errorf("environment violation missing from merged report:\n%s", msg)
	}
}
