package genconf

import (
	"crypto/sha256"
	"fmt"
	"os"
	"strings"
	"testing"

	"relaystack-hq/saturn/pkg/config"
)

func testTopology(t *testing.T, instances int) *config.Topology {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Workers.InstanceCount = instances
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return config.BuildTopology(cfg)
}

func TestRenderLoadBalancer_Deterministic(t *testing.T) {
	topo := testTopology(t, 3)

	first, err := RenderLoadBalancer(topo)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	second, err := RenderLoadBalancer(topo)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	if sha256.Sum256([]byte(first)) != sha256.Sum256([]byte(second)) {
		t.Error("identical topology produced different load-balancer output")
	}
}

func TestRenderWorker_Deterministic(t *testing.T) {
	topo := testTopology(t, 2)
	topo.Config().AntiDetect.HeaderManipulation.Enabled = true
	topo.Config().AntiDetect.HeaderManipulation.AddHeaders = map[string]string{
		"X-Real-IP": "off", "Via": "off", "Accept-Language": "en-US",
	}

	for i := 0; i < 2; i++ {
		first, err := RenderWorker(topo, i)
		if err != nil {
			t.Fatalf("render failed: %v", err)
		}
		second, err := RenderWorker(topo, i)
		if err != nil {
			t.Fatalf("render failed: %v", err)
		}
		if first != second {
			t.Errorf("worker %d render is not deterministic", i)
		}
	}
}

func TestRenderLoadBalancer_BackendsPerProtocol(t *testing.T) {
	topo := testTopology(t, 3)

	out, err := RenderLoadBalancer(topo)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	for _, w := range topo.Workers {
		httpServer := fmt.Sprintf("server %s_http 127.0.0.1:%d check", w.Name(), w.HTTPPort)
		socksServer := fmt.Sprintf("server %s_socks 127.0.0.1:%d check", w.Name(), w.SOCKSPort)
		if !strings.Contains(out, httpServer) {
			t.Errorf("missing http backend line for %s:\n%s", w.Name(), httpServer)
		}
		if !strings.Contains(out, socksServer) {
			t.Errorf("missing socks backend line for %s:\n%s", w.Name(), socksServer)
		}
	}

	// Exactly N servers per protocol backend.
	if n := strings.Count(out, "_http 127.0.0.1:"); n != 3 {
		t.Errorf("http backend has %d servers, want 3", n)
	}
	if n := strings.Count(out, "_socks 127.0.0.1:"); n != 3 {
		t.Errorf("socks backend has %d servers, want 3", n)
	}
}

func TestRenderLoadBalancer_NeverEmitsTLS(t *testing.T) {
	topo := testTopology(t, 2)
	topo.Config().LoadBalancer.Stats.Enabled = true
	topo.Config().LoadBalancer.Stats.Auth = "admin:secret"

	out, err := RenderLoadBalancer(topo)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	lower := strings.ToLower(out)
	for _, forbidden := range []string{"ssl crt", "crt ", "ca-file", "verify required"} {
		if strings.Contains(lower, forbidden) {
			t.Errorf("TCP passthrough config must not contain %q", forbidden)
		}
	}
	if !strings.Contains(out, "mode tcp") {
		t.Error("expected mode tcp")
	}
}

func TestRenderLoadBalancer_RateLimit(t *testing.T) {
	topo := testTopology(t, 1)
	topo.Config().AntiDetect.RateLimit.Enabled = true
	topo.Config().AntiDetect.RateLimit.RequestsPerSecond = 42

	out, err := RenderLoadBalancer(topo)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(out, "src_conn_rate gt 42") {
		t.Error("expected configured connection-rate limit in frontend")
	}

	topo.Config().AntiDetect.RateLimit.Enabled = false
	out, err = RenderLoadBalancer(topo)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Contains(out, "src_conn_rate gt 42") {
		t.Error("disabled limiter should not keep the configured rate")
	}
}

func TestRenderLoadBalancer_StatsSection(t *testing.T) {
	topo := testTopology(t, 1)
	topo.Config().LoadBalancer.Stats.Enabled = true
	topo.Config().LoadBalancer.Stats.Auth = "admin:secret"

	out, err := RenderLoadBalancer(topo)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(out, "stats auth admin:secret") {
		t.Error("expected stats auth directive")
	}
	if !strings.Contains(out, "bind 127.0.0.1:8404") {
		t.Error("expected stats bound to localhost")
	}
}

func TestRenderWorker_AuthVariants(t *testing.T) {
	topo := testTopology(t, 1)
	cfg := topo.Config()

	out, err := RenderWorker(topo, 0)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(out, "auth none") {
		t.Error("expected auth none when authentication is disabled")
	}

	cfg.Workers.Auth.Enabled = true
	cfg.Workers.Auth.Type = "strong"
	cfg.Workers.Auth.Users = []config.AuthUser{{Login: "alice", Password: "s3cret"}}
	topo = config.BuildTopology(cfg)

	out, err = RenderWorker(topo, 0)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(out, "auth strong") {
		t.Error("expected auth strong")
	}
	if !strings.Contains(out, `alice:CL:s3cret`) {
		t.Error("expected user credential line")
	}
}

func TestRenderWorker_Ports(t *testing.T) {
	topo := testTopology(t, 3)

	out, err := RenderWorker(topo, 2)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	w := topo.Workers[2]
	if !strings.Contains(out, fmt.Sprintf("proxy -p%d", w.HTTPPort)) {
		t.Errorf("expected http listener on %d", w.HTTPPort)
	}
	if !strings.Contains(out, fmt.Sprintf("socks -p%d", w.SOCKSPort)) {
		t.Errorf("expected socks listener on %d", w.SOCKSPort)
	}
	if strings.Contains(out, "daemon") {
		t.Error("supervised workers must not daemonize")
	}
}

func TestWriteAll(t *testing.T) {
	topo := testTopology(t, 2)
	cfg := topo.Config()
	cfg.General.WorkDir = t.TempDir()
	cfg.General.LogDir = t.TempDir()
	cfg.LoadBalancer.ConfigPath = ""

	files, err := WriteAll(topo, nil)
	if err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}
	if len(files.Workers) != 2 {
		t.Fatalf("expected 2 worker configs, got %d", len(files.Workers))
	}

	for _, path := range append([]string{files.LoadBalancer}, files.Workers...) {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Errorf("generated file unreadable: %v", err)
			continue
		}
		if len(data) == 0 {
			t.Errorf("generated file %s is empty", path)
		}
	}

	// A second run must not change the bytes on disk.
	before, _ := os.ReadFile(files.LoadBalancer)
	if _, err := WriteAll(topo, nil); err != nil {
		t.Fatalf("second WriteAll failed: %v", err)
	}
	after, _ := os.ReadFile(files.LoadBalancer)
	if string(before) != string(after) {
		t.Error("repeated generation changed the load-balancer file")
	}
}
