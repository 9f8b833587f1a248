package config

import "testing"

func TestBuildTopology_PortsDisjoint(t *testing.T) {
	cfg := validConfig()
	cfg.Workers.InstanceCount = 3
	topo := BuildTopology(cfg)

	if len(topo.Workers) != 3 {
		t.Fatalf("expected 3 worker instances, got %d", len(topo.Workers))
	}

	seen := map[int]bool{}
	for _, w := range topo.Workers {
		for _, p := range Protocols {
			port := w.Port(p)
			if seen[port] {
				t.Errorf("duplicate worker port %d", port)
			}
			seen[port] = true
		}
	}
	// Worker ports: N instances x 2 protocols.
	if len(seen) != 6 {
		t.Errorf("expected 6 distinct worker ports, got %d", len(seen))
	}
	for p, port := range topo.FrontendPorts {
		if seen[port] {
			t.Errorf("frontend %s port %d collides with a worker port", p, port)
		}
	}
}

func TestWorkerInstance_Identity(t *testing.T) {
	cfg := validConfig()
	topo := BuildTopology(cfg)

	for i, w := range topo.Workers {
		if w.Ordinal != i {
			t.Errorf("worker %d has ordinal %d", i, w.Ordinal)
		}
		if w.HTTPPort != cfg.Workers.BaseHTTPPort+i {
			t.Errorf("worker %d http port = %d, want %d", i, w.HTTPPort, cfg.Workers.BaseHTTPPort+i)
		}
		if w.SOCKSPort != cfg.Workers.BaseSOCKSPort+i {
			t.Errorf("worker %d socks port = %d, want %d", i, w.SOCKSPort, cfg.Workers.BaseSOCKSPort+i)
		}
	}
	if topo.Workers[1].Name() != "worker_1" {
		t.Errorf("unexpected backend name %q", topo.Workers[1].Name())
	}
}
