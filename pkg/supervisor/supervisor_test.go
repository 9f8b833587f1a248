package supervisor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"relaystack-hq/saturn/pkg/config"
	"relaystack-hq/saturn/pkg/system"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	dir := t.TempDir()
	cfg.General.WorkDir = dir
	cfg.General.PIDDir = filepath.Join(dir, "pids")
	cfg.General.LogDir = filepath.Join(dir, "logs")
	if err := os.MkdirAll(cfg.General.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return cfg
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (r *eventLog) Record(event, process string, pid int, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event+":"+process)
}

func (r *eventLog) count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

func TestBuildSpecs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workers.InstanceCount = 2
	topo := config.BuildTopology(cfg)

	specs := BuildSpecs(topo)
	if len(specs) != 3 {
		t.Fatalf("expected 3 specs, got %d", len(specs))
	}
	if specs[0].Name != "worker_0" || specs[0].Kind != KindWorker {
		t.Errorf("first spec should be worker_0, got %+v", specs[0])
	}
	last := specs[len(specs)-1]
	if last.Kind != KindLoadBalancer {
		t.Errorf("load balancer must come last, got %+v", last)
	}
	if last.Args[0] != "-f" {
		t.Errorf("load balancer args should start with -f, got %v", last.Args)
	}
	for _, spec := range specs[:2] {
		if len(spec.Args) != 1 || !strings.HasSuffix(spec.Args[0], "worker.cfg") {
			t.Errorf("worker %s should take its config path as sole argument, got %v",
				spec.Name, spec.Args)
		}
	}
}

func TestStartStopCycle(t *testing.T) {
	cfg := testConfig(t)
	rec := &eventLog{}
	sup := newWithSpecs(cfg, []ProcessSpec{
		{Name: "worker_0", Kind: KindWorker, Command: "sleep", Args: []string{"60"}},
		{Name: "loadbalancer", Kind: KindLoadBalancer, Command: "sleep", Args: []string{"60"}},
	}, nil, rec)
	sup.startWindow = 100 * time.Millisecond

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !sup.Running() {
		t.Fatalf("expected all processes running, status: %+v", sup.Status())
	}
	for _, h := range sup.Status() {
		if h.PID <= 0 {
			t.Errorf("process %s has no PID", h.Name)
		}
		if got := system.ReadPIDFile(system.PIDFilePath(cfg, h.Name)); got != h.PID {
			t.Errorf("PID file for %s = %d, want %d", h.Name, got, h.PID)
		}
	}

	if killed := sup.Stop(5 * time.Second); killed != 0 {
		t.Errorf("sleep should exit on SIGTERM, but %d were killed", killed)
	}
	for _, h := range sup.Status() {
		if h.State != StateStopped {
			t.Errorf("process %s state = %s, want %s", h.Name, h.State, StateStopped)
		}
		if system.ReadPIDFile(system.PIDFilePath(cfg, h.Name)) != 0 {
			t.Errorf("PID file for %s should be removed after stop", h.Name)
		}
	}
	if rec.count("started:") != 2 || rec.count("stopped:") != 2 {
		t.Errorf("expected 2 started + 2 stopped events, got %v", rec.events)
	}

	// The supervisor must be restartable after a full stop.
	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	sup.Stop(5 * time.Second)
}

func TestStartPartialFailure(t *testing.T) {
	cfg := testConfig(t)
	sup := newWithSpecs(cfg, []ProcessSpec{
		{Name: "worker_0", Kind: KindWorker, Command: "sleep", Args: []string{"60"}},
		{Name: "worker_1", Kind: KindWorker, Command: "/nonexistent/binary"},
	}, nil, nil)
	sup.startWindow = 100 * time.Millisecond
	defer sup.Stop(5 * time.Second)

	err := sup.Start(context.Background())
	var startErr *StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("expected StartError, got %v", err)
	}
	if len(startErr.Failures) != 1 || startErr.Failures[0].Name != "worker_1" {
		t.Fatalf("expected single failure for worker_1, got %v", startErr.Failures)
	}

	// The healthy process must have survived the sibling's failure.
	for _, h := range sup.Status() {
		switch h.Name {
		case "worker_0":
			if h.State != StateRunning {
				t.Errorf("worker_0 state = %s, want %s", h.State, StateRunning)
			}
		case "worker_1":
			if h.State != StateNotStarted {
				t.Errorf("worker_1 state = %s, want %s", h.State, StateNotStarted)
			}
		}
	}
}

func TestStartFailsFastExit(t *testing.T) {
	cfg := testConfig(t)
	sup := newWithSpecs(cfg, []ProcessSpec{
		{Name: "worker_0", Kind: KindWorker, Command: "false"},
	}, nil, nil)
	sup.startWindow = 300 * time.Millisecond

	err := sup.Start(context.Background())
	var startErr *StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("a process exiting inside the confirmation window must fail Start, got %v", err)
	}
	if !strings.Contains(err.Error(), "worker_0") {
		t.Errorf("error should name the process: %v", err)
	}
}

func TestCrashDetection(t *testing.T) {
	cfg := testConfig(t)
	rec := &eventLog{}
	sup := newWithSpecs(cfg, []ProcessSpec{
		{Name: "worker_0", Kind: KindWorker, Command: "sleep", Args: []string{"0.3"}},
	}, nil, rec)
	sup.startWindow = 50 * time.Millisecond

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if sup.Status()[0].State == StateCrashed {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	h := sup.Status()[0]
	if h.State != StateCrashed {
		t.Fatalf("expected crashed state, got %s", h.State)
	}
	if h.ExitCode != 0 {
		t.Errorf("sleep exits cleanly, exit code = %d", h.ExitCode)
	}
	if sup.Running() {
		t.Error("Running must be false with a crashed process")
	}

	// A crash is reported exactly once, even across repeated sweeps.
	sup.reportCrashes()
	sup.reportCrashes()
	if got := rec.count("crashed:"); got != 1 {
		t.Errorf("crash reported %d times, want 1", got)
	}
}

func TestStopEscalatesToKill(t *testing.T) {
	cfg := testConfig(t)
	sup := newWithSpecs(cfg, []ProcessSpec{
		{Name: "worker_0", Kind: KindWorker, Command: "sh",
			Args: []string{"-c", "trap '' TERM; sleep 60"}},
	}, nil, nil)
	sup.startWindow = 100 * time.Millisecond

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if killed := sup.Stop(500 * time.Millisecond); killed != 1 {
		t.Errorf("SIGTERM-ignoring child should be killed, got killed=%d", killed)
	}
	if got := sup.Status()[0].State; got != StateStopped {
		t.Errorf("state after kill = %s, want %s", got, StateStopped)
	}
}

func TestReloadLoadBalancerSwapsProcess(t *testing.T) {
	cfg := testConfig(t)
	sup := newWithSpecs(cfg, []ProcessSpec{
		// sh -c ignores the appended -sf handover args, standing in for a
		// balancer that accepts them.
		{Name: "loadbalancer", Kind: KindLoadBalancer, Command: "sh", Args: []string{"-c", "sleep 60"}},
	}, nil, nil)
	sup.startWindow = 100 * time.Millisecond
	defer sup.Stop(5 * time.Second)

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	oldPID := sup.Status()[0].PID

	if err := sup.ReloadLoadBalancer(context.Background()); err != nil {
		t.Fatalf("ReloadLoadBalancer failed: %v", err)
	}
	h := sup.Status()[0]
	if h.State != StateRunning {
		t.Errorf("state after reload = %s", h.State)
	}
	if h.PID == oldPID {
		t.Errorf("reload should run a new process, PID unchanged at %d", h.PID)
	}
	if got := system.ReadPIDFile(system.PIDFilePath(cfg, "loadbalancer")); got != h.PID {
		t.Errorf("PID file = %d, want new PID %d", got, h.PID)
	}
}

func TestReloadKeepsOldProcessOnFailure(t *testing.T) {
	cfg := testConfig(t)
	sup := newWithSpecs(cfg, []ProcessSpec{
		// Plain sleep rejects the -sf handover args, so the replacement
		// dies inside the confirmation window.
		{Name: "loadbalancer", Kind: KindLoadBalancer, Command: "sleep", Args: []string{"60"}},
	}, nil, nil)
	sup.startWindow = 200 * time.Millisecond
	defer sup.Stop(5 * time.Second)

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	oldPID := sup.Status()[0].PID

	if err := sup.ReloadLoadBalancer(context.Background()); err == nil {
		t.Fatal("reload with a dying replacement should fail")
	}
	h := sup.Status()[0]
	if h.State != StateRunning || h.PID != oldPID {
		t.Errorf("old process should keep serving after failed reload: %+v", h)
	}
}

func TestRestartRegenerates(t *testing.T) {
	cfg := testConfig(t)
	sup := newWithSpecs(cfg, []ProcessSpec{
		{Name: "worker_0", Kind: KindWorker, Command: "sleep", Args: []string{"60"}},
	}, nil, nil)
	sup.startWindow = 100 * time.Millisecond

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	firstPID := sup.Status()[0].PID

	regenerated := false
	err := sup.Restart(context.Background(), 5*time.Second, func() error {
		regenerated = true
		return nil
	})
	if err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	defer sup.Stop(5 * time.Second)

	if !regenerated {
		t.Error("regenerate hook was not called")
	}
	if pid := sup.Status()[0].PID; pid == firstPID {
		t.Errorf("restart should yield a new process, PID unchanged at %d", pid)
	}
}
