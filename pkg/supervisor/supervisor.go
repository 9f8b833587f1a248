package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"relaystack-hq/saturn/pkg/config"
	"relaystack-hq/saturn/pkg/genconf"
	"relaystack-hq/saturn/pkg/system"
)

// startConfirmWindow is how long a freshly launched child must stay alive
// before Start considers it running.
const startConfirmWindow = 500 * time.Millisecond

// Recorder receives lifecycle events for auditing. The supervisor calls it
// synchronously; implementations must be cheap or buffer internally.
type Recorder interface {
	Record(event, process string, pid int, detail string)
}

type nopRecorder struct{}

func (nopRecorder) Record(string, string, int, string) {}

// BuildSpecs derives the managed-process launch plan from the topology:
// workers first, the load balancer last, so backends exist before the
// balancer starts probing them. Stop walks the same order, signaling workers
// while the balancer is still reachable.
func BuildSpecs(topo *config.Topology) []ProcessSpec {
	cfg := topo.Config()
	specs := make([]ProcessSpec, 0, len(topo.Workers)+1)
	for _, w := range topo.Workers {
		specs = append(specs, ProcessSpec{
			Name:    w.Name(),
			Kind:    KindWorker,
			Command: cfg.Workers.Binary,
			Args:    []string{genconf.WorkerConfigPath(cfg, w.Ordinal)},
		})
	}
	specs = append(specs, ProcessSpec{
		Name:    "loadbalancer",
		Kind:    KindLoadBalancer,
		Command: cfg.LoadBalancer.Binary,
		Args:    []string{"-f", genconf.LoadBalancerConfigPath(cfg), "-db"},
	})
	return specs
}

// Supervisor launches and tracks the stack's processes. All methods are safe
// for concurrent use.
type Supervisor struct {
	cfg      *config.Config
	logger   *slog.Logger
	recorder Recorder

	// startWindow is the liveness confirmation window, overridable in tests.
	startWindow time.Duration

	mu    sync.Mutex
	procs []*process
}

// New builds a supervisor for the given topology. The recorder may be nil.
func New(topo *config.Topology, logger *slog.Logger, rec Recorder) *Supervisor {
	return newWithSpecs(topo.Config(), BuildSpecs(topo), logger, rec)
}

func newWithSpecs(cfg *config.Config, specs []ProcessSpec, logger *slog.Logger, rec Recorder) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	procs := make([]*process, len(specs))
	for i, spec := range specs {
		procs[i] = newProcess(spec)
	}
	return &Supervisor{
		cfg:         cfg,
		logger:      logger,
		recorder:    rec,
		startWindow: startConfirmWindow,
		procs:       procs,
	}
}

// Start launches every process that is not already running and confirms each
// through the liveness window. Failures are collected per process; processes
// that did come up are left running. Returns nil when everything is running.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	startErr := &StartError{}
	launched := make([]*process, 0, len(s.procs))

	for _, p := range s.procs {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch p.currentState() {
		case StateRunning, StateStarting:
			continue
		}
		if err := s.launch(p); err != nil {
			s.logger.Error("process launch failed", "process", p.spec.Name, "error", err)
			startErr.Failures = append(startErr.Failures, &ProcessError{Name: p.spec.Name, Err: err})
			continue
		}
		launched = append(launched, p)
	}

	if len(launched) > 0 {
		timer := time.NewTimer(s.startWindow)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for _, p := range launched {
		p.mu.Lock()
		switch p.state {
		case StateStarting:
			p.state = StateRunning
			pid := p.cmd.Process.Pid
			p.mu.Unlock()
			s.logger.Info("process running", "process", p.spec.Name, "pid", pid)
			s.recorder.Record("started", p.spec.Name, pid, "")
			if err := system.WritePIDFile(system.PIDFilePath(s.cfg, p.spec.Name), pid); err != nil {
				s.logger.Warn("could not write PID file", "process", p.spec.Name, "error", err)
			}
		default:
			code := p.exitCode
			p.state = StateNotStarted
			p.mu.Unlock()
			err := fmt.Errorf("exited during startup with code %d", code)
			s.logger.Error("process died during startup", "process", p.spec.Name, "exit_code", code)
			startErr.Failures = append(startErr.Failures, &ProcessError{Name: p.spec.Name, Err: err})
		}
	}
	return startErr.errOrNil()
}

// launch starts one child and installs its reaper. Caller holds s.mu.
func (s *Supervisor) launch(p *process, extraArgs ...string) error {
	args := append(append([]string{}, p.spec.Args...), extraArgs...)
	cmd := exec.Command(p.spec.Command, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var logFile *os.File
	if s.cfg.General.LogDir != "" {
		path := filepath.Join(s.cfg.General.LogDir, p.spec.Name+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			s.logger.Warn("cannot open process log, output discarded",
				"process", p.spec.Name, "error", err)
		} else {
			logFile = f
			cmd.Stdout = f
			cmd.Stderr = f
		}
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return err
	}

	p.mu.Lock()
	p.cmd = cmd
	p.state = StateStarting
	p.startedAt = time.Now()
	p.exitCode = -1
	p.desired = "run"
	p.crashReported = false
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	s.logger.Debug("process launched", "process", p.spec.Name, "pid", cmd.Process.Pid,
		"command", p.spec.Command)

	go func() {
		err := cmd.Wait()
		if logFile != nil {
			logFile.Close()
		}
		p.mu.Lock()
		p.exitCode = waitExitCode(err, cmd)
		if p.desired == "stop" {
			p.state = StateStopped
		} else {
			p.state = StateCrashed
		}
		p.mu.Unlock()
		close(done)
	}()
	return nil
}

func waitExitCode(waitErr error, cmd *exec.Cmd) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Stop signals every live process to exit, workers before the load balancer,
// escalating to SIGKILL after the graceful timeout. PID files of stopped
// processes are removed. Stop never fails; it reports how many processes
// needed the hard kill.
func (s *Supervisor) Stop(timeout time.Duration) (killed int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.procs {
		p.mu.Lock()
		live := p.state == StateRunning || p.state == StateStarting
		if live {
			p.desired = "stop"
			p.state = StateStopping
		}
		pid := 0
		if p.cmd != nil && p.cmd.Process != nil {
			pid = p.cmd.Process.Pid
		}
		done := p.done
		p.mu.Unlock()

		if !live {
			system.RemovePIDFile(system.PIDFilePath(s.cfg, p.spec.Name))
			continue
		}

		s.logger.Info("stopping process", "process", p.spec.Name, "pid", pid)
		p.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-done:
		case <-time.After(timeout):
			s.logger.Warn("process ignored SIGTERM, killing", "process", p.spec.Name, "pid", pid)
			p.cmd.Process.Kill()
			<-done
			killed++
		}
		system.RemovePIDFile(system.PIDFilePath(s.cfg, p.spec.Name))
		s.recorder.Record("stopped", p.spec.Name, pid, "")
		s.logger.Info("process stopped", "process", p.spec.Name, "exit_code", p.handle().ExitCode)
	}
	return killed
}

// Restart stops the stack, runs regenerate (when non-nil) to refresh the
// on-disk configuration, then starts everything again.
func (s *Supervisor) Restart(ctx context.Context, timeout time.Duration, regenerate func() error) error {
	s.Stop(timeout)
	if regenerate != nil {
		if err := regenerate(); err != nil {
			return fmt.Errorf("regenerating configuration: %w", err)
		}
	}
	return s.Start(ctx)
}

// ReloadLoadBalancer performs a graceful configuration reload: a new
// balancer process is launched against the regenerated config with the old
// PID handed over via -sf, so the old process finishes draining its
// connections and exits on its own. On failure the old process keeps serving.
func (s *Supervisor) ReloadLoadBalancer(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var idx = -1
	for i, p := range s.procs {
		if p.spec.Kind == KindLoadBalancer {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("no load balancer in process set")
	}
	old := s.procs[idx]
	if old.currentState() != StateRunning {
		return fmt.Errorf("load balancer is not running")
	}
	oldPID := old.pid()

	// The old process is expected to exit once draining completes.
	old.mu.Lock()
	old.desired = "stop"
	old.mu.Unlock()

	replacement := newProcess(old.spec)
	if err := s.launch(replacement, "-sf", strconv.Itoa(oldPID)); err != nil {
		old.mu.Lock()
		old.desired = "run"
		old.mu.Unlock()
		return fmt.Errorf("launching replacement load balancer: %w", err)
	}

	timer := time.NewTimer(s.startWindow)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	replacement.mu.Lock()
	if replacement.state != StateStarting {
		code := replacement.exitCode
		replacement.mu.Unlock()
		old.mu.Lock()
		old.desired = "run"
		old.mu.Unlock()
		return fmt.Errorf("replacement load balancer exited with code %d, keeping old process", code)
	}
	replacement.state = StateRunning
	newPID := replacement.cmd.Process.Pid
	replacement.mu.Unlock()

	s.procs[idx] = replacement
	if err := system.WritePIDFile(system.PIDFilePath(s.cfg, replacement.spec.Name), newPID); err != nil {
		s.logger.Warn("could not write PID file", "process", replacement.spec.Name, "error", err)
	}
	s.logger.Info("load balancer reloaded", "old_pid", oldPID, "new_pid", newPID)
	s.recorder.Record("reloaded", replacement.spec.Name, newPID, fmt.Sprintf("replaced pid %d", oldPID))
	return nil
}

// Status returns a snapshot of every managed process, workers first.
func (s *Supervisor) Status() []Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Handle, len(s.procs))
	for i, p := range s.procs {
		out[i] = p.handle()
	}
	return out
}

// Running reports whether every managed process is in the Running state.
func (s *Supervisor) Running() bool {
	for _, h := range s.Status() {
		if h.State != StateRunning {
			return false
		}
	}
	return true
}

// Watch polls the process set until ctx is done, logging and recording each
// crash exactly once. It never restarts anything.
func (s *Supervisor) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reportCrashes()
		}
	}
}

func (s *Supervisor) reportCrashes() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.procs {
		p.mu.Lock()
		crashed := p.state == StateCrashed && !p.crashReported
		code := p.exitCode
		if crashed {
			p.crashReported = true
		}
		p.mu.Unlock()
		if crashed {
			s.logger.Error("process crashed", "process", p.spec.Name, "exit_code", code)
			s.recorder.Record("crashed", p.spec.Name, 0, fmt.Sprintf("exit code %d", code))
			system.RemovePIDFile(system.PIDFilePath(s.cfg, p.spec.Name))
		}
	}
}
