// Package orchestrator ties the stack together: it loads and validates the
// configuration, generates the on-disk configs, supervises the external
// processes, runs the health monitor and the monitoring endpoint, and reacts
// to configuration changes while the stack is up.
//
// All state lives in the Stack struct built per run; there are no package
// globals, so tests can run stacks side by side.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"relaystack-hq/saturn/pkg/antidetect"
	"relaystack-hq/saturn/pkg/config"
	"relaystack-hq/saturn/pkg/genconf"
	"relaystack-hq/saturn/pkg/health"
	"relaystack-hq/saturn/pkg/journal"
	"relaystack-hq/saturn/pkg/server"
	"relaystack-hq/saturn/pkg/supervisor"
	"relaystack-hq/saturn/pkg/system"
	"relaystack-hq/saturn/pkg/telemetry/metrics"
)

// resourceSampleInterval paces process CPU/memory sampling for metrics.
const resourceSampleInterval = 10 * time.Second

// Options configures a Stack.
type Options struct {
	// ConfigPath is the YAML configuration file.
	ConfigPath string

	// NoDropPrivs keeps root privileges even when run_user is configured.
	NoDropPrivs bool

	// Logger receives all orchestrator output. Defaults to slog.Default().
	Logger *slog.Logger
}

// Stack is one running orchestration context.
type Stack struct {
	opts   Options
	cfg    *config.Config
	topo   *config.Topology
	logger *slog.Logger

	sup      *supervisor.Supervisor
	monitor  *health.Monitor
	metrics  *metrics.Metrics
	endpoint *server.Server
	shaper   *antidetect.Manager
	journal  *journal.Journal
	alerter  *Alerter
	watcher  *ConfigWatcher

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStack loads and validates the configuration and assembles every
// component without side effects on the host.
func NewStack(opts Options) (*Stack, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	topo := config.BuildTopology(cfg)

	shaper, err := antidetect.NewManager(cfg.AntiDetect, logger.With("component", "antidetect"))
	if err != nil {
		return nil, err
	}

	s := &Stack{
		opts:    opts,
		cfg:     cfg,
		topo:    topo,
		logger:  logger,
		monitor: health.New(topo, logger.With("component", "health")),
		metrics: metrics.New(),
		shaper:  shaper,
		alerter: NewAlerter(cfg.Monitoring.Alerts, logger.With("component", "alerts")),
	}
	s.endpoint = server.New(cfg, s.monitor, s.metrics, logger.With("component", "endpoint"))
	return s, nil
}

// Config returns the loaded configuration.
func (s *Stack) Config() *config.Config { return s.cfg }

// generate applies the current traffic-shaping header policy and writes the
// load-balancer and worker configuration files.
func (s *Stack) generate() (*genconf.GeneratedFiles, error) {
	strip, add := s.shaper.HeaderPolicy()
	s.cfg.AntiDetect.HeaderManipulation.StripHeaders = strip
	s.cfg.AntiDetect.HeaderManipulation.AddHeaders = add
	return genconf.WriteAll(s.topo, s.logger)
}

// Run brings the whole stack up and blocks until ctx is cancelled, then
// tears everything down in reverse order. Run is the `start` action's
// foreground body.
func (s *Stack) Run(ctx context.Context) error {
	if pid := system.ReadPIDFile(system.OrchestratorPIDPath(s.cfg)); pid != 0 && system.ProcessAlive(pid) {
		s.logger.Info("stack already running", "pid", pid)
		return nil
	}

	if err := config.ValidateEnvironment(s.cfg); err != nil {
		return err
	}
	if err := system.EnsureDirectories(s.cfg); err != nil {
		return err
	}
	if err := system.WritePIDFile(system.OrchestratorPIDPath(s.cfg), os.Getpid()); err != nil {
		return err
	}
	defer system.RemovePIDFile(system.OrchestratorPIDPath(s.cfg))

	if !s.opts.NoDropPrivs {
		if err := system.DropPrivileges(s.cfg.General.RunUser, s.cfg.General.RunGroup, s.logger); err != nil {
			return err
		}
	}

	var rec supervisor.Recorder
	if s.cfg.Journal.Enabled {
		j, err := journal.Open(s.cfg, s.logger.With("component", "journal"))
		if err != nil {
			return err
		}
		s.journal = j
		defer s.journal.Close()
		if err := s.journal.StartPruning(); err != nil {
			s.logger.Warn("journal pruning not scheduled", "error", err)
		}
		rec = j
	}

	if _, err := s.generate(); err != nil {
		return err
	}

	s.sup = supervisor.New(s.topo, s.logger.With("component", "supervisor"), rec)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	if err := s.sup.Start(runCtx); err != nil {
		s.sup.Stop(config.StopTimeout)
		return err
	}
	s.record("stack_started", "", os.Getpid(), "")

	s.monitor.OnTransition(func(tr health.Transition) {
		s.metrics.ObserveTransition(tr)
		s.record("health_flip", tr.Backend,
			0, fmt.Sprintf("%s %s -> %s", tr.Protocol, tr.From, tr.To))
	})
	s.startBackground(runCtx)

	<-runCtx.Done()
	s.logger.Info("shutting down stack")
	s.shutdown()
	s.record("stack_stopped", "", os.Getpid(), "")
	return nil
}

// startBackground launches the long-running observers: health probing,
// metrics sampling, crash watching, the monitoring endpoint, traffic
// shaping schedules, and the config watcher.
func (s *Stack) startBackground(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.monitor.Run(ctx)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.Monitoring.ProbeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := s.monitor.Snapshot()
				s.metrics.ObserveHealth(snap)
				for name, b := range snap.Backends {
					for proto, port := range b.Ports {
						s.metrics.ObserveProbe(name, string(proto), port.Alive)
					}
				}
				s.alerter.CheckHealth(snap)
			}
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(resourceSampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.metrics.ObserveProcesses(s.sup.Status())
			}
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sup.Watch(ctx, s.cfg.Monitoring.ProbeInterval)
	}()

	if s.cfg.Monitoring.Enabled {
		if err := s.endpoint.Start(); err != nil {
			// Monitoring is an observer; the stack keeps serving without it.
			s.logger.Error("monitoring endpoint disabled", "error", err)
		}
	}

	s.shaper.OnRotate(func(ua string) {
		s.record("user_agent_rotated", "", 0, ua)
		if _, err := s.generate(); err != nil {
			s.logger.Warn("regenerating configs after rotation", "error", err)
		}
	})
	if err := s.shaper.Start(); err != nil {
		s.logger.Warn("traffic shaping schedules not started", "error", err)
	}

	watcher, err := NewConfigWatcher(s.opts.ConfigPath, s.logger.With("component", "watcher"))
	if err != nil {
		s.logger.Warn("config watcher unavailable", "error", err)
		return
	}
	s.watcher = watcher
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		watcher.Watch(ctx, func() error { return s.reloadConfig(ctx) })
	}()
}

// reloadConfig handles an on-disk configuration change while running: the
// new file is loaded and validated, generated configs are rewritten, and the
// load balancer is reloaded gracefully. Topology-changing edits (instance
// count, ports) need a full restart and are rejected here.
func (s *Stack) reloadConfig(ctx context.Context) error {
	fresh, err := config.Load(s.opts.ConfigPath)
	if err != nil {
		return err
	}
	freshTopo := config.BuildTopology(fresh)
	if len(freshTopo.Workers) != len(s.topo.Workers) {
		return fmt.Errorf("instance count changed from %d to %d: restart required",
			len(s.topo.Workers), len(freshTopo.Workers))
	}
	for i, w := range freshTopo.Workers {
		if w != s.topo.Workers[i] {
			return fmt.Errorf("worker topology changed: restart required")
		}
	}

	s.cfg.LoadBalancer = fresh.LoadBalancer
	s.cfg.AntiDetect = fresh.AntiDetect
	if _, err := s.generate(); err != nil {
		return err
	}
	if err := s.sup.ReloadLoadBalancer(ctx); err != nil {
		return err
	}
	s.record("config_reloaded", "", 0, s.opts.ConfigPath)
	return nil
}

// shutdown tears down in reverse bring-up order: stop taking observations,
// then stop the processes.
func (s *Stack) shutdown() {
	if s.watcher != nil {
		s.watcher.Close()
	}
	s.shaper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.endpoint.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("monitoring endpoint shutdown", "error", err)
	}

	s.wg.Wait()
	s.sup.Stop(config.StopTimeout)
}

func (s *Stack) record(event, process string, pid int, detail string) {
	if s.journal != nil {
		s.journal.Record(event, process, pid, detail)
	}
}
