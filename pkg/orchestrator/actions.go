package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"relaystack-hq/saturn/pkg/config"
	"relaystack-hq/saturn/pkg/genconf"
	"relaystack-hq/saturn/pkg/health"
	"relaystack-hq/saturn/pkg/supervisor"
	"relaystack-hq/saturn/pkg/system"
)

// Validate checks the configuration file structurally and against the host
// environment (binaries on PATH, writable directories). It performs no side
// effects and reports every problem in one pass: structural and host
// violations appear together in a single ValidationError.
func Validate(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if cfg == nil {
		return nil, err
	}
	if err := config.ValidateAll(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Generate validates the configuration and writes every generated file.
// Identical input always produces identical output, so running it twice is
// harmless.
func Generate(path string, logger *slog.Logger) (*genconf.GeneratedFiles, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	topo := config.BuildTopology(cfg)
	return genconf.WriteAll(topo, logger)
}

// Stop terminates a stack started by another process. The orchestrator, if
// alive, is asked to exit and handles its own children; otherwise any
// leftover children recorded in PID files are terminated directly, workers
// before the load balancer.
func Stop(path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	orchPath := system.OrchestratorPIDPath(cfg)
	if pid := system.ReadPIDFile(orchPath); pid != 0 && system.ProcessAlive(pid) {
		logger.Info("stopping orchestrator", "pid", pid)
		if !system.TerminateProcess(pid, config.StopTimeout+5*time.Second) {
			return fmt.Errorf("orchestrator pid %d did not exit", pid)
		}
		system.RemovePIDFile(orchPath)
		return nil
	}
	system.RemovePIDFile(orchPath)

	// No live orchestrator: clean up stray children from their PID files.
	topo := config.BuildTopology(cfg)
	var failed []string
	for _, spec := range supervisor.BuildSpecs(topo) {
		pidPath := system.PIDFilePath(cfg, spec.Name)
		pid := system.ReadPIDFile(pidPath)
		if pid == 0 {
			continue
		}
		if system.ProcessAlive(pid) {
			logger.Info("stopping stray process", "process", spec.Name, "pid", pid)
			if !system.TerminateProcess(pid, config.StopTimeout) {
				failed = append(failed, spec.Name)
				continue
			}
		}
		system.RemovePIDFile(pidPath)
	}
	if len(failed) > 0 {
		return fmt.Errorf("processes did not exit: %v", failed)
	}
	return nil
}

// ProcessStatus is one process row in a status report.
type ProcessStatus struct {
	Name  string `json:"name"`
	PID   int    `json:"pid,omitempty"`
	Alive bool   `json:"alive"`
}

// StatusReport is the `status` action's output.
type StatusReport struct {
	OrchestratorPID   int              `json:"orchestrator_pid,omitempty"`
	OrchestratorAlive bool             `json:"orchestrator_alive"`
	Processes         []ProcessStatus  `json:"processes"`
	Health            *health.Snapshot `json:"health,omitempty"`
}

// Running reports whether every expected process is alive.
func (r *StatusReport) Running() bool {
	if !r.OrchestratorAlive {
		return false
	}
	for _, p := range r.Processes {
		if !p.Alive {
			return false
		}
	}
	return true
}

// Status inspects a stack from outside: PID-file liveness for every process,
// plus the health document from the monitoring endpoint when it is up.
func Status(ctx context.Context, path string) (*StatusReport, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{}
	if pid := system.ReadPIDFile(system.OrchestratorPIDPath(cfg)); pid != 0 {
		report.OrchestratorPID = pid
		report.OrchestratorAlive = system.ProcessAlive(pid)
	}

	topo := config.BuildTopology(cfg)
	for _, spec := range supervisor.BuildSpecs(topo) {
		pid := system.ReadPIDFile(system.PIDFilePath(cfg, spec.Name))
		report.Processes = append(report.Processes, ProcessStatus{
			Name:  spec.Name,
			PID:   pid,
			Alive: pid != 0 && system.ProcessAlive(pid),
		})
	}

	if cfg.Monitoring.Enabled {
		if snap, err := fetchHealth(ctx, cfg); err == nil {
			report.Health = snap
		}
	}
	return report, nil
}

// fetchHealth pulls the health document from the monitoring endpoint. A 503
// still carries a valid document; only transport errors fail.
func fetchHealth(ctx context.Context, cfg *config.Config) (*health.Snapshot, error) {
	url := fmt.Sprintf("http://%s:%d%s", cfg.Monitoring.Bind, cfg.Monitoring.Port, cfg.Monitoring.HealthPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var snap health.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
