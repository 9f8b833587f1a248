package system

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"relaystack-hq/saturn/pkg/config"
)

// orchestratorPIDFile is the PID file name for the orchestrating process
// itself; supervised children get their own files named after the process.
const orchestratorPIDFile = "saturn.pid"

// PIDFilePath returns the PID file location for a named managed process.
func PIDFilePath(cfg *config.Config, name string) string {
	return filepath.Join(cfg.General.PIDDir, name+".pid")
}

// OrchestratorPIDPath returns the PID file location for the orchestrator.
func OrchestratorPIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.General.PIDDir, orchestratorPIDFile)
}

// WritePIDFile records pid at path, creating parent directories as needed.
func WritePIDFile(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating PID directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing PID file %q: %w", path, err)
	}
	return nil
}

// ReadPIDFile returns the PID stored at path, or 0 if the file is missing
// or malformed.
func ReadPIDFile(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

// RemovePIDFile deletes the PID file at path; a missing file is not an error.
func RemovePIDFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		// Best effort; a stale PID file is detected by liveness checks.
		_ = err
	}
}
