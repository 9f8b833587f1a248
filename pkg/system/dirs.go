package system

import (
	"fmt"
	"os"
	"path/filepath"

	"relaystack-hq/saturn/pkg/config"
)

// EnsureDirectories creates the work, log and PID directories plus the
// per-worker config tree. When running as root the directories are chowned
// to the configured runtime identity so the stack can still write after
// privileges are dropped.
func EnsureDirectories(cfg *config.Config) error {
	dirs := []string{
		cfg.General.WorkDir,
		cfg.General.LogDir,
		cfg.General.PIDDir,
		filepath.Join(cfg.General.WorkDir, "workers"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %q: %w", dir, err)
		}
	}
	if os.Geteuid() == 0 {
		uid, gid, err := lookupRuntimeIdentity(cfg.General.RunUser, cfg.General.RunGroup)
		if err != nil {
			// Missing account is survivable; ownership stays with root.
			return nil
		}
		for _, dir := range dirs {
			os.Chown(dir, uid, gid)
		}
	}
	return nil
}
