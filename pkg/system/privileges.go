package system

import (
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"strconv"
	"syscall"
)

func lookupRuntimeIdentity(runUser, runGroup string) (uid, gid int, err error) {
	u, err := user.Lookup(runUser)
	if err != nil {
		return 0, 0, fmt.Errorf("looking up user %q: %w", runUser, err)
	}
	g, err := user.LookupGroup(runGroup)
	if err != nil {
		return 0, 0, fmt.Errorf("looking up group %q: %w", runGroup, err)
	}
	uid, err = strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing uid %q: %w", u.Uid, err)
	}
	gid, err = strconv.Atoi(g.Gid)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing gid %q: %w", g.Gid, err)
	}
	return uid, gid, nil
}

// DropPrivileges switches the process to the configured unprivileged
// identity. It is a no-op when not running as root. Group membership is
// cleared before the UID switch; order matters since setgid is impossible
// after setuid.
func DropPrivileges(runUser, runGroup string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if os.Geteuid() != 0 {
		logger.Debug("not running as root, skipping privilege drop")
		return nil
	}

	uid, gid, err := lookupRuntimeIdentity(runUser, runGroup)
	if err != nil {
		logger.Warn("runtime identity not found, keeping current privileges",
			"user", runUser, "group", runGroup, "error", err)
		return nil
	}

	if err := syscall.Setgroups([]int{gid}); err != nil {
		return fmt.Errorf("clearing supplementary groups: %w", err)
	}
	if err := syscall.Setgid(gid); err != nil {
		return fmt.Errorf("setgid %d: %w", gid, err)
	}
	if err := syscall.Setuid(uid); err != nil {
		return fmt.Errorf("setuid %d: %w", uid, err)
	}

	logger.Info("privileges dropped", "user", runUser, "group", runGroup)
	return nil
}
