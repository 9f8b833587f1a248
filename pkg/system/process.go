package system

import (
	"os"
	"syscall"
	"time"
)

// ProcessAlive reports whether a process with the given PID exists and is
// signalable from this process.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// TerminateProcess asks pid to exit with SIGTERM, waits up to timeout and
// escalates to SIGKILL. It returns true once the process is gone. The caller
// is responsible for reaping if the process is its own child.
func TerminateProcess(pid int, timeout time.Duration) bool {
	if !ProcessAlive(pid) {
		return true
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return true
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return !ProcessAlive(pid)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !ProcessAlive(pid) {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}

	proc.Signal(syscall.SIGKILL)
	// SIGKILL cannot be ignored; give the kernel a moment to tear down.
	for i := 0; i < 20; i++ {
		if !ProcessAlive(pid) {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return !ProcessAlive(pid)
}
