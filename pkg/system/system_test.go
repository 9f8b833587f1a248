package system

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

func TestPIDFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "proc.pid")

	if err := WritePIDFile(path, 4242); err != nil {
		t.Fatalf("WritePIDFile failed: %v", err)
	}
	if pid := ReadPIDFile(path); pid != 4242 {
		t.Errorf("ReadPIDFile = %d, want 4242", pid)
	}

	RemovePIDFile(path)
	if pid := ReadPIDFile(path); pid != 0 {
		t.Errorf("expected 0 after removal, got %d", pid)
	}
	// Removing again must be harmless.
	RemovePIDFile(path)
}

func TestReadPIDFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pid")
	os.WriteFile(path, []byte("not-a-pid\n"), 0o644)

	if pid := ReadPIDFile(path); pid != 0 {
		t.Errorf("malformed PID file should read as 0, got %d", pid)
	}
}

func TestProcessAlive(t *testing.T) {
	if !ProcessAlive(os.Getpid()) {
		t.Error("current process should be alive")
	}
	if ProcessAlive(0) || ProcessAlive(-1) {
		t.Error("non-positive PIDs are never alive")
	}
}

func TestTerminateProcess_Graceful(t *testing.T) {
	cmd := exec.Command("sleep", "60")
	if err := cmd.Start(); err != nil {
		t.Fatalf("starting child: %v", err)
	}
	pid := cmd.Process.Pid

	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()

	if !TerminateProcess(pid, 5*time.Second) {
		t.Error("expected child to terminate")
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Error("child was not reaped")
	}
}

func TestTerminateProcess_AlreadyGone(t *testing.T) {
	cmd := exec.Command("true")
	if err := cmd.Start(); err != nil {
		t.Fatalf("starting child: %v", err)
	}
	pid := cmd.Process.Pid
	cmd.Wait()

	if !TerminateProcess(pid, time.Second) {
		t.Error("terminating an exited process should succeed")
	}
}
