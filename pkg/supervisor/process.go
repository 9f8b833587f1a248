package supervisor

import (
	"os/exec"
	"sync"
	"time"
)

// State is a managed process's lifecycle state.
type State string

const (
	StateNotStarted State = "not_started"
	StateStarting   State = "starting"
	StateRunning    State = "running"
	StateStopping   State = "stopping"
	StateStopped    State = "stopped"

	// StateCrashed is terminal but reportable: the process exited from
	// Running without a stop request.
	StateCrashed State = "crashed"
)

// Kind distinguishes the two fixed managed-process variants.
type Kind string

const (
	KindLoadBalancer Kind = "loadbalancer"
	KindWorker       Kind = "worker"
)

// ProcessSpec describes how to launch one managed process.
type ProcessSpec struct {
	// Name is the stable process identifier (e.g., "worker_0", "loadbalancer").
	Name string

	// Kind is the process variant.
	Kind Kind

	// Command is the executable; Args are its arguments.
	Command string
	Args    []string
}

// Handle is the externally visible view of one managed process. Exactly one
// handle exists per managed process while it is supervised.
type Handle struct {
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	State     State     `json:"state"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`

	// Desired is the desired-state tag: "run" after a start request,
	// "stop" after a stop request.
	Desired string `json:"desired"`

	// ExitCode is the process exit code, meaningful only in Stopped or
	// Crashed; -1 otherwise.
	ExitCode int `json:"exit_code"`
}

// process is the supervisor-internal record backing a Handle.
type process struct {
	spec ProcessSpec

	mu        sync.Mutex
	cmd       *exec.Cmd
	state     State
	startedAt time.Time
	exitCode  int
	desired   string

	// done is closed by the reaper goroutine once the child is waited on.
	done chan struct{}

	// crashReported marks a crash already surfaced by the liveness watch.
	crashReported bool
}

func newProcess(spec ProcessSpec) *process {
	return &process{
		spec:     spec,
		state:    StateNotStarted,
		exitCode: -1,
		desired:  "stop",
	}
}

func (p *process) handle() Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := Handle{
		Name:     p.spec.Name,
		Kind:     p.spec.Kind,
		State:    p.state,
		ExitCode: p.exitCode,
		Desired:  p.desired,
	}
	if p.cmd != nil && p.cmd.Process != nil &&
		(p.state == StateStarting || p.state == StateRunning || p.state == StateStopping) {
		h.PID = p.cmd.Process.Pid
		h.StartedAt = p.startedAt
	}
	return h
}

func (p *process) currentState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *process) pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}
