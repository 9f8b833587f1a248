package supervisor

import (
	"fmt"
	"strings"
)

// ProcessError describes a failure tied to one managed process.
type ProcessError struct {
	Name string
	Err  error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("process %s: %v", e.Name, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// StartError aggregates per-process launch failures from a single Start call.
// Processes that did start stay running; the caller decides whether a partial
// stack is acceptable.
type StartError struct {
	Failures []*ProcessError
}

func (e *StartError) Error() string {
	if len(e.Failures) == 1 {
		return fmt.Sprintf("1 process failed to start: %v", e.Failures[0])
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("%d processes failed to start: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *StartError) errOrNil() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e
}
