package cli

import (
	"errors"
	"fmt"

	"relaystack-hq/saturn/pkg/config"
	"relaystack-hq/saturn/pkg/supervisor"
)

// Exit codes for the relayctl binary. Scripts and init systems rely on the
// distinction between configuration and process failures.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitConfigError  = 2
	ExitProcessError = 3
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("config error: %v", e.Err)
	case e.Field == "":
		return fmt.Sprintf("config error: %s", e.Message)
	default:
		return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
	}
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// WrapConfigError marks err as a configuration failure for exit-code
// mapping. A nil err stays nil.
func WrapConfigError(err error) error {
	if err == nil {
		return nil
	}
	return &ConfigError{Err: err}
}

// ProcessError represents a failure operating on the stack's processes.
type ProcessError struct {
	Operation string
	Err       error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Operation, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// NewProcessError creates a new ProcessError.
func NewProcessError(operation string, err error) *ProcessError {
	return &ProcessError{Operation: operation, Err: err}
}

// ExitCode maps an error onto the binary's exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var cfgErr *ConfigError
	var validationErr config.ValidationError
	if errors.As(err, &cfgErr) || errors.As(err, &validationErr) {
		return ExitConfigError
	}

	var procErr *ProcessError
	var startErr *supervisor.StartError
	var supProcErr *supervisor.ProcessError
	if errors.As(err, &procErr) || errors.As(err, &startErr) || errors.As(err, &supProcErr) {
		return ExitProcessError
	}

	return ExitFailure
}
