package cli

import (
	"errors"
	"fmt"
	"testing"

	"relaystack-hq/saturn/pkg/config"
	"relaystack-hq/saturn/pkg/supervisor"
)

func TestConfigErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *ConfigError
		want string
	}{
		{
			name: "field and message",
			err:  &ConfigError{Field: "workers.instance_count", Message: "must be at least 1"},
			want: "config error in workers.instance_count: must be at least 1",
		},
		{
			name: "message only",
			err:  &ConfigError{Message: "file not found"},
			want: "config error: file not found",
		},
		{
			name: "wrapped error",
			err:  &ConfigError{Err: errors.New("yaml: line 3: mapping values are not allowed")},
			want: "config error: yaml: line 3: mapping values are not allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewConfigError(t *testing.T) {
	err := NewConfigError("field", "message")
	if err.Field != "field" {
		t.Errorf("Field = %q, want %q", err.Field, "field")
	}
	if err.Message != "message" {
		t.Errorf("Message = %q, want %q", err.Message, "message")
	}
}

func TestWrapConfigError(t *testing.T) {
	if WrapConfigError(nil) != nil {
		t.Error("WrapConfigError(nil) should be nil")
	}

	underlying := errors.New("parse failure")
	err := WrapConfigError(underlying)
	if !errors.Is(err, underlying) {
		t.Error("wrapped error should match underlying with errors.Is")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Error("wrapped error should be a *ConfigError")
	}
}

func TestProcessErrorUnwrap(t *testing.T) {
	underlying := errors.New("no such binary")
	err := NewProcessError("start", underlying)

	if err.Error() != "start failed: no such binary" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is should see through ProcessError")
	}
}

func TestExitCode(t *testing.T) {
	validation := config.ValidationError{Errors: []config.FieldError{
		{Field: "loadbalancer.listen_port", Message: "must be between 1 and 65535"},
	}}
	startFailure := &supervisor.StartError{Failures: []*supervisor.ProcessError{
		{Name: "worker_1", Err: errors.New("exec: not found")},
	}}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"generic error", errors.New("boom"), ExitFailure},
		{"config error", NewConfigError("f", "m"), ExitConfigError},
		{"wrapped config error", WrapConfigError(errors.New("bad yaml")), ExitConfigError},
		{"validation error", validation, ExitConfigError},
		{"fmt-wrapped validation error", fmt.Errorf("loading: %w", validation), ExitConfigError},
		{"process error", NewProcessError("stop", errors.New("timeout")), ExitProcessError},
		{"supervisor start error", startFailure, ExitProcessError},
		{"supervisor process error", &supervisor.ProcessError{Name: "lb", Err: errors.New("exited")}, ExitProcessError},
		// A process operation that failed because of bad config is still a
		// config failure to the caller.
		{"process error wrapping validation", NewProcessError("start", validation), ExitConfigError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
