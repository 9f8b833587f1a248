package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g., "workers.instance_count").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// All violations are collected in a single pass; callers must not proceed to
// config generation or process startup when validation fails.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// validAlgorithms are the supported load-balancing algorithms.
var validAlgorithms = map[string]bool{
	"roundrobin": true,
	"leastconn":  true,
	"source":     true,
}

// Validate performs structural validation of the configuration and returns a
// ValidationError listing every violated constraint, never only the first.
// Environment-dependent checks (binaries on PATH, writable directories) are
// performed separately by ValidateEnvironment.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateWorkers(&cfg.Workers)...)
	errs = append(errs, validateLoadBalancer(&cfg.LoadBalancer)...)
	errs = append(errs, validatePorts(cfg)...)
	errs = append(errs, validateAntiDetect(&cfg.AntiDetect)...)
	errs = append(errs, validateMonitoring(&cfg.Monitoring)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// ValidateAll runs structural and environment validation together and merges
// their findings into one ValidationError, so a missing binary is reported
// alongside a structural violation instead of being hidden behind it.
func ValidateAll(cfg *Config) error {
	var errs []FieldError
	for _, check := range []func(*Config) error{Validate, ValidateEnvironment} {
		if err := check(cfg); err != nil {
			var verr ValidationError
			if !errors.As(err, &verr) {
				return err
			}
			errs = append(errs, verr.Errors...)
		}
	}
	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// ValidateEnvironment checks constraints that depend on the host: the
// external binaries must resolve to executables and the work, log and PID
// directories must be creatable and writable. Like Validate, it reports
// every violation.
func ValidateEnvironment(cfg *Config) error {
	var errs []FieldError

	if _, err := exec.LookPath(cfg.LoadBalancer.Binary); err != nil {
		errs = append(errs, FieldError{
			Field:   "loadbalancer.binary",
			Message: fmt.Sprintf("executable %q not found: %v", cfg.LoadBalancer.Binary, err),
		})
	}
	if _, err := exec.LookPath(cfg.Workers.Binary); err != nil {
		errs = append(errs, FieldError{
			Field:   "workers.binary",
			Message: fmt.Sprintf("executable %q not found: %v", cfg.Workers.Binary, err),
		})
	}

	dirs := map[string]string{
		"general.work_dir": cfg.General.WorkDir,
		"general.log_dir":  cfg.General.LogDir,
		"general.pid_dir":  cfg.General.PIDDir,
	}
	for field, dir := range dirs {
		if err := checkWritableDir(dir); err != nil {
			errs = append(errs, FieldError{Field: field, Message: err.Error()})
		}
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// checkWritableDir verifies dir exists (creating it if necessary) and that
// the current identity can write into it.
func checkWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create directory %q: %v", dir, err)
	}
	probe := filepath.Join(dir, ".saturn-write-check")
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("directory %q is not writable: %v", dir, err)
	}
	f.Close()
	os.Remove(probe)
	return nil
}

func validateWorkers(w *WorkersConfig) []FieldError {
	var errs []FieldError

	if w.InstanceCount < 1 {
		errs = append(errs, FieldError{
			Field:   "workers.instance_count",
			Message: fmt.Sprintf("must be at least 1, got %d", w.InstanceCount),
		})
	}
	if w.BaseHTTPPort < 1 || w.BaseHTTPPort > 65535 {
		errs = append(errs, FieldError{
			Field:   "workers.base_http_port",
			Message: fmt.Sprintf("must be a valid TCP port, got %d", w.BaseHTTPPort),
		})
	}
	if w.BaseSOCKSPort < 1 || w.BaseSOCKSPort > 65535 {
		errs = append(errs, FieldError{
			Field:   "workers.base_socks_port",
			Message: fmt.Sprintf("must be a valid TCP port, got %d", w.BaseSOCKSPort),
		})
	}
	if w.InstanceCount >= 1 {
		if w.BaseHTTPPort+w.InstanceCount-1 > 65535 {
			errs = append(errs, FieldError{
				Field:   "workers.base_http_port",
				Message: "port range for instances exceeds 65535",
			})
		}
		if w.BaseSOCKSPort+w.InstanceCount-1 > 65535 {
			errs = append(errs, FieldError{
				Field:   "workers.base_socks_port",
				Message: "port range for instances exceeds 65535",
			})
		}
	}

	if w.Auth.Enabled && w.Auth.Type == "strong" && len(w.Auth.Users) == 0 {
		errs = append(errs, FieldError{
			Field:   "workers.auth.users",
			Message: "strong authentication requires at least one user",
		})
	}
	switch w.Auth.Type {
	case "strong", "iponly", "none", "":
	default:
		errs = append(errs, FieldError{
			Field:   "workers.auth.type",
			Message: fmt.Sprintf("unknown auth type %q (want strong, iponly or none)", w.Auth.Type),
		})
	}

	if w.Limits.MaxConn < 0 {
		errs = append(errs, FieldError{
			Field:   "workers.limits.maxconn",
			Message: "must be non-negative",
		})
	}
	return errs
}

func validateLoadBalancer(lb *LoadBalancerConfig) []FieldError {
	var errs []FieldError

	if !validAlgorithms[lb.Balance.Algorithm] {
		errs = append(errs, FieldError{
			Field: "loadbalancer.balance.algorithm",
			Message: fmt.Sprintf("unknown algorithm %q (want roundrobin, leastconn or source)",
				lb.Balance.Algorithm),
		})
	}
	if lb.Balance.Retries < 0 {
		errs = append(errs, FieldError{
			Field:   "loadbalancer.balance.retries",
			Message: "must be non-negative",
		})
	}
	if lb.HealthCheck.Fall < 1 {
		errs = append(errs, FieldError{
			Field:   "loadbalancer.health_check.fall",
			Message: "must be at least 1",
		})
	}
	if lb.HealthCheck.Rise < 1 {
		errs = append(errs, FieldError{
			Field:   "loadbalancer.health_check.rise",
			Message: "must be at least 1",
		})
	}
	if lb.Stats.Enabled && lb.Stats.Auth == "" {
		errs = append(errs, FieldError{
			Field:   "loadbalancer.stats.auth",
			Message: "stats endpoint requires basic-auth credentials",
		})
	}
	if lb.Stats.Enabled && !strings.HasPrefix(lb.Stats.Bind, "127.0.0.1:") &&
		!strings.HasPrefix(lb.Stats.Bind, "localhost:") {
		errs = append(errs, FieldError{
			Field:   "loadbalancer.stats.bind",
			Message: fmt.Sprintf("stats endpoint must bind to localhost, got %q", lb.Stats.Bind),
		})
	}

	for name, fe := range lb.Frontends {
		if fe.BindPort < 1 || fe.BindPort > 65535 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("loadbalancer.frontends.%s.bind_port", name),
				Message: fmt.Sprintf("must be a valid TCP port, got %d", fe.BindPort),
			})
		}
	}
	return errs
}

// validatePorts checks that every listening port in the topology (frontend
// ports, monitoring port, and each worker's HTTP and SOCKS ports) is
// mutually distinct.
func validatePorts(cfg *Config) []FieldError {
	var errs []FieldError
	seen := map[int]string{}

	claim := func(port int, owner string) {
		if port < 1 || port > 65535 {
			return // reported by the per-section validators
		}
		if prev, ok := seen[port]; ok {
			errs = append(errs, FieldError{
				Field:   owner,
				Message: fmt.Sprintf("port %d already used by %s", port, prev),
			})
			return
		}
		seen[port] = owner
	}

	for name, fe := range cfg.LoadBalancer.Frontends {
		claim(fe.BindPort, fmt.Sprintf("loadbalancer.frontends.%s.bind_port", name))
	}
	if cfg.Monitoring.Enabled {
		claim(cfg.Monitoring.Port, "monitoring.port")
	}
	for i := 0; i < cfg.Workers.InstanceCount; i++ {
		claim(cfg.Workers.BaseHTTPPort+i, fmt.Sprintf("workers[%d].http_port", i))
		claim(cfg.Workers.BaseSOCKSPort+i, fmt.Sprintf("workers[%d].socks_port", i))
	}
	return errs
}

func validateAntiDetect(ad *AntiDetectConfig) []FieldError {
	var errs []FieldError

	if ad.RateLimit.Enabled && ad.RateLimit.RequestsPerSecond < 1 {
		errs = append(errs, FieldError{
			Field:   "anti_detect.rate_limit.requests_per_second",
			Message: "must be at least 1 when rate limiting is enabled",
		})
	}
	if ad.RateLimit.Enabled && ad.RateLimit.Burst < 1 {
		errs = append(errs, FieldError{
			Field:   "anti_detect.rate_limit.burst",
			Message: "must be at least 1 when rate limiting is enabled",
		})
	}
	if ad.UserAgentRotation.Enabled && ad.UserAgentRotation.RotateEvery < 1 {
		errs = append(errs, FieldError{
			Field:   "anti_detect.user_agent_rotation.rotate_every",
			Message: "must be at least 1 second",
		})
	}
	return errs
}

func validateMonitoring(m *MonitoringConfig) []FieldError {
	var errs []FieldError

	if m.Enabled && (m.Port < 1 || m.Port > 65535) {
		errs = append(errs, FieldError{
			Field:   "monitoring.port",
			Message: fmt.Sprintf("must be a valid TCP port, got %d", m.Port),
		})
	}
	if m.ProbeInterval <= 0 {
		errs = append(errs, FieldError{
			Field:   "monitoring.probe_interval",
			Message: "must be positive",
		})
	}
	if m.ProbeTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "monitoring.probe_timeout",
			Message: "must be positive",
		})
	} else if m.ProbeInterval > 0 && m.ProbeTimeout >= m.ProbeInterval {
		errs = append(errs, FieldError{
			Field:   "monitoring.probe_timeout",
			Message: "must be shorter than probe_interval so one probe never delays the next cycle",
		})
	}
	if m.RiseThreshold < 1 {
		errs = append(errs, FieldError{
			Field:   "monitoring.rise_threshold",
			Message: "must be at least 1",
		})
	}
	if m.FallThreshold < 1 {
		errs = append(errs, FieldError{
			Field:   "monitoring.fall_threshold",
			Message: "must be at least 1",
		})
	}
	return errs
}

func validateLogging(l *LoggingConfig) []FieldError {
	var errs []FieldError

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q (want debug, info, warn or error)", l.Level),
		})
	}
	switch l.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown format %q (want json or text)", l.Format),
		})
	}
	return errs
}
