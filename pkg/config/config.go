package config

import "time"

// Config is the root configuration structure for the Saturn proxy stack.
// It describes the desired topology: one TCP load balancer fronting N
// interchangeable proxy worker processes, plus the monitoring and
// anti-detection settings that shape the generated configuration.
type Config struct {
	// General contains filesystem paths and the runtime identity the stack
	// drops to after a privileged bootstrap.
	General GeneralConfig `yaml:"general"`

	// Network contains bind addresses shared by the load balancer and the
	// worker instances.
	Network NetworkConfig `yaml:"network"`

	// LoadBalancer configures the external load-balancer binary and the
	// frontends it exposes.
	LoadBalancer LoadBalancerConfig `yaml:"loadbalancer"`

	// Workers configures the pool of proxy worker instances behind the
	// load balancer.
	Workers WorkersConfig `yaml:"workers"`

	// AntiDetect configures traffic-shaping behavior encoded into the
	// generated configuration (header handling, rate limiting, UA rotation).
	AntiDetect AntiDetectConfig `yaml:"anti_detect"`

	// Monitoring configures the status/metrics HTTP endpoint.
	Monitoring MonitoringConfig `yaml:"monitoring"`

	// Journal configures the lifecycle-event journal.
	Journal JournalConfig `yaml:"journal"`

	// Logging configures structured logging for the orchestrator itself.
	Logging LoggingConfig `yaml:"logging"`

	// Path is the location the configuration was loaded from.
	// Populated by Load; not read from the YAML document.
	Path string `yaml:"-"`
}

// GeneralConfig contains paths and the unprivileged runtime identity.
type GeneralConfig struct {
	// WorkDir is where generated configuration files are written.
	// Default: /opt/proxy-stack
	WorkDir string `yaml:"work_dir"`

	// LogDir is where the stack and its children write logs.
	// Default: /var/log/proxy-stack
	LogDir string `yaml:"log_dir"`

	// PIDDir is where PID files for supervised processes are written.
	// Default: /var/run/proxy-stack
	PIDDir string `yaml:"pid_dir"`

	// RunUser and RunGroup identify the unprivileged account the
	// orchestrator switches to when started as root.
	RunUser  string `yaml:"run_user"`
	RunGroup string `yaml:"run_group"`
}

// NetworkConfig contains shared bind addresses.
type NetworkConfig struct {
	// BindAddress is the IPv4 address frontends bind to. Default: 0.0.0.0
	BindAddress string `yaml:"bind_address"`

	// BindAddressV6 is the IPv6 address frontends bind to. Default: [::]
	BindAddressV6 string `yaml:"bind_address_v6"`

	// EnableIPv6 adds IPv6 bind lines to generated configuration.
	EnableIPv6 bool `yaml:"enable_ipv6"`
}

// FrontendConfig describes one listening frontend of the load balancer.
type FrontendConfig struct {
	// BindPort is the TCP port the frontend listens on.
	BindPort int `yaml:"bind_port"`
}

// StatsConfig configures the load balancer's stats/administration endpoint.
// The endpoint is always bound to localhost and protected by basic auth.
type StatsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bind    string `yaml:"bind"`
	URI     string `yaml:"uri"`

	// Auth is the "user:password" credential pair for the stats page.
	Auth string `yaml:"auth"`
}

// BalanceConfig selects the load-balancing algorithm and connection timeouts.
type BalanceConfig struct {
	// Algorithm is one of: roundrobin, leastconn, source.
	Algorithm string `yaml:"algorithm"`

	// Retries is the number of connection attempts per backend.
	Retries int `yaml:"retries"`

	TimeoutConnect string `yaml:"timeout_connect"`
	TimeoutClient  string `yaml:"timeout_client"`
	TimeoutServer  string `yaml:"timeout_server"`
}

// LBHealthCheckConfig tunes the load balancer's own backend health checks.
// These are independent of the engine's Health Monitor; the two views may
// diverge transiently.
type LBHealthCheckConfig struct {
	// Inter is the probe interval (load-balancer duration syntax, e.g. "3s").
	Inter string `yaml:"inter"`

	// Fall is the consecutive-failure count before a backend is marked down.
	Fall int `yaml:"fall"`

	// Rise is the consecutive-success count before a backend is marked up.
	Rise int `yaml:"rise"`
}

// LoadBalancerConfig configures the external load-balancer process.
type LoadBalancerConfig struct {
	// Binary is the load-balancer executable path or name on PATH.
	// Default: haproxy
	Binary string `yaml:"binary"`

	// ConfigPath overrides the generated configuration file location.
	// Supports a "{{ work_dir }}" placeholder. Empty means
	// <work_dir>/haproxy.cfg.
	ConfigPath string `yaml:"config_path"`

	Stats       StatsConfig               `yaml:"stats"`
	Frontends   map[string]FrontendConfig `yaml:"frontends"`
	Balance     BalanceConfig             `yaml:"balance"`
	HealthCheck LBHealthCheckConfig       `yaml:"health_check"`
}

// AuthUser is one credential pair for worker proxy authentication.
type AuthUser struct {
	Login    string `yaml:"login"`
	Password string `yaml:"password"`
}

// WorkerAuthConfig enables credential-based authentication on the workers.
type WorkerAuthConfig struct {
	Enabled bool `yaml:"enabled"`

	// Type is the worker auth scheme: "strong" (login/password), "iponly"
	// or "none".
	Type string `yaml:"type"`

	Users []AuthUser `yaml:"users"`
}

// WorkerDNSConfig configures resolver behavior for the workers.
type WorkerDNSConfig struct {
	Nameservers []string `yaml:"nameservers"`
	CacheSize   int      `yaml:"cache_size"`
	CacheSizeV6 int      `yaml:"cache_size_v6"`
}

// WorkerLimitsConfig bounds per-worker resource usage.
type WorkerLimitsConfig struct {
	MaxConn int `yaml:"maxconn"`

	// Timeout is the worker connection timeout in seconds.
	Timeout int `yaml:"timeout"`

	// BandLimitIn/Out are bandwidth caps in bits per second; 0 disables.
	BandLimitIn  int `yaml:"bandlimin"`
	BandLimitOut int `yaml:"bandlimout"`
}

// WorkerLoggingConfig configures per-worker access logging.
type WorkerLoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"`
	Rotate  int    `yaml:"rotate"`
}

// WorkersConfig configures the pool of proxy worker processes.
type WorkersConfig struct {
	// Binary is the proxy worker executable path or name on PATH.
	// Default: 3proxy
	Binary string `yaml:"binary"`

	// InstanceCount is the number of worker instances. Must be >= 1.
	InstanceCount int `yaml:"instance_count"`

	// BaseHTTPPort is the HTTP-proxy port of instance 0; instance i
	// listens on BaseHTTPPort+i.
	BaseHTTPPort int `yaml:"base_http_port"`

	// BaseSOCKSPort is the SOCKS port of instance 0; instance i listens
	// on BaseSOCKSPort+i.
	BaseSOCKSPort int `yaml:"base_socks_port"`

	Auth    WorkerAuthConfig    `yaml:"auth"`
	DNS     WorkerDNSConfig     `yaml:"dns"`
	Limits  WorkerLimitsConfig  `yaml:"limits"`
	Logging WorkerLoggingConfig `yaml:"logging"`
}

// UserAgentRotationConfig configures periodic User-Agent rotation.
type UserAgentRotationConfig struct {
	Enabled bool `yaml:"enabled"`

	// RotateEvery is the rotation interval in seconds.
	RotateEvery int `yaml:"rotate_every"`

	// PoolFile optionally points at a newline-separated User-Agent list;
	// empty means the built-in pool.
	PoolFile string `yaml:"pool_file"`
}

// HeaderManipulationConfig lists headers stripped from or forged onto
// proxied requests by the generated configuration.
type HeaderManipulationConfig struct {
	Enabled      bool              `yaml:"enabled"`
	StripHeaders []string          `yaml:"strip_headers"`
	AddHeaders   map[string]string `yaml:"add_headers"`
}

// RateLimitConfig configures the source-address connection-rate limiter
// encoded into the load-balancer frontends.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`

	// RequestsPerSecond is the sustained per-source rate.
	RequestsPerSecond int `yaml:"requests_per_second"`

	// Burst is the token-bucket capacity.
	Burst int `yaml:"burst"`

	// PerIP keys the limiter by source address rather than globally.
	PerIP bool `yaml:"per_ip"`
}

// AntiDetectConfig groups the traffic-shaping knobs.
type AntiDetectConfig struct {
	UserAgentRotation  UserAgentRotationConfig  `yaml:"user_agent_rotation"`
	HeaderManipulation HeaderManipulationConfig `yaml:"header_manipulation"`
	RateLimit          RateLimitConfig          `yaml:"rate_limit"`
}

// AlertThresholds define when the monitor flags the stack as degraded.
type AlertThresholds struct {
	CPUPercent         int `yaml:"cpu_percent"`
	MemoryPercent      int `yaml:"memory_percent"`
	MinHealthyBackends int `yaml:"min_healthy_backends"`
}

// AlertsConfig configures degradation alerting.
type AlertsConfig struct {
	// WebhookURL receives alert POSTs; empty disables delivery.
	WebhookURL string `yaml:"webhook_url"`

	Thresholds AlertThresholds `yaml:"thresholds"`
}

// MonitoringConfig configures the status/metrics HTTP endpoint.
type MonitoringConfig struct {
	Enabled bool `yaml:"enabled"`

	// Bind is the address the endpoint listens on. Default: 127.0.0.1
	Bind string `yaml:"bind"`

	// Port is the endpoint's TCP port. Default: 9100
	Port int `yaml:"port"`

	MetricsPath string `yaml:"metrics_path"`
	HealthPath  string `yaml:"health_path"`

	// ProbeInterval is the Health Monitor cycle interval.
	ProbeInterval time.Duration `yaml:"probe_interval"`

	// ProbeTimeout bounds a single TCP probe attempt. Must be shorter
	// than ProbeInterval so a slow probe never delays the next cycle.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// RiseThreshold / FallThreshold are the hysteresis counts for the
	// engine's own health view.
	RiseThreshold int `yaml:"rise_threshold"`
	FallThreshold int `yaml:"fall_threshold"`

	Alerts AlertsConfig `yaml:"alerts"`
}

// JournalConfig configures the SQLite lifecycle-event journal.
type JournalConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is the journal database file. Empty means <work_dir>/journal.db.
	Path string `yaml:"path"`

	// RetentionDays is how long events are kept before pruning.
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for the pruning job.
	PruneSchedule string `yaml:"prune_schedule"`
}

// LoggingConfig configures the orchestrator's own structured logging.
type LoggingConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is one of: json, text.
	Format string `yaml:"format"`

	// File enables an additional log file under general.log_dir.
	File bool `yaml:"file"`
}

// StopTimeout is how long Stop waits for graceful termination before
// escalating to SIGKILL.
const StopTimeout = 10 * time.Second
