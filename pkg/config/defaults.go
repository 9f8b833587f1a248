package config

import "time"

// Default values for configuration fields.
const (
	// General defaults
	DefaultWorkDir  = "/opt/proxy-stack"
	DefaultLogDir   = "/var/log/proxy-stack"
	DefaultPIDDir   = "/var/run/proxy-stack"
	DefaultRunUser  = "proxy"
	DefaultRunGroup = "proxy"

	// Network defaults
	DefaultBindAddress   = "0.0.0.0"
	DefaultBindAddressV6 = "[::]"

	// Load balancer defaults
	DefaultLBBinary       = "haproxy"
	DefaultStatsBind      = "127.0.0.1:8404"
	DefaultStatsURI       = "/stats"
	DefaultBalanceAlgo    = "roundrobin"
	DefaultRetries        = 3
	DefaultTimeoutConnect = "5s"
	DefaultTimeoutClient  = "60s"
	DefaultTimeoutServer  = "60s"
	DefaultHCInter        = "3s"
	DefaultHCFall         = 3
	DefaultHCRise         = 2
	DefaultHTTPFrontPort  = 3128
	DefaultSOCKSFrontPort = 1080

	// Worker defaults
	DefaultWorkerBinary  = "3proxy"
	DefaultInstanceCount = 3
	DefaultBaseHTTPPort  = 13128
	DefaultBaseSOCKSPort = 11080
	DefaultWorkerMaxConn = 500
	DefaultWorkerTimeout = 60
	DefaultDNSCacheSize  = 65536
	DefaultLogRotate     = 7
	DefaultLogFormat     = "L%Y%m%d%H%M%S %p %E %C:%c %R:%r %O %I %T"

	// Anti-detect defaults
	DefaultRotateEvery = 60
	DefaultRateLimit   = 50
	DefaultRateBurst   = 100

	// Monitoring defaults
	DefaultMonitorBind   = "127.0.0.1"
	DefaultMonitorPort   = 9100
	DefaultMetricsPath   = "/metrics"
	DefaultHealthPath    = "/health"
	DefaultProbeInterval = 5 * time.Second
	DefaultProbeTimeout  = 3 * time.Second
	DefaultRiseThreshold = 2
	DefaultFallThreshold = 3
	DefaultMinHealthy    = 1

	// Journal defaults
	DefaultJournalRetentionDays = 30
	DefaultJournalSchedule      = "0 3 * * *"

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogOutput = "text"
)

// DefaultDNSServers are used when the worker dns section lists none.
var DefaultDNSServers = []string{"1.1.1.1", "8.8.8.8"}

// ApplyDefaults fills zero-valued fields with their documented defaults.
// It is called by Load before validation so a minimal YAML document yields
// a complete, runnable configuration.
func ApplyDefaults(cfg *Config) {
	if cfg.General.WorkDir == "" {
		cfg.General.WorkDir = DefaultWorkDir
	}
	if cfg.General.LogDir == "" {
		cfg.General.LogDir = DefaultLogDir
	}
	if cfg.General.PIDDir == "" {
		cfg.General.PIDDir = DefaultPIDDir
	}
	if cfg.General.RunUser == "" {
		cfg.General.RunUser = DefaultRunUser
	}
	if cfg.General.RunGroup == "" {
		cfg.General.RunGroup = DefaultRunGroup
	}

	if cfg.Network.BindAddress == "" {
		cfg.Network.BindAddress = DefaultBindAddress
	}
	if cfg.Network.BindAddressV6 == "" {
		cfg.Network.BindAddressV6 = DefaultBindAddressV6
	}

	applyLBDefaults(&cfg.LoadBalancer)
	applyWorkerDefaults(&cfg.Workers)
	applyAntiDetectDefaults(&cfg.AntiDetect)
	applyMonitoringDefaults(&cfg.Monitoring)
	applyJournalDefaults(&cfg.Journal)

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogOutput
	}
}

func applyLBDefaults(lb *LoadBalancerConfig) {
	if lb.Binary == "" {
		lb.Binary = DefaultLBBinary
	}
	if lb.Stats.Bind == "" {
		lb.Stats.Bind = DefaultStatsBind
	}
	if lb.Stats.URI == "" {
		lb.Stats.URI = DefaultStatsURI
	}
	if lb.Balance.Algorithm == "" {
		lb.Balance.Algorithm = DefaultBalanceAlgo
	}
	if lb.Balance.Retries == 0 {
		lb.Balance.Retries = DefaultRetries
	}
	if lb.Balance.TimeoutConnect == "" {
		lb.Balance.TimeoutConnect = DefaultTimeoutConnect
	}
	if lb.Balance.TimeoutClient == "" {
		lb.Balance.TimeoutClient = DefaultTimeoutClient
	}
	if lb.Balance.TimeoutServer == "" {
		lb.Balance.TimeoutServer = DefaultTimeoutServer
	}
	if lb.HealthCheck.Inter == "" {
		lb.HealthCheck.Inter = DefaultHCInter
	}
	if lb.HealthCheck.Fall == 0 {
		lb.HealthCheck.Fall = DefaultHCFall
	}
	if lb.HealthCheck.Rise == 0 {
		lb.HealthCheck.Rise = DefaultHCRise
	}
	if lb.Frontends == nil {
		lb.Frontends = map[string]FrontendConfig{}
	}
	if _, ok := lb.Frontends["http"]; !ok {
		lb.Frontends["http"] = FrontendConfig{BindPort: DefaultHTTPFrontPort}
	}
	if _, ok := lb.Frontends["socks"]; !ok {
		lb.Frontends["socks"] = FrontendConfig{BindPort: DefaultSOCKSFrontPort}
	}
}

func applyWorkerDefaults(w *WorkersConfig) {
	if w.Binary == "" {
		w.Binary = DefaultWorkerBinary
	}
	if w.InstanceCount == 0 {
		w.InstanceCount = DefaultInstanceCount
	}
	if w.BaseHTTPPort == 0 {
		w.BaseHTTPPort = DefaultBaseHTTPPort
	}
	if w.BaseSOCKSPort == 0 {
		w.BaseSOCKSPort = DefaultBaseSOCKSPort
	}
	if w.Auth.Type == "" {
		w.Auth.Type = "strong"
	}
	if len(w.DNS.Nameservers) == 0 {
		w.DNS.Nameservers = append([]string(nil), DefaultDNSServers...)
	}
	if w.DNS.CacheSize == 0 {
		w.DNS.CacheSize = DefaultDNSCacheSize
	}
	if w.DNS.CacheSizeV6 == 0 {
		w.DNS.CacheSizeV6 = DefaultDNSCacheSize
	}
	if w.Limits.MaxConn == 0 {
		w.Limits.MaxConn = DefaultWorkerMaxConn
	}
	if w.Limits.Timeout == 0 {
		w.Limits.Timeout = DefaultWorkerTimeout
	}
	if w.Logging.Format == "" {
		w.Logging.Format = DefaultLogFormat
	}
	if w.Logging.Rotate == 0 {
		w.Logging.Rotate = DefaultLogRotate
	}
}

func applyAntiDetectDefaults(ad *AntiDetectConfig) {
	if ad.UserAgentRotation.RotateEvery == 0 {
		ad.UserAgentRotation.RotateEvery = DefaultRotateEvery
	}
	if ad.RateLimit.RequestsPerSecond == 0 {
		ad.RateLimit.RequestsPerSecond = DefaultRateLimit
	}
	if ad.RateLimit.Burst == 0 {
		ad.RateLimit.Burst = DefaultRateBurst
	}
}

func applyMonitoringDefaults(m *MonitoringConfig) {
	if m.Bind == "" {
		m.Bind = DefaultMonitorBind
	}
	if m.Port == 0 {
		m.Port = DefaultMonitorPort
	}
	if m.MetricsPath == "" {
		m.MetricsPath = DefaultMetricsPath
	}
	if m.HealthPath == "" {
		m.HealthPath = DefaultHealthPath
	}
	if m.ProbeInterval == 0 {
		m.ProbeInterval = DefaultProbeInterval
	}
	if m.ProbeTimeout == 0 {
		m.ProbeTimeout = DefaultProbeTimeout
	}
	if m.RiseThreshold == 0 {
		m.RiseThreshold = DefaultRiseThreshold
	}
	if m.FallThreshold == 0 {
		m.FallThreshold = DefaultFallThreshold
	}
	if m.Alerts.Thresholds.MinHealthyBackends == 0 {
		m.Alerts.Thresholds.MinHealthyBackends = DefaultMinHealthy
	}
}

func applyJournalDefaults(j *JournalConfig) {
	if j.RetentionDays == 0 {
		j.RetentionDays = DefaultJournalRetentionDays
	}
	if j.PruneSchedule == "" {
		j.PruneSchedule = DefaultJournalSchedule
	}
}
