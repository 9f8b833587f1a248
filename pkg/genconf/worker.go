package genconf

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"relaystack-hq/saturn/pkg/config"
)

// workerTemplate is the per-instance proxy worker configuration. Workers run
// as supervised foreground children, so no daemon directive is emitted; the
// supervisor owns the PID.
const workerTemplate = `# ============================================================
# Proxy worker instance #{{ .Ordinal }}
# Generated by relayctl - do not edit by hand
# ============================================================

# --- DNS ---
{{ .DNSSection }}
nscache {{ .DNS.CacheSize }}
nscache6 {{ .DNS.CacheSizeV6 }}

# --- Timeouts ---
timeouts 1 5 30 60 180 1800 {{ .Limits.Timeout }} {{ .Limits.Timeout }}

# --- Limits ---
maxconn {{ .Limits.MaxConn }}

# --- Logging ---
{{ .LogSection }}

# --- Authentication ---
{{ .AuthSection }}

# --- Header shaping ---
{{ .HeaderSection }}

# --- Bandwidth ---
{{ .BandSection }}

# --- HTTP (CONNECT) proxy ---
proxy -p{{ .HTTPPort }} -i{{ .BindAddress }}
{{- if .EnableIPv6 }}
proxy -p{{ .HTTPPort }} -i{{ .BindAddressV6 }}
{{- end }}

# --- SOCKS5 proxy ---
socks -p{{ .SOCKSPort }} -i{{ .BindAddress }}
{{- if .EnableIPv6 }}
socks -p{{ .SOCKSPort }} -i{{ .BindAddressV6 }}
{{- end }}

flush
`

type workerParams struct {
	Ordinal       int
	DNSSection    string
	DNS           config.WorkerDNSConfig
	Limits        config.WorkerLimitsConfig
	LogSection    string
	AuthSection   string
	HeaderSection string
	BandSection   string
	HTTPPort      int
	SOCKSPort     int
	BindAddress   string
	BindAddressV6 string
	EnableIPv6    bool
}

var workerTmpl = template.Must(template.New("worker").Parse(workerTemplate))

// RenderWorker produces the configuration text for one worker instance.
func RenderWorker(topo *config.Topology, ordinal int) (string, error) {
	if ordinal < 0 || ordinal >= len(topo.Workers) {
		return "", fmt.Errorf("worker ordinal %d out of range [0,%d)", ordinal, len(topo.Workers))
	}
	cfg := topo.Config()
	w := topo.Workers[ordinal]

	params := workerParams{
		Ordinal:       w.Ordinal,
		DNSSection:    dnsSection(&cfg.Workers.DNS),
		DNS:           cfg.Workers.DNS,
		Limits:        cfg.Workers.Limits,
		LogSection:    logSection(cfg, w.Ordinal),
		AuthSection:   authSection(&cfg.Workers.Auth),
		HeaderSection: headerSection(&cfg.AntiDetect.HeaderManipulation),
		BandSection:   bandSection(&cfg.Workers.Limits),
		HTTPPort:      w.HTTPPort,
		SOCKSPort:     w.SOCKSPort,
		BindAddress:   cfg.Network.BindAddress,
		BindAddressV6: cfg.Network.BindAddressV6,
		EnableIPv6:    cfg.Network.EnableIPv6,
	}

	var sb strings.Builder
	if err := workerTmpl.Execute(&sb, params); err != nil {
		return "", fmt.Errorf("rendering worker %d config: %w", ordinal, err)
	}
	return sb.String(), nil
}

func dnsSection(dns *config.WorkerDNSConfig) string {
	lines := make([]string, 0, len(dns.Nameservers))
	for _, ns := range dns.Nameservers {
		lines = append(lines, "nserver "+ns)
	}
	return strings.Join(lines, "\n")
}

func logSection(cfg *config.Config, ordinal int) string {
	lc := cfg.Workers.Logging
	if !lc.Enabled {
		return "# logging disabled"
	}
	logFile := filepath.Join(cfg.General.LogDir, fmt.Sprintf("worker_%d.log", ordinal))
	return fmt.Sprintf("log %q D\nlogformat %q\nrotate %d", logFile, lc.Format, lc.Rotate)
}

func authSection(auth *config.WorkerAuthConfig) string {
	if !auth.Enabled {
		return "auth none\nallow *"
	}
	switch auth.Type {
	case "iponly":
		return "auth iponly\nallow *"
	case "strong":
		lines := []string{"auth strong"}
		for _, u := range auth.Users {
			// CL marks a cleartext credential in the worker dialect.
			lines = append(lines, fmt.Sprintf("users %q", u.Login+":CL:"+u.Password))
		}
		lines = append(lines, "allow *")
		return strings.Join(lines, "\n")
	default:
		return "auth none\nallow *"
	}
}

// headerSection documents the header-shaping intent. The workers cannot
// rewrite headers inside a CONNECT tunnel; in TCP passthrough the client's
// headers survive untouched, which is the point. The strip/forge lists are
// recorded here so the generated file states the effective policy.
func headerSection(hm *config.HeaderManipulationConfig) string {
	if !hm.Enabled {
		return "# header shaping disabled"
	}
	var lines []string
	for _, h := range hm.StripHeaders {
		lines = append(lines, "# strip: "+h)
	}
	keys := make([]string, 0, len(hm.AddHeaders))
	for k := range hm.AddHeaders {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("# forge: %s: %s", k, hm.AddHeaders[k]))
	}
	lines = append(lines, "# header shaping applied by the anti-detect layer")
	return strings.Join(lines, "\n")
}

func bandSection(lim *config.WorkerLimitsConfig) string {
	var lines []string
	if lim.BandLimitIn > 0 {
		lines = append(lines, fmt.Sprintf("bandlimin %d", lim.BandLimitIn))
	}
	if lim.BandLimitOut > 0 {
		lines = append(lines, fmt.Sprintf("bandlimout %d", lim.BandLimitOut))
	}
	if len(lines) == 0 {
		return "# no bandwidth limits"
	}
	return strings.Join(lines, "\n")
}

// WorkerConfigPath returns where worker ordinal's rendered configuration is
// written.
func WorkerConfigPath(cfg *config.Config, ordinal int) string {
	return filepath.Join(cfg.General.WorkDir, "workers",
		fmt.Sprintf("instance_%d", ordinal), "worker.cfg")
}
