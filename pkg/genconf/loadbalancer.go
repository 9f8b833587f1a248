package genconf

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"relaystack-hq/saturn/pkg/config"
)

// lbTemplate is the load-balancer configuration skeleton. The stack runs the
// load balancer as a supervised foreground child, so no daemon directive is
// emitted. mode tcp everywhere: the balancer never terminates TLS.
const lbTemplate = `# ============================================================
# TCP load balancer configuration for the Saturn proxy stack
# Generated by relayctl - do not edit by hand
# ============================================================
# mode tcp: traffic is passed through untouched, preserving the
# client TLS fingerprint (JA3/JA4). No certificate material here.

global
    log stdout format raw local0
    maxconn 4096
    stats socket {{ .StatsSocket }} mode 660 level admin
    nbthread 4
    spread-checks 5

defaults
    mode tcp
    log global
    option tcplog
    option dontlognull
    option redispatch
    retries {{ .Balance.Retries }}
    timeout connect {{ .Balance.TimeoutConnect }}
    timeout client  {{ .Balance.TimeoutClient }}
    timeout server  {{ .Balance.TimeoutServer }}
    timeout check   5s

{{ .StatsSection }}
{{ range .Frontends }}
frontend ft_{{ .Protocol }}_proxy
    bind {{ $.BindAddress }}:{{ .BindPort }}
{{- if $.EnableIPv6 }}
    bind {{ $.BindAddressV6 }}:{{ .BindPort }}
{{- end }}
    mode tcp
    stick-table type ip size 100k expire 30s store conn_rate(10s)
    tcp-request connection reject if { src_conn_rate gt {{ $.ConnRateLimit }} }
    tcp-request connection track-sc0 src
    default_backend bk_{{ .Protocol }}_proxy
{{ end }}
{{- range .Frontends }}
backend bk_{{ .Protocol }}_proxy
    mode tcp
    balance {{ $.Algorithm }}
    option tcp-check
{{- range .Servers }}
    server {{ .Name }} {{ .Addr }} check inter {{ $.HealthCheck.Inter }} fall {{ $.HealthCheck.Fall }} rise {{ $.HealthCheck.Rise }}
{{- end }}
{{ end -}}
`

const lbStatsTemplate = `frontend stats
    bind {{ .Bind }}
    mode http
    stats enable
    stats uri {{ .URI }}
    stats realm Saturn\ Statistics
    stats auth {{ .Auth }}
    stats refresh 10s
    stats show-legends
    stats show-node`

type lbServer struct {
	Name string
	Addr string
}

type lbFrontend struct {
	Protocol config.Protocol
	BindPort int
	Servers  []lbServer
}

type lbParams struct {
	StatsSocket   string
	StatsSection  string
	Balance       config.BalanceConfig
	HealthCheck   config.LBHealthCheckConfig
	BindAddress   string
	BindAddressV6 string
	EnableIPv6    bool
	Algorithm     string
	ConnRateLimit int
	Frontends     []lbFrontend
}

var (
	lbTmpl      = template.Must(template.New("loadbalancer").Parse(lbTemplate))
	lbStatsTmpl = template.Must(template.New("stats").Parse(lbStatsTemplate))
)

// connRateDisabled effectively turns the limiter off while keeping the
// stick-table wiring in place.
const connRateDisabled = 10000

// RenderLoadBalancer produces the load-balancer configuration for the
// topology. The output is deterministic: frontends are emitted in protocol
// order and backend servers in worker-ordinal order.
func RenderLoadBalancer(topo *config.Topology) (string, error) {
	cfg := topo.Config()

	statsSection := "# stats disabled"
	if cfg.LoadBalancer.Stats.Enabled {
		var sb strings.Builder
		if err := lbStatsTmpl.Execute(&sb, cfg.LoadBalancer.Stats); err != nil {
			return "", fmt.Errorf("rendering stats section: %w", err)
		}
		statsSection = sb.String()
	}

	rate := cfg.AntiDetect.RateLimit.RequestsPerSecond
	if !cfg.AntiDetect.RateLimit.Enabled {
		rate = connRateDisabled
	}

	params := lbParams{
		StatsSocket:   filepath.Join(cfg.General.WorkDir, "haproxy.sock"),
		StatsSection:  statsSection,
		Balance:       cfg.LoadBalancer.Balance,
		HealthCheck:   cfg.LoadBalancer.HealthCheck,
		BindAddress:   cfg.Network.BindAddress,
		BindAddressV6: cfg.Network.BindAddressV6,
		EnableIPv6:    cfg.Network.EnableIPv6,
		Algorithm:     topo.Algorithm,
		ConnRateLimit: rate,
	}

	// Protocol order is fixed; map iteration order must not leak into output.
	protocols := make([]config.Protocol, 0, len(topo.FrontendPorts))
	for p := range topo.FrontendPorts {
		protocols = append(protocols, p)
	}
	sort.Slice(protocols, func(i, j int) bool { return protocols[i] < protocols[j] })

	for _, p := range protocols {
		fe := lbFrontend{Protocol: p, BindPort: topo.FrontendPorts[p]}
		for _, w := range topo.Workers {
			fe.Servers = append(fe.Servers, lbServer{
				Name: fmt.Sprintf("%s_%s", w.Name(), p),
				Addr: fmt.Sprintf("%s:%d", config.BackendHost, w.Port(p)),
			})
		}
		params.Frontends = append(params.Frontends, fe)
	}

	var sb strings.Builder
	if err := lbTmpl.Execute(&sb, params); err != nil {
		return "", fmt.Errorf("rendering load-balancer config: %w", err)
	}
	return sb.String(), nil
}

// LoadBalancerConfigPath returns where the rendered load-balancer
// configuration is written.
func LoadBalancerConfigPath(cfg *config.Config) string {
	if cfg.LoadBalancer.ConfigPath != "" {
		return cfg.LoadBalancer.ConfigPath
	}
	return filepath.Join(cfg.General.WorkDir, "haproxy.cfg")
}
