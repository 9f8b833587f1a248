// Package health probes the stack's worker ports over TCP and keeps a
// hysteresis-smoothed view of backend liveness. A port only changes status
// after the configured number of consecutive probe results, so a single
// dropped connection never flaps the reported state.
//
// The monitor's view is deliberately independent of the load balancer's own
// health checks: the two may disagree transiently and are never reconciled.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"relaystack-hq/saturn/pkg/config"
)

// Status is the smoothed health state of one probed port.
type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// Transition describes a port status change that cleared hysteresis.
type Transition struct {
	Backend  string
	Protocol config.Protocol
	From, To Status
}

// PortHealth is the read-only view of one probed port.
type PortHealth struct {
	Status              Status
	Alive               bool
	LatencyMS           float64
	ConsecutiveFailures int
	LastChecked         time.Time
}

// BackendHealth aggregates a worker instance's probed ports. The backend is
// healthy only when every port is.
type BackendHealth struct {
	Healthy bool
	Ports   map[config.Protocol]PortHealth
}

// backendWire is the backend's shape in the health document: flat
// per-protocol keys rather than the nested port map.
type backendWire struct {
	Healthy             bool    `json:"healthy"`
	HTTPAlive           bool    `json:"http_alive"`
	SocksAlive          bool    `json:"socks_alive"`
	HTTPLatencyMS       float64 `json:"http_latency_ms"`
	SocksLatencyMS      float64 `json:"socks_latency_ms"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
}

// MarshalJSON flattens the per-port view into the documented wire keys.
// Consecutive failures report the worst port.
func (b BackendHealth) MarshalJSON() ([]byte, error) {
	httpPort := b.Ports[config.ProtocolHTTP]
	socksPort := b.Ports[config.ProtocolSOCKS]
	failures := httpPort.ConsecutiveFailures
	if socksPort.ConsecutiveFailures > failures {
		failures = socksPort.ConsecutiveFailures
	}
	return json.Marshal(backendWire{
		Healthy:             b.Healthy,
		HTTPAlive:           httpPort.Alive,
		SocksAlive:          socksPort.Alive,
		HTTPLatencyMS:       httpPort.LatencyMS,
		SocksLatencyMS:      socksPort.LatencyMS,
		ConsecutiveFailures: failures,
	})
}

// UnmarshalJSON rebuilds the per-port view from the flat document, so remote
// readers of the endpoint get the same struct the monitor produces locally.
func (b *BackendHealth) UnmarshalJSON(data []byte) error {
	var w backendWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	status := func(alive bool) Status {
		if alive {
			return StatusHealthy
		}
		return StatusUnhealthy
	}
	b.Healthy = w.Healthy
	b.Ports = map[config.Protocol]PortHealth{
		config.ProtocolHTTP: {
			Status:              status(w.HTTPAlive),
			Alive:               w.HTTPAlive,
			LatencyMS:           w.HTTPLatencyMS,
			ConsecutiveFailures: w.ConsecutiveFailures,
		},
		config.ProtocolSOCKS: {
			Status:              status(w.SocksAlive),
			Alive:               w.SocksAlive,
			LatencyMS:           w.SocksLatencyMS,
			ConsecutiveFailures: w.ConsecutiveFailures,
		},
	}
	return nil
}

// Snapshot is a deep copy of the monitor's state; callers may hold it freely.
type Snapshot struct {
	Status   string                   `json:"status"`
	Healthy  int                      `json:"healthy_backends"`
	Total    int                      `json:"total_backends"`
	Backends map[string]BackendHealth `json:"backends"`
	TakenAt  time.Time                `json:"taken_at"`
}

type portState struct {
	backend  string
	protocol config.Protocol
	addr     string

	status          Status
	consecutiveUp   int
	consecutiveDown int
	latency         time.Duration
	lastChecked     time.Time
	totalChecks     uint64
	totalFailures   uint64
}

// Monitor owns the probe loop. Construct with New, then Run in a goroutine;
// Snapshot is safe to call from any goroutine at any time.
type Monitor struct {
	cfg    *config.Config
	logger *slog.Logger

	// probe is the dial implementation, replaceable in tests.
	probe func(addr string, timeout time.Duration) (time.Duration, error)

	// onTransition, when set before Run, receives every status flip.
	onTransition func(Transition)

	mu    sync.RWMutex
	ports []*portState
}

// New builds a monitor covering every worker port in the topology.
func New(topo *config.Topology, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		cfg:    topo.Config(),
		logger: logger,
		probe:  tcpProbe,
	}
	for _, w := range topo.Workers {
		for _, p := range config.Protocols {
			m.ports = append(m.ports, &portState{
				backend:  w.Name(),
				protocol: p,
				addr:     fmt.Sprintf("%s:%d", config.BackendHost, w.Port(p)),
				status:   StatusUnknown,
			})
		}
	}
	return m
}

// OnTransition registers cb to receive status flips. Must be called before
// Run; the callback runs on the probe goroutine and must not block.
func (m *Monitor) OnTransition(cb func(Transition)) {
	m.onTransition = cb
}

func tcpProbe(addr string, timeout time.Duration) (time.Duration, error) {
	start := time.Now()
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return 0, err
	}
	conn.Close()
	return time.Since(start), nil
}

// Run executes probe sweeps on the configured interval until ctx is done.
// The first sweep happens immediately so status is available right after
// startup rather than one interval later.
func (m *Monitor) Run(ctx context.Context) {
	mon := m.cfg.Monitoring
	m.Sweep(ctx)
	ticker := time.NewTicker(mon.ProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep probes every port once, concurrently, and folds the results into the
// hysteresis state.
func (m *Monitor) Sweep(ctx context.Context) {
	mon := m.cfg.Monitoring

	type result struct {
		latency time.Duration
		err     error
	}
	results := make([]result, len(m.ports))

	var wg sync.WaitGroup
	for i, ps := range m.ports {
		wg.Add(1)
		go func(i int, addr string) {
			defer wg.Done()
			lat, err := m.probe(addr, mon.ProbeTimeout)
			results[i] = result{latency: lat, err: err}
		}(i, ps.addr)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return
	}

	now := time.Now()
	var transitions []Transition

	m.mu.Lock()
	for i, ps := range m.ports {
		r := results[i]
		ps.lastChecked = now
		ps.totalChecks++
		var to Status
		if r.err == nil {
			ps.latency = r.latency
			ps.consecutiveUp++
			ps.consecutiveDown = 0
			if ps.status != StatusHealthy && ps.consecutiveUp >= mon.RiseThreshold {
				to = StatusHealthy
			}
		} else {
			ps.latency = 0
			ps.totalFailures++
			ps.consecutiveDown++
			ps.consecutiveUp = 0
			if ps.status != StatusUnhealthy && ps.consecutiveDown >= mon.FallThreshold {
				to = StatusUnhealthy
			}
		}
		if to != "" {
			transitions = append(transitions, Transition{
				Backend:  ps.backend,
				Protocol: ps.protocol,
				From:     ps.status,
				To:       to,
			})
			ps.status = to
		}
	}
	m.mu.Unlock()

	for _, tr := range transitions {
		m.logger.Info("backend health changed",
			"backend", tr.Backend, "protocol", string(tr.Protocol),
			"from", string(tr.From), "to", string(tr.To))
		if m.onTransition != nil {
			m.onTransition(tr)
		}
	}
}

// Snapshot returns a deep copy of the current health view plus the overall
// summary: healthy when every backend is, degraded when only some are,
// unhealthy when none are, unknown before the first conclusive sweep.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	backends := make(map[string]BackendHealth)
	allUnknown := true
	for _, ps := range m.ports {
		b, ok := backends[ps.backend]
		if !ok {
			b = BackendHealth{Healthy: true, Ports: make(map[config.Protocol]PortHealth)}
		}
		if ps.status != StatusUnknown {
			allUnknown = false
		}
		if ps.status != StatusHealthy {
			b.Healthy = false
		}
		b.Ports[ps.protocol] = PortHealth{
			Status:              ps.status,
			Alive:               ps.status == StatusHealthy,
			LatencyMS:           float64(ps.latency) / float64(time.Millisecond),
			ConsecutiveFailures: ps.consecutiveDown,
			LastChecked:         ps.lastChecked,
		}
		backends[ps.backend] = b
	}

	snap := Snapshot{
		Backends: backends,
		Total:    len(backends),
		TakenAt:  time.Now(),
	}
	for _, b := range backends {
		if b.Healthy {
			snap.Healthy++
		}
	}
	switch {
	case allUnknown:
		snap.Status = "unknown"
	case snap.Healthy == snap.Total && snap.Total > 0:
		snap.Status = "healthy"
	case snap.Healthy > 0:
		snap.Status = "degraded"
	default:
		snap.Status = "unhealthy"
	}
	return snap
}
