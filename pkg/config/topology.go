package config

import "fmt"

// Protocol identifies one of the two proxied protocols.
type Protocol string

const (
	// ProtocolHTTP is the HTTP CONNECT proxy protocol.
	ProtocolHTTP Protocol = "http"
	// ProtocolSOCKS is the SOCKS5 proxy protocol.
	ProtocolSOCKS Protocol = "socks"
)

// Protocols lists the proxied protocols in deterministic order.
var Protocols = []Protocol{ProtocolHTTP, ProtocolSOCKS}

// WorkerInstance identifies one proxy worker behind the load balancer.
// Instances are created from a validated Config at model-build time and are
// immutable for the lifetime of a run.
type WorkerInstance struct {
	// Ordinal is the instance index, 0..N-1.
	Ordinal int

	// HTTPPort and SOCKSPort are the instance's two listener ports.
	HTTPPort  int
	SOCKSPort int

	// AuthEnabled mirrors workers.auth.enabled.
	AuthEnabled bool
}

// Name returns the stable backend identifier used in generated configuration,
// health records and metrics labels.
func (w WorkerInstance) Name() string {
	return fmt.Sprintf("worker_%d", w.Ordinal)
}

// Port returns the listener port for the given protocol.
func (w WorkerInstance) Port(p Protocol) int {
	if p == ProtocolSOCKS {
		return w.SOCKSPort
	}
	return w.HTTPPort
}

// Topology is the validated, immutable in-memory representation of the
// desired stack: the frontend ports per protocol and the worker instances
// behind them. It is the single input of the config generator and the
// supervisor.
type Topology struct {
	// FrontendPorts maps protocol to the load balancer's bind port.
	FrontendPorts map[Protocol]int

	// Workers holds the N worker instances, ordered by ordinal.
	Workers []WorkerInstance

	// Algorithm is the load-balancing algorithm for all backend groups.
	Algorithm string

	cfg *Config
}

// BuildTopology derives the Topology from a validated configuration.
// Call Validate first; BuildTopology assumes the invariants hold.
func BuildTopology(cfg *Config) *Topology {
	t := &Topology{
		FrontendPorts: map[Protocol]int{},
		Algorithm:     cfg.LoadBalancer.Balance.Algorithm,
		cfg:           cfg,
	}
	for name, fe := range cfg.LoadBalancer.Frontends {
		t.FrontendPorts[Protocol(name)] = fe.BindPort
	}
	for i := 0; i < cfg.Workers.InstanceCount; i++ {
		t.Workers = append(t.Workers, WorkerInstance{
			Ordinal:     i,
			HTTPPort:    cfg.Workers.BaseHTTPPort + i,
			SOCKSPort:   cfg.Workers.BaseSOCKSPort + i,
			AuthEnabled: cfg.Workers.Auth.Enabled,
		})
	}
	return t
}

// Config returns the configuration the topology was built from.
func (t *Topology) Config() *Config { return t.cfg }

// BackendHost is the address workers bind their backend listeners to.
// Workers always sit behind the load balancer on the loopback interface.
const BackendHost = "127.0.0.1"
