// Package antidetect implements the traffic-shaping measures of the stack:
// User-Agent rotation on a schedule, the header strip/forge policy consumed
// by config generation, and a per-source token-bucket rate limiter.
package antidetect

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"relaystack-hq/saturn/pkg/config"
)

// idleBucketTTL is how long an unused rate-limit bucket survives.
const idleBucketTTL = 10 * time.Minute

// Manager owns the anti-detection state. Construct with NewManager, call
// Start to begin scheduled rotation, Stop on shutdown.
type Manager struct {
	cfg    config.AntiDetectConfig
	logger *slog.Logger

	scheduler *cron.Cron
	limiter   *SourceLimiter

	mu      sync.RWMutex
	pool    []string
	current int

	// onRotate, when set before Start, observes every rotation.
	onRotate func(userAgent string)
}

// NewManager builds the manager, loading the User-Agent pool file when one
// is configured. The initial agent is chosen at random so restarts don't
// always re-announce the first pool entry.
func NewManager(cfg config.AntiDetectConfig, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool := builtinUserAgents
	if cfg.UserAgentRotation.PoolFile != "" {
		loaded, err := loadUserAgentPool(cfg.UserAgentRotation.PoolFile)
		if err != nil {
			return nil, err
		}
		pool = loaded
	}

	m := &Manager{
		cfg:       cfg,
		logger:    logger,
		scheduler: cron.New(),
		pool:      pool,
		current:   rand.Intn(len(pool)),
	}
	if cfg.RateLimit.Enabled {
		m.limiter = NewSourceLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.PerIP)
	}
	return m, nil
}

// OnRotate registers cb to observe rotations. Must be called before Start.
func (m *Manager) OnRotate(cb func(userAgent string)) {
	m.onRotate = cb
}

// Start schedules User-Agent rotation and rate-limit bucket cleanup.
func (m *Manager) Start() error {
	if m.cfg.UserAgentRotation.Enabled {
		every := m.cfg.UserAgentRotation.RotateEvery
		if every <= 0 {
			return fmt.Errorf("user-agent rotation interval must be positive, got %d", every)
		}
		spec := fmt.Sprintf("@every %ds", every)
		if _, err := m.scheduler.AddFunc(spec, m.Rotate); err != nil {
			return fmt.Errorf("scheduling user-agent rotation: %w", err)
		}
		m.logger.Info("user-agent rotation scheduled",
			"interval_seconds", every, "pool_size", len(m.pool))
	}
	if m.limiter != nil {
		if _, err := m.scheduler.AddFunc("@every 1m", func() {
			if removed := m.limiter.Cleanup(idleBucketTTL); removed > 0 {
				m.logger.Debug("pruned idle rate-limit buckets", "removed", removed)
			}
		}); err != nil {
			return fmt.Errorf("scheduling bucket cleanup: %w", err)
		}
	}
	m.scheduler.Start()
	return nil
}

// Stop halts the schedules, waiting for a running job to finish.
func (m *Manager) Stop() {
	<-m.scheduler.Stop().Done()
}

// CurrentUserAgent returns the agent the stack presents right now.
func (m *Manager) CurrentUserAgent() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pool[m.current]
}

// Rotate advances to the next pool entry.
func (m *Manager) Rotate() {
	m.mu.Lock()
	m.current = (m.current + 1) % len(m.pool)
	ua := m.pool[m.current]
	m.mu.Unlock()

	m.logger.Debug("user agent rotated", "user_agent", ua)
	if m.onRotate != nil {
		m.onRotate(ua)
	}
}

// PoolSize returns the number of agents in rotation.
func (m *Manager) PoolSize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pool)
}

// HeaderPolicy returns the headers to strip and to forge. When rotation is
// enabled the current User-Agent is forged on top of any configured headers;
// an explicitly configured User-Agent wins over rotation.
func (m *Manager) HeaderPolicy() (strip []string, add map[string]string) {
	h := m.cfg.HeaderManipulation
	if h.Enabled {
		strip = append(strip, h.StripHeaders...)
	}
	add = make(map[string]string)
	if m.cfg.UserAgentRotation.Enabled {
		add["User-Agent"] = m.CurrentUserAgent()
	}
	if h.Enabled {
		for k, v := range h.AddHeaders {
			add[k] = v
		}
	}
	return strip, add
}

// Allow consults the rate limiter for a connection from source. With the
// limiter disabled every connection is allowed.
func (m *Manager) Allow(source string) bool {
	if m.limiter == nil {
		return true
	}
	return m.limiter.Allow(source)
}
