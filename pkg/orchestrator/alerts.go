package orchestrator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"relaystack-hq/saturn/pkg/config"
	"relaystack-hq/saturn/pkg/health"
)

// Alerter posts degradation alerts to the configured webhook. Alerts fire on
// state changes only, never once per probe cycle.
type Alerter struct {
	cfg    config.AlertsConfig
	logger *slog.Logger
	client *http.Client

	mu       sync.Mutex
	degraded bool
}

func NewAlerter(cfg config.AlertsConfig, logger *slog.Logger) *Alerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Alerter{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// CheckHealth compares a snapshot against the thresholds and fires an alert
// on the healthy/degraded boundary in either direction.
func (a *Alerter) CheckHealth(snap health.Snapshot) {
	if snap.Status == "unknown" {
		return
	}
	min := a.cfg.Thresholds.MinHealthyBackends
	if min <= 0 {
		min = snap.Total
	}
	degraded := snap.Healthy < min

	a.mu.Lock()
	changed := degraded != a.degraded
	a.degraded = degraded
	a.mu.Unlock()
	if !changed {
		return
	}

	kind := "recovered"
	if degraded {
		kind = "degraded"
	}
	a.logger.Warn("stack health alert",
		"alert", kind, "healthy", snap.Healthy, "total", snap.Total, "min_healthy", min)
	a.send(map[string]any{
		"alert":            kind,
		"status":           snap.Status,
		"healthy_backends": snap.Healthy,
		"total_backends":   snap.Total,
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})
}

// send posts the payload to the webhook, if one is configured. Delivery is
// best effort; a dead webhook never blocks the probe loop's caller.
func (a *Alerter) send(payload map[string]any) {
	if a.cfg.WebhookURL == "" {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		a.logger.Warn("encoding alert payload", "error", err)
		return
	}
	go func() {
		resp, err := a.client.Post(a.cfg.WebhookURL, "application/json", bytes.NewReader(body))
		if err != nil {
			a.logger.Warn("alert webhook delivery failed", "error", err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			a.logger.Warn("alert webhook rejected", "status", fmt.Sprint(resp.StatusCode))
		}
	}()
}
