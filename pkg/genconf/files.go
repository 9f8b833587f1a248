package genconf

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"relaystack-hq/saturn/pkg/config"
)

// GeneratedFiles lists the artifacts a generation run produced.
type GeneratedFiles struct {
	LoadBalancer string
	Workers      []string
}

// WriteAll renders and writes the load-balancer configuration plus one
// configuration file per worker instance. Parent directories are created as
// needed. Files are written atomically (temp file + rename) so a concurrent
// reload never observes a half-written config.
func WriteAll(topo *config.Topology, logger *slog.Logger) (*GeneratedFiles, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := topo.Config()
	out := &GeneratedFiles{}

	lbText, err := RenderLoadBalancer(topo)
	if err != nil {
		return nil, err
	}
	lbPath := LoadBalancerConfigPath(cfg)
	if err := writeFileAtomic(lbPath, lbText); err != nil {
		return nil, fmt.Errorf("writing load-balancer config: %w", err)
	}
	logger.Info("load-balancer config written", "path", lbPath)
	out.LoadBalancer = lbPath

	for _, w := range topo.Workers {
		text, err := RenderWorker(topo, w.Ordinal)
		if err != nil {
			return nil, err
		}
		path := WorkerConfigPath(cfg, w.Ordinal)
		if err := writeFileAtomic(path, text); err != nil {
			return nil, fmt.Errorf("writing worker %d config: %w", w.Ordinal, err)
		}
		logger.Info("worker config written", "ordinal", w.Ordinal, "path", path)
		out.Workers = append(out.Workers, path)
	}
	return out, nil
}

func writeFileAtomic(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
