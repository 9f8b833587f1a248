package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"relaystack-hq/saturn/pkg/cli"
	"relaystack-hq/saturn/pkg/config"
	"relaystack-hq/saturn/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile     string
	verbose     bool
	noDropPrivs bool
)

var rootCmd = &cobra.Command{
	Use:   "relayctl",
	Short: "Saturn - TCP proxy stack orchestrator",
	Long: `Saturn orchestrates a layered TCP proxy stack: an external load balancer
distributing connections across a pool of proxy worker processes.

It owns the full lifecycle of the stack:
  - Configuration validation and deterministic config generation
  - Process supervision with crash detection
  - TCP health probing with hysteresis
  - A local status and Prometheus metrics endpoint
  - Traffic shaping: User-Agent rotation and per-source rate limiting`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and maps failures onto the documented exit
// codes: 0 success, 2 configuration error, 3 process error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "./config.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noDropPrivs, "no-drop-privs", false, "keep root privileges even when run_user is set")
}

// buildLogger assembles the structured logger from the loaded configuration
// plus the --verbose flag, and installs it as the process default.
func buildLogger(cfg *config.Config) (*slog.Logger, func() error, error) {
	opts := logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Verbose: verbose,
	}
	if cfg.Logging.File {
		opts.FilePath = filepath.Join(cfg.General.LogDir, "saturn.log")
	}
	logger, closeFn, err := logging.New(opts)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closeFn, nil
}
