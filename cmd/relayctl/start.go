package main

import (
	"github.com/spf13/cobra"

	"relaystack-hq/saturn/pkg/cli"
	"relaystack-hq/saturn/pkg/config"
	"relaystack-hq/saturn/pkg/orchestrator"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Bring the proxy stack up and supervise it in the foreground",
	Long: `Start validates the configuration, generates the load-balancer and worker
configuration files, launches every process and then stays in the foreground
supervising them: probing backend health, serving the monitoring endpoint and
reacting to configuration changes. SIGINT or SIGTERM shuts the stack down
gracefully.

Starting an already-running stack is a no-op.

Examples:
  # Start with the default config file
  relayctl start

  # Start with a custom config, keeping root privileges
  relayctl start --config /etc/saturn/config.yml --no-drop-privs`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cli.WrapConfigError(err)
	}
	logger, closeLog, err := buildLogger(cfg)
	if err != nil {
		return cli.WrapConfigError(err)
	}
	defer closeLog()

	stack, err := orchestrator.NewStack(orchestrator.Options{
		ConfigPath:  cfgFile,
		NoDropPrivs: noDropPrivs,
		Logger:      logger,
	})
	if err != nil {
		return cli.WrapConfigError(err)
	}

	ctx := cli.SetupSignalHandler()
	if err := stack.Run(ctx); err != nil {
		return cli.NewProcessError("start", err)
	}
	return nil
}
