package main

import (
	"github.com/spf13/cobra"

	"relaystack-hq/saturn/pkg/cli"
	"relaystack-hq/saturn/pkg/config"
	"relaystack-hq/saturn/pkg/orchestrator"
)

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Stop the proxy stack, regenerate its configs and start it again",
	Long: `Restart performs a full stop/start cycle: the running stack (if any) is
shut down, every configuration file is regenerated from the current
configuration, and the stack is brought back up in the foreground.

Each step reports its own failures; a stop failure aborts before anything is
started.`,
	RunE: runRestart,
}

func init() {
	rootCmd.AddCommand(restartCmd)
}

func runRestart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cli.WrapConfigError(err)
	}
	logger, closeLog, err := buildLogger(cfg)
	if err != nil {
		return cli.WrapConfigError(err)
	}
	defer closeLog()

	logger.Info("restarting stack")
	if err := orchestrator.Stop(cfgFile, logger); err != nil {
		return cli.NewProcessError("restart: stop", err)
	}

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
		return cli.NewProcessError("restart: start", err)
	}
	return nil
}
