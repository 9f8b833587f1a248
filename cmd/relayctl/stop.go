package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"relaystack-hq/saturn/pkg/cli"
	"relaystack-hq/saturn/pkg/orchestrator"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running proxy stack",
	Long: `Stop asks the orchestrator process to shut down; it stops its children
gracefully, workers before the load balancer. If no orchestrator is running
but stale worker or balancer processes are recorded in PID files, they are
terminated directly.

Stopping a stack that is not running is a no-op.`,
	RunE: runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	if err := orchestrator.Stop(cfgFile, nil); err != nil {
		return cli.NewProcessError("stop", err)
	}
	fmt.Println("Stack stopped.")
	return nil
}
