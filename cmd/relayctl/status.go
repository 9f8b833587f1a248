package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"relaystack-hq/saturn/pkg/cli"
	"relaystack-hq/saturn/pkg/orchestrator"
)

var statusFlags struct {
	jsonOutput bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the proxy stack",
	Long: `Status reports process liveness from PID files and, when the monitoring
endpoint is reachable, the smoothed backend health view.

Examples:
  # Human-readable status
  relayctl status

  # Machine-readable status
  relayctl status --json`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusFlags.jsonOutput, "json", false, "emit the report as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	report, err := orchestrator.Status(ctx, cfgFile)
	if err != nil {
		return cli.WrapConfigError(err)
	}

	if statusFlags.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if report.OrchestratorAlive {
		fmt.Printf("Orchestrator: running (pid %d)\n", report.OrchestratorPID)
	} else {
		fmt.Println("Orchestrator: not running")
	}
	for _, p := range report.Processes {
		state := "down"
		if p.Alive {
			state = fmt.Sprintf("running (pid %d)", p.PID)
		}
		fmt.Printf("  %-16s %s\n", p.Name, state)
	}
	if report.Health != nil {
		fmt.Printf("Health: %s (%d/%d backends healthy)\n",
			report.Health.Status, report.Health.Healthy, report.Health.Total)
	}
	return nil
}
