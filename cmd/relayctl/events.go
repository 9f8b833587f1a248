package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"relaystack-hq/saturn/pkg/cli"
	"relaystack-hq/saturn/pkg/config"
	"relaystack-hq/saturn/pkg/journal"
)

var eventsFlags struct {
	eventType string
	limit     int
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent lifecycle events from the journal",
	Long: `Events queries the SQLite journal for recent stack lifecycle events:
starts, stops, crashes, health flips, configuration reloads and alerts.

Examples:
  # The 50 most recent events
  relayctl events

  # Only crashes
  relayctl events --type crashed --limit 10`,
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().StringVar(&eventsFlags.eventType, "type", "", "filter by event type")
	eventsCmd.Flags().IntVar(&eventsFlags.limit, "limit", 50, "maximum number of events")
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cli.WrapConfigError(err)
	}
	if !cfg.Journal.Enabled {
		return cli.NewConfigError("journal.enabled", "the journal is disabled")
	}

	j, err := journal.Open(cfg, nil)
	if err != nil {
		return err
	}
	defer j.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events, err := j.Query(ctx, eventsFlags.eventType, eventsFlags.limit)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		fmt.Println("No events recorded.")
		return nil
	}
	for _, e := range events {
		line := fmt.Sprintf("%s  %-20s", e.OccurredAt.Local().Format(time.RFC3339), e.Event)
		if e.Process != "" {
			line += "  " + e.Process
		}
		if e.PID != 0 {
			line += fmt.Sprintf(" (pid %d)", e.PID)
		}
		if e.Detail != "" {
			line += "  " + e.Detail
		}
		fmt.Println(line)
	}
	return nil
}
