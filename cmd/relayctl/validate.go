package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"relaystack-hq/saturn/pkg/cli"
	"relaystack-hq/saturn/pkg/orchestrator"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and the host environment",
	Long: `Validate loads the configuration file, applies defaults and environment
overrides, and checks every constraint: structural rules (ports, instance
counts, algorithms) and host requirements (binaries on PATH, writable
directories). All violations are reported in one pass.

Exit code 0 means the configuration is ready to run; 2 means it is not.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := orchestrator.Validate(cfgFile)
	if err != nil {
		return cli.WrapConfigError(err)
	}
	fmt.Printf("Configuration valid: %d worker instances behind %s\n",
		cfg.Workers.InstanceCount, cfg.LoadBalancer.Binary)
	return nil
}
