package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"relaystack-hq/saturn/pkg/cli"
	"relaystack-hq/saturn/pkg/orchestrator"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write the load-balancer and worker configuration files",
	Long: `Generate validates the configuration and writes every generated file:
one load-balancer config plus one config per worker instance. Output is
deterministic; the same input always yields byte-identical files.

The stack itself is not touched. A running load balancer picks up the new
files on its next reload.`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	files, err := orchestrator.Generate(cfgFile, nil)
	if err != nil {
		return cli.WrapConfigError(err)
	}
	fmt.Printf("Wrote %s\n", files.LoadBalancer)
	for _, p := range files.Workers {
		fmt.Printf("Wrote %s\n", p)
	}
	return nil
}
