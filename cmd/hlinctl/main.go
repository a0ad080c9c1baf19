// Command hlinctl runs operational tasks against an hlin deployment:
// schema migrations, order lookups and payment status checks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "hlinctl",
		Short:         "hlinctl - operations tool for the hlin checkout service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./hlinctl.yaml)")

	load := func() (*Config, error) {
		return LoadConfig(configFile)
	}

	// Add subcommands
	rootCmd.AddCommand(migrateCmd(load))
	rootCmd.AddCommand(ordersCmd(load))
	rootCmd.AddCommand(paymentsCmd(load))

	return rootCmd
}
