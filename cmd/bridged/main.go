package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "bridged",
	Short: "Bridge transaction coordinator",
	Long: "bridged accepts cross-chain transfers, submits them to the source chain bridge " +
		"and tracks them until the ledger reports them completed or failed.",
	SilenceUsage: true,
	RunE:         run,
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the configuration and exit",
	RunE:  checkConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("BRIDGE_CONFIG"), "Path to the YAML configuration")
	rootCmd.AddCommand(checkConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
