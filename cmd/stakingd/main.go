package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/generativelabs/stakeledger/cmd/server"
)

// set with -ldflags at release time
var version = "dev"

var cmdMain = &cobra.Command{
	Use:   "stakingd",
	Short: "Staking ledger and reward accrual service",
	Run:   printUsageAndExit1,
}

var cmdRun = &cobra.Command{
	Use:   "run",
	Short: "Serve the staking ledger over HTTP",
	Args:  cobra.NoArgs,
	Run: func(*cobra.Command, []string) {
		server.Run(flagRun.Config)
	},
}

var cmdVersion = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

var flagRun struct {
	Config string
}

func init() {
	cmdRun.Flags().StringVarP(&flagRun.Config, "config", "c", "stakeledger.yml", "Path to the yaml config file")
	cmdMain.AddCommand(cmdRun, cmdVersion)
}

func main() {
	if err := cmdMain.Execute(); err != nil {
		os.Exit(1)
	}
}

func printUsageAndExit1(cmd *cobra.Command, _ []string) {
	_ = cmd.Usage()
	os.Exit(1)
}
