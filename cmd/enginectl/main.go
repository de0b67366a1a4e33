// Command enginectl inspects a saved engine snapshot: experiment results,
// campaign reports and segment performance, without a running server.
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
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "enginectl",
		Short:         "Inspect newsletter engine snapshots",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("CONFIG_PATH"), "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&opts.dir, "dir", "d", "", "Read the snapshot from this local directory instead of the configured store")

	rootCmd.AddCommand(snapshotCmd(opts))
	rootCmd.AddCommand(experimentCmd(opts))
	rootCmd.AddCommand(campaignCmd(opts))
	rootCmd.AddCommand(segmentCmd(opts))

	return rootCmd
}
