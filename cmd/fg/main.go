package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultConfigPath = "flowguard.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "fg",
		Short:         "flowguard: commitment ledger and flow analytics",
		Long:          "flowguard tracks commitments between owners and stakeholders and reads flow health, correlations and risk from them.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newCommitmentCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newGraphCmd())
	cmd.AddCommand(newInsightsCmd())
	cmd.AddCommand(newFeedCmd())
	cmd.AddCommand(newBriefCmd())
	cmd.AddCommand(newAdviseCmd())
	cmd.AddCommand(newPreMortemCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newTelegraphCmd())
	cmd.AddCommand(newExportCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fg %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// addConfigFlag registers the shared --config/-c flag.
func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", defaultConfigPath, "path to flowguard config file")
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
