package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "newcomer",
	Short: "Keeps new community members from drifting away",
	Long: "Newcomer tracks freshly joined members, scores their engagement risk and " +
		"reaches out to the ones who go quiet. Single Go binary, state on local disk.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.newcomer/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(membersCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(cycleCmd)
	rootCmd.AddCommand(panelCmd)
	rootCmd.AddCommand(statsCmd)
}
