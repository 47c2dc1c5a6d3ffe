package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "debbuild",
		Short: "Build Debian binary packages from a staged payload",
		Long: `Debbuild assembles .deb packages from package metadata and a payload
directory, generating the maintainer scripts from an install type.

Supported install types:
  - normal           (payload only)
  - isolated         (dedicated system user owning the install directory)
  - systemd-service  (isolated, plus a systemd unit started on install)`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Setup logging
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	rootCmd.AddCommand(NewBuildCmd())
	rootCmd.AddCommand(NewInspectCmd())
	rootCmd.AddCommand(NewStageCmd())
	rootCmd.AddCommand(NewIndexCmd())

	return rootCmd
}
