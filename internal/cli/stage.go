package cli

import (
	"fmt"

	"github.com/ralt/debbuild/internal/models"
	"github.com/ralt/debbuild/internal/staging"
	"github.com/ralt/debbuild/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewStageCmd creates the stage command
func NewStageCmd() *cobra.Command {
	var parent, payloadDir string

	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Create an empty staging directory and print its path",
		Long: `Creates a fresh staging directory to be populated with the package
payload and later consumed by "debbuild build --staging-dir". The build
removes the directory once the payload is archived.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := staging.New(parent)
			if err != nil {
				return &models.BuildError{Type: models.ErrFileOp, Err: err}
			}

			if payloadDir != "" {
				logrus.Infof("Staging payload from %s", payloadDir)
				if err := utils.CopyTree(payloadDir, dir.Path()); err != nil {
					if rerr := dir.Release(); rerr != nil {
						logrus.Warn(rerr)
					}
					return &models.BuildError{
						Type: models.ErrFileOp,
						Err:  fmt.Errorf("failed to stage payload: %w", err),
					}
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), dir.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&parent, "parent", "", "Directory to create the staging directory in (defaults to the system temp dir)")
	cmd.Flags().StringVar(&payloadDir, "payload-dir", "", "Directory whose contents are copied into the new staging directory")

	return cmd
}
