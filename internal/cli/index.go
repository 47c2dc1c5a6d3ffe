package cli

import (
	"fmt"

	"github.com/ralt/debbuild/internal/index"
	"github.com/ralt/debbuild/internal/models"
	"github.com/ralt/debbuild/internal/signer"
	"github.com/spf13/cobra"
)

type indexFlags struct {
	origin        string
	label         string
	gpgKeyPath    string
	gpgPassphrase string
}

// NewIndexCmd creates the index command
func NewIndexCmd() *cobra.Command {
	flags := &indexFlags{}

	cmd := &cobra.Command{
		Use:   "index <directory>",
		Short: "Write a flat APT repository index for built packages",
		Long: `Scans a directory for .deb packages and writes Packages, Packages.gz,
Release and InRelease next to them, so that the directory can be used as
"deb [trusted=yes] file:/path ./".

With --gpg-key the InRelease file is cleartext-signed, and Release.gpg and
the armored public key Release.key are written too.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := index.Options{
				Origin: flags.origin,
				Label:  flags.label,
			}

			if flags.gpgPassphrase != "" && flags.gpgKeyPath == "" {
				return &models.BuildError{
					Type: models.ErrInvalidConfig,
					Err:  fmt.Errorf("gpg-passphrase given without gpg-key"),
				}
			}
			if flags.gpgKeyPath != "" {
				s, err := signer.NewGPGSigner(flags.gpgKeyPath, flags.gpgPassphrase)
				if err != nil {
					return &models.BuildError{Type: models.ErrSigning, Err: err}
				}
				opts.Signer = s
			}

			_, err := index.Write(cmd.Context(), args[0], opts)
			return err
		},
	}

	cmd.Flags().StringVar(&flags.origin, "origin", "", "Origin field of the Release file")
	cmd.Flags().StringVar(&flags.label, "label", "", "Label field of the Release file")
	cmd.Flags().StringVarP(&flags.gpgKeyPath, "gpg-key", "k", "", "Path to GPG private key for signing the Release file")
	cmd.Flags().StringVarP(&flags.gpgPassphrase, "gpg-passphrase", "p", "", "GPG key passphrase")

	return cmd
}
