package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ralt/debbuild/internal/builder"
	"github.com/ralt/debbuild/internal/config"
	"github.com/ralt/debbuild/internal/models"
	"github.com/ralt/debbuild/internal/signer"
	"github.com/ralt/debbuild/internal/staging"
	"github.com/ralt/debbuild/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewBuildCmd creates the build command
func NewBuildCmd() *cobra.Command {
	var flags models.BuildConfig

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a .deb package",
		Long: `Builds a Debian package from metadata given as flags and/or a YAML
package file. The payload comes from --payload-dir (copied into a fresh
staging directory) or from a directory prepared with "debbuild stage".
Flags override values from the package file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := resolveConfig(&flags, cmd.Flags().Changed)
			if err != nil {
				return err
			}

			// Validate configuration
			if err := validateConfig(config); err != nil {
				return err
			}

			logrus.Info("Starting package build...")
			logrus.Debugf("Configuration: %+v", redacted(config))

			_, err = runBuild(cmd.Context(), config)
			return err
		},
	}

	// Input/Output flags
	cmd.Flags().StringVarP(&flags.PackageFile, "config", "c", "", "YAML package file")
	cmd.Flags().StringVar(&flags.PayloadDir, "payload-dir", "", "Directory whose contents become the package payload")
	cmd.Flags().StringVar(&flags.StagingDir, "staging-dir", "", "Staging directory prepared with 'debbuild stage' (removed after the build)")
	cmd.Flags().StringVarP(&flags.OutputDir, "output-dir", "o", ".", "Output directory")

	// Package metadata flags
	cmd.Flags().StringVar(&flags.Name, "name", "", "Package name")
	cmd.Flags().StringVar(&flags.Version, "version", "", "Package version")
	cmd.Flags().StringVar(&flags.Description, "description", "", "Package description (required)")
	cmd.Flags().StringVar(&flags.Homepage, "homepage", "", "Project homepage")
	cmd.Flags().StringVar(&flags.Architecture, "arch", "all", "Debian architecture")
	cmd.Flags().StringVar(&flags.Priority, "priority", "optional", "Package priority")
	cmd.Flags().StringVar(&flags.Depends, "depends", "", "Comma separated dependencies, or 'none'")
	cmd.Flags().StringVar(&flags.MaintainerName, "maintainer-name", "", "Maintainer name")
	cmd.Flags().StringVar(&flags.MaintainerEmail, "maintainer-email", "", "Maintainer email")

	// Lifecycle flags
	cmd.Flags().StringVar(&flags.Type, "type", "normal", "Install type (normal, isolated, systemd-service)")
	cmd.Flags().StringVar(&flags.Run, "run", "", "Command line started by the systemd unit")
	cmd.Flags().StringVar(&flags.InstallDir, "install-dir", "", "Install directory (defaults to /usr/lib/<name>)")
	cmd.Flags().StringVar(&flags.PostinstFile, "postinst-file", "", "File appended to the generated postinst")
	cmd.Flags().StringVar(&flags.PrermFile, "prerm-file", "", "File prepended to the generated prerm")
	cmd.Flags().StringVar(&flags.Compression, "compression", "gzip", "Data member compression (gzip, xz, zstd)")

	// GPG signing flags
	cmd.Flags().StringVarP(&flags.GPGKeyPath, "gpg-key", "k", "", "Path to GPG private key (writes <package>.deb.asc)")
	cmd.Flags().StringVarP(&flags.GPGPassphrase, "gpg-passphrase", "p", "", "GPG key passphrase")

	return cmd
}

// resolveConfig overlays the command line onto the package file, if any.
// A flag wins when it was set explicitly or when the file leaves the value
// empty, so flag defaults fill the gaps.
func resolveConfig(flags *models.BuildConfig, changed func(name string) bool) (*models.BuildConfig, error) {
	if flags.PackageFile == "" {
		return flags, nil
	}

	logrus.Debugf("Loading package file %s", flags.PackageFile)
	merged, err := config.Load(flags.PackageFile)
	if err != nil {
		return nil, err
	}

	fields := []struct {
		flag     string
		dst, src *string
	}{
		{"payload-dir", &merged.PayloadDir, &flags.PayloadDir},
		{"staging-dir", &merged.StagingDir, &flags.StagingDir},
		{"output-dir", &merged.OutputDir, &flags.OutputDir},
		{"name", &merged.Name, &flags.Name},
		{"version", &merged.Version, &flags.Version},
		{"description", &merged.Description, &flags.Description},
		{"homepage", &merged.Homepage, &flags.Homepage},
		{"arch", &merged.Architecture, &flags.Architecture},
		{"priority", &merged.Priority, &flags.Priority},
		{"depends", &merged.Depends, &flags.Depends},
		{"maintainer-name", &merged.MaintainerName, &flags.MaintainerName},
		{"maintainer-email", &merged.MaintainerEmail, &flags.MaintainerEmail},
		{"type", &merged.Type, &flags.Type},
		{"run", &merged.Run, &flags.Run},
		{"install-dir", &merged.InstallDir, &flags.InstallDir},
		{"postinst-file", &merged.PostinstFile, &flags.PostinstFile},
		{"prerm-file", &merged.PrermFile, &flags.PrermFile},
		{"compression", &merged.Compression, &flags.Compression},
		{"gpg-key", &merged.GPGKeyPath, &flags.GPGKeyPath},
		{"gpg-passphrase", &merged.GPGPassphrase, &flags.GPGPassphrase},
	}
	for _, f := range fields {
		if changed(f.flag) || *f.dst == "" {
			*f.dst = *f.src
		}
	}

	// Relative payload paths in the file are relative to the file itself
	if merged.PayloadDir != "" && !changed("payload-dir") && !filepath.IsAbs(merged.PayloadDir) {
		merged.PayloadDir = filepath.Join(filepath.Dir(flags.PackageFile), merged.PayloadDir)
	}

	return merged, nil
}

func validateConfig(config *models.BuildConfig) error {
	if config.Name == "" {
		return &models.BuildError{
			Type: models.ErrInvalidConfig,
			Err:  fmt.Errorf("name is required"),
		}
	}

	if config.Version == "" {
		return &models.BuildError{
			Type:    models.ErrInvalidConfig,
			Package: config.Name,
			Err:     fmt.Errorf("version is required"),
		}
	}

	if strings.TrimSpace(config.Description) == "" {
		return &models.BuildError{
			Type:    models.ErrInvalidConfig,
			Package: config.Name,
			Err:     fmt.Errorf("description is required"),
		}
	}

	if config.OutputDir == "" {
		return &models.BuildError{
			Type:    models.ErrInvalidConfig,
			Package: config.Name,
			Err:     fmt.Errorf("output-dir is required"),
		}
	}

	if config.PayloadDir != "" && config.StagingDir != "" {
		return &models.BuildError{
			Type:    models.ErrInvalidConfig,
			Package: config.Name,
			Err:     fmt.Errorf("payload-dir and staging-dir are mutually exclusive"),
		}
	}

	installType, err := models.ParseInstallType(config.Type)
	if err != nil {
		return err
	}
	if installType.ManagesService() && config.Run == "" {
		return &models.BuildError{
			Type:    models.ErrInvalidConfig,
			Package: config.Name,
			Err:     fmt.Errorf("%s packages need a command line (--run)", installType),
		}
	}

	if config.GPGPassphrase != "" && config.GPGKeyPath == "" {
		return &models.BuildError{
			Type:    models.ErrInvalidConfig,
			Package: config.Name,
			Err:     fmt.Errorf("gpg-passphrase given without gpg-key"),
		}
	}

	// Set default maintainer if not specified
	if config.MaintainerName == "" {
		config.MaintainerName = config.Name + " maintainers"
	}
	if config.MaintainerEmail == "" {
		config.MaintainerEmail = "root@localhost"
	}

	return nil
}

// newBuildRequest turns a validated configuration into a BuildRequest,
// reading script payload files
func newBuildRequest(config *models.BuildConfig) (models.BuildRequest, error) {
	installType, err := models.ParseInstallType(config.Type)
	if err != nil {
		return models.BuildRequest{}, err
	}

	compression, err := models.ParseCompression(config.Compression)
	if err != nil {
		return models.BuildRequest{}, err
	}

	postinst, err := readPayload(config.Name, config.Postinst, config.PostinstFile)
	if err != nil {
		return models.BuildRequest{}, err
	}
	prerm, err := readPayload(config.Name, config.Prerm, config.PrermFile)
	if err != nil {
		return models.BuildRequest{}, err
	}

	return models.BuildRequest{
		Metadata: models.PackageMetadata{
			Name:            config.Name,
			Version:         config.Version,
			Description:     config.Description,
			Homepage:        config.Homepage,
			Architecture:    config.Architecture,
			Priority:        config.Priority,
			MaintainerName:  config.MaintainerName,
			MaintainerEmail: config.MaintainerEmail,
			Depends:         models.ParseDepends(config.Depends),
		},
		Type:            installType,
		Run:             config.Run,
		PostinstPayload: postinst,
		PrermPayload:    prerm,
		InstallDir:      config.InstallDir,
		Compression:     compression,
	}, nil
}

func readPayload(pkg, inline, path string) (string, error) {
	if path == "" {
		return inline, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", &models.BuildError{
			Type:    models.ErrFileOp,
			Package: pkg,
			Err:     fmt.Errorf("failed to read script payload: %w", err),
		}
	}
	return string(data), nil
}

// runBuild builds the package and writes it, plus an optional detached
// signature, to the output directory. It returns the package path.
func runBuild(ctx context.Context, config *models.BuildConfig) (string, error) {
	req, err := newBuildRequest(config)
	if err != nil {
		return "", err
	}

	b := builder.NewBuilder()

	var result *builder.Result
	if config.StagingDir != "" {
		// Step 1: Adopt the prepared staging directory
		logrus.Infof("Using staging directory: %s", config.StagingDir)
		dir, err := staging.Open(config.StagingDir)
		if err != nil {
			return "", models.NewBuildError(models.ErrFileOp, req.Metadata.Name, err)
		}

		// Step 2: Build from it
		result, err = b.Build(ctx, req, dir)
		if err != nil {
			return "", err
		}
	} else {
		// Step 1: Stage the payload
		mgr := staging.NewManager("")
		dir, err := mgr.Replace()
		if err != nil {
			return "", models.NewBuildError(models.ErrFileOp, req.Metadata.Name, err)
		}
		defer func() {
			// The manager leaves a fresh directory behind for the next build
			if current := mgr.Current(); current != nil {
				if err := current.Release(); err != nil {
					logrus.Warnf("Failed to remove staging directory: %v", err)
				}
			}
		}()

		if config.PayloadDir != "" {
			logrus.Infof("Staging payload from %s", config.PayloadDir)
			if err := utils.CopyTree(config.PayloadDir, dir.Path()); err != nil {
				return "", models.NewBuildError(models.ErrFileOp, req.Metadata.Name,
					fmt.Errorf("failed to stage payload: %w", err))
			}
		} else {
			logrus.Warn("No payload directory given, building a package without files")
		}

		// Step 2: Build from the staged payload
		result, err = b.BuildCurrent(ctx, req, mgr)
		if err != nil {
			return "", err
		}
	}

	// Step 3: Write the package
	outPath := filepath.Join(config.OutputDir, req.Metadata.StandardFilename())
	if err := utils.WriteFile(outPath, result.Data, 0644); err != nil {
		return "", models.NewBuildError(models.ErrFileOp, req.Metadata.Name,
			fmt.Errorf("failed to write package: %w", err))
	}

	checksum, err := utils.CalculateChecksums(outPath)
	if err != nil {
		return "", models.NewBuildError(models.ErrFileOp, req.Metadata.Name, err)
	}
	logrus.Infof("Wrote %s (%d bytes, sha256 %s)", outPath, checksum.Size, checksum.SHA256)

	// Step 4: Sign
	if config.GPGKeyPath != "" {
		if err := signPackage(outPath, result.Data, config); err != nil {
			return "", err
		}
	}

	logrus.Info("Package build completed successfully!")
	return outPath, nil
}

func signPackage(path string, data []byte, config *models.BuildConfig) error {
	logrus.Info("Loading GPG signing key...")
	gpgSigner, err := signer.NewGPGSigner(config.GPGKeyPath, config.GPGPassphrase)
	if err != nil {
		return models.NewBuildError(models.ErrSigning, config.Name, err)
	}

	signature, err := gpgSigner.SignDetached(data)
	if err != nil {
		return models.NewBuildError(models.ErrSigning, config.Name, err)
	}

	sigPath := path + ".asc"
	if err := utils.WriteFile(sigPath, signature, 0644); err != nil {
		return models.NewBuildError(models.ErrFileOp, config.Name,
			fmt.Errorf("failed to write signature: %w", err))
	}

	logrus.Infof("Signed %s with key %s", filepath.Base(path), gpgSigner.Fingerprint())
	return nil
}

// redacted returns a copy of config that is safe to log
func redacted(config *models.BuildConfig) models.BuildConfig {
	c := *config
	if c.GPGPassphrase != "" {
		c.GPGPassphrase = "***"
	}
	return c
}
