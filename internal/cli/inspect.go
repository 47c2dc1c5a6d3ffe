package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/ralt/debbuild/internal/debfile"
	"github.com/ralt/debbuild/internal/models"
	"github.com/ralt/debbuild/internal/scanner"
	"github.com/ralt/debbuild/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewInspectCmd creates the inspect command
func NewInspectCmd() *cobra.Command {
	var showData bool

	cmd := &cobra.Command{
		Use:   "inspect <package.deb|directory>",
		Short: "Show the structure and control file of .deb packages",
		Long: `Checks the ar layout of a .deb package, then prints its members, its
control file followed by Packages-style checksum fields, and the contents of
the control archive. Given a directory, every package found in it is
inspected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(args[0])
			if err != nil {
				return &models.BuildError{Type: models.ErrFileOp, Err: err}
			}
			if !info.IsDir() {
				return runInspect(cmd.OutOrStdout(), args[0], showData)
			}
			return runInspectDir(cmd.Context(), cmd.OutOrStdout(), args[0], showData)
		},
	}

	cmd.Flags().BoolVar(&showData, "data", false, "Also list the payload entries")

	return cmd
}

func runInspectDir(ctx context.Context, out io.Writer, dir string, showData bool) error {
	packages, err := scanner.NewFileSystemScanner().Scan(ctx, dir)
	if err != nil {
		return &models.BuildError{Type: models.ErrFileOp, Err: err}
	}

	if len(packages) == 0 {
		logrus.Warnf("No packages found in %s", dir)
		return nil
	}

	for i, p := range packages {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "==> %s <==\n", p.Path)
		if err := runInspect(out, p.Path, showData); err != nil {
			return err
		}
	}
	return nil
}

func runInspect(out io.Writer, path string, showData bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &models.BuildError{
			Type: models.ErrFileOp,
			Err:  fmt.Errorf("failed to read package: %w", err),
		}
	}

	if !debfile.IsDeb(data) {
		return &models.BuildError{
			Type: models.ErrArchive,
			Err:  fmt.Errorf("%s is not a Debian package", path),
		}
	}

	headers, err := debfile.CheckLayout(data)
	if err != nil {
		return &models.BuildError{Type: models.ErrArchive, Err: err}
	}

	pkg, err := debfile.Read(bytes.NewReader(data))
	if err != nil {
		return &models.BuildError{Type: models.ErrArchive, Err: err}
	}
	logrus.Debugf("Read %s: %s %s (%s), %d members", path,
		pkg.Fields.Get("Package"), pkg.Fields.Get("Version"), pkg.Fields.Get("Architecture"), len(pkg.Members))

	checksum, err := utils.ReaderChecksums(bytes.NewReader(data))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MEMBER\tSIZE\tMODE\tOWNER\tMODIFIED")
	for _, h := range headers {
		fmt.Fprintf(tw, "%s\t%d\t%o\t%d:%d\t%s\n", h.Name, h.Size, h.Mode, h.UID, h.GID, time.Unix(h.ModTime, 0).UTC().Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprint(out, pkg.Control)
	fmt.Fprintf(out, "Filename: %s\n", filepath.Base(path))
	fmt.Fprint(out, checksum.Stanza())

	fmt.Fprintln(out)
	printEntries(out, pkg.ControlEntries)

	if showData {
		fmt.Fprintln(out)
		printEntries(out, pkg.DataEntries)
	}

	return nil
}

func printEntries(out io.Writer, entries []debfile.Entry) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		name := e.Name
		if e.Linkname != "" {
			name += " -> " + e.Linkname
		}
		fmt.Fprintf(tw, "%04o\t%d/%d\t%d\t%s\n", e.Mode, e.UID, e.GID, e.Size, name)
	}
	tw.Flush()
}
