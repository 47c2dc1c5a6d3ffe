// Package index writes flat APT repository indexes (Packages, Packages.gz
// and Release, optionally signed) for a directory of built packages.
package index

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ralt/debbuild/internal/compose"
	"github.com/ralt/debbuild/internal/debfile"
	"github.com/ralt/debbuild/internal/models"
	"github.com/ralt/debbuild/internal/scanner"
	"github.com/ralt/debbuild/internal/signer"
	"github.com/ralt/debbuild/internal/utils"
	"github.com/sirupsen/logrus"
	"pault.ag/go/debian/version"
)

// Options controls the Release file and its signatures
type Options struct {
	Origin string
	Label  string

	// Signer produces InRelease, Release.gpg and Release.key; nil leaves
	// the repository unsigned
	Signer signer.Signer

	// Now stamps the Release Date; defaults to time.Now
	Now func() time.Time
}

// Entry is one package of the index
type Entry struct {
	Fields   debfile.Fields
	Filename string // Relative to the repository root
	Checksum *utils.Checksum
}

// Fields emitted from the checksum, never copied from the control file
var fileFields = map[string]bool{
	"filename": true,
	"size":     true,
	"md5sum":   true,
	"sha1":     true,
	"sha256":   true,
	"sha512":   true,
}

// Collect reads every package found under dir
func Collect(ctx context.Context, dir string) ([]Entry, error) {
	packages, err := scanner.NewFileSystemScanner().Scan(ctx, dir)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(packages))
	for _, p := range packages {
		data, err := os.ReadFile(p.Path)
		if err != nil {
			return nil, err
		}

		pkg, err := debfile.Read(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p.Path, err)
		}

		checksum, err := utils.ReaderChecksums(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}

		rel, err := filepath.Rel(dir, p.Path)
		if err != nil {
			return nil, err
		}

		entries = append(entries, Entry{
			Fields:   pkg.Fields,
			Filename: "./" + filepath.ToSlash(rel),
			Checksum: checksum,
		})
	}

	return entries, nil
}

// GeneratePackagesFile creates a Debian Packages file from the entries
func GeneratePackagesFile(entries []Entry) []byte {
	var buf bytes.Buffer

	// Sort packages alphabetically by name, then version
	sort.SliceStable(entries, func(i, j int) bool {
		ni, nj := entries[i].Fields.Get("Package"), entries[j].Fields.Get("Package")
		if ni != nj {
			return ni < nj
		}
		return versionLess(entries[i].Fields.Get("Version"), entries[j].Fields.Get("Version"))
	})

	for _, e := range entries {
		for _, f := range e.Fields {
			if fileFields[strings.ToLower(f.Key)] {
				continue
			}
			// Continuation lines keep their leading space
			fmt.Fprintf(&buf, "%s: %s\n", f.Key, strings.ReplaceAll(f.Value, "\n", "\n "))
		}

		fmt.Fprintf(&buf, "Filename: %s\n", e.Filename)
		buf.WriteString(e.Checksum.Stanza())

		// Blank line between packages
		buf.WriteString("\n")
	}

	return buf.Bytes()
}

// versionLess orders versions the way dpkg does. Unparsable versions fall
// back to a plain string comparison.
func versionLess(a, b string) bool {
	va, errA := version.Parse(a)
	vb, errB := version.Parse(b)
	if errA != nil || errB != nil {
		return a < b
	}
	return version.Compare(va, vb) < 0
}

// Write indexes dir and writes Packages, Packages.gz, Release and InRelease
// into it. With a signer InRelease is cleartext-signed and Release.gpg and
// Release.key are written as well. It returns the number of indexed
// packages.
func Write(ctx context.Context, dir string, opts Options) (int, error) {
	entries, err := Collect(ctx, dir)
	if err != nil {
		return 0, &models.BuildError{Type: models.ErrFileOp, Err: err}
	}

	packagesData := GeneratePackagesFile(entries)
	if err := utils.WriteFile(filepath.Join(dir, "Packages"), packagesData, 0644); err != nil {
		return 0, &models.BuildError{
			Type: models.ErrFileOp,
			Err:  fmt.Errorf("failed to write Packages: %w", err),
		}
	}

	// Compress Packages file
	packagesGz, err := compose.Compress(packagesData, models.CompressionGzip)
	if err != nil {
		return 0, &models.BuildError{Type: models.ErrArchive, Err: err}
	}
	if err := utils.WriteFile(filepath.Join(dir, "Packages.gz"), packagesGz, 0644); err != nil {
		return 0, &models.BuildError{
			Type: models.ErrFileOp,
			Err:  fmt.Errorf("failed to write Packages.gz: %w", err),
		}
	}

	if err := writeRelease(dir, entries, opts); err != nil {
		return 0, err
	}

	logrus.Infof("Indexed %d packages in %s", len(entries), dir)
	return len(entries), nil
}

// writeRelease generates the Release, InRelease, Release.gpg and
// Release.key files
func writeRelease(dir string, entries []Entry, opts Options) error {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	fileInfos, err := CalculateReleaseFileInfos(dir, []string{"Packages", "Packages.gz"})
	if err != nil {
		return &models.BuildError{Type: models.ErrFileOp, Err: err}
	}

	releaseData := GenerateReleaseFile(ReleaseInfo{
		Origin:        opts.Origin,
		Label:         opts.Label,
		Date:          now(),
		Architectures: architectures(entries),
	}, fileInfos)

	files := map[string][]byte{"Release": releaseData}
	if opts.Signer != nil {
		inRelease, err := opts.Signer.SignCleartext(releaseData)
		if err != nil {
			return &models.BuildError{Type: models.ErrSigning, Err: fmt.Errorf("failed to sign InRelease: %w", err)}
		}
		releaseGpg, err := opts.Signer.SignDetached(releaseData)
		if err != nil {
			return &models.BuildError{Type: models.ErrSigning, Err: fmt.Errorf("failed to create Release.gpg: %w", err)}
		}
		publicKey, err := opts.Signer.GetPublicKey()
		if err != nil {
			return &models.BuildError{Type: models.ErrSigning, Err: fmt.Errorf("failed to export public key: %w", err)}
		}
		files["InRelease"] = inRelease
		files["Release.gpg"] = releaseGpg
		files["Release.key"] = publicKey
	} else {
		// Modern apt reads InRelease first, even with [trusted=yes]
		files["InRelease"] = releaseData
		logrus.Warn("No signing key given, repository will be unsigned")

		// A signature left over from a signed run no longer matches
		for _, stale := range []string{"Release.gpg", "Release.key"} {
			if err := os.Remove(filepath.Join(dir, stale)); err != nil && !os.IsNotExist(err) {
				return &models.BuildError{Type: models.ErrFileOp, Err: err}
			}
		}
	}

	for name, data := range files {
		if err := utils.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			return &models.BuildError{
				Type: models.ErrFileOp,
				Err:  fmt.Errorf("failed to write %s: %w", name, err),
			}
		}
	}

	if opts.Signer != nil {
		logrus.Info("Release file signed successfully")
	}
	return nil
}
