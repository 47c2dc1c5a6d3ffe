package compose

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ralt/debbuild/internal/models"
	"github.com/sirupsen/logrus"
)

// DataMember archives the whole tree under dir into a compressed tar.
// Entry names are relative to dir and prefixed with "./"; ownership is
// reset to root while permission bits and timestamps come from disk.
func DataMember(ctx context.Context, dir string, c models.Compression) ([]byte, error) {
	var out bytes.Buffer
	cw, err := NewCompressor(&out, c)
	if err != nil {
		return nil, err
	}
	tw := tar.NewWriter(cw)

	entries := 0
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Check context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		if err := addEntry(tw, path, archiveName(rel, info.IsDir()), info); err != nil {
			return fmt.Errorf("adding %s: %w", rel, err)
		}
		entries++
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing data tar: %w", err)
	}
	if err := cw.Close(); err != nil {
		return nil, fmt.Errorf("compressing data tar: %w", err)
	}

	logrus.Debugf("Composed data member from %s: %d entries, %d bytes (%s)", dir, entries, out.Len(), c)
	return out.Bytes(), nil
}

// archiveName maps a path relative to the staging root onto the "./"-rooted
// names dpkg-deb produces
func archiveName(rel string, isDir bool) string {
	if rel == "." {
		return "./"
	}
	name := "./" + filepath.ToSlash(rel)
	if isDir {
		name += "/"
	}
	return name
}

func addEntry(tw *tar.Writer, path, name string, info os.FileInfo) error {
	var link string
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return err
		}
		link = target
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(rootOwned(hdr)); err != nil {
		return err
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}
