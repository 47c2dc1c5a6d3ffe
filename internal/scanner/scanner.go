// Package scanner finds Debian packages in a directory tree.
package scanner

import "context"

// ScannedPackage represents a package file found during scanning
type ScannedPackage struct {
	Path string
	Size int64
}

// Scanner interface for finding packages
type Scanner interface {
	// Scan recursively scans a directory for packages
	Scan(ctx context.Context, dir string) ([]ScannedPackage, error)

	// IsPackage reports whether the file at path is a Debian package
	IsPackage(path string) (bool, error)
}
