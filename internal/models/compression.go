package models

import (
	"fmt"
	"strings"
)

// Compression identifies the codec applied to an inner tar member
type Compression string

const (
	CompressionGzip Compression = "gzip"
	CompressionXz   Compression = "xz"
	CompressionZstd Compression = "zstd"
)

// ParseCompression maps a user-supplied name onto a Compression
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gzip", "gz":
		return CompressionGzip, nil
	case "xz":
		return CompressionXz, nil
	case "zstd", "zst":
		return CompressionZstd, nil
	default:
		return "", &BuildError{
			Type: ErrInvalidConfig,
			Err:  fmt.Errorf("unsupported compression %q (want gzip, xz or zstd)", s),
		}
	}
}

// Extension returns the file suffix dpkg expects for the codec
func (c Compression) Extension() string {
	switch c {
	case CompressionXz:
		return ".xz"
	case CompressionZstd:
		return ".zst"
	default:
		return ".gz"
	}
}

// MemberName appends the codec suffix to base, e.g. "data.tar" -> "data.tar.gz"
func (c Compression) MemberName(base string) string {
	return base + c.Extension()
}
