package compose

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ralt/debbuild/internal/models"
	"github.com/ulikunitz/xz"
)

// NewCompressor wraps w with the codec selected by c.
// Closing the returned writer flushes the codec but not w.
func NewCompressor(w io.Writer, c models.Compression) (io.WriteCloser, error) {
	switch c {
	case models.CompressionGzip, "":
		return gzip.NewWriter(w), nil
	case models.CompressionXz:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, err
		}
		return xw, nil
	case models.CompressionZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, err
		}
		return zw, nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", c)
	}
}

// NewDecompressor is the reading counterpart of NewCompressor
func NewDecompressor(r io.Reader, c models.Compression) (io.ReadCloser, error) {
	switch c {
	case models.CompressionGzip, "":
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return gr, nil
	case models.CompressionXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	case models.CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", c)
	}
}

// Compress compresses data in one go
func Compress(data []byte, c models.Compression) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewCompressor(&buf, c)
	if err != nil {
		return nil, err
	}

	if _, err := w.Write(data); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decompress reverses Compress
func Decompress(data []byte, c models.Compression) ([]byte, error) {
	r, err := NewDecompressor(bytes.NewReader(data), c)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

// CompressionFromName infers the codec from a member name such as
// "data.tar.xz". A bare ".tar" reports false.
func CompressionFromName(name string) (models.Compression, bool) {
	switch {
	case strings.HasSuffix(name, ".gz"):
		return models.CompressionGzip, true
	case strings.HasSuffix(name, ".xz"):
		return models.CompressionXz, true
	case strings.HasSuffix(name, ".zst"):
		return models.CompressionZstd, true
	default:
		return "", false
	}
}
