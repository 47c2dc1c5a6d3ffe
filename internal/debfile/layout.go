package debfile

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ralt/debbuild/internal/ar"
)

// ErrLayout reports a structural problem in the ar envelope
var ErrLayout = errors.New("invalid .deb layout")

// debMagic is what every Debian package starts with
var debMagic = []byte(ar.GlobalHeader + "debian")

// IsDeb reports whether header looks like the start of a .deb file
func IsDeb(header []byte) bool {
	return bytes.HasPrefix(header, debMagic)
}

// CheckLayout walks the raw ar structure of data and verifies what dpkg
// relies on: the magic, debian-binary first, a control.tar member second,
// a data.tar member third, declared sizes within bounds and zero padding
// after odd-sized members. It returns the parsed headers in order.
func CheckLayout(data []byte) ([]ar.Header, error) {
	headers, err := ar.ReadHeaders(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLayout, err)
	}

	expected := []string{"debian-binary", "control.tar", "data.tar"}
	if len(headers) < len(expected) {
		return nil, fmt.Errorf("%w: %d members, want at least %d", ErrLayout, len(headers), len(expected))
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(headers[i].Name, prefix) {
			return nil, fmt.Errorf("%w: member %d is %q, want %s*", ErrLayout, i, headers[i].Name, prefix)
		}
	}

	return headers, nil
}
