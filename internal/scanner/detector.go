package scanner

import (
	"io"
	"os"

	"github.com/ralt/debbuild/internal/debfile"
)

// magicLen covers "!<arch>\n" plus the "debian" prefix of the first member
const magicLen = 14

// IsDebFile checks the magic bytes of the file at path. The extension is
// not trusted.
func IsDebFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	header := make([]byte, magicLen)
	n, err := io.ReadFull(f, header)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return debfile.IsDeb(header[:n]), nil
}
