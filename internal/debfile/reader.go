// Package debfile reads .deb packages back: member listing, control
// archive contents and structural checks of the ar envelope.
package debfile

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/blakesmith/ar"
	"github.com/ralt/debbuild/internal/compose"
)

// Member is one entry of the outer ar archive
type Member struct {
	Name    string
	ModTime time.Time
	UID     int
	GID     int
	Mode    int64
	Size    int64
}

// Entry is one file of an inner tar member
type Entry struct {
	Name     string
	Mode     int64
	Size     int64
	Type     byte
	Linkname string
	UID      int
	GID      int
}

// Package is the parsed view of a .deb file
type Package struct {
	Members []Member

	// Control is the text of the control file
	Control string

	// Fields is Control parsed into its fields
	Fields Fields

	// Scripts holds the maintainer scripts keyed by name
	Scripts map[string]string

	ControlEntries []Entry
	DataEntries    []Entry
}

// Read parses a .deb stream
func Read(r io.Reader) (*Package, error) {
	pkg := &Package{Scripts: make(map[string]string)}

	arR := ar.NewReader(r)
	for {
		header, err := arR.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading ar header: %w", err)
		}

		name := strings.TrimSuffix(strings.TrimSpace(header.Name), "/")
		pkg.Members = append(pkg.Members, Member{
			Name:    name,
			ModTime: header.ModTime,
			UID:     header.Uid,
			GID:     header.Gid,
			Mode:    header.Mode,
			Size:    header.Size,
		})

		body := make([]byte, header.Size)
		if _, err := io.ReadFull(arR, body); err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}

		switch {
		case strings.HasPrefix(name, "control.tar"):
			err = walkTar(name, body, func(hdr *tar.Header, content []byte) {
				pkg.ControlEntries = append(pkg.ControlEntries, newEntry(hdr))
				switch base := path.Base(hdr.Name); base {
				case compose.FileControl:
					pkg.Control = string(content)
				case "preinst", compose.FilePostinst, compose.FilePrerm, "postrm", "config":
					pkg.Scripts[base] = string(content)
				}
			})
		case strings.HasPrefix(name, "data.tar"):
			err = walkTar(name, body, func(hdr *tar.Header, _ []byte) {
				pkg.DataEntries = append(pkg.DataEntries, newEntry(hdr))
			})
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
	}

	if pkg.Control == "" {
		return nil, fmt.Errorf("control file not found")
	}

	fields, err := ParseControl([]byte(pkg.Control))
	if err != nil {
		return nil, fmt.Errorf("parsing control file: %w", err)
	}
	pkg.Fields = fields

	return pkg, nil
}

// walkTar decompresses a tar member according to its name and calls fn for
// every entry
func walkTar(name string, data []byte, fn func(*tar.Header, []byte)) error {
	if c, ok := compose.CompressionFromName(name); ok {
		plain, err := compose.Decompress(data, c)
		if err != nil {
			return err
		}
		data = plain
	}

	tr := tar.NewReader(bytes.NewReader(data))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		content, err := io.ReadAll(tr)
		if err != nil {
			return err
		}
		fn(hdr, content)
	}
}

func newEntry(hdr *tar.Header) Entry {
	return Entry{
		Name:     hdr.Name,
		Mode:     hdr.Mode,
		Size:     hdr.Size,
		Type:     hdr.Typeflag,
		Linkname: hdr.Linkname,
		UID:      hdr.Uid,
		GID:      hdr.Gid,
	}
}
