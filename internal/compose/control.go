// Package compose produces the compressed tar members of a .deb: the
// control member holding metadata and maintainer scripts, and the data
// member holding the payload tree.
package compose

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
)

// Names of the entries inside the control member, in archive order
const (
	FileControl  = "control"
	FilePostinst = "postinst"
	FilePrerm    = "prerm"
)

// ControlEntry is one file of the control member
type ControlEntry struct {
	Name string
	Mode int64
	Body string
}

// ControlEntries lists the three control files in the order dpkg-deb
// writes them
func ControlEntries(control, postinst, prerm string) []ControlEntry {
	return []ControlEntry{
		{Name: FileControl, Mode: 0o644, Body: control},
		{Name: FilePostinst, Mode: 0o755, Body: postinst},
		{Name: FilePrerm, Mode: 0o755, Body: prerm},
	}
}

// ControlMember builds control.tar.gz from the control text and the two
// maintainer scripts. Entries are written strictly one after another and the
// tar stream is finalized before it is compressed.
func ControlMember(ctx context.Context, control, postinst, prerm string) ([]byte, error) {
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)

	now := time.Now()
	for _, entry := range ControlEntries(control, postinst, prerm) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body := []byte(entry.Body)
		if err := tw.WriteHeader(regularFile(entry.Name, entry.Mode, int64(len(body)), now)); err != nil {
			return nil, fmt.Errorf("writing %s header: %w", entry.Name, err)
		}
		if _, err := tw.Write(body); err != nil {
			return nil, fmt.Errorf("writing %s: %w", entry.Name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing control tar: %w", err)
	}

	var out bytes.Buffer
	gw := gzip.NewWriter(&out)
	if _, err := gw.Write(tarBuf.Bytes()); err != nil {
		return nil, fmt.Errorf("compressing control tar: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("compressing control tar: %w", err)
	}

	logrus.Debugf("Composed control member: %d bytes tar, %d bytes compressed", tarBuf.Len(), out.Len())
	return out.Bytes(), nil
}
