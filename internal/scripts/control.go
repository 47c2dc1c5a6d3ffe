// Package scripts renders the text members of the control archive: the
// control stanza and the postinst/prerm maintainer scripts.
package scripts

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ralt/debbuild/internal/models"
)

// Set holds the three texts embedded in control.tar.gz
type Set struct {
	Control  string
	Postinst string
	Prerm    string
}

// Render produces the control text and both maintainer scripts for req
func Render(req models.BuildRequest) (Set, error) {
	postinst, err := RenderPostinst(req)
	if err != nil {
		return Set{}, fmt.Errorf("rendering postinst: %w", err)
	}

	prerm, err := RenderPrerm(req)
	if err != nil {
		return Set{}, fmt.Errorf("rendering prerm: %w", err)
	}

	return Set{
		Control:  RenderControl(req.Metadata),
		Postinst: postinst,
		Prerm:    prerm,
	}, nil
}

// RenderControl creates the control stanza. Field order is fixed. Depends
// only appears when there is at least one dependency, Homepage only when
// set, since dpkg rejects empty field values.
func RenderControl(m models.PackageMetadata) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Package: %s\n", m.Name)
	fmt.Fprintf(&buf, "Version: %s\n", m.Version)
	fmt.Fprintf(&buf, "Priority: %s\n", m.Priority)
	fmt.Fprintf(&buf, "Architecture: %s\n", m.Architecture)
	fmt.Fprintf(&buf, "Maintainer: %s\n", m.Maintainer())

	if len(m.Depends) > 0 {
		fmt.Fprintf(&buf, "Depends: %s\n", strings.Join(m.Depends, ", "))
	}

	if m.Homepage != "" {
		fmt.Fprintf(&buf, "Homepage: %s\n", m.Homepage)
	}
	fmt.Fprintf(&buf, "Description: %s\n", m.Description)

	return buf.String()
}
