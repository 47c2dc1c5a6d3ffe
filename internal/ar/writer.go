package ar

import (
	"fmt"
	"io"
	"time"
)

// Writer emits an ar archive member by member
type Writer struct {
	w io.Writer

	// Now stamps each member header; defaults to time.Now
	Now func() time.Time
}

// NewWriter creates a Writer on top of w
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, Now: time.Now}
}

// WriteGlobalHeader writes the "!<arch>\n" magic. It must be called once,
// before any member.
func (w *Writer) WriteGlobalHeader() error {
	_, err := io.WriteString(w.w, GlobalHeader)
	return err
}

// WriteMember writes a root-owned 100644 member. The header carries the
// real body length; odd bodies are followed by one zero byte that the
// header does not count.
func (w *Writer) WriteMember(name string, body []byte) error {
	return w.WriteMemberHeader(Header{
		Name:    name,
		ModTime: w.Now().Unix(),
		UID:     0,
		GID:     0,
		Mode:    DefaultMode,
		Size:    int64(len(body)),
	}, body)
}

// WriteMemberHeader writes a member with an explicit header. h.Size must
// equal len(body).
func (w *Writer) WriteMemberHeader(h Header, body []byte) error {
	if h.Size != int64(len(body)) {
		return fmt.Errorf("%w: %s declares %d bytes, body has %d", ErrInvalidField, h.Name, h.Size, len(body))
	}

	hdr, err := GenerateMemberHeader(h)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(hdr); err != nil {
		return err
	}
	if _, err := w.w.Write(body); err != nil {
		return err
	}
	if len(body)%2 != 0 {
		if _, err := w.w.Write([]byte{0}); err != nil {
			return err
		}
	}
	return nil
}

// PaddedSize is the number of bytes a member body occupies in the stream
func PaddedSize(size int64) int64 {
	return size + size%2
}
