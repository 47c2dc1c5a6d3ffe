// Package ar writes the Unix ar container used as the outer envelope of a
// .deb file.
//
// Layout reference: https://en.wikipedia.org/wiki/Ar_(Unix)
package ar

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// GlobalHeader is the magic string every archive starts with
	GlobalHeader = "!<arch>\n"

	// HeaderSize is the size of a member header
	HeaderSize = 60

	// DefaultMode is a regular file with rw-r--r-- permissions
	DefaultMode int64 = 0o100644

	terminator = "`\n"
)

var (
	ErrFieldTooLong    = errors.New("ar header field too long")
	ErrInvalidField    = errors.New("invalid ar header field")
	ErrMalformedHeader = errors.New("malformed ar header")
	ErrTruncated       = errors.New("truncated ar archive")
	ErrPadding         = errors.New("non-zero ar padding byte")
)

// Header describes one archive member
type Header struct {
	Name    string
	ModTime int64 // Unix seconds
	UID     int
	GID     int
	Mode    int64 // Rendered in octal
	Size    int64
}

// Fixed byte offsets and widths of the header fields
var (
	nameField  = slot{"name", 0, 16}
	timeField  = slot{"timestamp", 16, 12}
	uidField   = slot{"owner", 28, 6}
	gidField   = slot{"group", 34, 6}
	modeField  = slot{"mode", 40, 8}
	sizeField  = slot{"size", 48, 10}
	termOffset = 58
)

type slot struct {
	name   string
	offset int
	width  int
}

func (s slot) put(buf []byte, value string) error {
	if len(value) > s.width {
		return fmt.Errorf("%w: %s %q exceeds %d bytes", ErrFieldTooLong, s.name, value, s.width)
	}
	copy(buf[s.offset:], value)
	return nil
}

func (s slot) get(buf []byte) string {
	return strings.TrimRight(string(buf[s.offset:s.offset+s.width]), " ")
}

// GenerateMemberHeader renders h into a 60-byte, space-padded member header.
// Values are never truncated: a field that does not fit its slot is an error.
func GenerateMemberHeader(h Header) ([]byte, error) {
	if h.Name == "" || strings.ContainsAny(h.Name, " \n") {
		return nil, fmt.Errorf("%w: name %q", ErrInvalidField, h.Name)
	}
	if h.ModTime < 0 || h.UID < 0 || h.GID < 0 || h.Mode < 0 || h.Size < 0 {
		return nil, fmt.Errorf("%w: negative value in header for %s", ErrInvalidField, h.Name)
	}

	buf := bytes.Repeat([]byte{' '}, HeaderSize)

	fields := []struct {
		slot  slot
		value string
	}{
		{nameField, h.Name},
		{timeField, strconv.FormatInt(h.ModTime, 10)},
		{uidField, strconv.Itoa(h.UID)},
		{gidField, strconv.Itoa(h.GID)},
		{modeField, strconv.FormatInt(h.Mode, 8)},
		{sizeField, strconv.FormatInt(h.Size, 10)},
	}
	for _, f := range fields {
		if err := f.slot.put(buf, f.value); err != nil {
			return nil, err
		}
	}
	copy(buf[termOffset:], terminator)

	return buf, nil
}

// ParseMemberHeader is the inverse of GenerateMemberHeader.
// A trailing "/" on the name (GNU ar style) is dropped.
func ParseMemberHeader(buf []byte) (Header, error) {
	if len(buf) != HeaderSize {
		return Header{}, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedHeader, len(buf), HeaderSize)
	}
	if string(buf[termOffset:]) != terminator {
		return Header{}, fmt.Errorf("%w: bad terminator %q", ErrMalformedHeader, buf[termOffset:])
	}

	h := Header{Name: strings.TrimSuffix(nameField.get(buf), "/")}

	var err error
	if h.ModTime, err = parseField(buf, timeField, 10); err != nil {
		return Header{}, err
	}
	uid, err := parseField(buf, uidField, 10)
	if err != nil {
		return Header{}, err
	}
	gid, err := parseField(buf, gidField, 10)
	if err != nil {
		return Header{}, err
	}
	h.UID, h.GID = int(uid), int(gid)
	if h.Mode, err = parseField(buf, modeField, 8); err != nil {
		return Header{}, err
	}
	if h.Size, err = parseField(buf, sizeField, 10); err != nil {
		return Header{}, err
	}

	return h, nil
}

func parseField(buf []byte, s slot, base int) (int64, error) {
	text := s.get(buf)
	if text == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(text, base, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrMalformedHeader, s.name, text)
	}
	return v, nil
}
