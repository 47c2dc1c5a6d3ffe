package ar

import (
	"bytes"
	"fmt"
)

// ReadHeaders walks an in-memory archive and returns its member headers in
// order. Bodies are skipped using the declared size plus padding, and a
// padding byte must be zero.
func ReadHeaders(data []byte) ([]Header, error) {
	if !bytes.HasPrefix(data, []byte(GlobalHeader)) {
		return nil, fmt.Errorf("%w: missing %q magic", ErrMalformedHeader, GlobalHeader)
	}

	var headers []Header
	offset := int64(len(GlobalHeader))
	total := int64(len(data))

	for offset < total {
		if total-offset < HeaderSize {
			return nil, fmt.Errorf("%w: header at offset %d", ErrTruncated, offset)
		}

		h, err := ParseMemberHeader(data[offset : offset+HeaderSize])
		if err != nil {
			return nil, fmt.Errorf("header at offset %d: %w", offset, err)
		}
		offset += HeaderSize

		if h.Size > total-offset {
			return nil, fmt.Errorf("%w: %s declares %d bytes, only %d left", ErrTruncated, h.Name, h.Size, total-offset)
		}
		if PaddedSize(h.Size) > total-offset {
			return nil, fmt.Errorf("%w: %s is missing its padding byte", ErrTruncated, h.Name)
		}
		if PaddedSize(h.Size) != h.Size && data[offset+h.Size] != 0 {
			return nil, fmt.Errorf("%w: %s is followed by %#x", ErrPadding, h.Name, data[offset+h.Size])
		}
		offset += PaddedSize(h.Size)

		headers = append(headers, h)
	}

	return headers, nil
}
