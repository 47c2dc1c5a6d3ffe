package utils

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Checksum contains the digests an APT index records for a package file
type Checksum struct {
	MD5    string
	SHA1   string
	SHA256 string
	SHA512 string
	Size   int64
}

// CalculateChecksums calculates all checksums for a file in a single pass
func CalculateChecksums(path string) (*Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReaderChecksums(f)
}

// ReaderChecksums streams r through every digest at once
func ReaderChecksums(r io.Reader) (*Checksum, error) {
	md5Hash := md5.New()
	sha1Hash := sha1.New()
	sha256Hash := sha256.New()
	sha512Hash := sha512.New()

	// Use MultiWriter to calculate all hashes at once
	multiWriter := io.MultiWriter(md5Hash, sha1Hash, sha256Hash, sha512Hash)

	size, err := io.Copy(multiWriter, r)
	if err != nil {
		return nil, err
	}

	return &Checksum{
		MD5:    hex.EncodeToString(md5Hash.Sum(nil)),
		SHA1:   hex.EncodeToString(sha1Hash.Sum(nil)),
		SHA256: hex.EncodeToString(sha256Hash.Sum(nil)),
		SHA512: hex.EncodeToString(sha512Hash.Sum(nil)),
		Size:   size,
	}, nil
}

// Stanza renders the checksum fields in the order of a Packages index entry
func (c *Checksum) Stanza() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Size: %d\n", c.Size)
	fmt.Fprintf(&b, "MD5sum: %s\n", c.MD5)
	fmt.Fprintf(&b, "SHA1: %s\n", c.SHA1)
	fmt.Fprintf(&b, "SHA256: %s\n", c.SHA256)
	fmt.Fprintf(&b, "SHA512: %s\n", c.SHA512)
	return b.String()
}
