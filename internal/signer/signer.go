// Package signer produces OpenPGP signatures for built packages.
package signer

// Signer signs package files and repository indexes
type Signer interface {
	// SignDetached creates an armored detached signature (for <pkg>.deb.asc
	// and Release.gpg)
	SignDetached(data []byte) ([]byte, error)

	// SignCleartext wraps data in a cleartext signature (for InRelease)
	SignCleartext(data []byte) ([]byte, error)

	// GetPublicKey returns the public key
	GetPublicKey() ([]byte, error)
}
