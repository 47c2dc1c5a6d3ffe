package models

// BuildConfig contains configuration for a package build
type BuildConfig struct {
	// Input/Output
	PackageFile string // Optional YAML package description
	PayloadDir  string // Directory copied into the staging area
	StagingDir  string // Prepared staging directory, consumed by the build
	OutputDir   string

	// Metadata
	Name            string
	Version         string
	Description     string
	Homepage        string
	Architecture    string
	Priority        string
	Depends         string // Comma list, or "none"
	MaintainerName  string
	MaintainerEmail string

	// Lifecycle
	Type         string
	Run          string
	InstallDir   string
	Postinst     string // Inline payload, replaced by PostinstFile contents
	Prerm        string // Inline payload, replaced by PrermFile contents
	PostinstFile string
	PrermFile    string
	Compression  string

	// Signing
	GPGKeyPath    string
	GPGPassphrase string
}
