package models

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Token syntax accepted by dpkg for the identifying control fields
var (
	namePattern    = regexp.MustCompile(`^[a-z0-9][a-z0-9+.-]+$`)
	versionPattern = regexp.MustCompile(`^([0-9]+:)?[0-9][A-Za-z0-9.+~]*(-[A-Za-z0-9.+~]+)*$`)
	archPattern    = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

	// installDirPattern keeps the install directory safe to paste unquoted
	// into the maintainer scripts
	installDirPattern = regexp.MustCompile(`^[A-Za-z0-9/._+-]+$`)
)

// PackageMetadata represents the fields rendered into the control file
type PackageMetadata struct {
	Name            string
	Version         string
	Description     string
	Homepage        string
	Architecture    string
	Priority        string
	MaintainerName  string
	MaintainerEmail string

	// Depends is rendered comma-joined; an empty list omits the field
	Depends []string
}

// Maintainer returns the "Name <email>" form used by the control file
func (m PackageMetadata) Maintainer() string {
	return fmt.Sprintf("%s <%s>", m.MaintainerName, m.MaintainerEmail)
}

// StandardFilename returns {name}_{version}_{arch}.deb
func (m PackageMetadata) StandardFilename() string {
	return fmt.Sprintf("%s_%s_%s.deb", m.Name, m.Version, m.Architecture)
}

// Validate checks the tokens that end up in the control file and in ar
// headers. Name is also used unquoted by the maintainer scripts, so it must
// follow the Debian package name syntax.
func (m PackageMetadata) Validate() error {
	tokens := []struct {
		field   string
		value   string
		pattern *regexp.Regexp
	}{
		{"name", m.Name, namePattern},
		{"version", m.Version, versionPattern},
		{"architecture", m.Architecture, archPattern},
	}
	for _, tok := range tokens {
		if tok.value == "" {
			return &BuildError{Type: ErrInvalidMetadata, Package: m.Name, Err: fmt.Errorf("%s is required", tok.field)}
		}
		if !tok.pattern.MatchString(tok.value) {
			return &BuildError{
				Type:    ErrInvalidMetadata,
				Package: m.Name,
				Err:     fmt.Errorf("%s %q is not a valid Debian %s", tok.field, tok.value, tok.field),
			}
		}
	}

	// dpkg refuses a control file whose Description has no value
	if strings.TrimSpace(m.Description) == "" {
		return &BuildError{Type: ErrInvalidMetadata, Package: m.Name, Err: fmt.Errorf("description is required")}
	}

	// Every other field lives on a single control line
	lines := map[string]string{
		"description":      m.Description,
		"homepage":         m.Homepage,
		"priority":         m.Priority,
		"maintainer name":  m.MaintainerName,
		"maintainer email": m.MaintainerEmail,
	}
	for field, value := range lines {
		if strings.ContainsAny(value, "\r\n") {
			return &BuildError{
				Type:    ErrInvalidMetadata,
				Package: m.Name,
				Err:     fmt.Errorf("%s must not contain newlines", field),
			}
		}
	}
	for _, dep := range m.Depends {
		if dep == "" || strings.ContainsAny(dep, ",\r\n") {
			return &BuildError{
				Type:    ErrInvalidMetadata,
				Package: m.Name,
				Err:     fmt.Errorf("invalid dependency %q", dep),
			}
		}
	}
	return nil
}

// ParseDepends splits a comma-separated dependency string.
// Both "" and "none" mean no dependencies.
func ParseDepends(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "none" {
		return nil
	}

	var deps []string
	for _, part := range strings.Split(s, ",") {
		if dep := strings.TrimSpace(part); dep != "" {
			deps = append(deps, dep)
		}
	}
	return deps
}

// InstallType selects which lifecycle script fragments are emitted
type InstallType string

const (
	TypeNormal         InstallType = "normal"
	TypeIsolated       InstallType = "isolated"
	TypeSystemdService InstallType = "systemd-service"
)

// ParseInstallType accepts the canonical names plus the "service" and
// "systemd" aliases for TypeSystemdService
func ParseInstallType(s string) (InstallType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return TypeNormal, nil
	case "isolated":
		return TypeIsolated, nil
	case "systemd-service", "service", "systemd":
		return TypeSystemdService, nil
	default:
		return "", &BuildError{
			Type: ErrInvalidConfig,
			Err:  fmt.Errorf("unknown install type %q (want normal, isolated or systemd-service)", s),
		}
	}
}

// CreatesUser reports whether the package provisions a dedicated system user
func (t InstallType) CreatesUser() bool {
	return t == TypeIsolated || t == TypeSystemdService
}

// ManagesService reports whether the package installs a systemd unit
func (t InstallType) ManagesService() bool {
	return t == TypeSystemdService
}

// BuildRequest is everything needed to assemble one package besides the payload
type BuildRequest struct {
	Metadata PackageMetadata
	Type     InstallType

	// Run is the command line wrapped by the systemd unit's ExecStart
	Run string

	PostinstPayload string
	PrermPayload    string

	// InstallDir defaults to /usr/lib/<name>
	InstallDir string

	Compression Compression
}

// Validate checks the metadata and the install directory
func (r BuildRequest) Validate() error {
	if err := r.Metadata.Validate(); err != nil {
		return err
	}
	if r.InstallDir == "" {
		return nil
	}

	dir := r.InstallDir
	switch {
	case !path.IsAbs(dir):
		return &BuildError{Type: ErrInvalidConfig, Package: r.Metadata.Name, Err: fmt.Errorf("install dir %q is not absolute", dir)}
	case path.Clean(dir) != dir:
		return &BuildError{Type: ErrInvalidConfig, Package: r.Metadata.Name, Err: fmt.Errorf("install dir %q is not a clean path", dir)}
	case dir == "/":
		return &BuildError{Type: ErrInvalidConfig, Package: r.Metadata.Name, Err: fmt.Errorf("install dir must not be /")}
	case !installDirPattern.MatchString(dir):
		return &BuildError{
			Type:    ErrInvalidConfig,
			Package: r.Metadata.Name,
			Err:     fmt.Errorf("install dir %q contains whitespace or shell metacharacters", dir),
		}
	}
	return nil
}

// ResolvedInstallDir returns InstallDir or its default
func (r BuildRequest) ResolvedInstallDir() string {
	if r.InstallDir != "" {
		return r.InstallDir
	}
	return "/usr/lib/" + r.Metadata.Name
}
