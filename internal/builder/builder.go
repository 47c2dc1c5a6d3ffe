// Package builder assembles .deb packages: it renders the control texts,
// composes the control and data members and wraps them in an ar container.
package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ralt/debbuild/internal/ar"
	"github.com/ralt/debbuild/internal/compose"
	"github.com/ralt/debbuild/internal/models"
	"github.com/ralt/debbuild/internal/scripts"
	"github.com/ralt/debbuild/internal/staging"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Member names of the outer ar archive
const (
	MemberDebianBinary = "debian-binary"
	MemberControl      = "control.tar.gz"
	dataBase           = "data.tar"
)

// DebianBinary is the format version carried by the debian-binary member
var DebianBinary = []byte("2.0\n")

// Debian ports whose kernel is not Linux, hence no systemd
var nonLinuxPrefixes = []string{"hurd-", "kfreebsd-", "darwin-", "freebsd-", "netbsd-", "openbsd-"}

// Result is a finished package
type Result struct {
	// Data is the complete .deb byte stream
	Data []byte

	// Members are the ar headers in archive order, as declared
	Members []ar.Header

	// Scripts are the rendered control texts
	Scripts scripts.Set

	// CleanupErr is set when the package was built but the staging
	// directory could not be removed afterwards
	CleanupErr error
}

// Builder assembles packages. A Builder holds no per-build state and may
// be shared by concurrent builds that use distinct staging directories.
type Builder struct {
	now func() time.Time
}

// NewBuilder creates a Builder stamping member headers with the wall clock
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// Build assembles the package described by req from the payload in dir.
// The Builder takes ownership of dir: once the data member has been
// composed the directory is removed. On failure dir is left untouched.
func (b *Builder) Build(ctx context.Context, req models.BuildRequest, dir *staging.Dir) (*Result, error) {
	name := req.Metadata.Name

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := checkTarget(req); err != nil {
		return nil, err
	}
	if dir == nil {
		return nil, models.NewBuildError(models.ErrFileOp, name, errors.New("no staging directory"))
	}
	if req.Compression == "" {
		req.Compression = models.CompressionGzip
	}

	logrus.Infof("Building %s (%s)", req.Metadata.StandardFilename(), req.Type)

	set, err := scripts.Render(req)
	if err != nil {
		return nil, models.NewBuildError(models.ErrInvalidConfig, name, err)
	}

	// Both members compress independently; assembly waits for both
	var controlData, dataData []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		controlData, err = compose.ControlMember(gctx, set.Control, set.Postinst, set.Prerm)
		if err != nil {
			return fmt.Errorf("composing %s: %w", MemberControl, err)
		}
		return nil
	})
	g.Go(func() error {
		return dir.Use(func(path string) error {
			var err error
			dataData, err = compose.DataMember(gctx, path, req.Compression)
			if err != nil {
				return fmt.Errorf("composing %s: %w", req.Compression.MemberName(dataBase), err)
			}
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, staging.ErrReleased) {
			return nil, models.NewBuildError(models.ErrFileOp, name, err)
		}
		return nil, models.NewBuildError(models.ErrArchive, name, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, models.NewBuildError(models.ErrArchive, name, err)
	}

	result := &Result{Scripts: set}

	// The payload is archived; the staging directory has served its purpose
	if err := dir.Release(); err != nil {
		logrus.Warnf("Package %s built but staging cleanup failed: %v", name, err)
		result.CleanupErr = models.NewBuildError(models.ErrFileOp, name, err)
	}

	members := []struct {
		name string
		body []byte
	}{
		{MemberDebianBinary, DebianBinary},
		{MemberControl, controlData},
		{req.Compression.MemberName(dataBase), dataData},
	}

	var buf bytes.Buffer
	w := ar.NewWriter(&buf)
	w.Now = b.now
	if err := w.WriteGlobalHeader(); err != nil {
		return nil, models.NewBuildError(models.ErrArchive, name, err)
	}
	for _, m := range members {
		if err := w.WriteMember(m.name, m.body); err != nil {
			return nil, models.NewBuildError(models.ErrArchive, name, fmt.Errorf("writing %s: %w", m.name, err))
		}
	}

	headers, err := ar.ReadHeaders(buf.Bytes())
	if err != nil {
		return nil, models.NewBuildError(models.ErrArchive, name, err)
	}
	result.Members = headers
	result.Data = buf.Bytes()
	logrus.Infof("Assembled %s: %d bytes (control %d, data %d)",
		req.Metadata.StandardFilename(), len(result.Data), len(controlData), len(dataData))
	return result, nil
}

// BuildCurrent builds from the manager's current staging directory and
// installs a fresh empty one before returning. Calls through the same
// manager are serialized.
func (b *Builder) BuildCurrent(ctx context.Context, req models.BuildRequest, m *staging.Manager) (*Result, error) {
	var result *Result
	err := m.Consume(func(d *staging.Dir) error {
		var err error
		result, err = b.Build(ctx, req, d)
		return err
	})
	if err != nil {
		var be *models.BuildError
		if !errors.As(err, &be) {
			err = models.NewBuildError(models.ErrFileOp, req.Metadata.Name, err)
		}
		return nil, err
	}
	return result, nil
}

// checkTarget refuses systemd-managed packages for non-Linux architectures
func checkTarget(req models.BuildRequest) error {
	if !req.Type.ManagesService() {
		return nil
	}
	for _, prefix := range nonLinuxPrefixes {
		if strings.HasPrefix(req.Metadata.Architecture, prefix) {
			return models.NewBuildError(models.ErrUnsupportedTarget, req.Metadata.Name, fmt.Errorf(
				"%s packages are only supported on Linux with systemd, but architecture %q targets %s",
				models.TypeSystemdService, req.Metadata.Architecture, strings.TrimSuffix(prefix, "-")))
		}
	}
	return nil
}
