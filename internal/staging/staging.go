// Package staging owns the working directories that hold a package payload
// until it is archived into the data member.
package staging

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

const dirPattern = "debbuild-payload-"

// ErrReleased is returned when a directory is used after Release
var ErrReleased = errors.New("staging directory already released")

// Dir is a single-owner payload directory. The owner populates Path, hands
// the Dir to a build, and the build releases it once the payload has been
// archived.
type Dir struct {
	mu       sync.Mutex
	path     string
	released bool
}

// New creates an empty staging directory under parent (os.TempDir when
// parent is empty)
func New(parent string) (*Dir, error) {
	path, err := os.MkdirTemp(parent, dirPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	// The directory becomes "./" in the data member
	if err := os.Chmod(path, 0755); err != nil {
		os.RemoveAll(path)
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	logrus.Debugf("Created staging directory %s", path)
	return &Dir{path: path}, nil
}

// Open takes ownership of an existing directory, typically one created
// earlier by New in another process
func Open(path string) (*Dir, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open staging directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("staging path %s is not a directory", path)
	}
	return &Dir{path: path}, nil
}

// Path returns the filesystem location to populate
func (d *Dir) Path() string {
	return d.path
}

// Released reports whether the directory has been removed
func (d *Dir) Released() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}

// Use runs fn with the directory path while holding the handle, so that a
// concurrent Release cannot remove the tree underneath fn. fn must not
// call Release itself.
func (d *Dir) Use(fn func(path string) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return ErrReleased
	}
	return fn(d.path)
}

// Release removes the directory and everything in it. Releasing twice is
// a no-op.
func (d *Dir) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil
	}
	if err := os.RemoveAll(d.path); err != nil {
		return fmt.Errorf("failed to remove staging directory %s: %w", d.path, err)
	}
	d.released = true
	logrus.Debugf("Removed staging directory %s", d.path)
	return nil
}

// Manager keeps one process-wide "current" staging directory. Access is
// serialized so that replacing the directory and consuming it in a build
// never overlap.
type Manager struct {
	mu      sync.Mutex
	parent  string
	current *Dir
}

// NewManager creates a Manager whose directories live under parent
func NewManager(parent string) *Manager {
	return &Manager{parent: parent}
}

// Replace discards the current directory, if any, and installs a fresh
// empty one
func (m *Manager) Replace() (*Dir, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaceLocked()
}

// Current returns the current directory without replacing it, or nil when
// Replace has never been called
func (m *Manager) Current() *Dir {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Consume hands the current directory to fn and swaps in a fresh empty one
// before returning, unless fn failed and left the directory in place. fn
// owns the directory it receives and is expected to release it. The
// manager lock is held for the whole call.
//
// Once fn has succeeded its result stands: if no fresh directory can be
// created the failure is logged and the next call retries.
func (m *Manager) Consume(fn func(*Dir) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		if _, err := m.replaceLocked(); err != nil {
			return err
		}
	}

	err := fn(m.current)
	if err != nil && !m.current.Released() {
		return err
	}

	if _, rerr := m.replaceLocked(); rerr != nil {
		logrus.Warnf("Could not install a new staging directory: %v", rerr)
		if m.current.Released() {
			m.current = nil
		}
	}
	return err
}

func (m *Manager) replaceLocked() (*Dir, error) {
	next, err := New(m.parent)
	if err != nil {
		return nil, err
	}

	if m.current != nil {
		if err := m.current.Release(); err != nil {
			logrus.Warnf("Could not remove previous staging directory: %v", err)
		}
	}

	m.current = next
	return next, nil
}
