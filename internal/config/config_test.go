package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ralt/debbuild/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `name: foo
version: "1.0"
description: Foo daemon
homepage: https://example.com/foo
architecture: amd64
priority: optional
depends:
  - libc6
  - " nodejs "
maintainer:
  name: Jane Doe
  email: jane@example.com
type: systemd-service
run: node server.js
install_dir: /opt/foo
compression: xz
postinst: |
  echo installed
prerm: echo removing
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "package.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.PackageFile)
	assert.Equal(t, "foo", cfg.Name)
	assert.Equal(t, "1.0", cfg.Version)
	assert.Equal(t, "Foo daemon", cfg.Description)
	assert.Equal(t, "https://example.com/foo", cfg.Homepage)
	assert.Equal(t, "amd64", cfg.Architecture)
	assert.Equal(t, "optional", cfg.Priority)
	assert.Equal(t, "libc6, nodejs", cfg.Depends)
	assert.Equal(t, "Jane Doe", cfg.MaintainerName)
	assert.Equal(t, "jane@example.com", cfg.MaintainerEmail)
	assert.Equal(t, "systemd-service", cfg.Type)
	assert.Equal(t, "node server.js", cfg.Run)
	assert.Equal(t, "/opt/foo", cfg.InstallDir)
	assert.Equal(t, "xz", cfg.Compression)
	assert.Equal(t, "echo installed\n", cfg.Postinst)
	assert.Equal(t, "echo removing", cfg.Prerm)
}

func TestDecodeDependsString(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"depends: a, b ,c", "a, b, c"},
		{"depends: none", ""},
		{"depends: ''", ""},
		{"depends: []", ""},
	}
	for _, tt := range tests {
		cfg, err := Decode(strings.NewReader(tt.input))
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, cfg.Depends, tt.input)
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, input := range []string{
		"unknown_key: 1",
		"depends:\n  key: value",
		"name: [unterminated",
	} {
		_, err := Decode(strings.NewReader(input))
		require.Error(t, err, input)

		var be *models.BuildError
		require.True(t, errors.As(err, &be), input)
		assert.Equal(t, models.ErrInvalidConfig, be.Type)
	}
}

func TestDecodeEmpty(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, &models.BuildConfig{}, cfg)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	var be *models.BuildError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, models.ErrFileOp, be.Type)
}
