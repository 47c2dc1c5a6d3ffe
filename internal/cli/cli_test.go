package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ralt/debbuild/internal/debfile"
	"github.com/ralt/debbuild/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writePayload(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	root := filepath.Join(dir, "usr", "lib", "foo")
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "start"), []byte("#!/bin/sh\necho hi\n"), 0755))
	return dir
}

func readPackage(t *testing.T, path string) *debfile.Package {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	_, err = debfile.CheckLayout(data)
	require.NoError(t, err)

	pkg, err := debfile.Read(bytes.NewReader(data))
	require.NoError(t, err)
	return pkg
}

func dataNames(pkg *debfile.Package) []string {
	var names []string
	for _, e := range pkg.DataEntries {
		names = append(names, e.Name)
	}
	return names
}

func TestBuildFromPayloadDir(t *testing.T) {
	out := t.TempDir()
	_, err := execute(t, "build",
		"--name", "foo",
		"--version", "1.0",
		"--arch", "amd64",
		"--description", "Foo daemon",
		"--maintainer-name", "Jane Doe",
		"--maintainer-email", "jane@example.com",
		"--depends", "libc6, nodejs",
		"--type", "systemd-service",
		"--run", "./start",
		"--payload-dir", writePayload(t),
		"--output-dir", out,
	)
	require.NoError(t, err)

	pkg := readPackage(t, filepath.Join(out, "foo_1.0_amd64.deb"))
	assert.Contains(t, pkg.Control, "Package: foo\n")
	assert.Contains(t, pkg.Control, "Priority: optional\n")
	assert.Contains(t, pkg.Control, "Depends: libc6, nodejs\n")
	assert.Contains(t, pkg.Control, "Maintainer: Jane Doe <jane@example.com>\n")
	assert.Contains(t, pkg.Scripts["postinst"], "systemctl enable foo\n")
	assert.Contains(t, dataNames(pkg), "./usr/lib/foo/start")
	assert.Equal(t, "data.tar.gz", pkg.Members[2].Name)
}

func TestBuildWithoutPayload(t *testing.T) {
	out := t.TempDir()
	_, err := execute(t, "build", "--name", "foo", "--version", "1.0", "--description", "Foo", "--output-dir", out)
	require.NoError(t, err)

	pkg := readPackage(t, filepath.Join(out, "foo_1.0_all.deb"))
	assert.Equal(t, []string{"./"}, dataNames(pkg))
	assert.Contains(t, pkg.Control, "Maintainer: foo maintainers <root@localhost>\n")
	assert.NotContains(t, pkg.Control, "Depends:")
}

func TestStageThenBuild(t *testing.T) {
	stageOut, err := execute(t, "stage", "--parent", t.TempDir(), "--payload-dir", writePayload(t))
	require.NoError(t, err)

	stagingDir := strings.TrimSpace(stageOut)
	require.DirExists(t, stagingDir)
	require.NoError(t, os.WriteFile(filepath.Join(stagingDir, "usr", "lib", "foo", "extra"), []byte("x"), 0644))

	out := t.TempDir()
	_, err = execute(t, "build", "--name", "foo", "--version", "1.0", "--description", "Foo", "--staging-dir", stagingDir, "--output-dir", out)
	require.NoError(t, err)

	assert.NoDirExists(t, stagingDir)

	pkg := readPackage(t, filepath.Join(out, "foo_1.0_all.deb"))
	assert.Contains(t, dataNames(pkg), "./usr/lib/foo/start")
	assert.Contains(t, dataNames(pkg), "./usr/lib/foo/extra")
}

func TestBuildWithPackageFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Rename(writePayload(t), filepath.Join(dir, "payload")))

	packageFile := filepath.Join(dir, "package.yaml")
	require.NoError(t, os.WriteFile(packageFile, []byte(`name: foo
version: "1.0"
description: Foo daemon
architecture: arm64
depends: [libc6]
maintainer:
  name: Jane Doe
  email: jane@example.com
type: isolated
compression: zstd
payload_dir: payload
postinst: echo from-file
`), 0644))

	prerm := filepath.Join(dir, "prerm.sh")
	require.NoError(t, os.WriteFile(prerm, []byte("echo prerm-file\n"), 0644))

	out := t.TempDir()
	_, err := execute(t, "build", "-c", packageFile, "--version", "2.0", "--prerm-file", prerm, "-o", out)
	require.NoError(t, err)

	pkg := readPackage(t, filepath.Join(out, "foo_2.0_arm64.deb"))
	assert.Contains(t, pkg.Control, "Version: 2.0\n")
	assert.Contains(t, pkg.Control, "Depends: libc6\n")
	assert.Equal(t, "data.tar.zst", pkg.Members[2].Name)
	assert.Contains(t, pkg.Scripts["postinst"], "useradd -r")
	assert.Contains(t, pkg.Scripts["postinst"], "\necho from-file\n")
	assert.True(t, strings.HasPrefix(pkg.Scripts["prerm"], "#!/bin/bash\necho prerm-file\n"))
	assert.Contains(t, dataNames(pkg), "./usr/lib/foo/start")
}

func writeTestKey(t *testing.T) (*openpgp.Entity, string) {
	t.Helper()

	entity, err := openpgp.NewEntity("Test", "test", "test@example.com", nil)
	require.NoError(t, err)

	var key bytes.Buffer
	w, err := armor.Encode(&key, openpgp.PrivateKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.SerializePrivate(w, nil))
	require.NoError(t, w.Close())

	keyPath := filepath.Join(t.TempDir(), "key.asc")
	require.NoError(t, os.WriteFile(keyPath, key.Bytes(), 0600))
	return entity, keyPath
}

func TestBuildSigned(t *testing.T) {
	entity, keyPath := writeTestKey(t)

	out := t.TempDir()
	_, err := execute(t, "build", "--name", "foo", "--version", "1.0", "--description", "Foo", "-o", out, "-k", keyPath)
	require.NoError(t, err)

	pkgPath := filepath.Join(out, "foo_1.0_all.deb")
	data, err := os.ReadFile(pkgPath)
	require.NoError(t, err)
	sig, err := os.ReadFile(pkgPath + ".asc")
	require.NoError(t, err)

	_, err = openpgp.CheckArmoredDetachedSignature(openpgp.EntityList{entity}, bytes.NewReader(data), bytes.NewReader(sig), nil)
	assert.NoError(t, err)
}

func TestBuildValidation(t *testing.T) {
	payload := writePayload(t)

	tests := []struct {
		name    string
		args    []string
		errType models.ErrorType
	}{
		{"missing name", []string{"--version", "1.0"}, models.ErrInvalidConfig},
		{"missing version", []string{"--name", "foo"}, models.ErrInvalidConfig},
		{"service without run", []string{"--name", "foo", "--version", "1.0", "--type", "service"}, models.ErrInvalidConfig},
		{"unknown type", []string{"--name", "foo", "--version", "1.0", "--type", "docker"}, models.ErrInvalidConfig},
		{"unknown compression", []string{"--name", "foo", "--version", "1.0", "--compression", "bzip2"}, models.ErrInvalidConfig},
		{"both dirs", []string{"--name", "foo", "--version", "1.0", "--payload-dir", payload, "--staging-dir", payload}, models.ErrInvalidConfig},
		{"passphrase without key", []string{"--name", "foo", "--version", "1.0", "-p", "secret"}, models.ErrInvalidConfig},
		{"bad name", []string{"--name", "foo bar", "--version", "1.0"}, models.ErrInvalidMetadata},
		{"shell in name", []string{"--name", "x;id", "--version", "1.0"}, models.ErrInvalidMetadata},
		{"bad version", []string{"--name", "foo", "--version", "v1"}, models.ErrInvalidMetadata},
		{"missing description", []string{"--name", "foo", "--version", "1.0", "--description", ""}, models.ErrInvalidConfig},
		{"install dir with space", []string{"--name", "foo", "--version", "1.0", "--type", "isolated", "--install-dir", "/opt/my app"}, models.ErrInvalidConfig},
		{"relative install dir", []string{"--name", "foo", "--version", "1.0", "--install-dir", "opt/rel"}, models.ErrInvalidConfig},
		{"root install dir", []string{"--name", "foo", "--version", "1.0", "--install-dir", "/"}, models.ErrInvalidConfig},
		{"non-linux service", []string{"--name", "foo", "--version", "1.0", "--type", "systemd-service", "--run", "x", "--arch", "hurd-i386"}, models.ErrUnsupportedTarget},
		{"missing payload", []string{"--name", "foo", "--version", "1.0", "--payload-dir", filepath.Join(payload, "missing")}, models.ErrFileOp},
		{"missing postinst file", []string{"--name", "foo", "--version", "1.0", "--postinst-file", filepath.Join(payload, "missing")}, models.ErrFileOp},
		{"missing key", []string{"--name", "foo", "--version", "1.0", "-k", filepath.Join(payload, "missing")}, models.ErrSigning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"build", "-o", t.TempDir(), "--description", "Foo"}, tt.args...)
			_, err := execute(t, args...)
			require.Error(t, err)

			var be *models.BuildError
			require.True(t, errors.As(err, &be), err.Error())
			assert.Equal(t, tt.errType, be.Type)
		})
	}
}

func TestInspect(t *testing.T) {
	out := t.TempDir()
	_, err := execute(t, "build", "--name", "foo", "--version", "1.0", "--description", "Foo", "--payload-dir", writePayload(t), "-o", out)
	require.NoError(t, err)

	pkgPath := filepath.Join(out, "foo_1.0_all.deb")
	output, err := execute(t, "inspect", pkgPath)
	require.NoError(t, err)

	for _, want := range []string{"debian-binary", "control.tar.gz", "data.tar.gz", "100644", "0:0",
		"Package: foo\n", "Filename: foo_1.0_all.deb\n", "MD5sum: ", "SHA256: ", "postinst", "prerm"} {
		assert.Contains(t, output, want)
	}
	assert.NotContains(t, output, "./usr/lib/foo/start")

	output, err = execute(t, "inspect", "--data", pkgPath)
	require.NoError(t, err)
	assert.Contains(t, output, "./usr/lib/foo/start")

	_, err = execute(t, "build", "--name", "bar", "--version", "2.0", "--description", "Bar", "-o", out)
	require.NoError(t, err)

	output, err = execute(t, "inspect", out)
	require.NoError(t, err)
	assert.Contains(t, output, "==> "+filepath.Join(out, "bar_2.0_all.deb")+" <==\n")
	assert.Contains(t, output, "==> "+pkgPath+" <==\n")
	assert.Contains(t, output, "Package: bar\n")
}

func TestInspectRejectsNonDeb(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foo.deb")
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04"), 0644))

	_, err := execute(t, "inspect", path)

	var be *models.BuildError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, models.ErrArchive, be.Type)

	_, err = execute(t, "inspect", filepath.Join(t.TempDir(), "missing.deb"))
	require.True(t, errors.As(err, &be))
	assert.Equal(t, models.ErrFileOp, be.Type)
}

func TestIndex(t *testing.T) {
	out := t.TempDir()
	_, err := execute(t, "build", "--name", "foo", "--version", "1.0", "--description", "Foo", "-o", out)
	require.NoError(t, err)

	_, err = execute(t, "index", out)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(out, "Packages"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Package: foo\n"))
	assert.Contains(t, string(data), "Filename: ./foo_1.0_all.deb\n")
	assert.FileExists(t, filepath.Join(out, "Packages.gz"))
}

func TestIndexSigned(t *testing.T) {
	entity, keyPath := writeTestKey(t)

	out := t.TempDir()
	_, err := execute(t, "build", "--name", "foo", "--version", "1.0", "--description", "Foo", "-o", out)
	require.NoError(t, err)

	_, err = execute(t, "index", "--origin", "debbuild", "-k", keyPath, out)
	require.NoError(t, err)

	release, err := os.ReadFile(filepath.Join(out, "Release"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(release), "Origin: debbuild\n"))
	assert.Contains(t, string(release), " Packages.gz\n")

	sig, err := os.ReadFile(filepath.Join(out, "Release.gpg"))
	require.NoError(t, err)
	_, err = openpgp.CheckArmoredDetachedSignature(openpgp.EntityList{entity}, bytes.NewReader(release), bytes.NewReader(sig), nil)
	assert.NoError(t, err)

	inRelease, err := os.ReadFile(filepath.Join(out, "InRelease"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(inRelease), "-----BEGIN PGP SIGNED MESSAGE-----"))
	assert.FileExists(t, filepath.Join(out, "Release.key"))

	_, err = execute(t, "index", "-p", "secret", out)
	var be *models.BuildError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, models.ErrInvalidConfig, be.Type)
}
