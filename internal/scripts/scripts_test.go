package scripts

import (
	"strings"
	"testing"

	"github.com/ralt/debbuild/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest(t models.InstallType) models.BuildRequest {
	return models.BuildRequest{
		Metadata: models.PackageMetadata{
			Name:            "foo",
			Version:         "1.0",
			Description:     "Foo daemon",
			Homepage:        "https://example.com/foo",
			Architecture:    "amd64",
			Priority:        "optional",
			MaintainerName:  "Jane Doe",
			MaintainerEmail: "jane@example.com",
		},
		Type:            t,
		Run:             `node server.js --greeting "hello world"`,
		PostinstPayload: "echo post-payload",
		PrermPayload:    "echo pre-payload",
	}
}

func TestRenderControl(t *testing.T) {
	m := testRequest(models.TypeNormal).Metadata
	m.Depends = []string{"a", "b", "c"}

	want := "Package: foo\n" +
		"Version: 1.0\n" +
		"Priority: optional\n" +
		"Architecture: amd64\n" +
		"Maintainer: Jane Doe <jane@example.com>\n" +
		"Depends: a, b, c\n" +
		"Homepage: https://example.com/foo\n" +
		"Description: Foo daemon\n"
	assert.Equal(t, want, RenderControl(m))
}

func TestRenderControlWithoutDepends(t *testing.T) {
	out := RenderControl(testRequest(models.TypeNormal).Metadata)
	assert.NotContains(t, out, "Depends:")
	assert.True(t, strings.HasSuffix(out, "Description: Foo daemon\n"))
}

func TestRenderControlWithoutHomepage(t *testing.T) {
	m := testRequest(models.TypeNormal).Metadata
	m.Homepage = ""
	assert.NotContains(t, RenderControl(m), "Homepage:")
}

func TestNormalScripts(t *testing.T) {
	set, err := Render(testRequest(models.TypeNormal))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(set.Postinst, "#!/bin/bash\n"))
	assert.NotContains(t, set.Postinst, "useradd")
	assert.NotContains(t, set.Postinst, "[Unit]")
	assert.Contains(t, set.Postinst, `echo "foo v1.0 by Jane Doe <jane@example.com>"`)
	assert.Contains(t, set.Postinst, "\necho post-payload\n")

	assert.True(t, strings.HasPrefix(set.Prerm, "#!/bin/bash\necho pre-payload\n"))
	assert.NotContains(t, set.Prerm, "userdel")
	assert.NotContains(t, set.Prerm, "systemctl")
	assert.True(t, strings.HasSuffix(set.Prerm, "rm -rf /usr/lib/foo\nmkdir -p /usr/lib/foo\n"))
}

func TestIsolatedScripts(t *testing.T) {
	set, err := Render(testRequest(models.TypeIsolated))
	require.NoError(t, err)

	assert.Contains(t, set.Postinst, `useradd -r -s /sbin/nologin -g nogroup -d /usr/lib/foo -c "Foo daemon" foo`)
	assert.Contains(t, set.Postinst, "chown -R foo:root /usr/lib/foo")
	assert.NotContains(t, set.Postinst, "[Unit]")
	assert.NotContains(t, set.Postinst, "systemctl")

	// User provisioning precedes the caller's payload
	assert.Less(t, strings.Index(set.Postinst, "useradd"), strings.Index(set.Postinst, "echo post-payload"))

	assert.Contains(t, set.Prerm, "userdel foo\n")
	assert.NotContains(t, set.Prerm, "systemctl")
}

func TestSystemdServiceScripts(t *testing.T) {
	set, err := Render(testRequest(models.TypeSystemdService))
	require.NoError(t, err)

	for _, line := range []string{
		"[Unit]",
		"Description=Foo daemon",
		"[Service]",
		"Type=simple",
		"User=foo",
		"WorkingDirectory=/usr/lib/foo",
		`ExecStart=/bin/bash -c "cd /usr/lib/foo;node server.js --greeting \"hello world\""`,
		"[Install]",
		"WantedBy=multi-user.target",
		"chmod 644 /lib/systemd/system/foo.service",
		"systemctl daemon-reload",
		"systemctl enable foo",
		"systemctl start foo",
	} {
		assert.Contains(t, set.Postinst, line+"\n")
	}

	// Platform detection comes before anything is changed on the system
	guard := strings.Index(set.Postinst, "/run/systemd/system")
	assert.Greater(t, guard, 0)
	assert.Less(t, guard, strings.Index(set.Postinst, "useradd"))
	assert.Contains(t, set.Postinst, `if [ "$(uname)" != "Linux" ]; then`)
	assert.Contains(t, set.Postinst, "exit 1")

	stop := strings.Index(set.Prerm, "systemctl stop foo")
	disable := strings.Index(set.Prerm, "systemctl disable foo")
	remove := strings.Index(set.Prerm, "rm -f /lib/systemd/system/foo.service")
	userdel := strings.Index(set.Prerm, "userdel foo")
	require.True(t, stop > 0 && disable > 0 && remove > 0 && userdel > 0)
	assert.Less(t, stop, disable)
	assert.Less(t, disable, remove)
	assert.Less(t, remove, userdel)
}

func TestCustomInstallDir(t *testing.T) {
	req := testRequest(models.TypeSystemdService)
	req.InstallDir = "/opt/foo"

	set, err := Render(req)
	require.NoError(t, err)
	assert.Contains(t, set.Postinst, "WorkingDirectory=/opt/foo\n")
	assert.Contains(t, set.Prerm, "mkdir -p /opt/foo\n")
	assert.NotContains(t, set.Prerm, "/usr/lib/foo")
}

func TestEscapeExecStart(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`plain`, `plain`},
		{`say "hi"`, `say \"hi\"`},
		{`it's`, `it\'s`},
		{`echo $HOME 100%`, `echo $$HOME 100%%`},
		{`a\b`, `a\\b`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeExecStart(tt.input), tt.input)
	}
}

func TestQuoteDouble(t *testing.T) {
	assert.Equal(t, "a \\\"b\\\" \\$c \\`d\\`", quoteDouble("a \"b\" $c `d`"))
}

func TestUnitDescriptionEscapesSpecifiers(t *testing.T) {
	req := testRequest(models.TypeSystemdService)
	req.Metadata.Description = "Serves 100% of %n requests"

	postinst, err := RenderPostinst(req)
	require.NoError(t, err)
	assert.Contains(t, postinst, "\nDescription=Serves 100%% of %%n requests\n")

	// useradd comment and control file keep the text as is
	assert.Contains(t, postinst, `-c "Serves 100% of %n requests"`)
	assert.Contains(t, RenderControl(req.Metadata), "Description: Serves 100% of %n requests\n")
}
