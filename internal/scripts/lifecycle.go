package scripts

import (
	"strings"
	"text/template"

	"github.com/ralt/debbuild/internal/models"
)

// UnitDir is where the generated systemd unit is installed
const UnitDir = "/lib/systemd/system"

const postinstTemplate = `#!/bin/bash
{{- if .ManagesService}}
if [ "$(uname)" != "Linux" ]; then
echo "Sorry, but {{dq .Name}} is only installable on Linux systems."
exit 1
fi
if [ ! -d /run/systemd/system ]; then
echo "Sorry, but {{dq .Name}} requires systemd and this system runs $(readlink -f /proc/1/exe)."
exit 1
fi
{{- end}}
{{- if .CreatesUser}}
useradd -r -s /sbin/nologin -g nogroup -d {{.InstallDir}} -c "{{dq .Description}}" {{.Name}}
chown -R {{.Name}}:root {{.InstallDir}}
{{- end}}
echo "{{dq .Name}} v{{dq .Version}} by {{dq .Maintainer}}"
{{.Payload}}
{{- if .ManagesService}}
cat > {{.UnitPath}} << 'UNIT'
[Unit]
Description={{unitText .Description}}

[Service]
Type=simple
User={{.Name}}
WorkingDirectory={{.InstallDir}}
ExecStart=/bin/bash -c "cd {{.InstallDir}};{{execArg .Run}}"

[Install]
WantedBy=multi-user.target
UNIT
chmod 644 {{.UnitPath}}
systemctl daemon-reload
systemctl enable {{.Name}}
systemctl start {{.Name}}
{{- end}}
`

const prermTemplate = `#!/bin/bash
{{.Payload}}
{{- if .ManagesService}}
if [ "$(uname)" = "Linux" ] && [ -d /run/systemd/system ]; then
systemctl stop {{.Name}}
systemctl disable {{.Name}}
rm -f {{.UnitPath}}
systemctl daemon-reload
fi
{{- end}}
{{- if .CreatesUser}}
userdel {{.Name}}
{{- end}}
rm -rf {{.InstallDir}}
mkdir -p {{.InstallDir}}
`

var (
	funcs = template.FuncMap{
		"dq":       quoteDouble,
		"execArg":  escapeExecStart,
		"unitText": escapeSpecifiers,
	}

	postinstTmpl = template.Must(template.New("postinst").Funcs(funcs).Parse(postinstTemplate))
	prermTmpl    = template.Must(template.New("prerm").Funcs(funcs).Parse(prermTemplate))
)

// scriptData is the view of a BuildRequest the templates see
type scriptData struct {
	Name           string
	Version        string
	Description    string
	Maintainer     string
	InstallDir     string
	UnitPath       string
	Run            string
	Payload        string
	CreatesUser    bool
	ManagesService bool
}

func newScriptData(req models.BuildRequest, payload string) scriptData {
	return scriptData{
		Name:           req.Metadata.Name,
		Version:        req.Metadata.Version,
		Description:    req.Metadata.Description,
		Maintainer:     req.Metadata.Maintainer(),
		InstallDir:     req.ResolvedInstallDir(),
		UnitPath:       UnitDir + "/" + req.Metadata.Name + ".service",
		Run:            req.Run,
		Payload:        payload,
		CreatesUser:    req.Type.CreatesUser(),
		ManagesService: req.Type.ManagesService(),
	}
}

// RenderPostinst creates the post-install script. The caller's payload is
// embedded verbatim after user provisioning.
func RenderPostinst(req models.BuildRequest) (string, error) {
	var buf strings.Builder
	if err := postinstTmpl.Execute(&buf, newScriptData(req, req.PostinstPayload)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderPrerm creates the pre-removal script. The install directory is
// always reset to an empty placeholder so that purge and reinstall start
// clean.
func RenderPrerm(req models.BuildRequest) (string, error) {
	var buf strings.Builder
	if err := prermTmpl.Execute(&buf, newScriptData(req, req.PrermPayload)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// quoteDouble escapes s for a double-quoted shell string
var quoteDouble = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"$", `\$`,
	"`", "\\`",
).Replace

// escapeExecStart escapes s for the double-quoted argument of a systemd
// ExecStart line. systemd expands "%" specifiers and "$" variables itself,
// so both are doubled.
var escapeExecStart = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`'`, `\'`,
	"%", "%%",
	"$", "$$",
).Replace

// escapeSpecifiers doubles "%" so systemd does not expand specifiers in a
// plain unit setting such as Description
var escapeSpecifiers = strings.NewReplacer("%", "%%").Replace
