package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/de-tools/kmp-audit/pkg/adapters"
	"github.com/de-tools/kmp-audit/pkg/models/domain"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Reporter renders the outcomes of a batch.
type Reporter interface {
	Handle(outcomes []domain.Outcome) error
}

func NewReporter(format string, writer io.Writer) (Reporter, error) {
	if writer == nil {
		writer = os.Stdout
	}
	switch format {
	case FormatText, "":
		return NewTextReporter(writer), nil
	case FormatJSON:
		return &JSONReporter{writer: writer}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

type TableConfig struct {
	CheckWidth    int
	SeverityWidth int
	MessageWidth  int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		CheckWidth:    24,
		SeverityWidth: 8,
		MessageWidth:  72,
	}
}

type TextReporter struct {
	writer io.Writer
	config TableConfig
}

func NewTextReporter(writer io.Writer) *TextReporter {
	return &TextReporter{
		writer: writer,
		config: DefaultTableConfig(),
	}
}

const textTemplate = `{{range .Outcomes}}
=== {{.Target}} [{{.Severity}}] ===
{{if .Failed}}FAILED: {{.Error}}
{{else}}{{with .Package}}{{separator}}
{{row "Check" "Severity" "Message"}}
{{separator}}
{{row "Name" .Name.Severity .Name.Message}}
{{row "Path" .Path.Severity .Path.Message}}
{{row "Vendor" .Vendor.Severity .Vendor.Message}}
{{row "Signature" .Signature.Severity .Signature.Message}}
{{row "License" .License.Severity .License.Message}}
{{row "Weak-module hook" .WeakModuleHook.Severity .WeakModuleHook.Message}}
{{row "Hardware aliases" .Aliases.Severity .Aliases.Message}}
{{with .Summary}}{{row "Module licenses" .Licenses.Severity .Licenses.Message}}
{{row "Module signatures" .Signatures.Severity .Signatures.Message}}
{{row "Module supported" .Supported.Severity .Supported.Message}}
{{row "Module symbols" .Symbols.Severity .Symbols.Message}}
{{end}}{{separator}}
{{range .Modules}}{{template "module" .}}{{end}}{{end}}{{range .Modules}}{{template "module" .}}{{end}}{{end}}{{end}}
{{.Summary.Total}} targets: {{.Summary.Passed}} passed, {{.Summary.Warnings}} warnings, {{.Summary.Errors}} errors ({{.Summary.Malformed}} malformed), {{.Summary.Failed}} failed
`

const moduleTemplate = `{{define "module"}}
  {{.Path}} [{{.Severity}}]{{if .Running}} (running){{end}}
{{row "  License" .License.Severity .License.Message}}
{{row "  Supported" .Supported.Severity .Supported.Message}}
{{row "  Signature" .Signature.Severity .Signature.Message}}
{{with .Symbols}}{{row "  Symbols" .Severity .Message}}
{{end}}{{end}}`

func (c *TextReporter) Handle(outcomes []domain.Outcome) error {
	funcMap := template.FuncMap{
		"row": func(check string, severity interface{}, message string) string {
			return fmt.Sprintf("| %-*s | %-*v | %-*s |",
				c.config.CheckWidth, check,
				c.config.SeverityWidth, severity,
				c.config.MessageWidth, message)
		},
		"separator": func() string {
			return fmt.Sprintf("+%s+%s+%s+",
				strings.Repeat("-", c.config.CheckWidth+2),
				strings.Repeat("-", c.config.SeverityWidth+2),
				strings.Repeat("-", c.config.MessageWidth+2))
		},
	}

	t, err := template.New("report").Funcs(funcMap).Parse(textTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	if _, err := t.Parse(moduleTemplate); err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	return t.Execute(c.writer, adapters.MapReportToApi(outcomes))
}

type JSONReporter struct {
	writer io.Writer
}

func (r *JSONReporter) Handle(outcomes []domain.Outcome) error {
	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(adapters.MapReportToApi(outcomes))
}
