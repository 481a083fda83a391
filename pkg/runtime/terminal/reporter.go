package terminal

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/template"

	"github.com/de-tools/kmp-audit/pkg/adapters"
	"github.com/de-tools/kmp-audit/pkg/models/domain"
)

const progressTemplate = `[{{printf "%-7s" .Severity}}] {{.Target}}{{if .Failed}}: {{.Error}}{{end}}
`

// ProgressReporter prints one line per outcome as soon as it is known.
type ProgressReporter struct {
	writer io.Writer
	tmpl   *template.Template
	mu     sync.Mutex
}

func NewProgressReporter(writer io.Writer) (*ProgressReporter, error) {
	if writer == nil {
		writer = os.Stderr
	}
	t, err := template.New("progress").Parse(progressTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &ProgressReporter{writer: writer, tmpl: t}, nil
}

func (c *ProgressReporter) Handle(o domain.Outcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tmpl.Execute(c.writer, adapters.MapOutcomeDomainToApi(o))
}
