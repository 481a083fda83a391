package gather

import (
	"context"
	"strings"

	"github.com/de-tools/kmp-audit/pkg/models/domain"
)

const pathPlaceholder = "{path}"

// CommandGatherer runs a collector command (locally or on a remote host) that
// prints the facts of a package, or of the running modules, as JSON.
type CommandGatherer struct {
	exec           Executor
	packageCommand string
	liveCommand    string
}

func NewCommandGatherer(exec Executor, packageCommand, liveCommand string) *CommandGatherer {
	return &CommandGatherer{
		exec:           exec,
		packageCommand: packageCommand,
		liveCommand:    liveCommand,
	}
}

func (g *CommandGatherer) Package(ctx context.Context, target domain.Target) (domain.PackageFacts, error) {
	out, err := g.exec.Run(ctx, target.Host, expandCommand(g.packageCommand, target.Path))
	if err != nil {
		return domain.PackageFacts{}, err
	}
	return DecodePackageFacts(out, FormatJSON, target.Path)
}

func (g *CommandGatherer) Modules(ctx context.Context, target domain.Target) ([]domain.ModuleFacts, error) {
	out, err := g.exec.Run(ctx, target.Host, expandCommand(g.liveCommand, target.Path))
	if err != nil {
		return nil, err
	}
	return DecodeModuleFacts(out, FormatJSON, target.String())
}

func expandCommand(command, path string) string {
	return strings.ReplaceAll(command, pathPlaceholder, shellQuote(path))
}

// shellQuote wraps s in single quotes for /bin/sh.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
