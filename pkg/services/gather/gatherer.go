package gather

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/de-tools/kmp-audit/pkg/models/domain"
)

// Gatherer collects facts for a single target. Errors wrapping
// domain.ErrMalformedFacts mean the facts were retrieved but unusable; any
// other error means they could not be retrieved at all.
type Gatherer interface {
	Package(ctx context.Context, target domain.Target) (domain.PackageFacts, error)
	Modules(ctx context.Context, target domain.Target) ([]domain.ModuleFacts, error)
}

// FormatFromPath picks the decoder from the file extension.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	default:
		return "", false
	}
}

// IsArchive reports whether path names a gzip compressed tar bundle.
func IsArchive(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz")
}

// FileGatherer reads fact documents from the local filesystem.
type FileGatherer struct{}

func NewFileGatherer() *FileGatherer {
	return &FileGatherer{}
}

func (g *FileGatherer) Package(_ context.Context, target domain.Target) (domain.PackageFacts, error) {
	data, format, err := readFactFile(target.Path)
	if err != nil {
		return domain.PackageFacts{}, err
	}
	return DecodePackageFacts(data, format, target.Path)
}

func (g *FileGatherer) Modules(_ context.Context, target domain.Target) ([]domain.ModuleFacts, error) {
	data, format, err := readFactFile(target.Path)
	if err != nil {
		return nil, err
	}
	return DecodeModuleFacts(data, format, target.Path)
}

func readFactFile(path string) ([]byte, Format, error) {
	format, ok := FormatFromPath(path)
	if !ok {
		return nil, "", fmt.Errorf("unsupported fact file %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read fact file: %w", err)
	}
	return data, format, nil
}
