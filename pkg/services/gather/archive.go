package gather

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/de-tools/kmp-audit/pkg/models/domain"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

const maxArchiveEntrySize = 256 << 20

var factFileNames = []string{"facts.json", "facts.yaml", "facts.yml", "modules.json", "modules.yaml", "modules.yml"}

// ArchiveGatherer reads fact bundles: gzip compressed tarballs carrying a
// facts.json/facts.yaml document (or modules.* for live snapshots). Each bundle
// is unpacked into its own temporary directory which is always removed.
type ArchiveGatherer struct {
	tempDir string
}

func NewArchiveGatherer(tempDir string) *ArchiveGatherer {
	return &ArchiveGatherer{tempDir: tempDir}
}

func (g *ArchiveGatherer) Package(ctx context.Context, target domain.Target) (domain.PackageFacts, error) {
	var facts domain.PackageFacts
	err := g.withUnpacked(ctx, target.Path, func(factFile string) error {
		data, format, err := readFactFile(factFile)
		if err != nil {
			return err
		}
		facts, err = DecodePackageFacts(data, format, target.Path)
		return err
	})
	return facts, err
}

func (g *ArchiveGatherer) Modules(ctx context.Context, target domain.Target) ([]domain.ModuleFacts, error) {
	var modules []domain.ModuleFacts
	err := g.withUnpacked(ctx, target.Path, func(factFile string) error {
		data, format, err := readFactFile(factFile)
		if err != nil {
			return err
		}
		modules, err = DecodeModuleFacts(data, format, target.Path)
		return err
	})
	return modules, err
}

func (g *ArchiveGatherer) withUnpacked(ctx context.Context, archive string, fn func(factFile string) error) error {
	dir, err := os.MkdirTemp(g.tempDir, "kmp-audit-*")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("dir", dir).Msg("failed to remove work dir")
		}
	}()

	if err := unpack(ctx, archive, dir); err != nil {
		return err
	}
	factFile, err := findFactFile(dir)
	if err != nil {
		return fmt.Errorf("%s: %w", archive, err)
	}
	return fn(factFile)
}

func unpack(ctx context.Context, archive, dir string) error {
	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("read archive %s: %w", archive, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive %s: %w", archive, err)
		}

		dest, err := safeJoin(dir, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return fmt.Errorf("unpack %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := writeEntry(dest, tr); err != nil {
				return fmt.Errorf("unpack %s: %w", hdr.Name, err)
			}
		default:
			// links and devices carry no facts
		}
	}
}

func writeEntry(dest string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, io.LimitReader(r, maxArchiveEntrySize+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > maxArchiveEntrySize {
		err = fmt.Errorf("entry exceeds %d bytes", maxArchiveEntrySize)
	}
	return err
}

func safeJoin(dir, name string) (string, error) {
	dest := filepath.Join(dir, name)
	if dest != dir && !strings.HasPrefix(dest, dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes the work dir", name)
	}
	return dest, nil
}

// findFactFile returns the shallowest fact document of the bundle.
func findFactFile(dir string) (string, error) {
	var found string
	depth := -1
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		for _, name := range factFileNames {
			if d.Name() != name {
				continue
			}
			level := strings.Count(path, string(os.PathSeparator))
			if depth < 0 || level < depth {
				found, depth = path, level
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("%w: no fact document in bundle", domain.ErrMalformedFacts)
	}
	return found, nil
}
