package gather

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/de-tools/kmp-audit/pkg/models/domain"
	"github.com/rs/zerolog"
)

// TargetFromPath classifies a local path as a fact file or a fact bundle.
func TargetFromPath(path string) (domain.Target, bool) {
	if IsArchive(path) {
		return domain.Target{Kind: domain.TargetArchive, Path: path}, true
	}
	if _, ok := FormatFromPath(path); ok {
		return domain.Target{Kind: domain.TargetFile, Path: path}, true
	}
	return domain.Target{}, false
}

// Enumerate streams the targets found under root. A single file is its own
// target; directories are walked in the background so analysis can start
// before the walk ends. The channel is closed when the walk is over.
func Enumerate(ctx context.Context, root string) (<-chan domain.Target, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", root, err)
	}

	out := make(chan domain.Target)
	if !info.IsDir() {
		target, ok := TargetFromPath(root)
		if !ok {
			return nil, fmt.Errorf("unsupported fact file %s", root)
		}
		go func() {
			defer close(out)
			select {
			case out <- target:
			case <-ctx.Done():
			}
		}()
		return out, nil
	}

	go func() {
		defer close(out)
		logger := zerolog.Ctx(ctx)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable path")
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			target, ok := TargetFromPath(path)
			if !ok {
				return nil
			}
			select {
			case out <- target:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			logger.Warn().Err(err).Str("root", root).Msg("enumeration stopped")
		}
	}()
	return out, nil
}

// Targets turns a fixed list into a closed channel.
func Targets(targets ...domain.Target) <-chan domain.Target {
	out := make(chan domain.Target, len(targets))
	for _, t := range targets {
		out <- t
	}
	close(out)
	return out
}
