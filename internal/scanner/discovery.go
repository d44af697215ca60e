package scanner

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"melodex/internal/filesystem"
	"melodex/internal/logging"
	"melodex/internal/mediatypes"
	"melodex/internal/workers"
)

// Discovery walks the configured library roots and yields candidate
// audio file paths. Directory-level read errors are logged and skipped;
// they never abort discovery of other roots.
type Discovery struct {
	roots      []string
	extensions map[string]bool
	retry      filesystem.RetryConfig
}

// NewDiscovery creates a Discovery over the given roots. extensions is a
// list without leading dots; empty means the default supported set.
func NewDiscovery(roots []string, extensions []string) *Discovery {
	extSet := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		extSet["."+strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	if len(extSet) == 0 {
		for ext := range mediatypes.AudioExtensions {
			extSet[ext] = true
		}
	}

	return &Discovery{
		roots:      roots,
		extensions: extSet,
		retry:      filesystem.DefaultRetryConfig(),
	}
}

// matches reports whether the path has a supported audio extension.
func (d *Discovery) matches(path string) bool {
	return d.extensions[strings.ToLower(filepath.Ext(path))]
}

// Walk invokes fn for every candidate audio file under the roots.
// The context is checked at every yield point; cancellation stops the
// walk and returns the context error. An error from fn also stops the
// walk. Hidden files and directories (dot-prefixed) are skipped.
func (d *Discovery) Walk(ctx context.Context, fn func(path string) error) error {
	for _, root := range d.roots {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := filesystem.StatWithRetry(root, d.retry); err != nil {
			logging.Warn("Skipping unreadable library root %s: %v", root, err)
			continue
		}

		err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if walkErr != nil {
				logging.Warn("Error accessing path %s: %v", path, walkErr)
				return nil
			}
			if strings.HasPrefix(entry.Name(), ".") && path != root {
				if entry.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if entry.IsDir() || !d.matches(path) {
				return nil
			}

			abs, err := filepath.Abs(path)
			if err != nil {
				logging.Warn("Error resolving path %s: %v", path, err)
				return nil
			}
			return fn(abs)
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			logging.Warn("Walk error under root %s: %v", root, err)
		}
	}
	return nil
}

// Count performs the same walk purely to estimate the total number of
// candidate files, for progress reporting. It allocates no per-file
// state. Roots are counted concurrently; counting is read-only, so the
// fan-out cannot race catalog writes.
func (d *Discovery) Count(ctx context.Context) int64 {
	var total atomic.Int64

	sem := make(chan struct{}, workers.ForIO(8))
	var wg sync.WaitGroup

	for _, root := range d.roots {
		wg.Add(1)
		sem <- struct{}{}
		go func(root string) {
			defer wg.Done()
			defer func() { <-sem }()

			_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				if walkErr != nil {
					return nil
				}
				if strings.HasPrefix(entry.Name(), ".") && path != root {
					if entry.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
				if !entry.IsDir() && d.matches(path) {
					total.Add(1)
				}
				return nil
			})
		}(root)
	}

	wg.Wait()
	return total.Load()
}

// coverInDir returns the best cover image candidate in a directory, or
// "" when none exists. Preference follows mediatypes.CoverBasenames
// order.
func (d *Discovery) coverInDir(dir string) string {
	entries, err := filesystem.ReadDirWithRetry(dir, d.retry)
	if err != nil {
		return ""
	}

	best := ""
	bestRank := len(mediatypes.CoverBasenames)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !mediatypes.IsCoverPath(name) {
			continue
		}
		base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
		for rank, candidate := range mediatypes.CoverBasenames {
			if base == candidate && rank < bestRank {
				best = filepath.Join(dir, name)
				bestRank = rank
				break
			}
		}
	}
	return best
}
