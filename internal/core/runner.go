package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/csvclean/internal/schema"
)

// DefaultMaxFiles is the default number of files processed concurrently.
const DefaultMaxFiles = 4

// FileError attributes a fatal error to the file it occurred in.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Runner processes independent files concurrently with one rule set.
type Runner struct {
	Rules   schema.RulesByCsv
	Options Options
	// MaxFiles bounds concurrent files; 0 means DefaultMaxFiles.
	MaxFiles int
}

// RunFiles processes every path and returns results in input order. A file
// that fails fatally has a nil result (or a partial one when cancelled) and
// contributes a FileError to the joined error; other files are unaffected.
// Files not yet started when ctx is cancelled are skipped.
func (r *Runner) RunFiles(ctx context.Context, paths []string) ([]*RunResult, error) {
	limit := r.MaxFiles
	if limit <= 0 {
		limit = DefaultMaxFiles
	}

	results := make([]*RunResult, len(paths))
	errs := make([]error, len(paths))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = &FileError{Path: path, Err: err}
				return nil
			}
			res, err := Process(ctx, path, r.Rules, r.Options)
			results[i] = res
			if err != nil {
				errs[i] = &FileError{Path: path, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

// ExpandInputs resolves paths to a list of files. A directory contributes
// its *.csv files (not recursive), sorted by name. Duplicates are dropped.
// Paths that do not exist are kept so the run reports them per file.
func ExpandInputs(paths []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		clean := filepath.Clean(p)
		if !seen[clean] {
			seen[clean] = true
			out = append(out, clean)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if errors.Is(err, os.ErrNotExist) {
			add(p)
			continue
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			add(filepath.Join(p, name))
		}
	}
	return out, nil
}
