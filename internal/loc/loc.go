// Package loc counts lines in project files.
//
// A line is a newline byte, so the totals agree with `cat FILES | wc -l`:
// a final line without a trailing newline is not counted.
package loc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// FileLister lists project files relative to dir. *gitrepo.Manager
// satisfies it.
type FileLister interface {
	ListFiles(ctx context.Context, dir string) ([]string, error)
}

// Options controls a count.
type Options struct {
	// Root is the directory patterns are relative to.
	Root string

	// Patterns select files under Root.
	Patterns []string

	// Git, when set, supplies the candidate files instead of a directory walk.
	Git FileLister

	// Jobs bounds how many files are read at once. Zero means GOMAXPROCS.
	Jobs int
}

// FileCount is the line count of one file.
type FileCount struct {
	Path  string `json:"path"`
	Lines int64  `json:"lines"`
}

// Report is the result of a count.
type Report struct {
	Total       int64            `json:"total"`
	Files       []FileCount      `json:"files"`
	ByExtension map[string]int64 `json:"byExtension"`
}

// NoExtension is the ByExtension key for files without one.
const NoExtension = "(none)"

// Count selects files matching opts.Patterns and counts their lines.
// No matching files is an empty report, not an error.
func Count(ctx context.Context, opts Options) (*Report, error) {
	files, err := Collect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return CountFiles(ctx, opts.Root, files, opts.Jobs)
}

// Collect returns the sorted relative paths (with '/' separators) of the
// regular files under opts.Root that match opts.Patterns.
func Collect(ctx context.Context, opts Options) ([]string, error) {
	m, err := NewMatcher(opts.Patterns)
	if err != nil {
		return nil, err
	}

	var candidates []string
	if opts.Git != nil {
		candidates, err = opts.Git.ListFiles(ctx, opts.Root)
	} else {
		candidates, err = walk(ctx, opts.Root)
	}
	if err != nil {
		return nil, err
	}

	var files []string
	for _, rel := range candidates {
		if !m.Match(rel) {
			continue
		}
		// git also lists tracked files that were deleted from the work
		// tree, submodules and links to directories; keep files only.
		if opts.Git != nil && !isRegular(filepath.Join(opts.Root, filepath.FromSlash(rel))) {
			continue
		}
		files = append(files, rel)
	}
	sort.Strings(files)
	return files, nil
}

// walk lists every regular file under root, and every symlink to one,
// skipping .git directories.
func walk(ctx context.Context, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			// Like cat, follow links to files; like a shell glob, do not
			// descend into linked directories.
			if !isRegular(p) {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return files, nil
}

// isRegular reports whether p is, or links to, a regular file.
func isRegular(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// CountFiles counts lines in files (relative to root) using at most jobs
// concurrent readers. The first read error cancels the rest.
func CountFiles(ctx context.Context, root string, files []string, jobs int) (*Report, error) {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	counts := make([]FileCount, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := CountLines(filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				return err
			}
			counts[i] = FileCount{Path: rel, Lines: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Files: counts, ByExtension: make(map[string]int64)}
	for _, c := range counts {
		report.Total += c.Lines
		report.ByExtension[extension(c.Path)] += c.Lines
	}
	return report, nil
}

// CountLines returns the number of newline bytes in the file at p.
func CountLines(p string) (int64, error) {
	f, err := os.Open(p)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", p, err)
	}
	defer f.Close()

	n, err := countNewlines(f)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return n, nil
}

func countNewlines(r io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var n int64
	for {
		read, err := r.Read(buf)
		n += int64(bytes.Count(buf[:read], []byte{'\n'}))
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
	}
}

// extension returns the lowercased extension of p, or NoExtension.
// Dotfiles such as ".gitignore" have no extension.
func extension(p string) string {
	base := p[strings.LastIndex(p, "/")+1:]
	ext := filepath.Ext(base)
	if ext == "" || ext == base {
		return NoExtension
	}
	return strings.ToLower(ext)
}
