// Package gitrepo answers the few questions the recipe CLI asks git: where
// the repository root is (recipe file discovery stops there) and which
// files git considers part of the project ("recipe loc --git").
//
// Design decisions:
//   - We shell out to `git` rather than using a Go Git library, so the
//     answers always match what the user's own git reports, including
//     their global excludes file.
//   - Errors from git are wrapped in model.CLIError with ExitGitError so
//     the CLI can map them to an exit code.
package gitrepo

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/shinji-kodama/recipe/internal/model"
)

// Manager runs git queries. It is stateless apart from the git binary it
// invokes.
type Manager struct {
	// Binary is the git executable. Defaults to "git" resolved via PATH.
	Binary string
}

// NewManager creates a Manager that uses git from PATH.
func NewManager() *Manager {
	return &Manager{Binary: "git"}
}

// RepoRoot returns the absolute path to the top-level directory of the
// working tree containing path.
//
// Uses `git rev-parse --show-toplevel`, which returns the worktree root
// for linked worktrees as well as for the main checkout.
func (m *Manager) RepoRoot(ctx context.Context, path string) (string, error) {
	output, err := m.run(ctx, path, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// IsRepo reports whether path is inside a git working tree. Any failure
// (git missing, not a repository, bare repository) counts as false.
func (m *Manager) IsRepo(ctx context.Context, path string) bool {
	output, err := m.run(ctx, path, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(output) == "true"
}

// ListFiles returns the files under dir that git tracks, plus untracked
// files that are not ignored. Paths are relative to dir and use forward
// slashes, as git prints them.
//
// `-z` output is used so file names containing newlines or quotes are
// returned verbatim instead of in git's C-quoted form.
func (m *Manager) ListFiles(ctx context.Context, dir string) ([]string, error) {
	output, err := m.run(ctx, dir, "ls-files", "-z", "--cached", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}
	return parseNulList(output), nil
}

// run executes git with -C dir and returns stdout. On failure the
// returned CLIError includes git's stderr.
func (m *Manager) run(ctx context.Context, dir string, args ...string) (string, error) {
	binary := m.Binary
	if binary == "" {
		binary = "git"
	}

	fullArgs := append([]string{"-C", dir}, args...)

	// #nosec G204 -- args are built by this package
	cmd := exec.CommandContext(ctx, binary, fullArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if stderrStr != "" {
			message = fmt.Sprintf("%s: %s", message, stderrStr)
		}
		return "", model.WrapCLIError(model.ExitGitError, message, err)
	}

	return stdout.String(), nil
}

// parseNulList splits NUL-terminated git output. A file listed twice
// (tracked and reported again as modified by some git versions) is kept once.
func parseNulList(output string) []string {
	var files []string
	seen := make(map[string]bool)
	for _, entry := range strings.Split(output, "\x00") {
		if entry == "" || seen[entry] {
			continue
		}
		seen[entry] = true
		files = append(files, entry)
	}
	return files
}
