package recipefile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shinji-kodama/recipe/internal/model"
)

// DefaultFileNames are the recipe file names searched in each directory,
// in priority order.
var DefaultFileNames = []string{
	"recipes.yaml",
	"recipes.yml",
	"recipes.jsonc",
	"recipes.json",
}

// Find searches for a recipe file starting at startDir and walking up
// through parent directories.
//
// In each directory the candidate names are tried in order and the first
// regular file wins. The walk ends after stopDir has been searched (the
// git repository root, typically) or at the filesystem root when stopDir
// is empty or not an ancestor of startDir.
//
// Returns the absolute path of the file, or a CLIError with
// ExitRecipefileNotFound.
func Find(startDir, stopDir string, names []string) (string, error) {
	if len(names) == 0 {
		names = DefaultFileNames
	}

	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve directory %s: %w", startDir, err)
	}
	stop := ""
	if stopDir != "" {
		if stop, err = filepath.Abs(stopDir); err != nil {
			return "", fmt.Errorf("failed to resolve directory %s: %w", stopDir, err)
		}
	}

	for {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if info, statErr := os.Stat(candidate); statErr == nil && info.Mode().IsRegular() {
				return candidate, nil
			}
		}

		if dir == stop {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", model.NewCLIError(
		model.ExitRecipefileNotFound,
		fmt.Sprintf("no recipe file found in %s or its parents (searched %s); run \"recipe init\" to create one",
			startDir, strings.Join(names, ", ")),
	)
}
