package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shinji-kodama/recipe/internal/config"
	"github.com/shinji-kodama/recipe/internal/gitrepo"
	"github.com/shinji-kodama/recipe/internal/logging"
	"github.com/shinji-kodama/recipe/internal/model"
	"github.com/shinji-kodama/recipe/internal/recipefile"
)

// envRecipeFile is exported to every step. A nested "$RECIPE ..." call
// uses it so it sees the same file as the recipe that invoked it.
const envRecipeFile = "RECIPE_FILE"

// loadConfig reads the user config and applies the global flags that
// override it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Path != "" {
		VerboseLog("Loaded config %s", cfg.Path)
	}

	if colorFlag != "" {
		mode, err := logging.ParseColorMode(colorFlag)
		if err != nil {
			return nil, model.WrapCLIError(model.ExitGeneralError, "invalid --color value", err)
		}
		cfg.Color = mode
	}
	if shell := strings.Fields(shellFlag); len(shell) > 0 {
		cfg.Shell = shell
	}
	return cfg, nil
}

// locateRecipefile returns the absolute path of the recipe file to use.
//
// --file wins. Otherwise the file is searched for upward from the working
// directory, stopping at the enclosing git repository root. $RECIPE_FILE,
// which every step receives, is preferred only when it is at least as close
// to the working directory as the file the search found, so a step running
// "cd frontend && $RECIPE build" uses frontend's own recipe file while a
// plain nested "$RECIPE list" stays on the file given with --file.
func locateRecipefile(ctx context.Context, cfg *config.Config) (string, error) {
	if recipeFile != "" {
		return filepath.Abs(recipeFile)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	// git reports the root with symlinks resolved; compare like with like.
	if resolved, err := filepath.EvalSymlinks(cwd); err == nil {
		cwd = resolved
	}

	stopDir := ""
	git := gitrepo.NewManager()
	if git.IsRepo(ctx, cwd) {
		if root, err := git.RepoRoot(ctx, cwd); err == nil {
			stopDir = root
			VerboseLog("Searching for a recipe file up to repository root %s", root)
		}
	}
	found, findErr := recipefile.Find(cwd, stopDir, cfg.Filenames)

	fromEnv := os.Getenv(envRecipeFile)
	if fromEnv == "" {
		return found, findErr
	}
	fromEnv, err = filepath.Abs(fromEnv)
	if err != nil {
		return "", fmt.Errorf("failed to resolve $%s: %w", envRecipeFile, err)
	}
	if resolved, err := filepath.EvalSymlinks(fromEnv); err == nil {
		fromEnv = resolved
	}

	if findErr != nil {
		var cliErr *model.CLIError
		if !errors.As(findErr, &cliErr) || cliErr.Code != model.ExitRecipefileNotFound {
			return "", findErr
		}
		VerboseLog("Using %s from $%s", fromEnv, envRecipeFile)
		return fromEnv, nil
	}

	envDir := filepath.Dir(fromEnv)
	if isWithin(envDir, filepath.Dir(found)) && isWithin(cwd, envDir) {
		VerboseLog("Using %s from $%s", fromEnv, envRecipeFile)
		return fromEnv, nil
	}
	return found, nil
}

// isWithin reports whether path is dir or below it.
func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// openRecipefile locates, loads and validates the recipe file. A --shell
// flag replaces the shell the file declares.
func openRecipefile(ctx context.Context, cfg *config.Config) (*model.Recipefile, error) {
	path, err := locateRecipefile(ctx, cfg)
	if err != nil {
		return nil, err
	}

	f, err := recipefile.LoadValid(path)
	if err != nil {
		return nil, err
	}
	VerboseLog("Loaded %d recipes from %s", len(f.Recipes), f.Path)

	if shell := strings.Fields(shellFlag); len(shell) > 0 {
		f.Shell = shell
	}
	return f, nil
}

// projectRoot is the directory of the recipe file, or the working
// directory when there is no recipe file.
func projectRoot(ctx context.Context, cfg *config.Config) (string, error) {
	path, err := locateRecipefile(ctx, cfg)
	if err == nil {
		return filepath.Dir(path), nil
	}

	var cliErr *model.CLIError
	if !errors.As(err, &cliErr) || cliErr.Code != model.ExitRecipefileNotFound {
		return "", err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return cwd, nil
}
