package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/recipe/internal/logging"
	"github.com/shinji-kodama/recipe/internal/model"
)

// setupHome points HOME at a temp dir and clears RECIPE_* variables that
// the surrounding environment might set.
func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"RECIPE_SHELL", "RECIPE_FILENAMES", "RECIPE_COLOR", "RECIPE_LOC_PATTERNS", "RECIPE_LOC_JOBS", "RECIPE_DOCKER_PULL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return home
}

func writeConfig(t *testing.T, home, content string) string {
	t.Helper()
	dir := filepath.Join(home, ".config", "recipe")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	setupHome(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.Path)
	assert.Equal(t, []string{"sh", "-cu"}, cfg.Shell)
	assert.Equal(t, []string{"recipes.yaml", "recipes.yml", "recipes.jsonc", "recipes.json"}, cfg.Filenames)
	assert.Equal(t, logging.ColorAuto, cfg.Color)
	assert.Equal(t, []string{"src/**/*"}, cfg.LocPatterns)
	assert.Zero(t, cfg.LocJobs)
	assert.Equal(t, model.PullMissing, cfg.DockerPull)
}

func TestLoad_File(t *testing.T) {
	home := setupHome(t)
	path := writeConfig(t, home, `
shell: [bash, -euo, pipefail, -c]
filenames: [tasks.yaml]
color: never
loc:
  patterns: ["src/**/*.rs", "benches/**/*.rs"]
  jobs: 4
docker:
  pull: always
`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, []string{"bash", "-euo", "pipefail", "-c"}, cfg.Shell)
	assert.Equal(t, []string{"tasks.yaml"}, cfg.Filenames)
	assert.Equal(t, logging.ColorNever, cfg.Color)
	assert.Equal(t, []string{"src/**/*.rs", "benches/**/*.rs"}, cfg.LocPatterns)
	assert.Equal(t, 4, cfg.LocJobs)
	assert.Equal(t, model.PullAlways, cfg.DockerPull)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	home := setupHome(t)
	writeConfig(t, home, "color: never\nloc:\n  jobs: 4\n")

	t.Setenv("RECIPE_COLOR", "always")
	t.Setenv("RECIPE_LOC_JOBS", "8")
	t.Setenv("RECIPE_SHELL", "bash -c")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, logging.ColorAlways, cfg.Color)
	assert.Equal(t, 8, cfg.LocJobs)
	assert.Equal(t, []string{"bash", "-c"}, cfg.Shell)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "color", content: "color: rainbow\n", wantErr: "invalid color mode"},
		{name: "pull policy", content: "docker:\n  pull: sometimes\n", wantErr: "invalid pull policy"},
		{name: "negative jobs", content: "loc:\n  jobs: -1\n", wantErr: "must not be negative"},
		{name: "filename with path", content: "filenames: [ci/recipes.yaml]\n", wantErr: "must be a file name"},
		{name: "filename extension", content: "filenames: [Makefile]\n", wantErr: "unsupported recipe file extension"},
		{name: "empty shell", content: "shell: ['']\n", wantErr: "must name a program"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := setupHome(t)
			writeConfig(t, home, tt.content)

			_, err := Load()
			require.Error(t, err)

			var cliErr *model.CLIError
			require.True(t, errors.As(err, &cliErr))
			assert.Equal(t, model.ExitGeneralError, cliErr.Code)
			assert.Contains(t, cliErr.Message, "invalid configuration")
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoad_InvalidFromEnvironment(t *testing.T) {
	setupHome(t)
	t.Setenv("RECIPE_COLOR", "rainbow")

	_, err := Load()
	assert.ErrorContains(t, err, "invalid configuration in environment")
}

func TestLoad_MalformedYAML(t *testing.T) {
	home := setupHome(t)
	writeConfig(t, home, "shell: [unclosed\n")

	_, err := Load()
	assert.ErrorContains(t, err, "failed to read config")
}

func TestLoadFile_Missing(t *testing.T) {
	setupHome(t)

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Path)
}
