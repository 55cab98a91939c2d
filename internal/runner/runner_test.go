package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/recipe/internal/model"
)

// newTestFile builds a recipe file rooted in a temp directory.
func newTestFile(t *testing.T, recipes map[string]*model.Recipe) *model.Recipefile {
	t.Helper()
	dir := t.TempDir()
	f := &model.Recipefile{
		Path:    filepath.Join(dir, "recipes.yaml"),
		Recipes: recipes,
	}
	f.Normalize()
	return f
}

// newTestRunner returns a runner with captured output.
func newTestRunner(t *testing.T, opts Options) (*Runner, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	var stdout, stderr bytes.Buffer
	opts.Stdin = strings.NewReader("")
	opts.Stdout = &stdout
	opts.Stderr = &stderr
	opts.Logger = zerolog.Nop()
	opts.Self = "/usr/local/bin/recipe"
	return New(opts), &stdout, &stderr
}

func TestRun_StepsInOrder(t *testing.T) {
	f := newTestFile(t, map[string]*model.Recipe{
		"build": {Steps: []string{"echo one", "echo two", "echo three"}},
	})
	r, stdout, _ := newTestRunner(t, Options{})

	require.NoError(t, r.Run(context.Background(), f, []*model.Recipe{f.Recipes["build"]}))
	assert.Equal(t, "one\ntwo\nthree\n", stdout.String())
}

func TestRun_RecipesInPlanOrder(t *testing.T) {
	f := newTestFile(t, map[string]*model.Recipe{
		"build":   {Steps: []string{"echo build"}},
		"publish": {Deps: []string{"build"}, Steps: []string{"echo fmt", "echo clippy", "echo test"}},
	})
	r, stdout, _ := newTestRunner(t, Options{})

	order := []*model.Recipe{f.Recipes["build"], f.Recipes["publish"]}
	require.NoError(t, r.Run(context.Background(), f, order))
	assert.Equal(t, "build\nfmt\nclippy\ntest\n", stdout.String())
}

// TestRun_FailFast verifies the first failing step stops everything after
// it, including later recipes.
func TestRun_FailFast(t *testing.T) {
	f := newTestFile(t, map[string]*model.Recipe{
		"publish": {Steps: []string{"true", "exit 3", "touch after-failure"}},
		"later":   {Steps: []string{"touch later-recipe"}},
	})
	r, _, _ := newTestRunner(t, Options{})

	err := r.Run(context.Background(), f, []*model.Recipe{f.Recipes["publish"], f.Recipes["later"]})
	require.Error(t, err)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "publish", stepErr.Recipe)
	assert.Equal(t, 1, stepErr.Index)
	assert.Equal(t, "exit 3", stepErr.Line)
	assert.Equal(t, 3, stepErr.ExitCode)
	assert.Equal(t, `recipe "publish" failed at step 2 (exit 3): exit status 3`, stepErr.Error())

	assert.NoFileExists(t, filepath.Join(f.Dir(), "after-failure"))
	assert.NoFileExists(t, filepath.Join(f.Dir(), "later-recipe"))
}

func TestRun_IgnoreErrorSigil(t *testing.T) {
	f := newTestFile(t, map[string]*model.Recipe{
		"clean": {Steps: []string{"-exit 2", "echo still running"}},
	})
	r, stdout, stderr := newTestRunner(t, Options{})

	require.NoError(t, r.Run(context.Background(), f, []*model.Recipe{f.Recipes["clean"]}))
	assert.Equal(t, "still running\n", stdout.String())
	assert.Contains(t, stderr.String(), "clean step 1 exited with status 2 (ignored)")
}

func TestRun_Echo(t *testing.T) {
	f := newTestFile(t, map[string]*model.Recipe{
		"build": {Steps: []string{"echo loud", "@echo silent"}},
	})

	t.Run("echoes non-silent lines", func(t *testing.T) {
		r, stdout, stderr := newTestRunner(t, Options{})
		require.NoError(t, r.Run(context.Background(), f, []*model.Recipe{f.Recipes["build"]}))
		assert.Equal(t, "echo loud\n", stderr.String())
		assert.Equal(t, "loud\nsilent\n", stdout.String())
	})

	t.Run("quiet echoes nothing", func(t *testing.T) {
		r, _, stderr := newTestRunner(t, Options{Quiet: true})
		require.NoError(t, r.Run(context.Background(), f, []*model.Recipe{f.Recipes["build"]}))
		assert.Empty(t, stderr.String())
	})

	t.Run("color renders the line bold", func(t *testing.T) {
		r, _, stderr := newTestRunner(t, Options{Color: true})
		require.NoError(t, r.Run(context.Background(), f, []*model.Recipe{f.Recipes["build"]}))
		assert.Equal(t, "\x1b[1mecho loud\x1b[0m\n", stderr.String())
	})

	t.Run("color keeps tabs and bolds each line", func(t *testing.T) {
		multi := newTestFile(t, map[string]*model.Recipe{
			"build": {Steps: []string{"printf 'a\tb'\necho x"}},
		})
		r, _, stderr := newTestRunner(t, Options{Color: true})
		require.NoError(t, r.Run(context.Background(), multi, []*model.Recipe{multi.Recipes["build"]}))
		assert.Equal(t, "\x1b[1mprintf 'a\tb'\x1b[0m\n\x1b[1mecho x\x1b[0m\n", stderr.String())
	})
}

func TestRun_DryRun(t *testing.T) {
	f := newTestFile(t, map[string]*model.Recipe{
		"build": {Steps: []string{"touch built", "@touch silent", "-exit 1"}},
	})
	r, stdout, stderr := newTestRunner(t, Options{DryRun: true})

	require.NoError(t, r.Run(context.Background(), f, []*model.Recipe{f.Recipes["build"]}))
	assert.Equal(t, "touch built\ntouch silent\nexit 1\n", stderr.String())
	assert.Empty(t, stdout.String())
	assert.NoFileExists(t, filepath.Join(f.Dir(), "built"))
}

func TestRun_EnvironmentLayers(t *testing.T) {
	t.Setenv("RECIPE_TEST_HOST", "host")
	t.Setenv("RECIPE_TEST_SHADOWED", "host")

	f := newTestFile(t, map[string]*model.Recipe{
		"env": {
			Env:   map[string]string{"LEVEL": "recipe"},
			Steps: []string{`@printf '%s|%s|%s|%s|%s' "$RECIPE_TEST_HOST" "$RECIPE_TEST_SHADOWED" "$LEVEL" "$RECIPE_NAME" "$RECIPE"`},
		},
	})
	f.Env = map[string]string{"LEVEL": "file", "RECIPE_TEST_SHADOWED": "file"}
	r, stdout, _ := newTestRunner(t, Options{})

	require.NoError(t, r.Run(context.Background(), f, []*model.Recipe{f.Recipes["env"]}))
	assert.Equal(t, "host|file|recipe|env|/usr/local/bin/recipe", stdout.String())
}

func TestRun_RecipeFileVariables(t *testing.T) {
	f := newTestFile(t, map[string]*model.Recipe{
		"where": {Steps: []string{`@printf '%s\n%s\n' "$RECIPE_FILE" "$RECIPE_DIR"`}},
	})
	r, stdout, _ := newTestRunner(t, Options{})

	require.NoError(t, r.Run(context.Background(), f, []*model.Recipe{f.Recipes["where"]}))
	assert.Equal(t, f.Path+"\n"+f.Dir()+"\n", stdout.String())
}

func TestRun_WorkingDirectory(t *testing.T) {
	f := newTestFile(t, map[string]*model.Recipe{
		"sub": {Dir: "crates/core", Steps: []string{"@pwd"}},
	})
	sub := filepath.Join(f.Dir(), "crates", "core")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	r, stdout, _ := newTestRunner(t, Options{})

	require.NoError(t, r.Run(context.Background(), f, []*model.Recipe{f.Recipes["sub"]}))

	want, _ := filepath.EvalSymlinks(sub)
	got, _ := filepath.EvalSymlinks(strings.TrimSpace(stdout.String()))
	assert.Equal(t, want, got)
}

func TestRun_ShellFromFile(t *testing.T) {
	f := newTestFile(t, map[string]*model.Recipe{
		"unset": {Steps: []string{"@echo ${NOT_SET_ANYWHERE_XYZ:-fallback}", "@echo $NOT_SET_ANYWHERE_XYZ"}},
	})

	t.Run("default shell fails on unset variables", func(t *testing.T) {
		r, _, _ := newTestRunner(t, Options{})
		err := r.Run(context.Background(), f, []*model.Recipe{f.Recipes["unset"]})
		var stepErr *StepError
		require.True(t, errors.As(err, &stepErr))
		assert.Equal(t, 1, stepErr.Index)
	})

	t.Run("file shell overrides the default", func(t *testing.T) {
		f.Shell = []string{"sh", "-c"}
		defer func() { f.Shell = nil }()
		r, stdout, _ := newTestRunner(t, Options{})
		require.NoError(t, r.Run(context.Background(), f, []*model.Recipe{f.Recipes["unset"]}))
		assert.Equal(t, "fallback\n\n", stdout.String())
	})
}

func TestRun_ContainerRecipesUseFactory(t *testing.T) {
	f := newTestFile(t, map[string]*model.Recipe{
		"local": {Steps: []string{"@true"}},
		"boxed": {
			Container: &model.Container{Image: "rust:1.79"},
			Steps:     []string{"cargo build --release", "cargo test"},
		},
	})

	var jobs []*Job
	created := 0
	fake := ExecutorFunc(func(_ context.Context, job *Job) (int, error) {
		jobs = append(jobs, job)
		return 0, nil
	})

	r, _, _ := newTestRunner(t, Options{
		Containers: func(context.Context) (Executor, error) {
			created++
			return fake, nil
		},
	})

	require.NoError(t, r.Run(context.Background(), f, []*model.Recipe{f.Recipes["local"], f.Recipes["boxed"]}))
	assert.Equal(t, 1, created, "factory is called once")
	require.Len(t, jobs, 2)
	assert.Equal(t, []string{"sh", "-cu", "cargo build --release"}, jobs[0].Argv)
	assert.Equal(t, "rust:1.79", jobs[0].Container.Image)
	assert.Equal(t, 1, jobs[1].Index)
	assert.Equal(t, "boxed", jobs[1].Env["RECIPE_NAME"])
}

func TestRun_ContainerFactoryError(t *testing.T) {
	f := newTestFile(t, map[string]*model.Recipe{
		"boxed": {Container: &model.Container{Image: "alpine"}, Steps: []string{"true"}},
	})
	daemonDown := model.NewCLIError(model.ExitDockerNotRunning, "docker is not running")

	r, _, _ := newTestRunner(t, Options{
		Containers: func(context.Context) (Executor, error) { return nil, daemonDown },
	})

	err := r.Run(context.Background(), f, []*model.Recipe{f.Recipes["boxed"]})
	assert.ErrorIs(t, err, daemonDown)
}

func TestRun_NoContainerFactory(t *testing.T) {
	f := newTestFile(t, map[string]*model.Recipe{
		"boxed": {Container: &model.Container{Image: "alpine"}, Steps: []string{"true"}},
	})
	r, _, _ := newTestRunner(t, Options{})

	err := r.Run(context.Background(), f, []*model.Recipe{f.Recipes["boxed"]})
	assert.ErrorContains(t, err, "needs a container executor")
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	f := newTestFile(t, map[string]*model.Recipe{
		"build": {Steps: []string{"touch ran"}},
	})
	r, _, _ := newTestRunner(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Run(ctx, f, []*model.Recipe{f.Recipes["build"]})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(f.Dir(), "ran"))
}

func TestLocalExecutor_Cancellation(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	e := &LocalExecutor{GracePeriod: time.Second}
	start := time.Now()
	_, err := e.Exec(ctx, &Job{Recipe: "slow", Argv: []string{"sh", "-c", "sleep 30"}, Dir: t.TempDir()})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestLocalExecutor_MissingShell(t *testing.T) {
	e := &LocalExecutor{}
	_, err := e.Exec(context.Background(), &Job{Recipe: "x", Argv: []string{"no-such-shell-xyz", "-c", "true"}, Dir: t.TempDir()})
	assert.ErrorContains(t, err, "failed to run no-such-shell-xyz")
}

func TestLocalExecutor_EmptyArgv(t *testing.T) {
	e := &LocalExecutor{}
	_, err := e.Exec(context.Background(), &Job{Recipe: "x"})
	assert.ErrorContains(t, err, "has no command")
}

func TestMergeEnv(t *testing.T) {
	base := []string{"PATH=/bin", "HOME=/root", "LEVEL=host", "MALFORMED"}
	got := MergeEnv(base, map[string]string{"LEVEL": "recipe", "B": "2", "A": "1"})
	assert.Equal(t, []string{"PATH=/bin", "HOME=/root", "MALFORMED", "A=1", "B=2", "LEVEL=recipe"}, got)
}

func TestLayerEnv(t *testing.T) {
	got := layerEnv(
		map[string]string{"A": "file", "B": "file"},
		nil,
		map[string]string{"B": "recipe"},
	)
	assert.Equal(t, map[string]string{"A": "file", "B": "recipe"}, got)
}
