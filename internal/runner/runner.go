package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"

	"github.com/shinji-kodama/recipe/internal/model"
)

// DefaultShell runs each step with -u so references to unset variables fail.
var DefaultShell = []string{"sh", "-cu"}

// StepError reports the step that stopped an invocation.
type StepError struct {
	Recipe   string
	Index    int
	Line     string
	ExitCode int
}

func (e *StepError) Error() string {
	return fmt.Sprintf("recipe %q failed at step %d (%s): exit status %d", e.Recipe, e.Index+1, e.Line, e.ExitCode)
}

// ContainerFactory creates the executor for containerised recipes. It is
// called at most once per Runner, on the first container step.
type ContainerFactory func(ctx context.Context) (Executor, error)

// Options configures a Runner.
type Options struct {
	// Shell is the step interpreter when the recipe file sets none.
	// Defaults to DefaultShell.
	Shell []string

	// DryRun prints every step, including silent ones, and runs nothing.
	DryRun bool

	// Quiet suppresses step echo.
	Quiet bool

	// Color renders echoed steps in bold.
	Color bool

	// Self is the path of the running binary, exported as $RECIPE.
	Self string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Logger zerolog.Logger

	// Local runs steps of recipes without a container section.
	// Defaults to a LocalExecutor.
	Local Executor

	// Containers creates the executor for container steps. A nil factory
	// makes container recipes fail.
	Containers ContainerFactory
}

// Runner executes recipes sequentially.
type Runner struct {
	opts      Options
	container Executor

	// echoStyle renders echoed step lines; plain unless Options.Color.
	echoStyle lipgloss.Style
}

// New creates a Runner, filling unset options with defaults.
func New(opts Options) *Runner {
	if len(opts.Shell) == 0 {
		opts.Shell = DefaultShell
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Local == nil {
		opts.Local = &LocalExecutor{}
	}
	if opts.Self == "" {
		opts.Self = SelfPath()
	}

	// Options.Color is final; the profile follows it, not the writer.
	renderer := lipgloss.NewRenderer(opts.Stderr)
	if opts.Color {
		renderer.SetColorProfile(termenv.ANSI)
	} else {
		renderer.SetColorProfile(termenv.Ascii)
	}
	style := renderer.NewStyle().Bold(opts.Color).TabWidth(lipgloss.NoTabConversion)

	return &Runner{opts: opts, echoStyle: style}
}

// Run executes recipes in order. It returns at the first failing step, on
// cancellation, or when an executor cannot run a step.
func (r *Runner) Run(ctx context.Context, f *model.Recipefile, recipes []*model.Recipe) error {
	for _, recipe := range recipes {
		if err := r.runRecipe(ctx, f, recipe); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the container executor if one was created.
func (r *Runner) Close() error {
	if c, ok := r.container.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (r *Runner) runRecipe(ctx context.Context, f *model.Recipefile, recipe *model.Recipe) error {
	log := r.opts.Logger.With().Str("recipe", recipe.Name).Logger()

	shell := r.opts.Shell
	if len(f.Shell) > 0 {
		shell = f.Shell
	}

	dir := recipe.WorkDir(f.Dir())
	env := layerEnv(f.Env, recipe.Env, map[string]string{
		"RECIPE":      r.opts.Self,
		"RECIPE_FILE": f.Path,
		"RECIPE_DIR":  f.Dir(),
		"RECIPE_NAME": recipe.Name,
	})

	log.Debug().Str("dir", dir).Int("steps", len(recipe.Steps)).Bool("container", recipe.Container != nil).Msg("running recipe")

	for i, raw := range recipe.Steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("recipe %q interrupted: %w", recipe.Name, err)
		}

		step := model.ParseStep(raw)
		if r.opts.DryRun || (!step.Silent && !r.opts.Quiet) {
			r.echo(step.Line)
		}
		if r.opts.DryRun {
			continue
		}

		executor, err := r.executorFor(ctx, recipe)
		if err != nil {
			return err
		}

		job := &Job{
			Recipe:    recipe.Name,
			Index:     i,
			Argv:      append(append([]string{}, shell...), step.Line),
			Dir:       dir,
			Env:       env,
			FilePath:  f.Path,
			Container: recipe.Container,
			Stdin:     r.opts.Stdin,
			Stdout:    r.opts.Stdout,
			Stderr:    r.opts.Stderr,
		}

		code, err := executor.Exec(ctx, job)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("recipe %q interrupted: %w", recipe.Name, ctx.Err())
			}
			return fmt.Errorf("recipe %q step %d: %w", recipe.Name, i+1, err)
		}
		log.Debug().Int("step", i+1).Int("exit_code", code).Msg("step finished")

		if code == 0 {
			continue
		}
		if step.IgnoreError {
			fmt.Fprintf(r.opts.Stderr, "recipe: %s step %d exited with status %d (ignored)\n", recipe.Name, i+1, code)
			continue
		}
		return &StepError{Recipe: recipe.Name, Index: i, Line: step.Line, ExitCode: code}
	}
	return nil
}

func (r *Runner) executorFor(ctx context.Context, recipe *model.Recipe) (Executor, error) {
	if recipe.Container == nil {
		return r.opts.Local, nil
	}
	if r.container != nil {
		return r.container, nil
	}
	if r.opts.Containers == nil {
		return nil, fmt.Errorf("recipe %q needs a container executor", recipe.Name)
	}
	executor, err := r.opts.Containers(ctx)
	if err != nil {
		return nil, err
	}
	r.container = executor
	return executor, nil
}

func (r *Runner) echo(line string) {
	if !r.opts.Color {
		fmt.Fprintln(r.opts.Stderr, line)
		return
	}
	// Styled one line at a time; lipgloss pads multi-line blocks to a
	// common width.
	for _, l := range strings.Split(line, "\n") {
		fmt.Fprintln(r.opts.Stderr, r.echoStyle.Render(l))
	}
}

// SelfPath resolves the running binary for $RECIPE, following symlinks so
// the value stays valid when invoked through one.
func SelfPath() string {
	self, err := os.Executable()
	if err != nil {
		return "recipe"
	}
	if resolved, err := filepath.EvalSymlinks(self); err == nil {
		return resolved
	}
	return self
}
