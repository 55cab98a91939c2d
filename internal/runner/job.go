// Package runner executes planned recipes step by step.
//
// A Runner walks the recipes returned by plan.Build in order and hands each
// step to an Executor: LocalExecutor for ordinary recipes, or the container
// executor from internal/docker for recipes with a container section. Steps
// never overlap. The first step that fails without the "-" sigil stops the
// whole invocation with a *StepError.
package runner

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/shinji-kodama/recipe/internal/model"
)

// Job is one step ready to execute.
type Job struct {
	// Recipe is the name of the recipe the step belongs to.
	Recipe string

	// Index is the zero-based position of the step in the recipe.
	Index int

	// Argv is the full command: the shell prefix followed by the step line.
	Argv []string

	// Dir is the host directory the step runs in.
	Dir string

	// Env holds the variables layered on top of the executor's base
	// environment: file env, recipe env, then the RECIPE_* variables.
	Env map[string]string

	// FilePath is the absolute path of the recipe file.
	FilePath string

	// Container is the recipe's container section, nil for local steps.
	Container *model.Container

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Executor runs a single Job to completion.
//
// The returned exit code is the process status. A non-nil error means the
// step could not be run at all (shell not found, daemon unreachable) or
// that ctx was cancelled; the exit code is meaningless in that case.
type Executor interface {
	Exec(ctx context.Context, job *Job) (int, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, job *Job) (int, error)

// Exec calls f.
func (f ExecutorFunc) Exec(ctx context.Context, job *Job) (int, error) {
	return f(ctx, job)
}

// MergeEnv returns base (KEY=VALUE entries) with overrides applied. Entries
// of base whose key is overridden are dropped; overrides are appended in
// key order so the result is deterministic.
func MergeEnv(base []string, overrides map[string]string) []string {
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, replaced := overrides[key]; replaced {
			continue
		}
		out = append(out, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}

// layerEnv merges maps left to right; later maps win.
func layerEnv(layers ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}
