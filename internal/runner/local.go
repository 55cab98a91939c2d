package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// DefaultGracePeriod is how long a cancelled step may keep running after
// it has been sent SIGINT before it is killed.
const DefaultGracePeriod = 5 * time.Second

// LocalExecutor runs steps as child processes of the recipe binary. The
// child inherits the process environment with the job's variables on top.
type LocalExecutor struct {
	// GracePeriod overrides DefaultGracePeriod when non-zero.
	GracePeriod time.Duration
}

// Exec runs job.Argv in job.Dir and waits for it to exit.
//
// The step runs in its own process group. On cancellation the whole group
// receives SIGINT (a terminal Ctrl-C has usually delivered one to recipe
// already), and anything in the group still running after the grace
// period is killed, so a compound step such as "cargo build && cargo test"
// leaves no processes behind.
func (e *LocalExecutor) Exec(ctx context.Context, job *Job) (int, error) {
	if len(job.Argv) == 0 {
		return -1, fmt.Errorf("step %d of recipe %q has no command", job.Index+1, job.Recipe)
	}

	grace := e.GracePeriod
	if grace == 0 {
		grace = DefaultGracePeriod
	}

	// #nosec G204 -- recipe lines are user-authored commands
	cmd := exec.CommandContext(ctx, job.Argv[0], job.Argv[1:]...)
	cmd.Dir = job.Dir
	cmd.Env = MergeEnv(os.Environ(), job.Env)
	cmd.Stdin = job.Stdin
	cmd.Stdout = job.Stdout
	cmd.Stderr = job.Stderr
	setProcessGroup(cmd)

	var cancelledAt time.Time
	cmd.Cancel = func() error {
		cancelledAt = time.Now()
		if err := interruptGroup(cmd.Process); err != nil {
			return killGroup(cmd.Process)
		}
		return nil
	}
	// WaitDelay bounds how long Wait waits for the shell itself and for
	// descendants holding its output pipes.
	cmd.WaitDelay = grace

	err := cmd.Run()
	if ctx.Err() != nil {
		if cmd.Process != nil {
			if cancelledAt.IsZero() {
				cancelledAt = time.Now()
			}
			reapGroup(cmd.Process, cancelledAt.Add(grace))
		}
		return -1, ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("failed to run %s: %w", job.Argv[0], err)
	}
	return 0, nil
}
