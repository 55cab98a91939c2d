package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog"

	"github.com/shinji-kodama/recipe/internal/model"
	"github.com/shinji-kodama/recipe/internal/runner"
)

// stopTimeout is how long a cancelled step's container gets between
// SIGINT and SIGKILL. It matches the grace period of local steps.
const stopTimeout = 5 * time.Second

// cleanupTimeout bounds the force-remove that follows every step, which
// also runs after the invocation's context has been cancelled.
const cleanupTimeout = 30 * time.Second

// Executor runs each step in a fresh container. The directory containing
// the recipe file is bind-mounted at the container's workdir.
type Executor struct {
	client *Client
	log    zerolog.Logger

	// DefaultPull applies to recipes whose container section sets no
	// pull policy.
	DefaultPull model.PullPolicy

	// now is replaced in tests.
	now func() time.Time

	mu     sync.Mutex
	pulled map[string]bool
}

// NewExecutor returns an executor using c. Closing the executor closes c.
func NewExecutor(c *Client, log zerolog.Logger) *Executor {
	return &Executor{
		client:      c,
		log:         log,
		DefaultPull: model.PullMissing,
		now:         time.Now,
		pulled:      make(map[string]bool),
	}
}

// Factory connects to the daemon on first use. Its result plugs into
// runner.Options.Containers.
func Factory(log zerolog.Logger, defaultPull model.PullPolicy) runner.ContainerFactory {
	return func(ctx context.Context) (runner.Executor, error) {
		c, err := Connect(ctx)
		if err != nil {
			return nil, err
		}
		e := NewExecutor(c, log)
		if defaultPull != "" {
			e.DefaultPull = defaultPull
		}
		return e, nil
	}
}

// Close closes the Docker client.
func (e *Executor) Close() error {
	return e.client.Close()
}

// Exec runs job in a new container and returns the step's exit code. The
// container is removed afterwards whatever the outcome.
func (e *Executor) Exec(ctx context.Context, job *runner.Job) (int, error) {
	if job.Container == nil {
		return -1, fmt.Errorf("recipe %q has no container section", job.Recipe)
	}
	spec := job.Container

	if err := e.ensureImage(ctx, spec, job.Stderr); err != nil {
		return -1, err
	}

	startedAt := e.now()
	config, hostConfig, err := e.containerConfig(job, startedAt)
	if err != nil {
		return -1, err
	}

	created, err := e.client.api.ContainerCreate(ctx, config, hostConfig, nil, nil,
		containerName(job.Recipe, job.Index, startedAt))
	if err != nil {
		return -1, model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to create container for recipe %q", job.Recipe), err)
	}
	id := created.ID
	log := e.log.With().Str("recipe", job.Recipe).Int("step", job.Index+1).Str("container", shortID(id)).Logger()
	log.Debug().Str("image", spec.Image).Msg("container created")

	defer func() {
		rmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if err := e.client.RemoveContainer(rmCtx, id); err != nil {
			log.Warn().Err(err).Msg("failed to remove step container")
		}
	}()

	// Wait must be registered before start, otherwise a fast step can exit
	// before the wait request reaches the daemon.
	waitCh, waitErrCh := e.client.api.ContainerWait(ctx, id, container.WaitConditionNextExit)

	if err := e.client.api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return -1, model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to start container for recipe %q", job.Recipe), err)
	}

	logsDone := make(chan error, 1)
	go func() {
		logsDone <- e.streamLogs(ctx, id, job.Stdout, job.Stderr)
	}()

	select {
	case resp := <-waitCh:
		// Drain the rest of the output before reporting the status.
		if err := <-logsDone; err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("log stream ended early")
		}
		if resp.Error != nil && resp.Error.Message != "" {
			return -1, fmt.Errorf("waiting for container of recipe %q: %s", job.Recipe, resp.Error.Message)
		}
		log.Debug().Int64("exit_code", resp.StatusCode).Msg("container exited")
		return int(resp.StatusCode), nil

	case err := <-waitErrCh:
		if ctx.Err() != nil {
			e.stop(id, log)
			return -1, ctx.Err()
		}
		return -1, model.WrapCLIError(model.ExitDockerNotRunning,
			fmt.Sprintf("failed waiting for container of recipe %q", job.Recipe), err)

	case <-ctx.Done():
		e.stop(id, log)
		return -1, ctx.Err()
	}
}

// stop sends SIGINT and escalates to SIGKILL after stopTimeout.
func (e *Executor) stop(id string, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout+cleanupTimeout)
	defer cancel()

	timeout := int(stopTimeout.Seconds())
	err := e.client.api.ContainerStop(ctx, id, container.StopOptions{Signal: "SIGINT", Timeout: &timeout})
	if err != nil && !cerrdefs.IsNotFound(err) {
		log.Warn().Err(err).Msg("failed to stop step container")
	}
}

// containerConfig builds the create request for a step.
func (e *Executor) containerConfig(job *runner.Job, startedAt time.Time) (*container.Config, *container.HostConfig, error) {
	spec := job.Container
	mountPoint := spec.MountPoint()
	fileDir := filepath.Dir(job.FilePath)

	workDir, err := containerWorkDir(fileDir, job.Dir, mountPoint)
	if err != nil {
		return nil, nil, fmt.Errorf("recipe %q: %w", job.Recipe, err)
	}

	env := make(map[string]string, len(job.Env)+len(spec.Env)+2)
	for k, v := range job.Env {
		env[k] = v
	}
	for k, v := range spec.Env {
		env[k] = v
	}
	// Host paths mean nothing inside the container; point the variables
	// at the mount instead. The host binary is not available there.
	delete(env, "RECIPE")
	env["RECIPE_DIR"] = mountPoint
	env["RECIPE_FILE"] = path.Join(mountPoint, filepath.Base(job.FilePath))

	config := &container.Config{
		Image:        spec.Image,
		Cmd:          job.Argv,
		WorkingDir:   workDir,
		Env:          runner.MergeEnv(nil, env),
		Labels:       BuildLabels(job.Recipe, job.FilePath, job.Index, startedAt),
		AttachStdout: true,
		AttachStderr: true,
	}
	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: fileDir,
			Target: mountPoint,
		}},
	}
	return config, hostConfig, nil
}

// containerWorkDir maps the step's host directory into the mount. A
// recipe dir outside the recipe file's directory is not visible in the
// container and is rejected.
func containerWorkDir(fileDir, hostDir, mountPoint string) (string, error) {
	rel, err := filepath.Rel(fileDir, hostDir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("dir %s is outside %s and is not mounted in the container", hostDir, fileDir)
	}
	return path.Join(mountPoint, filepath.ToSlash(rel)), nil
}

// streamLogs copies the container's multiplexed output to stdout/stderr
// until the container exits.
func (e *Executor) streamLogs(ctx context.Context, id string, stdout, stderr io.Writer) error {
	rc, err := e.client.api.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return err
	}
	defer rc.Close()

	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	_, err = stdcopy.StdCopy(stdout, stderr, rc)
	return err
}

// ensureImage applies the pull policy. Within one invocation an image is
// pulled at most once, even under PullAlways.
func (e *Executor) ensureImage(ctx context.Context, spec *model.Container, progress io.Writer) error {
	policy := spec.Pull
	if policy == "" {
		policy = e.DefaultPull
	}

	e.mu.Lock()
	done := e.pulled[spec.Image]
	e.mu.Unlock()
	if done {
		return nil
	}

	if policy != model.PullAlways {
		_, err := e.client.api.ImageInspect(ctx, spec.Image)
		if err == nil {
			return nil
		}
		if !cerrdefs.IsNotFound(err) {
			return model.WrapCLIError(model.ExitDockerNotRunning, fmt.Sprintf("failed to inspect image %s", spec.Image), err)
		}
		if policy == model.PullNever {
			return model.NewCLIError(model.ExitGeneralError,
				fmt.Sprintf("image %s is not present locally and pull policy is %q", spec.Image, model.PullNever))
		}
	}

	if err := e.pull(ctx, spec.Image, progress); err != nil {
		return err
	}

	e.mu.Lock()
	e.pulled[spec.Image] = true
	e.mu.Unlock()
	return nil
}

// pullMessage is one line of the daemon's JSON progress stream.
type pullMessage struct {
	Status string `json:"status"`
	ID     string `json:"id"`
	Error  string `json:"error"`
}

// pull downloads ref, printing status lines (not per-layer progress bars)
// to progress. An error reported inside the stream fails the pull.
func (e *Executor) pull(ctx context.Context, ref string, progress io.Writer) error {
	e.log.Debug().Str("image", ref).Msg("pulling image")
	if progress != nil {
		fmt.Fprintf(progress, "Pulling %s\n", ref)
	}

	rc, err := e.client.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, fmt.Sprintf("failed to pull image %s", ref), err)
	}
	defer rc.Close()

	dec := json.NewDecoder(rc)
	for {
		var msg pullMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read pull progress for %s: %w", ref, err)
		}
		if msg.Error != "" {
			return model.NewCLIError(model.ExitGeneralError, fmt.Sprintf("failed to pull image %s: %s", ref, msg.Error))
		}
		if msg.ID == "" && msg.Status != "" {
			e.log.Debug().Str("image", ref).Msg(msg.Status)
		}
	}
}
