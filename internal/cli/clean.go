package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/recipe/internal/docker"
	"github.com/shinji-kodama/recipe/internal/logging"
	"github.com/shinji-kodama/recipe/internal/model"
)

// cleanFlags holds the flag values for the clean command.
type cleanFlags struct {
	// yes skips the confirmation prompt.
	yes bool

	// running also removes containers that are still running, which may
	// belong to a recipe invocation in progress.
	running bool
}

// NewCleanCommand creates the "clean" command.
func NewCleanCommand() *cobra.Command {
	flags := &cleanFlags{}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove containers left behind by containerised recipes",
		Long: `Remove containers created for containerised recipe steps.

recipe removes each step's container when the step ends, so leftovers only
exist after a crash or a kill -9. Running containers are skipped unless
--running is given, since they may belong to a run still in progress.

Examples:
  recipe clean --dry-run
  recipe clean --yes
  recipe clean --running --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "Remove without asking for confirmation")
	cmd.Flags().BoolVar(&flags.running, "running", false, "Also remove running containers")

	return cmd
}

func runClean(ctx context.Context, in io.Reader, out io.Writer, flags *cleanFlags) error {
	cli, err := docker.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	VerboseLog("Connected to Docker daemon")

	all, err := cli.ListManagedContainers(ctx)
	if err != nil {
		return err
	}
	targets, skipped := selectCleanTargets(all, flags.running)
	VerboseLog("Found %d managed containers, %d running ones skipped", len(all), len(skipped))

	if dryRun || len(targets) == 0 {
		printCleanResult(out, targets, skipped, false)
		return nil
	}

	if !flags.yes {
		if !logging.IsTerminal(os.Stdin) && in == os.Stdin {
			return model.NewCLIError(model.ExitGeneralError,
				"refusing to remove containers without confirmation in a non-interactive session (use --yes)")
		}
		confirmed, err := promptConfirmation(in, out, targets)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to read user input", err)
		}
		if !confirmed {
			return model.NewCLIError(model.ExitUserCancelled, "operation cancelled by user")
		}
	}

	for _, c := range targets {
		VerboseLog("Removing container %s (%s)...", c.ContainerName, c.ContainerID)
		if err := cli.RemoveContainer(ctx, c.ContainerID); err != nil {
			return err
		}
	}

	printCleanResult(out, targets, skipped, true)
	return nil
}

// selectCleanTargets splits containers into those to remove and running
// ones to leave alone.
func selectCleanTargets(containers []model.ContainerInfo, includeRunning bool) (targets, skipped []model.ContainerInfo) {
	for _, c := range containers {
		if c.IsRunning() && !includeRunning {
			skipped = append(skipped, c)
			continue
		}
		targets = append(targets, c)
	}
	return targets, skipped
}

// promptConfirmation lists the containers and reads a y/N answer.
func promptConfirmation(in io.Reader, out io.Writer, targets []model.ContainerInfo) (bool, error) {
	fmt.Fprintf(out, "About to remove %d container(s):\n", len(targets))
	for _, c := range targets {
		fmt.Fprintf(out, "  - %s\n", describeContainer(c))
	}
	fmt.Fprint(out, "\nContinue? [y/N] ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
		return answer == "y" || answer == "yes", nil
	}
	// A closed stdin means no.
	return false, scanner.Err()
}

// describeContainer renders "name (recipe build, step 2, exited)".
func describeContainer(c model.ContainerInfo) string {
	if c.Recipe == "" {
		return fmt.Sprintf("%s (%s)", c.ContainerName, c.State)
	}
	return fmt.Sprintf("%s (recipe %s, step %d, %s)", c.ContainerName, c.Recipe, c.Step, c.State)
}

func printCleanResult(out io.Writer, targets, skipped []model.ContainerInfo, removed bool) {
	if IsJSONOutput() {
		printCleanResultJSON(out, targets, skipped, removed)
	} else {
		printCleanResultText(out, targets, skipped, removed)
	}
}

func printCleanResultJSON(out io.Writer, targets, skipped []model.ContainerInfo, removed bool) {
	result := map[string]interface{}{
		"removed":    removed,
		"containers": nonNil(targets),
		"skipped":    nonNil(skipped),
	}
	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Fprintln(out, string(data))
}

func printCleanResultText(out io.Writer, targets, skipped []model.ContainerInfo, removed bool) {
	switch {
	case len(targets) == 0:
		fmt.Fprintln(out, "No recipe containers to remove.")
	case removed:
		fmt.Fprintf(out, "Removed %d container(s)\n", len(targets))
		for _, c := range targets {
			fmt.Fprintf(out, "  %s\n", describeContainer(c))
		}
	default:
		fmt.Fprintf(out, "Would remove %d container(s)\n", len(targets))
		for _, c := range targets {
			fmt.Fprintf(out, "  %s\n", describeContainer(c))
		}
	}
	if len(skipped) > 0 {
		fmt.Fprintf(out, "Skipped %d running container(s); use --running to remove them\n", len(skipped))
	}
}

func nonNil(cs []model.ContainerInfo) []model.ContainerInfo {
	if cs == nil {
		return []model.ContainerInfo{}
	}
	return cs
}
