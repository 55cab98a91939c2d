package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/recipe/internal/config"
	"github.com/shinji-kodama/recipe/internal/docker"
	"github.com/shinji-kodama/recipe/internal/model"
	"github.com/shinji-kodama/recipe/internal/plan"
	"github.com/shinji-kodama/recipe/internal/runner"
)

// defaultRecipe runs when recipe is invoked without arguments.
const defaultRecipe = "default"

// NewRunCommand creates the "run" command, the explicit form of
// "recipe RECIPE...". It is needed for recipes whose names collide with a
// subcommand, such as a recipe called "list".
func NewRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run RECIPE...",
		Short: "Run recipes and their dependencies",
		Long: `Run one or more recipes. Each recipe's dependencies run first, in
declaration order, and no recipe runs twice in one invocation.

Steps run one at a time. The first step that exits non-zero stops the run
and recipe exits with that step's status, unless the step starts with "-".

Examples:
  recipe run publish
  recipe run build test --dry-run
  recipe run list   # a recipe named like a subcommand`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecipes(cmd.Context(), cmd, args)
		},
	}
}

// runDefault runs the default recipe, or lists recipes when the file does
// not define one.
func runDefault(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f, err := openRecipefile(ctx, cfg)
	if err != nil {
		return err
	}

	if _, ok := f.Lookup(defaultRecipe); !ok {
		VerboseLog("No %q recipe; listing recipes", defaultRecipe)
		printRecipeList(cmd.OutOrStdout(), f, false)
		return nil
	}
	return execute(ctx, cmd, cfg, f, []string{defaultRecipe})
}

// runRecipes plans and runs the named recipes.
func runRecipes(ctx context.Context, cmd *cobra.Command, names []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f, err := openRecipefile(ctx, cfg)
	if err != nil {
		return err
	}
	return execute(ctx, cmd, cfg, f, names)
}

func execute(ctx context.Context, cmd *cobra.Command, cfg *config.Config, f *model.Recipefile, names []string) error {
	order, err := plan.Build(f, names)
	if err != nil {
		return err
	}

	planned := make([]string, 0, len(order))
	for _, r := range order {
		planned = append(planned, r.Name)
	}
	VerboseLog("Execution order: %v", planned)

	r := runner.New(runner.Options{
		Shell:      cfg.Shell,
		DryRun:     dryRun,
		Quiet:      quiet,
		Color:      cfg.Color.Enabled(cmd.ErrOrStderr()),
		Stdin:      cmd.InOrStdin(),
		Stdout:     cmd.OutOrStdout(),
		Stderr:     cmd.ErrOrStderr(),
		Logger:     logger,
		Containers: docker.Factory(logger, cfg.DockerPull),
	})
	defer func() { _ = r.Close() }()

	return r.Run(ctx, f, order)
}
