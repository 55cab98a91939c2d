// Package cli implements the cobra-based CLI commands for recipe.
//
// Each subcommand (list, run, show, loc, init, clean) is defined in its own
// file within this package. This file defines the root command, which also
// runs recipes given as bare arguments ("recipe build test"), and handles
// global flags, exit codes and error output.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/recipe/internal/logging"
	"github.com/shinji-kodama/recipe/internal/model"
	"github.com/shinji-kodama/recipe/internal/plan"
	"github.com/shinji-kodama/recipe/internal/runner"
)

// Global flag variables shared across all subcommands. They are bound to
// persistent flags on the root command.
var (
	// jsonOutput switches command output and errors to JSON.
	jsonOutput bool

	// verbose lowers the log level to debug.
	verbose bool

	// recipeFile bypasses recipe file discovery.
	recipeFile string

	// dryRun prints steps (run) or containers (clean) without acting.
	dryRun bool

	// quiet suppresses step echo.
	quiet bool

	// shellFlag overrides the step interpreter, e.g. "bash -euo pipefail -c".
	shellFlag string

	// colorFlag is auto, always or never; empty defers to the config.
	colorFlag string

	// listFlag makes the root command list recipes instead of running them.
	listFlag bool
)

// logger is the diagnostic logger, configured before any command runs.
var logger = zerolog.Nop()

// Version, Commit and Date are injected from the main package, which gets
// them from ldflags at build time.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates the root command with every subcommand attached.
//
// Without a subcommand the root command takes recipe names as arguments
// and runs them with their dependencies. Without arguments it runs the
// "default" recipe, or lists recipes when there is none.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "recipe [RECIPE...]",
		Short: "Run the project's recipes",
		Long: `recipe runs named command sequences ("recipes") defined in a
recipes.yaml or recipes.jsonc file at the project root.

Each recipe's dependencies run first, once each. Steps run one at a time
and the first failing step stops everything after it.

Examples:
  recipe              # run the default recipe, or list recipes
  recipe build        # run one recipe
  recipe publish -n   # show what publish would run
  recipe --list`,

		// Recipe names are arbitrary, so cobra must not reject them as
		// unknown subcommands.
		Args: cobra.ArbitraryArgs,

		// Errors are printed by Execute, in text or JSON.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger = logging.New(cmd.ErrOrStderr(), verbose)
			if colorFlag != "" {
				if _, err := logging.ParseColorMode(colorFlag); err != nil {
					return model.WrapCLIError(model.ExitGeneralError, "invalid --color value", err)
				}
			}
			return nil
		},

		RunE: func(cmd *cobra.Command, args []string) error {
			if listFlag {
				return runList(cmd.Context(), cmd.OutOrStdout(), &listFlags{})
			}
			if len(args) == 0 {
				return runDefault(cmd.Context(), cmd)
			}
			return runRecipes(cmd.Context(), cmd, args)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&recipeFile, "file", "f", "", "Use this recipe file instead of searching for one")
	pf.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	pf.BoolVarP(&dryRun, "dry-run", "n", false, "Print what would be done without doing it")
	pf.BoolVarP(&quiet, "quiet", "q", false, "Do not echo steps before running them")
	pf.StringVar(&shellFlag, "shell", "", `Step interpreter, e.g. "bash -euo pipefail -c" (default from config: sh -cu)`)
	pf.StringVar(&colorFlag, "color", "", "Colorize output: auto, always, never")

	rootCmd.Flags().BoolVarP(&listFlag, "list", "l", false, "List recipes and exit")

	rootCmd.AddCommand(NewListCommand())
	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewShowCommand())
	rootCmd.AddCommand(NewLocCommand())
	rootCmd.AddCommand(NewInitCommand())
	rootCmd.AddCommand(NewCleanCommand())

	return rootCmd
}

// Execute runs the root command and exits with the mapped exit code on
// error.
func Execute(ctx context.Context, rootCmd *cobra.Command) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		code, message, detail := exitCodeFor(err)
		printError(message, detail)
		os.Exit(int(code))
	}
}

// exitCodeFor maps an error to the process exit code, the message to print
// and an optional underlying error shown as detail.
//
//   - cancellation (SIGINT/SIGTERM) exits 130, whatever wrapped it
//   - CLIError carries its own code
//   - a failed step exits with the step's status, or 1 when that is not
//     a positive number (killed by a signal)
//   - unknown recipes exit 5
//   - anything else exits 1
func exitCodeFor(err error) (model.ExitCode, string, error) {
	if errors.Is(err, context.Canceled) {
		return model.ExitInterrupted, "interrupted", nil
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code, cliErr.Message, cliErr.Err
	}

	var stepErr *runner.StepError
	if errors.As(err, &stepErr) {
		code := model.ExitCode(stepErr.ExitCode)
		if stepErr.ExitCode <= 0 || stepErr.ExitCode > 255 {
			code = model.ExitGeneralError
		}
		return code, err.Error(), nil
	}

	if errors.Is(err, plan.ErrUnknownRecipe) {
		return model.ExitUnknownRecipe, err.Error(), nil
	}

	return model.ExitGeneralError, err.Error(), nil
}

// printError writes an error to stderr as "Error: ..." or, under --json,
// as a JSON object.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// stdout is reserved for successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	}
}

// VerboseLog writes a debug message, visible with --verbose.
func VerboseLog(format string, args ...interface{}) {
	logger.Debug().Msgf(format, args...)
}

// IsJSONOutput returns whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}
