package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/recipe/internal/model"
	"github.com/shinji-kodama/recipe/internal/recipefile"
)

// initFlags holds the flag values for the init command.
type initFlags struct {
	format    string
	force     bool
	toolchain string
}

// NewInitCommand creates the "init" command.
func NewInitCommand() *cobra.Command {
	flags := &initFlags{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter recipe file",
		Long: `Write a recipe file with four recipes to the working directory:

  default  lists the available recipes
  loc      counts source lines
  build    compiles in release mode
  publish  runs build, then the formatter, the linter with warnings as
           errors, and the test suite, stopping at the first failure

The commands are chosen for the project's toolchain: cargo when Cargo.toml
exists, go when go.mod exists, make otherwise.

Examples:
  recipe init
  recipe init --format jsonc
  recipe init --toolchain cargo --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.format, "format", string(recipefile.FormatYAML), "File format: yaml, jsonc")
	cmd.Flags().BoolVar(&flags.force, "force", false, "Overwrite an existing recipe file")
	cmd.Flags().StringVar(&flags.toolchain, "toolchain", "", "Toolchain: cargo, go, generic (default: detected)")

	return cmd
}

func runInit(out io.Writer, flags *initFlags) error {
	format, err := recipefile.ParseFormat(flags.format)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid --format value", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to get current directory", err)
	}

	tc, err := chooseToolchain(flags.toolchain, cwd)
	if err != nil {
		return err
	}
	VerboseLog("Writing %s template for %s toolchain", format, tc)

	path, err := recipefile.WriteTemplate(cwd, tc, format, flags.force)
	if err != nil {
		return err
	}

	printInitResult(out, path, tc)
	return nil
}

// chooseToolchain validates an explicit --toolchain or detects one from
// marker files in dir.
func chooseToolchain(flag, dir string) (recipefile.Toolchain, error) {
	switch tc := recipefile.Toolchain(flag); tc {
	case "":
		return recipefile.DetectToolchain(dir), nil
	case recipefile.ToolchainCargo, recipefile.ToolchainGo, recipefile.ToolchainGeneric:
		return tc, nil
	default:
		return "", model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("invalid --toolchain value %q (valid: cargo, go, generic)", flag))
	}
}

func printInitResult(out io.Writer, path string, tc recipefile.Toolchain) {
	if IsJSONOutput() {
		result := map[string]interface{}{
			"path":      path,
			"toolchain": string(tc),
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(out, string(data))
		return
	}
	fmt.Fprintf(out, "Created %s (%s)\n", path, tc)
	fmt.Fprintln(out, `Run "recipe list" to see its recipes.`)
}
