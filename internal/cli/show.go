package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/recipe/internal/model"
	"github.com/shinji-kodama/recipe/internal/plan"
)

// NewShowCommand creates the "show" command.
func NewShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show RECIPE",
		Short: "Show a recipe's definition and execution plan",
		Long: `Print the definition of one recipe, followed by the order in which it
and its dependencies would run.

Examples:
  recipe show publish
  recipe show publish --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
}

func runShow(ctx context.Context, out io.Writer, name string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f, err := openRecipefile(ctx, cfg)
	if err != nil {
		return err
	}

	r, err := plan.Resolve(f, name)
	if err != nil {
		return err
	}
	order, err := plan.Build(f, []string{r.Name})
	if err != nil {
		return err
	}

	return printShowResult(out, r, recipeNames(order))
}

func recipeNames(recipes []*model.Recipe) []string {
	names := make([]string, 0, len(recipes))
	for _, r := range recipes {
		names = append(names, r.Name)
	}
	return names
}

func printShowResult(out io.Writer, r *model.Recipe, order []string) error {
	if IsJSONOutput() {
		result := map[string]interface{}{
			"name":   r.Name,
			"recipe": r,
			"plan":   order,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(out, string(data))
		return nil
	}

	// Render under the recipe's name, as it appears in a recipe file.
	data, err := yaml.Marshal(map[string]*model.Recipe{r.Name: r})
	if err != nil {
		return fmt.Errorf("failed to render recipe %q: %w", r.Name, err)
	}
	fmt.Fprint(out, string(data))
	fmt.Fprintf(out, "# runs: %s\n", strings.Join(order, " -> "))
	return nil
}
