package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/recipe/internal/model"
)

// listFlags holds the flag values for the list command.
type listFlags struct {
	// all includes private recipes.
	all bool
}

// NewListCommand creates the "list" command.
func NewListCommand() *cobra.Command {
	flags := &listFlags{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the recipes in the recipe file",
		Long: `List every recipe with its aliases and description.

Recipes marked private, or whose names start with "_", are hidden unless
--all is given. They can still be run by name.

Examples:
  recipe list
  recipe list --all
  recipe list --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.all, "all", "a", false, "Include private recipes")

	return cmd
}

func runList(ctx context.Context, out io.Writer, flags *listFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f, err := openRecipefile(ctx, cfg)
	if err != nil {
		return err
	}
	printRecipeList(out, f, flags.all)
	return nil
}

// listedRecipes returns the recipes to show, sorted by name.
func listedRecipes(f *model.Recipefile, all bool) []*model.Recipe {
	recipes := make([]*model.Recipe, 0, len(f.Recipes))
	for _, name := range f.Names() {
		r := f.Recipes[name]
		if r.IsPrivate() && !all {
			continue
		}
		recipes = append(recipes, r)
	}
	return recipes
}

func printRecipeList(out io.Writer, f *model.Recipefile, all bool) {
	recipes := listedRecipes(f, all)
	if IsJSONOutput() {
		printRecipeListJSON(out, f, recipes)
	} else {
		printRecipeListText(out, f, recipes)
	}
}

type listRecipeJSON struct {
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases"`
	Description string   `json:"description"`
	Deps        []string `json:"deps"`
	Private     bool     `json:"private,omitempty"`
	Container   string   `json:"container,omitempty"`
}

func printRecipeListJSON(out io.Writer, f *model.Recipefile, recipes []*model.Recipe) {
	type resultJSON struct {
		File    string           `json:"file"`
		Recipes []listRecipeJSON `json:"recipes"`
	}

	result := resultJSON{
		File:    f.Path,
		Recipes: make([]listRecipeJSON, 0, len(recipes)),
	}
	for _, r := range recipes {
		entry := listRecipeJSON{
			Name:        r.Name,
			Aliases:     orEmpty(r.Aliases),
			Description: r.Description,
			Deps:        orEmpty(r.Deps),
			Private:     r.IsPrivate(),
		}
		if r.Container != nil {
			entry.Container = r.Container.Image
		}
		result.Recipes = append(result.Recipes, entry)
	}

	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Fprintln(out, string(data))
}

// printRecipeListText prints an aligned table:
//
//	RECIPE   ALIASES  DESCRIPTION
//	build    b        Compile in release mode
//	publish  -        Build, format, lint and test
func printRecipeListText(out io.Writer, f *model.Recipefile, recipes []*model.Recipe) {
	if len(recipes) == 0 {
		fmt.Fprintf(out, "No recipes in %s.\n", f.Path)
		return
	}

	nameWidth, aliasWidth := len("RECIPE"), len("ALIASES")
	for _, r := range recipes {
		nameWidth = max(nameWidth, len(r.Name))
		aliasWidth = max(aliasWidth, len(formatAliases(r.Aliases)))
	}

	fmt.Fprintf(out, "%-*s  %-*s  %s\n", nameWidth, "RECIPE", aliasWidth, "ALIASES", "DESCRIPTION")
	for _, r := range recipes {
		line := fmt.Sprintf("%-*s  %-*s  %s", nameWidth, r.Name, aliasWidth, formatAliases(r.Aliases), r.Description)
		fmt.Fprintln(out, strings.TrimRight(line, " "))
	}
}

// formatAliases joins aliases with commas. Returns "-" when there are none.
func formatAliases(aliases []string) string {
	if len(aliases) == 0 {
		return "-"
	}
	return strings.Join(aliases, ",")
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
