package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/recipe/internal/gitrepo"
	"github.com/shinji-kodama/recipe/internal/loc"
)

// locFlags holds the flag values for the loc command.
type locFlags struct {
	// git lists candidate files with git, honouring .gitignore.
	git bool

	// byFile prints one line per file instead of the total alone.
	byFile bool

	// jobs bounds concurrent file reads; -1 defers to the config.
	jobs int
}

// NewLocCommand creates the "loc" command.
func NewLocCommand() *cobra.Command {
	flags := &locFlags{}

	cmd := &cobra.Command{
		Use:   "loc [PATTERN...]",
		Short: "Count lines in project files",
		Long: `Count the lines of the files matching PATTERN, relative to the
directory of the recipe file (or the working directory when there is none).

Lines are counted like "wc -l": a last line without a trailing newline is
not counted. Without patterns, the configured loc.patterns are used
(default "src/**/*").

Patterns use glob syntax: "*" does not cross "/", "**" does, and "**/"
also matches no directory at all.

Examples:
  recipe loc
  recipe loc 'src/**/*.rs' --by-file
  recipe loc '**/*.go' --git --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoc(cmd.Context(), cmd.OutOrStdout(), args, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.git, "git", false, "Only count files tracked or not ignored by git")
	cmd.Flags().BoolVar(&flags.byFile, "by-file", false, "Print the count of every file")
	cmd.Flags().IntVarP(&flags.jobs, "jobs", "j", -1, "Files read concurrently (default from config, 0 = number of CPUs)")

	return cmd
}

func runLoc(ctx context.Context, out io.Writer, patterns []string, flags *locFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	root, err := projectRoot(ctx, cfg)
	if err != nil {
		return err
	}

	opts := loc.Options{
		Root:     root,
		Patterns: patterns,
		Jobs:     cfg.LocJobs,
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = cfg.LocPatterns
	}
	if flags.jobs >= 0 {
		opts.Jobs = flags.jobs
	}
	if flags.git {
		opts.Git = gitrepo.NewManager()
	}
	VerboseLog("Counting lines under %s matching %v", root, opts.Patterns)

	report, err := loc.Count(ctx, opts)
	if err != nil {
		return err
	}
	VerboseLog("Counted %d files", len(report.Files))

	printLocResult(out, report, flags.byFile)
	return nil
}

func printLocResult(out io.Writer, report *loc.Report, byFile bool) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Fprintln(out, string(data))
		return
	}
	if !byFile {
		fmt.Fprintln(out, report.Total)
		return
	}
	printLocTable(out, report)
}

// printLocTable prints counts right-aligned, the way wc does with several
// files, followed by per-extension subtotals:
//
//	  120 src/lib.rs
//	   30 src/main.rs
//	  150 total
func printLocTable(out io.Writer, report *loc.Report) {
	width := len(fmt.Sprint(report.Total))
	for _, fc := range report.Files {
		fmt.Fprintf(out, "%*d %s\n", width, fc.Lines, fc.Path)
	}
	fmt.Fprintf(out, "%*d total\n", width, report.Total)

	if len(report.ByExtension) < 2 {
		return
	}
	exts := make([]string, 0, len(report.ByExtension))
	for ext := range report.ByExtension {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	fmt.Fprintln(out)
	for _, ext := range exts {
		fmt.Fprintf(out, "%*d %s\n", width, report.ByExtension[ext], ext)
	}
}
