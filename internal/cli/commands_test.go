package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/recipe/internal/loc"
	"github.com/shinji-kodama/recipe/internal/model"
	"github.com/shinji-kodama/recipe/internal/recipefile"
)

func sampleRecipefile() *model.Recipefile {
	f := &model.Recipefile{
		Path: "/project/recipes.yaml",
		Recipes: map[string]*model.Recipe{
			"build":   {Description: "Compile in release mode", Aliases: []string{"b", "compile"}},
			"publish": {Description: "Build, then format, lint and test", Deps: []string{"build"}},
			"loc":     {},
			"_clean":  {Description: "Remove build output"},
			"release": {Private: true, Container: &model.Container{Image: "rust:1.79"}},
		},
	}
	f.Normalize()
	return f
}

// withJSONOutput sets the --json global for the duration of a test.
func withJSONOutput(t *testing.T) {
	t.Helper()
	jsonOutput = true
	t.Cleanup(func() { jsonOutput = false })
}

func TestPrintRecipeList_Text(t *testing.T) {
	var out bytes.Buffer
	printRecipeList(&out, sampleRecipefile(), false)

	want := "" +
		"RECIPE   ALIASES    DESCRIPTION\n" +
		"build    b,compile  Compile in release mode\n" +
		"loc      -\n" +
		"publish  -          Build, then format, lint and test\n"
	assert.Equal(t, want, out.String())
}

func TestPrintRecipeList_All(t *testing.T) {
	var out bytes.Buffer
	printRecipeList(&out, sampleRecipefile(), true)

	assert.Contains(t, out.String(), "_clean")
	assert.Contains(t, out.String(), "release")
}

func TestPrintRecipeList_Empty(t *testing.T) {
	f := &model.Recipefile{Path: "/project/recipes.yaml"}
	f.Normalize()

	var out bytes.Buffer
	printRecipeList(&out, f, false)
	assert.Equal(t, "No recipes in /project/recipes.yaml.\n", out.String())
}

func TestPrintRecipeList_JSON(t *testing.T) {
	withJSONOutput(t)

	var out bytes.Buffer
	printRecipeList(&out, sampleRecipefile(), true)

	var got struct {
		File    string           `json:"file"`
		Recipes []listRecipeJSON `json:"recipes"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "/project/recipes.yaml", got.File)

	names := make([]string, 0, len(got.Recipes))
	for _, r := range got.Recipes {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"_clean", "build", "loc", "publish", "release"}, names)

	assert.Equal(t, []string{}, got.Recipes[2].Aliases, "empty lists are [] rather than null")
	assert.Equal(t, []string{"build"}, got.Recipes[3].Deps)
	assert.True(t, got.Recipes[4].Private)
	assert.Equal(t, "rust:1.79", got.Recipes[4].Container)
}

func TestFormatAliases(t *testing.T) {
	assert.Equal(t, "-", formatAliases(nil))
	assert.Equal(t, "b", formatAliases([]string{"b"}))
	assert.Equal(t, "b,c", formatAliases([]string{"b", "c"}))
}

func TestPrintShowResult(t *testing.T) {
	f := sampleRecipefile()
	r := f.Recipes["publish"]
	r.Steps = []string{"cargo fmt", "cargo test"}

	var out bytes.Buffer
	require.NoError(t, printShowResult(&out, r, []string{"build", "publish"}))

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "publish:\n"), text)
	assert.Contains(t, text, "- cargo fmt")
	assert.True(t, strings.HasSuffix(text, "# runs: build -> publish\n"), text)
}

func TestPrintShowResult_JSON(t *testing.T) {
	withJSONOutput(t)
	r := sampleRecipefile().Recipes["publish"]

	var out bytes.Buffer
	require.NoError(t, printShowResult(&out, r, []string{"build", "publish"}))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "publish", got["name"])
	assert.Equal(t, []interface{}{"build", "publish"}, got["plan"])
}

func TestShowCommand(t *testing.T) {
	setupProject(t, testRecipes)

	stdout, _, err := executeCommand(t, "show", "publish")
	require.NoError(t, err)
	assert.Contains(t, stdout, "deps:")
	assert.Contains(t, stdout, "# runs: build -> publish")
}

func sampleReport() *loc.Report {
	return &loc.Report{
		Total: 1150,
		Files: []loc.FileCount{
			{Path: "src/lib.rs", Lines: 1000},
			{Path: "src/main.rs", Lines: 120},
			{Path: "src/data.toml", Lines: 30},
		},
		ByExtension: map[string]int64{".rs": 1120, ".toml": 30},
	}
}

func TestPrintLocResult_Total(t *testing.T) {
	var out bytes.Buffer
	printLocResult(&out, sampleReport(), false)
	assert.Equal(t, "1150\n", out.String())
}

func TestPrintLocResult_ByFile(t *testing.T) {
	var out bytes.Buffer
	printLocResult(&out, sampleReport(), true)

	want := "" +
		"1000 src/lib.rs\n" +
		" 120 src/main.rs\n" +
		"  30 src/data.toml\n" +
		"1150 total\n" +
		"\n" +
		"1120 .rs\n" +
		"  30 .toml\n"
	assert.Equal(t, want, out.String())
}

func TestPrintLocResult_SingleExtensionHasNoBreakdown(t *testing.T) {
	report := &loc.Report{
		Total:       3,
		Files:       []loc.FileCount{{Path: "src/a.rs", Lines: 3}},
		ByExtension: map[string]int64{".rs": 3},
	}

	var out bytes.Buffer
	printLocResult(&out, report, true)
	assert.Equal(t, "3 src/a.rs\n3 total\n", out.String())
}

func TestLocCommand(t *testing.T) {
	dir := setupProject(t, testRecipes)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "a.rs"), []byte("one\ntwo\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "nested", "b.rs"), []byte("three\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "notes.md"), []byte("x\ny\nz\n"), 0o644))

	stdout, _, err := executeCommand(t, "loc")
	require.NoError(t, err)
	assert.Equal(t, "6\n", stdout)

	stdout, _, err = executeCommand(t, "loc", "src/**/*.rs", "--jobs", "1")
	require.NoError(t, err)
	assert.Equal(t, "3\n", stdout)
}

func TestChooseToolchain(t *testing.T) {
	dir := t.TempDir()

	tc, err := chooseToolchain("", dir)
	require.NoError(t, err)
	assert.Equal(t, recipefile.ToolchainGeneric, tc)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("[package]\n"), 0o644))
	tc, err = chooseToolchain("", dir)
	require.NoError(t, err)
	assert.Equal(t, recipefile.ToolchainCargo, tc)

	tc, err = chooseToolchain("go", dir)
	require.NoError(t, err)
	assert.Equal(t, recipefile.ToolchainGo, tc)

	_, err = chooseToolchain("maven", dir)
	require.Error(t, err)
}

func TestInitCommand(t *testing.T) {
	dir := setupProject(t, "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("[package]\n"), 0o644))

	stdout, _, err := executeCommand(t, "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created ")
	assert.Contains(t, stdout, "(cargo)")

	f, err := recipefile.LoadValid(filepath.Join(dir, "recipes.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"build", "default", "loc", "publish"}, f.Names())
	assert.Equal(t, []string{"cargo build --release"}, f.Recipes["build"].Steps)

	// A second init refuses to overwrite.
	_, _, err = executeCommand(t, "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = executeCommand(t, "init", "--force", "--format", "jsonc")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "recipes.jsonc"))
}

func TestInitCommand_InvalidFormat(t *testing.T) {
	setupProject(t, "")

	_, _, err := executeCommand(t, "init", "--format", "toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --format value")
}

func TestSelectCleanTargets(t *testing.T) {
	containers := []model.ContainerInfo{
		{ContainerName: "a", State: "exited"},
		{ContainerName: "b", State: "running"},
		{ContainerName: "c", State: "created"},
	}

	targets, skipped := selectCleanTargets(containers, false)
	assert.Len(t, targets, 2)
	require.Len(t, skipped, 1)
	assert.Equal(t, "b", skipped[0].ContainerName)

	targets, skipped = selectCleanTargets(containers, true)
	assert.Len(t, targets, 3)
	assert.Empty(t, skipped)
}

func TestPromptConfirmation(t *testing.T) {
	targets := []model.ContainerInfo{{ContainerName: "recipe-build-1-1", Recipe: "build", Step: 1, State: "exited"}}

	tests := []struct {
		input string
		want  bool
	}{
		{input: "y\n", want: true},
		{input: "YES\n", want: true},
		{input: "n\n", want: false},
		{input: "\n", want: false},
		{input: "", want: false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			got, err := promptConfirmation(strings.NewReader(tt.input), &out, targets)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "recipe-build-1-1 (recipe build, step 1, exited)")
		})
	}
}

func TestPrintCleanResult(t *testing.T) {
	targets := []model.ContainerInfo{{ContainerName: "recipe-build-1-1", Recipe: "build", Step: 1, State: "exited"}}
	skipped := []model.ContainerInfo{{ContainerName: "recipe-test-1-2", Recipe: "test", Step: 1, State: "running"}}

	var out bytes.Buffer
	printCleanResult(&out, targets, skipped, false)
	assert.Equal(t, ""+
		"Would remove 1 container(s)\n"+
		"  recipe-build-1-1 (recipe build, step 1, exited)\n"+
		"Skipped 1 running container(s); use --running to remove them\n", out.String())

	out.Reset()
	printCleanResult(&out, nil, nil, true)
	assert.Equal(t, "No recipe containers to remove.\n", out.String())
}

func TestPrintCleanResult_JSON(t *testing.T) {
	withJSONOutput(t)

	var out bytes.Buffer
	printCleanResult(&out, nil, nil, true)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, true, got["removed"])
	assert.Equal(t, []interface{}{}, got["containers"])
	assert.Equal(t, []interface{}{}, got["skipped"])
}
