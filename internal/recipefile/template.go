package recipefile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/recipe/internal/model"
)

// Toolchain identifies the kind of project "recipe init" writes a starter
// file for.
type Toolchain string

const (
	// ToolchainCargo is a Rust project (Cargo.toml present).
	ToolchainCargo Toolchain = "cargo"

	// ToolchainGo is a Go module (go.mod present).
	ToolchainGo Toolchain = "go"

	// ToolchainGeneric is anything else; its recipes delegate to make.
	ToolchainGeneric Toolchain = "generic"
)

// DetectToolchain inspects marker files in dir. Cargo wins over Go when
// both are present.
func DetectToolchain(dir string) Toolchain {
	if fileExists(filepath.Join(dir, "Cargo.toml")) {
		return ToolchainCargo
	}
	if fileExists(filepath.Join(dir, "go.mod")) {
		return ToolchainGo
	}
	return ToolchainGeneric
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Steps shared by every template. $RECIPE is exported to every step and
// points at the running binary.
const (
	listStep = `@"$RECIPE" list`
	locStep  = `@"$RECIPE" loc`
)

// Template returns the starter recipe file for a toolchain. Every
// template has the same four recipes:
//
//	default  lists the available recipes
//	loc      counts source lines
//	build    compiles in release mode
//	publish  runs build, then the formatter, the linter (warnings are
//	         errors) and the test suite, stopping at the first failure
func Template(tc Toolchain) *model.Recipefile {
	var locPattern string
	var build, publish []string

	switch tc {
	case ToolchainCargo:
		locPattern = "'src/**/*.rs'"
		build = []string{"cargo build --release"}
		publish = []string{"cargo fmt", "cargo clippy -- -D warnings", "cargo test"}
	case ToolchainGo:
		locPattern = "'**/*.go'"
		build = []string{"go build ./..."}
		publish = []string{"gofmt -l -w .", "go vet ./...", "go test ./..."}
	default:
		locPattern = "'src/**/*'"
		build = []string{"make"}
		publish = []string{"make fmt", "make lint", "make test"}
	}

	f := &model.Recipefile{
		Recipes: map[string]*model.Recipe{
			"default": {
				Description: "List available recipes",
				Steps:       []string{listStep},
			},
			"loc": {
				Description: "Count lines of source code",
				Steps:       []string{locStep + " " + locPattern},
			},
			"build": {
				Description: "Compile in release mode",
				Steps:       build,
			},
			"publish": {
				Description: "Build, then format, lint and test",
				Deps:        []string{"build"},
				Steps:       publish,
			},
		},
	}
	f.Normalize()
	return f
}

// Encode serializes a recipe file. YAML output uses two-space indentation;
// JSONC output is indented JSON preceded by a comment header.
func Encode(f *model.Recipefile, format Format) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case FormatYAML:
		buf.WriteString("# Recipe file. Run \"recipe list\" to see available recipes.\n")
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return nil, fmt.Errorf("failed to encode recipe file as YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode recipe file as YAML: %w", err)
		}

	case FormatJSONC:
		buf.WriteString("// Recipe file. Run \"recipe list\" to see available recipes.\n")
		data, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode recipe file as JSON: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')

	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	return buf.Bytes(), nil
}

// FileNameFor returns the file name "recipe init" writes for a format.
func FileNameFor(format Format) string {
	if format == FormatJSONC {
		return "recipes.jsonc"
	}
	return "recipes.yaml"
}

// WriteTemplate writes the starter file for tc into dir and returns its
// path. An existing file is left untouched unless force is true.
func WriteTemplate(dir string, tc Toolchain, format Format, force bool) (string, error) {
	path := filepath.Join(dir, FileNameFor(format))

	if !force && fileExists(path) {
		return "", model.NewCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("%s already exists (use --force to overwrite)", path),
		)
	}

	data, err := Encode(Template(tc), format)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
