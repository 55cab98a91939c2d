// Package recipefile locates, parses, validates and writes recipe files.
//
// Two encodings are supported and decode into the same model.Recipefile:
//   - YAML (recipes.yaml / recipes.yml) via gopkg.in/yaml.v3
//   - JSONC (recipes.jsonc / recipes.json) via github.com/tidwall/jsonc,
//     which strips comments and trailing commas before encoding/json parses
//     the result
//
// Both decoders reject unknown fields, so a typo such as "step:" instead
// of "steps:" is a load error rather than a silently empty recipe.
package recipefile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/recipe/internal/model"
)

// Format is the encoding of a recipe file.
type Format string

const (
	// FormatYAML is the default encoding written by "recipe init".
	FormatYAML Format = "yaml"

	// FormatJSONC is JSON with comments and trailing commas.
	FormatJSONC Format = "jsonc"
)

// ParseFormat converts a string to a Format, normalizing case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "jsonc", "json":
		return FormatJSONC, nil
	default:
		return "", fmt.Errorf("invalid format: %q (valid: yaml, jsonc)", s)
	}
}

// FormatForPath infers the encoding from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".jsonc", ".json":
		return FormatJSONC, nil
	default:
		return "", fmt.Errorf("unsupported recipe file extension %q (use .yaml, .yml, .jsonc or .json)", filepath.Ext(path))
	}
}

// Load reads and decodes the recipe file at path. The returned file is
// normalized (every Recipe has its Name) but not validated; call Validate
// for semantic checks.
//
// A missing file is a CLIError with ExitRecipefileNotFound; a file that
// does not decode is a CLIError with ExitInvalidRecipefile.
func Load(path string) (*model.Recipefile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipe file path %s: %w", path, err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitRecipefileNotFound,
				fmt.Sprintf("recipe file not found: %s", abs),
				err,
			)
		}
		return nil, fmt.Errorf("failed to read recipe file: %w", err)
	}

	format, err := FormatForPath(abs)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitInvalidRecipefile, "cannot load recipe file", err)
	}

	f, err := Decode(data, format)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitInvalidRecipefile,
			fmt.Sprintf("failed to parse %s", abs),
			err,
		)
	}
	f.Path = abs
	return f, nil
}

// Decode parses recipe file contents in the given format.
// An empty document yields a file with no recipes.
func Decode(data []byte, format Format) (*model.Recipefile, error) {
	var f model.Recipefile

	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}

	case FormatJSONC:
		clean := jsonc.ToJSON(data)
		if len(bytes.TrimSpace(clean)) > 0 {
			dec := json.NewDecoder(bytes.NewReader(clean))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&f); err != nil {
				return nil, err
			}
		}

	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	f.Normalize()
	return &f, nil
}
