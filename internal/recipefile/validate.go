package recipefile

import (
	"fmt"
	"strings"

	"github.com/shinji-kodama/recipe/internal/model"
	"github.com/shinji-kodama/recipe/internal/plan"
)

// ValidationError represents a specific validation failure in a recipe file.
type ValidationError struct {
	// Field is the path of the offending value, e.g. "recipes.publish.deps[0]".
	Field string

	// Message describes what's wrong with the value.
	Message string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate performs semantic checks on a decoded recipe file and returns
// every problem found (empty list = valid file).
//
// Checks performed:
//   - recipe names and aliases are well formed
//   - aliases do not collide with recipe names or other aliases
//   - deps resolve, and no recipe depends on itself
//   - the dependency graph is acyclic
//   - steps are not blank once sigils are removed
//   - container image and pull policy are valid
//   - the shell, if set, names a program
func Validate(f *model.Recipefile) []ValidationError {
	var errs []ValidationError
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if len(f.Shell) > 0 && strings.TrimSpace(f.Shell[0]) == "" {
		add("shell[0]", "shell program must not be empty")
	}

	// aliasOwner maps every alias to the recipe declaring it.
	aliasOwner := make(map[string]string)
	selfDep := false

	for _, name := range f.Names() {
		r := f.Recipes[name]
		field := "recipes." + name

		if err := model.ValidateName(name); err != nil {
			add(field, "%v", err)
		}

		for i, alias := range r.Aliases {
			aliasField := fmt.Sprintf("%s.aliases[%d]", field, i)
			if err := model.ValidateName(alias); err != nil {
				add(aliasField, "%v", err)
				continue
			}
			if _, clash := f.Recipes[alias]; clash {
				add(aliasField, "alias %q collides with recipe %q", alias, alias)
				continue
			}
			if owner, dup := aliasOwner[alias]; dup {
				add(aliasField, "alias %q is already declared by recipe %q", alias, owner)
				continue
			}
			aliasOwner[alias] = name
		}

		for i, depName := range r.Deps {
			depField := fmt.Sprintf("%s.deps[%d]", field, i)
			dep, ok := f.Lookup(depName)
			if !ok {
				if s := plan.Suggest(f, depName); s != "" {
					add(depField, "unknown recipe %q (did you mean %q?)", depName, s)
				} else {
					add(depField, "unknown recipe %q", depName)
				}
				continue
			}
			if dep.Name == name {
				add(depField, "recipe %q depends on itself", name)
				selfDep = true
			}
		}

		for i, raw := range r.Steps {
			if model.ParseStep(raw).Line == "" {
				add(fmt.Sprintf("%s.steps[%d]", field, i), "step is empty")
			}
		}

		if c := r.Container; c != nil {
			if strings.TrimSpace(c.Image) == "" {
				add(field+".container.image", "image is required when container is set")
			}
			if !c.Pull.IsValid() {
				add(field+".container.pull", "invalid pull policy %q (valid: missing, always, never)", c.Pull)
			}
			if c.Workdir != "" && !strings.HasPrefix(c.Workdir, "/") {
				add(field+".container.workdir", "workdir %q must be an absolute path", c.Workdir)
			}
		}
	}

	// Self-dependencies are already reported above; only look for longer
	// cycles when there are none, so one mistake produces one message.
	if !selfDep {
		if err := plan.CheckAcyclic(f); err != nil {
			add("recipes", "%v", err)
		}
	}

	return errs
}

// ValidationErrors wraps a non-empty result of Validate as a single error.
type ValidationErrors []ValidationError

// Error joins all failures, one per line.
func (v ValidationErrors) Error() string {
	lines := make([]string, 0, len(v))
	for i := range v {
		lines = append(lines, v[i].Error())
	}
	return strings.Join(lines, "\n")
}

// LoadValid loads the recipe file at path and validates it. A file with
// validation errors is a CLIError with ExitInvalidRecipefile wrapping
// ValidationErrors.
func LoadValid(path string) (*model.Recipefile, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	if errs := Validate(f); len(errs) > 0 {
		return nil, model.WrapCLIError(
			model.ExitInvalidRecipefile,
			fmt.Sprintf("invalid recipe file %s", f.Path),
			ValidationErrors(errs),
		)
	}
	return f, nil
}
