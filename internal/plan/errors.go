package plan

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownRecipe is the Kind of errors for names that match no recipe or alias.
	ErrUnknownRecipe = errors.New("unknown recipe")

	// ErrCycle is the Kind of errors for circular recipe dependencies.
	ErrCycle = errors.New("dependency cycle")
)

// Error wraps a planning failure. Kind is one of the sentinel errors above
// so callers can branch with errors.Is.
type Error struct {
	Kind error

	// Name is the recipe the error is about (unknown name, or cycle start).
	Name string

	// Suggestion is a close recipe name for ErrUnknownRecipe, if any.
	Suggestion string

	// Path is the cycle witness for ErrCycle, first element repeated last.
	Path []string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case errors.Is(e.Kind, ErrCycle) && len(e.Path) > 0:
		return fmt.Sprintf("%s: %s", e.Kind.Error(), strings.Join(e.Path, " -> "))
	case e.Suggestion != "":
		return fmt.Sprintf("%s %q (did you mean %q?)", e.Kind.Error(), e.Name, e.Suggestion)
	case e.Name != "":
		return fmt.Sprintf("%s %q", e.Kind.Error(), e.Name)
	default:
		return e.Kind.Error()
	}
}

func (e *Error) Unwrap() error { return e.Kind }

func cycleError(path []string) error {
	name := ""
	if len(path) > 0 {
		name = path[0]
	}
	return &Error{Kind: ErrCycle, Name: name, Path: path}
}
