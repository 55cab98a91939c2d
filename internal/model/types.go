package model

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// PullPolicy controls when a container image is pulled before a
// containerised recipe runs.
type PullPolicy string

const (
	// PullMissing pulls the image only when the local daemon does not
	// already have it. This is the default when no policy is set.
	PullMissing PullPolicy = "missing"

	// PullAlways pulls before every step, picking up moved tags.
	PullAlways PullPolicy = "always"

	// PullNever never contacts a registry. A missing image fails the step.
	PullNever PullPolicy = "never"
)

// String returns the string representation of PullPolicy.
func (p PullPolicy) String() string {
	return string(p)
}

// IsValid checks whether the PullPolicy value is one of the predefined
// policies. The empty value is accepted and means PullMissing.
func (p PullPolicy) IsValid() bool {
	switch p {
	case "", PullMissing, PullAlways, PullNever:
		return true
	default:
		return false
	}
}

// ParsePullPolicy converts a string to a PullPolicy, normalizing case.
// The empty string maps to PullMissing.
func ParsePullPolicy(s string) (PullPolicy, error) {
	policy := PullPolicy(strings.ToLower(strings.TrimSpace(s)))
	if !policy.IsValid() {
		return "", fmt.Errorf("invalid pull policy: %q (valid: missing, always, never)", s)
	}
	if policy == "" {
		return PullMissing, nil
	}
	return policy, nil
}

// Recipefile is a parsed recipe file.
//
// Recipes is keyed by recipe name. After Normalize every Recipe carries its
// own Name, so callers can pass *Recipe values around without the map key.
type Recipefile struct {
	// Path is the absolute path the file was loaded from. It is not part
	// of the serialized form.
	Path string `json:"-" yaml:"-"`

	// Shell is the interpreter prefix for every step, e.g. ["sh", "-cu"].
	// Empty means the configured default.
	Shell []string `json:"shell,omitempty" yaml:"shell,omitempty"`

	// Env is exported to every step of every recipe.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// Recipes maps recipe names to their definitions.
	Recipes map[string]*Recipe `json:"recipes" yaml:"recipes"`
}

// Recipe is one named, invokable command sequence.
type Recipe struct {
	// Name is copied from the Recipes map key by Normalize.
	Name string `json:"-" yaml:"-"`

	// Description is the one-line summary shown by "recipe list".
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Aliases are alternative names accepted on the command line.
	Aliases []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`

	// Deps are recipes that run, once each, before this recipe's steps.
	Deps []string `json:"deps,omitempty" yaml:"deps,omitempty"`

	// Steps are shell lines, optionally prefixed with the "@" and "-" sigils.
	Steps []string `json:"steps,omitempty" yaml:"steps,omitempty"`

	// Dir is the working directory relative to the recipe file's directory.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// Env is exported to this recipe's steps on top of the file-level Env.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// Private hides the recipe from listings. It can still be run by name.
	Private bool `json:"private,omitempty" yaml:"private,omitempty"`

	// Container, when set, runs every step inside a fresh container.
	Container *Container `json:"container,omitempty" yaml:"container,omitempty"`
}

// Container describes the image and environment of a containerised recipe.
type Container struct {
	// Image is the image reference, e.g. "rust:1.79".
	Image string `json:"image" yaml:"image"`

	// Workdir is where the recipe directory is mounted and where steps
	// run. Defaults to DefaultContainerWorkdir.
	Workdir string `json:"workdir,omitempty" yaml:"workdir,omitempty"`

	// Env is added inside the container after file and recipe env.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// Pull is the image pull policy.
	Pull PullPolicy `json:"pull,omitempty" yaml:"pull,omitempty"`
}

// DefaultContainerWorkdir is the mount point used when Container.Workdir is empty.
const DefaultContainerWorkdir = "/work"

// MountPoint returns the workdir a containerised recipe runs in.
func (c *Container) MountPoint() string {
	if c.Workdir == "" {
		return DefaultContainerWorkdir
	}
	return c.Workdir
}

// Normalize copies map keys into Recipe.Name and replaces nil recipe
// entries (a bare "name:" in YAML) with empty recipes.
func (f *Recipefile) Normalize() {
	if f.Recipes == nil {
		f.Recipes = make(map[string]*Recipe)
	}
	for name, r := range f.Recipes {
		if r == nil {
			r = &Recipe{}
			f.Recipes[name] = r
		}
		r.Name = name
	}
}

// Dir returns the directory containing the recipe file. Relative recipe
// directories and container mounts are resolved against it.
func (f *Recipefile) Dir() string {
	if f.Path == "" {
		return "."
	}
	return filepath.Dir(f.Path)
}

// Names returns all recipe names in sorted order.
func (f *Recipefile) Names() []string {
	names := make([]string, 0, len(f.Recipes))
	for name := range f.Recipes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup finds a recipe by name or alias.
func (f *Recipefile) Lookup(nameOrAlias string) (*Recipe, bool) {
	if r, ok := f.Recipes[nameOrAlias]; ok {
		return r, true
	}
	for _, name := range f.Names() {
		r := f.Recipes[name]
		for _, alias := range r.Aliases {
			if alias == nameOrAlias {
				return r, true
			}
		}
	}
	return nil, false
}

// IsPrivate reports whether the recipe is hidden from listings, either
// explicitly or by a leading underscore in its name.
func (r *Recipe) IsPrivate() bool {
	return r.Private || strings.HasPrefix(r.Name, "_")
}

// WorkDir returns the absolute directory the recipe's steps run in.
func (r *Recipe) WorkDir(fileDir string) string {
	if r.Dir == "" {
		return fileDir
	}
	if filepath.IsAbs(r.Dir) {
		return r.Dir
	}
	return filepath.Join(fileDir, r.Dir)
}

// nameRegex validates recipe names and aliases: a letter or underscore,
// then letters, digits, underscores or hyphens.
var nameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// ValidateName checks if the given string is a valid recipe name or alias.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("recipe name must not be empty")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("invalid recipe name %q: must start with a letter or underscore and contain only letters, digits, '_' and '-'", name)
	}
	return nil
}

// Step is one parsed recipe line.
type Step struct {
	// Line is the command text with sigils removed.
	Line string `json:"line"`

	// Silent suppresses echoing the line before it runs ("@" sigil).
	Silent bool `json:"silent,omitempty"`

	// IgnoreError continues the sequence when the line fails ("-" sigil).
	IgnoreError bool `json:"ignoreError,omitempty"`
}

// ParseStep strips the leading "@" and "-" sigils, in any order, from a
// raw step line and records them as flags. Whitespace between sigils and
// the command is dropped.
func ParseStep(raw string) Step {
	var s Step
	rest := strings.TrimLeft(raw, " \t")
	for len(rest) > 0 {
		switch rest[0] {
		case '@':
			s.Silent = true
		case '-':
			s.IgnoreError = true
		default:
			s.Line = strings.TrimSpace(rest)
			return s
		}
		rest = strings.TrimLeft(rest[1:], " \t")
	}
	return s
}

// String renders the step back into its sigil form.
func (s Step) String() string {
	var b strings.Builder
	if s.Silent {
		b.WriteByte('@')
	}
	if s.IgnoreError {
		b.WriteByte('-')
	}
	b.WriteString(s.Line)
	return b.String()
}
