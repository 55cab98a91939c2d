// Package plan turns the recipe names given on the command line into the
// ordered list of recipes to execute.
//
// Ordering rules:
//   - targets are processed in command-line order
//   - a recipe's deps run before it, depth-first, in declaration order
//   - every recipe runs at most once per invocation, so "recipe build
//     publish" builds once even though publish depends on build
//
// Validation in the recipefile package rejects cycles before planning, but
// Build still detects them so a plan is never produced from a cyclic file.
package plan

import (
	"sort"

	"github.com/shinji-kodama/recipe/internal/model"
)

// Resolve maps a recipe name or alias to its recipe. Unknown names fail
// with an ErrUnknownRecipe error carrying the closest known name.
func Resolve(f *model.Recipefile, name string) (*model.Recipe, error) {
	if r, ok := f.Lookup(name); ok {
		return r, nil
	}
	return nil, &Error{Kind: ErrUnknownRecipe, Name: name, Suggestion: Suggest(f, name)}
}

// Build returns the execution order for targets.
func Build(f *model.Recipefile, targets []string) ([]*model.Recipe, error) {
	var order []*model.Recipe
	done := make(map[string]bool)
	onStack := make(map[string]bool)
	var stack []string

	var visit func(r *model.Recipe) error
	visit = func(r *model.Recipe) error {
		if done[r.Name] {
			return nil
		}
		if onStack[r.Name] {
			return cycleError(cyclePath(stack, r.Name))
		}
		onStack[r.Name] = true
		stack = append(stack, r.Name)

		for _, depName := range r.Deps {
			dep, err := Resolve(f, depName)
			if err != nil {
				return err
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		onStack[r.Name] = false
		done[r.Name] = true
		order = append(order, r)
		return nil
	}

	for _, target := range targets {
		r, err := Resolve(f, target)
		if err != nil {
			return nil, err
		}
		if err := visit(r); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// CheckAcyclic reports the first dependency cycle found, or nil.
//
// Recipes are visited in sorted order and deps in declaration order, so
// the same file always yields the same witness. Deps that resolve to no
// recipe are skipped; they are reported separately by validation.
func CheckAcyclic(f *model.Recipefile) error {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(f.Recipes))
	var stack []string

	var dfs func(name string) error
	dfs = func(name string) error {
		color[name] = gray
		stack = append(stack, name)

		for _, depName := range f.Recipes[name].Deps {
			dep, ok := f.Lookup(depName)
			if !ok {
				continue
			}
			switch color[dep.Name] {
			case gray:
				return cycleError(cyclePath(stack, dep.Name))
			case white:
				if err := dfs(dep.Name); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[name] = black
		return nil
	}

	for _, name := range f.Names() {
		if color[name] != white {
			continue
		}
		if err := dfs(name); err != nil {
			return err
		}
	}
	return nil
}

// cyclePath extracts "start -> ... -> start" from the DFS stack once a
// back-edge to start has been found.
func cyclePath(stack []string, start string) []string {
	i := len(stack) - 1
	for i >= 0 && stack[i] != start {
		i--
	}
	if i < 0 {
		return []string{start, start}
	}
	path := make([]string, 0, len(stack)-i+1)
	path = append(path, stack[i:]...)
	return append(path, start)
}

// Suggest returns the recipe name or alias closest to name, if one is
// within an edit distance of 2. Ties go to the alphabetically first name.
func Suggest(f *model.Recipefile, name string) string {
	candidates := make([]string, 0, len(f.Recipes))
	for _, n := range f.Names() {
		candidates = append(candidates, n)
		candidates = append(candidates, f.Recipes[n].Aliases...)
	}
	sort.Strings(candidates)

	best, bestDist := "", 3
	for _, c := range candidates {
		if d := levenshtein(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
