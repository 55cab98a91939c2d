package docker

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/filters"

	"github.com/shinji-kodama/recipe/internal/model"
)

// Label keys written on every container a recipe step runs in. They are
// the only record of those containers; "recipe clean" finds leftovers of
// crashed or killed runs through them.
const (
	// LabelPrefix namespaces all recipe labels.
	LabelPrefix = "recipe."

	// LabelManagedBy marks containers created by this tool. Value: ManagedByValue.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelName is the recipe name.
	LabelName = LabelPrefix + "name"

	// LabelFile is the absolute path of the recipe file.
	LabelFile = LabelPrefix + "file"

	// LabelStep is the one-based step number.
	LabelStep = LabelPrefix + "step"

	// LabelStartedAt is the RFC3339 UTC creation time.
	LabelStartedAt = LabelPrefix + "started-at"
)

// ManagedByValue is the value of LabelManagedBy.
const ManagedByValue = "recipe"

// BuildLabels returns the labels for the container running step index
// (zero-based) of recipe.
func BuildLabels(recipe, file string, index int, startedAt time.Time) map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelName:      recipe,
		LabelFile:      file,
		LabelStep:      strconv.Itoa(index + 1),
		LabelStartedAt: startedAt.UTC().Format(time.RFC3339),
	}
}

// ParseLabels fills the label-derived fields of a ContainerInfo. Missing
// labels are reported together.
func ParseLabels(labels map[string]string) (model.ContainerInfo, error) {
	var info model.ContainerInfo

	var missing []string
	for _, key := range []string{LabelManagedBy, LabelName, LabelFile, LabelStep, LabelStartedAt} {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return info, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return info, fmt.Errorf("label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue)
	}

	step, err := strconv.Atoi(labels[LabelStep])
	if err != nil || step < 1 {
		return info, fmt.Errorf("invalid label %s: %q", LabelStep, labels[LabelStep])
	}

	startedAt, err := time.Parse(time.RFC3339, labels[LabelStartedAt])
	if err != nil {
		return info, fmt.Errorf("invalid label %s: %w", LabelStartedAt, err)
	}

	info.Recipe = labels[LabelName]
	info.File = labels[LabelFile]
	info.Step = step
	info.StartedAt = startedAt
	return info, nil
}

// ManagedFilter selects containers created by this tool, for ContainerList.
func ManagedFilter() filters.Args {
	return filters.NewArgs(filters.Arg("label", LabelManagedBy+"="+ManagedByValue))
}

// containerName builds a readable, unique container name for a step.
// Docker names must start with an alphanumeric, which the "recipe-"
// prefix guarantees for names like "_clean".
func containerName(recipe string, index int, startedAt time.Time) string {
	return fmt.Sprintf("recipe-%s-%d-%d", recipe, index+1, startedAt.UnixNano())
}
