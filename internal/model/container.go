package model

import "time"

// ContainerInfo describes a container created for a recipe step, as
// reconstructed from its labels by "recipe clean".
type ContainerInfo struct {
	// ContainerID is the Docker container ID.
	ContainerID string `json:"containerId"`

	// ContainerName is the name without Docker's leading "/".
	ContainerName string `json:"containerName"`

	// Image is the image reference the container was created from.
	Image string `json:"image"`

	// State is Docker's short state string, e.g. "running" or "exited".
	State string `json:"state"`

	// Recipe is the recipe the step belonged to.
	Recipe string `json:"recipe"`

	// File is the recipe file that declared the recipe.
	File string `json:"file"`

	// Step is the one-based step number.
	Step int `json:"step"`

	// StartedAt is when the step's container was created.
	StartedAt time.Time `json:"startedAt"`
}

// IsRunning reports whether Docker considers the container live.
func (c ContainerInfo) IsRunning() bool {
	return c.State == "running" || c.State == "restarting" || c.State == "paused"
}
