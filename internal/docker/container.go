package docker

import (
	"context"
	"strings"

	"github.com/docker/docker/api/types/container"

	"github.com/shinji-kodama/recipe/internal/model"
)

// ListManagedContainers returns every container, running or not, that
// carries the managed-by label. Containers whose labels cannot be parsed
// are still returned, with only the Docker-side fields set.
func (c *Client) ListManagedContainers(ctx context.Context) ([]model.ContainerInfo, error) {
	containers, err := c.api.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: ManagedFilter(),
	})
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDockerNotRunning, "failed to list Docker containers", err)
	}

	result := make([]model.ContainerInfo, 0, len(containers))
	for _, s := range containers {
		result = append(result, summaryToInfo(s))
	}
	return result, nil
}

// summaryToInfo maps a list entry to ContainerInfo. Docker reports names
// with a leading "/", which is stripped.
func summaryToInfo(s container.Summary) model.ContainerInfo {
	info, _ := ParseLabels(s.Labels)

	info.ContainerID = s.ID
	info.Image = s.Image
	info.State = string(s.State)
	if len(s.Names) > 0 {
		info.ContainerName = strings.TrimPrefix(s.Names[0], "/")
	}
	return info
}

// RemoveContainer force-removes a container along with its anonymous volumes.
func (c *Client) RemoveContainer(ctx context.Context, containerID string) error {
	err := c.api.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
	if err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning, "failed to remove container "+shortID(containerID), err)
	}
	return nil
}

// shortID truncates a container ID to the 12 characters docker ps shows.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
