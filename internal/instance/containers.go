// Package instance names, discovers, and inspects lodge instances
// through their Docker container labels.
package instance

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// listContainers returns all containers matching the given label
// filters, stopped ones included.
func listContainers(ctx context.Context, cli *client.Client, labels ...string) ([]types.Container, error) {
	filter := filters.NewArgs()
	for _, l := range labels {
		filter.Add("label", l)
	}

	containers, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	return containers, nil
}
