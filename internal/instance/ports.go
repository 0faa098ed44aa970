package instance

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/docker/docker/client"
	dockerpkg "github.com/dyluth/lodge/internal/docker"
)

// Port range for instance registries. One port per instance, so the
// range allows 100 instances on a host.
const (
	startPort = 6379
	endPort   = 6478
)

// FindNextAvailablePort picks the first free Redis port, consulting
// both the port labels of existing lodge containers and actual
// bindability on the host.
func FindNextAvailablePort(ctx context.Context, cli *client.Client) (int, error) {
	containers, err := listContainers(ctx, cli,
		dockerpkg.LabelProject+"=true",
		fmt.Sprintf("%s=%s", dockerpkg.LabelComponent, dockerpkg.ComponentRedis),
	)
	if err != nil {
		return 0, err
	}

	used := make(map[int]bool)
	for _, c := range containers {
		if portStr, ok := c.Labels[dockerpkg.LabelRedisPort]; ok {
			if port, err := strconv.Atoi(portStr); err == nil {
				used[port] = true
			}
		}
	}

	for port := startPort; port <= endPort; port++ {
		if used[port] {
			continue
		}
		if isPortBindable(port) {
			return port, nil
		}
	}

	return 0, fmt.Errorf("no available Redis ports (range %d-%d exhausted)", startPort, endPort)
}

func isPortBindable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}
