package instance

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/docker/docker/client"
	dockerpkg "github.com/dyluth/lodge/internal/docker"
)

// canonicalizePath resolves symlinks and returns the absolute form of a
// path so workspace comparisons never depend on how it was spelled.
func canonicalizePath(path string) (string, error) {
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workspace path: %w", err)
	}
	abs, err := filepath.Abs(real)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute workspace path: %w", err)
	}
	return abs, nil
}

// GetCanonicalWorkspacePath returns the canonical Git root of the
// current directory. This path identifies the workspace for collision
// detection and is translated to the host view when running inside a
// container.
func GetCanonicalWorkspacePath() (string, error) {
	out, err := exec.Command("git", "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get git root: %w", err)
	}

	absPath, err := canonicalizePath(strings.TrimSpace(string(out)))
	if err != nil {
		return "", err
	}

	return translateContainerPathToHost(absPath), nil
}

// translateContainerPathToHost maps a /app container path back to its
// host bind-mount source so labels always carry host paths. Outside a
// container, or when the mount cannot be identified, the path passes
// through unchanged.
func translateContainerPathToHost(containerPath string) string {
	if !strings.HasPrefix(containerPath, "/app") {
		return containerPath
	}

	if _, err := os.Stat("/.dockerenv"); err != nil {
		return containerPath
	}

	hostPath := detectHostPathForAppMount()
	if hostPath == "" {
		return containerPath
	}

	return filepath.Join(hostPath, containerPath[len("/app"):])
}

// detectHostPathForAppMount inspects the running container to find the
// host source of its /app mount.
func detectHostPathForAppMount() string {
	hostname, err := os.Hostname()
	if err != nil {
		return ""
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return ""
	}
	defer cli.Close()

	inspect, err := cli.ContainerInspect(context.Background(), hostname)
	if err != nil {
		return ""
	}

	for _, mount := range inspect.Mounts {
		if mount.Destination == "/app" {
			return mount.Source
		}
	}

	return ""
}

// WorkspaceCollision describes another instance already bound to a
// workspace path.
type WorkspaceCollision struct {
	InstanceName  string
	WorkspacePath string
	ContainerID   string
}

// CheckWorkspaceCollision looks for a different instance bound to the
// given workspace path. Returns nil when the path is free.
func CheckWorkspaceCollision(ctx context.Context, cli *client.Client, workspacePath, currentInstanceName string) (*WorkspaceCollision, error) {
	containers, err := listContainers(ctx, cli, dockerpkg.LabelProject+"=true")
	if err != nil {
		return nil, err
	}

	for _, c := range containers {
		instanceName := c.Labels[dockerpkg.LabelInstanceName]
		if instanceName == currentInstanceName {
			continue
		}
		if c.Labels[dockerpkg.LabelWorkspacePath] == workspacePath {
			return &WorkspaceCollision{
				InstanceName:  instanceName,
				WorkspacePath: c.Labels[dockerpkg.LabelWorkspacePath],
				ContainerID:   c.ID,
			}, nil
		}
	}

	return nil, nil
}
