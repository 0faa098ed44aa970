package instance

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/docker/docker/client"
	dockerpkg "github.com/dyluth/lodge/internal/docker"
)

// FindInstanceByWorkspace finds the lodge instance whose containers are
// bound to the given workspace path. Returns an error when zero or more
// than one instance matches. The path is canonicalized before the
// comparison so symlinked checkouts still match.
func FindInstanceByWorkspace(ctx context.Context, cli *client.Client, workspacePath string) (string, error) {
	canonicalPath, err := canonicalizePath(workspacePath)
	if err != nil {
		return "", err
	}

	containers, err := listContainers(ctx, cli, dockerpkg.LabelProject+"=true")
	if err != nil {
		return "", err
	}

	seen := make(map[string]bool)
	var matches []string
	for _, c := range containers {
		if c.Labels[dockerpkg.LabelWorkspacePath] != canonicalPath {
			continue
		}
		name := c.Labels[dockerpkg.LabelInstanceName]
		if !seen[name] {
			seen[name] = true
			matches = append(matches, name)
		}
	}

	if len(matches) == 0 {
		return "", fmt.Errorf("no instances found")
	}
	if len(matches) > 1 {
		return "", fmt.Errorf("multiple instances found: %v", matches)
	}

	return matches[0], nil
}

// GetInstanceRedisPort reads the published Redis port for an instance
// from its container labels.
func GetInstanceRedisPort(ctx context.Context, cli *client.Client, instanceName string) (int, error) {
	containers, err := listContainers(ctx, cli,
		fmt.Sprintf("%s=%s", dockerpkg.LabelInstanceName, instanceName),
		fmt.Sprintf("%s=%s", dockerpkg.LabelComponent, dockerpkg.ComponentRedis),
	)
	if err != nil {
		return 0, err
	}

	if len(containers) == 0 {
		return 0, fmt.Errorf("Redis container not found for instance '%s'", instanceName)
	}

	portStr, ok := containers[0].Labels[dockerpkg.LabelRedisPort]
	if !ok {
		return 0, fmt.Errorf("Redis port label missing for instance '%s'", instanceName)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid Redis port '%s': %w", portStr, err)
	}

	return port, nil
}

// VerifyInstanceRunning checks that both essential containers of an
// instance, the registry and the steward, exist and are running.
func VerifyInstanceRunning(ctx context.Context, cli *client.Client, instanceName string) error {
	containers, err := listContainers(ctx, cli, fmt.Sprintf("%s=%s", dockerpkg.LabelInstanceName, instanceName))
	if err != nil {
		return err
	}

	if len(containers) == 0 {
		return fmt.Errorf("instance '%s' not found", instanceName)
	}

	essential := map[string]bool{
		dockerpkg.ComponentRedis:   false,
		dockerpkg.ComponentSteward: false,
	}

	for _, c := range containers {
		component := c.Labels[dockerpkg.LabelComponent]
		if _, isEssential := essential[component]; !isEssential {
			continue
		}
		essential[component] = true
		if c.State != "running" {
			return fmt.Errorf("instance '%s' is not running (component '%s' is %s)", instanceName, component, c.State)
		}
	}

	for component, found := range essential {
		if !found {
			return fmt.Errorf("instance '%s' is missing essential component '%s'", instanceName, component)
		}
	}

	return nil
}

// InferInstanceFromWorkspace resolves the instance for the current Git
// repository. The errors are worded for direct CLI display.
func InferInstanceFromWorkspace(ctx context.Context, cli *client.Client) (string, error) {
	out, err := exec.Command("git", "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", fmt.Errorf("not in a Git repository")
	}

	instanceName, err := FindInstanceByWorkspace(ctx, cli, strings.TrimSpace(string(out)))
	if err != nil {
		if strings.Contains(err.Error(), "no instances found") {
			return "", fmt.Errorf("no lodge instances found for this workspace")
		}
		if strings.Contains(err.Error(), "multiple instances found") {
			return "", fmt.Errorf("multiple instances found for this workspace, use --name to specify which one")
		}
		return "", err
	}

	return instanceName, nil
}
