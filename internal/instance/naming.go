package instance

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/docker/docker/client"
	dockerpkg "github.com/dyluth/lodge/internal/docker"
)

const (
	// DefaultNamePrefix prefixes auto-generated instance names.
	DefaultNamePrefix = "default-"

	// MaxNameLength caps instance names at DNS label length.
	MaxNameLength = 63
)

// NamePattern matches DNS-compatible names: lowercase alphanumeric with
// hyphens allowed everywhere but the ends.
var NamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// ValidateName checks an instance name against DNS naming rules. The
// name becomes part of container and network names, so Docker's rules
// apply transitively.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("instance name cannot be empty")
	}

	if len(name) > MaxNameLength {
		return fmt.Errorf("instance name too long: %d characters (max: %d)", len(name), MaxNameLength)
	}

	if !NamePattern.MatchString(name) {
		return fmt.Errorf("invalid instance name '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
	}

	return nil
}

// GenerateDefaultName returns the next free default-N name, scanning
// existing lodge containers for the highest N already taken.
func GenerateDefaultName(ctx context.Context, cli *client.Client) (string, error) {
	containers, err := listContainers(ctx, cli, dockerpkg.LabelProject+"=true")
	if err != nil {
		return "", err
	}

	highest := 0
	for _, c := range containers {
		name := c.Labels[dockerpkg.LabelInstanceName]
		numStr, found := strings.CutPrefix(name, DefaultNamePrefix)
		if !found {
			continue
		}
		if n, err := strconv.Atoi(numStr); err == nil && n > highest {
			highest = n
		}
	}

	return fmt.Sprintf("%s%d", DefaultNamePrefix, highest+1), nil
}

// CheckNameCollision reports whether any container already carries the
// given instance name.
func CheckNameCollision(ctx context.Context, cli *client.Client, instanceName string) (bool, error) {
	containers, err := listContainers(ctx, cli, fmt.Sprintf("%s=%s", dockerpkg.LabelInstanceName, instanceName))
	if err != nil {
		return false, fmt.Errorf("failed to check for name collision: %w", err)
	}

	return len(containers) > 0, nil
}
