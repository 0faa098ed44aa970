package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/docker/docker/client"
	"github.com/redis/go-redis/v9"

	"github.com/dyluth/lodge/internal/config"
	dockerpkg "github.com/dyluth/lodge/internal/docker"
	"github.com/dyluth/lodge/internal/git"
	"github.com/dyluth/lodge/internal/instance"
	"github.com/dyluth/lodge/internal/printer"
	"github.com/dyluth/lodge/pkg/registry"
)

// connection is an established link to a running lodge instance: the
// Docker client that discovered it and a registry client bound to its
// Redis container.
type connection struct {
	InstanceName string
	Docker       *client.Client
	Registry     *registry.Client
}

// Close releases both clients. Safe on a partially built connection.
func (c *connection) Close() {
	if c.Registry != nil {
		c.Registry.Close()
	}
	if c.Docker != nil {
		c.Docker.Close()
	}
}

// connectToInstance discovers the target instance (inferring it from the
// workspace when requestedName is empty), verifies its containers are
// running, and connects to its registry. verb names the calling command
// in error suggestions.
//
// Every registry-facing command goes through here so instance discovery
// fails the same way everywhere.
func connectToInstance(ctx context.Context, requestedName, verb string) (*connection, error) {
	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	targetInstanceName := requestedName
	if targetInstanceName == "" {
		targetInstanceName, err = instance.InferInstanceFromWorkspace(ctx, cli)
		if err != nil {
			cli.Close()
			if err.Error() == "no lodge instances found for this workspace" {
				return nil, printer.Error(
					"no lodge instances found",
					"No running instances found for this workspace.",
					[]string{"Start an instance first:\n  lodge up"},
				)
			}
			if err.Error() == "multiple instances found for this workspace, use --name to specify which one" {
				return nil, printer.Error(
					"multiple instances found",
					"Found multiple running instances for this workspace.",
					[]string{
						fmt.Sprintf("Specify the instance:\n  lodge %s --name <instance-name>", verb),
						"List instances:\n  lodge list",
					},
				)
			}
			return nil, fmt.Errorf("failed to infer instance: %w", err)
		}
	}

	if err := instance.VerifyInstanceRunning(ctx, cli, targetInstanceName); err != nil {
		cli.Close()
		return nil, printer.Error(
			fmt.Sprintf("instance '%s' is not running", targetInstanceName),
			fmt.Sprintf("Error: %v", err),
			[]string{
				fmt.Sprintf("Start the instance:\n  lodge up --name %s", targetInstanceName),
				fmt.Sprintf("Or if stuck, restart:\n  lodge down --name %s\n  lodge up --name %s", targetInstanceName, targetInstanceName),
			},
		)
	}

	redisPort, err := instance.GetInstanceRedisPort(ctx, cli, targetInstanceName)
	if err != nil {
		cli.Close()
		return nil, printer.ErrorWithContext(
			"Redis port not found",
			fmt.Sprintf("Instance '%s' exists but Redis port label is missing.", targetInstanceName),
			nil,
			[]string{fmt.Sprintf("Restart the instance:\n  lodge down --name %s\n  lodge up --name %s", targetInstanceName, targetInstanceName)},
		)
	}

	redisURL := instance.GetRedisURL(redisPort)
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	regClient, err := registry.NewClient(redisOpts, targetInstanceName)
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to create registry client: %w", err)
	}

	if err := regClient.Ping(ctx); err != nil {
		regClient.Close()
		cli.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", redisURL),
			nil,
			[]string{
				fmt.Sprintf("Check Redis container status:\n  docker logs lodge-redis-%s", targetInstanceName),
				fmt.Sprintf("Restart if needed:\n  lodge down --name %s\n  lodge up --name %s", targetInstanceName, targetInstanceName),
			},
		)
	}

	return &connection{
		InstanceName: targetInstanceName,
		Docker:       cli,
		Registry:     regClient,
	}, nil
}

// loadWorkspaceConfig locates the Git root and loads lodge.yml from it,
// so coordination commands work from any subdirectory of the workspace.
func loadWorkspaceConfig() (*config.LodgeConfig, error) {
	checker := git.NewChecker()
	root, err := checker.GetGitRoot()
	if err != nil {
		return nil, printer.Error(
			"not a Git repository",
			"Lodge coordinates knowledge inside a Git repository.",
			[]string{"Initialize Git first:\n  git init\n  lodge init"},
		)
	}

	cfg, err := config.Load(filepath.Join(root, "lodge.yml"))
	if err != nil {
		return nil, printer.Error(
			"lodge.yml not found or invalid",
			fmt.Sprintf("Error: %v", err),
			[]string{
				"Initialize the project first:\n  lodge init",
				"Then declare your producers in lodge.yml",
			},
		)
	}

	return cfg, nil
}
