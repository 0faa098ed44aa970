//go:build integration

// Package testutil provides the harness for lodge end-to-end tests: an
// isolated Git workspace seeded with a lodge.yml, a unique instance name,
// and polling helpers for containers, registry state, and the files the
// steward writes.
package testutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/dyluth/lodge/internal/instance"
	"github.com/dyluth/lodge/pkg/registry"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// E2EEnvironment represents an isolated E2E test environment
type E2EEnvironment struct {
	T            *testing.T
	TmpDir       string
	OriginalDir  string
	InstanceName string
	DockerClient *client.Client
	Registry     *registry.Client
	RedisPort    int
	Ctx          context.Context
}

// SetupE2EEnvironment creates a fully isolated E2E test environment
// with temp directory, Git repo, lodge.yml, and unique instance name
func SetupE2EEnvironment(t *testing.T, lodgeYML string) *E2EEnvironment {
	ctx := context.Background()

	// Create isolated temporary directory (auto-cleaned up)
	tmpDir := t.TempDir()

	// Initialize Git repository
	cmd := exec.Command("git", "init")
	cmd.Dir = tmpDir
	require.NoError(t, cmd.Run(), "Failed to initialize Git repository")

	// Configure Git
	exec.Command("git", "-C", tmpDir, "config", "user.email", "test@lodge.local").Run()
	exec.Command("git", "-C", tmpDir, "config", "user.name", "Lodge Test").Run()

	// Create initial commit (required for clean workspace check)
	testFile := filepath.Join(tmpDir, "README.md")
	require.NoError(t, os.WriteFile(testFile, []byte("# Test Project\n"), 0644))
	exec.Command("git", "-C", tmpDir, "add", ".").Run()
	exec.Command("git", "-C", tmpDir, "commit", "-m", "Initial commit").Run()

	// Write lodge.yml
	lodgeYMLPath := filepath.Join(tmpDir, "lodge.yml")
	require.NoError(t, os.WriteFile(lodgeYMLPath, []byte(lodgeYML), 0644), "Failed to write lodge.yml")

	// Change to test directory
	originalDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir), "Failed to change to test directory")

	// Generate unique instance name with microseconds for uniqueness
	instanceName := fmt.Sprintf("test-e2e-%s", time.Now().Format("20060102-150405-000000"))

	// Get Docker client
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	require.NoError(t, err, "Failed to create Docker client")

	env := &E2EEnvironment{
		T:            t,
		TmpDir:       tmpDir,
		OriginalDir:  originalDir,
		InstanceName: instanceName,
		DockerClient: cli,
		Ctx:          ctx,
	}

	// Register cleanup
	t.Cleanup(func() {
		if env.Registry != nil {
			env.Registry.Close()
		}
		if env.DockerClient != nil {
			env.DockerClient.Close()
		}
		os.Chdir(originalDir)
	})

	return env
}

// InitializeRegistryClient connects to the registry for this environment
func (env *E2EEnvironment) InitializeRegistryClient() {
	var err error
	env.RedisPort, err = instance.GetInstanceRedisPort(env.Ctx, env.DockerClient, env.InstanceName)
	require.NoError(env.T, err, "Failed to get Redis port")

	redisOpts := &redis.Options{
		Addr: fmt.Sprintf("localhost:%d", env.RedisPort),
	}

	env.Registry, err = registry.NewClient(redisOpts, env.InstanceName)
	require.NoError(env.T, err, "Failed to create registry client")
}

// WaitForContainer waits for a lodge container to be running (up to 30 seconds).
// Component is "redis" or "steward".
func (env *E2EEnvironment) WaitForContainer(component string) {
	fullName := fmt.Sprintf("lodge-%s-%s", component, env.InstanceName)

	for i := 0; i < 30; i++ {
		containers, err := env.DockerClient.ContainerList(env.Ctx, container.ListOptions{All: true})
		if err == nil {
			for _, c := range containers {
				for _, name := range c.Names {
					if name == "/"+fullName && c.State == "running" {
						env.T.Logf("✓ Container %s is running", fullName)
						return
					}
				}
			}
		}
		time.Sleep(1 * time.Second)
	}

	require.Fail(env.T, fmt.Sprintf("Container %s did not start within 30 seconds", fullName))
}

// WaitForTopicHead polls the registry until the topic's chain head reaches
// at least minVersion (up to 60 seconds)
func (env *E2EEnvironment) WaitForTopicHead(topic string, minVersion int) *registry.AuthorityRecord {
	require.NotNil(env.T, env.Registry, "Registry client not initialized - call InitializeRegistryClient first")

	env.T.Logf("Waiting for topic %q to reach v%d...", topic, minVersion)

	for i := 0; i < 60; i++ {
		head, err := env.Registry.TopicHead(env.Ctx, topic)
		if err == nil && head.Version >= minVersion {
			env.T.Logf("✓ Topic %q head: v%d by %s (%s)", topic, head.Version, head.Producer, head.ID)
			return head
		}
		if err != nil && !registry.IsNotFound(err) {
			env.T.Logf("topic head poll: %v", err)
		}

		time.Sleep(1 * time.Second)
	}

	require.Fail(env.T, fmt.Sprintf("Topic %q did not reach v%d within 60 seconds", topic, minVersion))
	return nil
}

// WaitForFile polls for a file relative to the workspace root (up to 30
// seconds). Used for files the steward writes asynchronously, like the
// knowledge manifest.
func (env *E2EEnvironment) WaitForFile(relPath string) {
	filePath := filepath.Join(env.TmpDir, relPath)

	for i := 0; i < 30; i++ {
		if _, err := os.Stat(filePath); err == nil {
			env.T.Logf("✓ File %s exists", relPath)
			return
		}
		time.Sleep(1 * time.Second)
	}

	require.Fail(env.T, fmt.Sprintf("File %s did not appear within 30 seconds", relPath))
}

// VerifyGitCommitExists checks that a commit hash exists in the workspace
func (env *E2EEnvironment) VerifyGitCommitExists(commitHash string) {
	cmd := exec.Command("git", "cat-file", "-e", commitHash)
	cmd.Dir = env.TmpDir
	err := cmd.Run()
	require.NoError(env.T, err, "Git commit %s does not exist", commitHash)
	env.T.Logf("✓ Git commit %s exists", commitHash)
}

// VerifyFileContent checks file content matches expected
func (env *E2EEnvironment) VerifyFileContent(filename string, expectedContent string) {
	filePath := filepath.Join(env.TmpDir, filename)
	content, err := os.ReadFile(filePath)
	require.NoError(env.T, err, "Failed to read file %s", filename)
	require.Contains(env.T, string(content), expectedContent, "File content mismatch")
	env.T.Logf("✓ File %s contains expected content", filename)
}

// VerifyWorkspaceClean checks that Git workspace has no uncommitted changes
func (env *E2EEnvironment) VerifyWorkspaceClean() {
	cmd := exec.Command("git", "status", "--porcelain")
	cmd.Dir = env.TmpDir
	output, err := cmd.Output()
	require.NoError(env.T, err, "Failed to run git status")
	require.Empty(env.T, string(output), "Workspace has uncommitted changes")
	env.T.Logf("✓ Workspace is clean")
}

// CreateDirtyWorkspace creates an uncommitted file to make workspace dirty
func (env *E2EEnvironment) CreateDirtyWorkspace() {
	dirtyFile := filepath.Join(env.TmpDir, "uncommitted.txt")
	require.NoError(env.T, os.WriteFile(dirtyFile, []byte("dirty"), 0644))
	env.T.Logf("✓ Created dirty file: uncommitted.txt")
}

// CommitKnowledgeFile writes a document under the knowledge root and commits
// it, returning the commit hash. Mirrors what a producer does before
// claiming a topic.
func (env *E2EEnvironment) CommitKnowledgeFile(relPath, content, message string) string {
	filePath := filepath.Join(env.TmpDir, relPath)
	require.NoError(env.T, os.MkdirAll(filepath.Dir(filePath), 0755))
	require.NoError(env.T, os.WriteFile(filePath, []byte(content), 0644))

	exec.Command("git", "-C", env.TmpDir, "add", relPath).Run()
	cmd := exec.Command("git", "-C", env.TmpDir, "commit", "-m", message)
	require.NoError(env.T, cmd.Run(), "Failed to commit %s", relPath)

	out, err := exec.Command("git", "-C", env.TmpDir, "rev-parse", "HEAD").Output()
	require.NoError(env.T, err, "Failed to resolve HEAD")
	return strings.TrimSpace(string(out))
}

// DefaultLodgeYML returns a lodge.yml with two producers and default
// coordination thresholds
func DefaultLodgeYML() string {
	return `version: "1.0"
producers:
  code-owner:
    description: "Owns code architecture and service boundary topics"
  product-owner:
    description: "Owns product scope and roadmap topics"
services:
  redis:
    image: redis:7-alpine
`
}

// GetProjectRoot returns the project root directory for building Docker images
func GetProjectRoot() string {
	// Must be called before SetupE2EEnvironment changes into the temp
	// workspace; tests run with the package directory as cwd.
	root, err := os.Getwd()
	if err != nil {
		return "."
	}

	// Walk up until we find go.mod
	for {
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
			return root
		}
		parent := filepath.Dir(root)
		if parent == root {
			// Reached filesystem root, default to current dir
			return "."
		}
		root = parent
	}
}
