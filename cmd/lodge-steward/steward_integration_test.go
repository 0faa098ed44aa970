//go:build integration

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dyluth/lodge/internal/manifest"
	"github.com/dyluth/lodge/internal/steward"
	"github.com/dyluth/lodge/pkg/registry"
)

// setupRedis starts a Redis container for testing.
func setupRedis(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisURL := fmt.Sprintf("redis://%s:%s", host, port.Port())

	cleanup := func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	}

	return redisURL, cleanup
}

// newRegistryClient connects a registry client to the test Redis.
func newRegistryClient(t *testing.T, redisURL string) *registry.Client {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("Failed to parse Redis URL: %v", err)
	}

	client, err := registry.NewClient(opts, "test-instance")
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	return client
}

// TestSteward_UpdatesManifestOnAppend tests the happy path: a record
// appended while the steward is running shows up in the manifest and
// the audit journal.
func TestSteward_UpdatesManifestOnAppend(t *testing.T) {
	redisURL, cleanup := setupRedis(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := newRegistryClient(t, redisURL)
	defer client.Close()

	workspaceDir := t.TempDir()

	// Start steward
	engine := steward.NewEngine(client, workspaceDir, nil)
	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.Run(ctx)
	}()

	// Give steward time to subscribe
	time.Sleep(500 * time.Millisecond)

	// Claim a topic
	record := &registry.AuthorityRecord{
		ID:          uuid.New().String(),
		Topic:       "technical-health",
		Category:    "reports",
		Version:     1,
		Producer:    "code-owner",
		Path:        "reports/technical-health.md",
		Description: "Technical health snapshot",
		CreatedAtMs: time.Now().UnixMilli(),
	}

	if err := client.AppendRecord(ctx, record, ""); err != nil {
		t.Fatalf("Failed to append record: %v", err)
	}

	// Wait for the manifest to pick up the topic (with timeout)
	manifestPath := manifest.FilePath(filepath.Join(workspaceDir, "knowledge"))
	var entry manifest.TopicEntry
	found := false
	for i := 0; i < 20; i++ {
		m, err := manifest.Load(manifestPath)
		if err == nil {
			if e, ok := m.Topics["technical-health"]; ok {
				entry = e
				found = true
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	if !found {
		t.Fatal("Manifest entry was not written within timeout")
	}

	// Verify manifest entry properties
	if entry.RecordID != record.ID {
		t.Errorf("Expected manifest entry for record %s, got %s", record.ID, entry.RecordID)
	}

	if entry.Version != 1 {
		t.Errorf("Expected version 1, got %d", entry.Version)
	}

	if entry.Producer != "code-owner" {
		t.Errorf("Expected producer code-owner, got %s", entry.Producer)
	}

	if entry.Path != "reports/technical-health.md" {
		t.Errorf("Expected path reports/technical-health.md, got %s", entry.Path)
	}

	// Verify the audit journal recorded the event
	auditData, err := os.ReadFile(steward.AuditFilePath(workspaceDir))
	if err != nil {
		t.Fatalf("Failed to read audit journal: %v", err)
	}

	if !strings.Contains(string(auditData), record.ID) {
		t.Errorf("Expected audit journal to mention record %s", record.ID)
	}

	// Stop steward
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Steward returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Steward did not shut down within timeout")
	}
}

// TestSteward_SyncsMissedRecordsOnStartup verifies records appended
// while the steward was down appear in the manifest after the initial
// sync, before any event arrives.
func TestSteward_SyncsMissedRecordsOnStartup(t *testing.T) {
	redisURL, cleanup := setupRedis(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := newRegistryClient(t, redisURL)
	defer client.Close()

	workspaceDir := t.TempDir()

	// Claim a topic before the steward exists
	record := &registry.AuthorityRecord{
		ID:          uuid.New().String(),
		Topic:       "release-process",
		Category:    "guides",
		Version:     1,
		Producer:    "product-owner",
		Path:        "guides/release-process.md",
		Description: "How releases are cut",
		CreatedAtMs: time.Now().UnixMilli(),
	}

	if err := client.AppendRecord(ctx, record, ""); err != nil {
		t.Fatalf("Failed to append record: %v", err)
	}

	// Start steward
	engine := steward.NewEngine(client, workspaceDir, nil)
	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.Run(ctx)
	}()

	// Wait for the initial sync to land (with timeout)
	manifestPath := manifest.FilePath(filepath.Join(workspaceDir, "knowledge"))
	found := false
	for i := 0; i < 20; i++ {
		m, err := manifest.Load(manifestPath)
		if err == nil {
			if _, ok := m.Topics["release-process"]; ok {
				found = true
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	if !found {
		t.Fatal("Initial sync did not pick up the pre-existing record within timeout")
	}

	// Stop steward
	cancel()
	<-errCh
}

// TestSteward_TracksHeadAcrossSupersede verifies the manifest always
// reflects the newest record of a topic's chain.
func TestSteward_TracksHeadAcrossSupersede(t *testing.T) {
	redisURL, cleanup := setupRedis(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := newRegistryClient(t, redisURL)
	defer client.Close()

	workspaceDir := t.TempDir()

	// Start steward
	engine := steward.NewEngine(client, workspaceDir, nil)
	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.Run(ctx)
	}()

	// Give steward time to subscribe
	time.Sleep(500 * time.Millisecond)

	v1 := &registry.AuthorityRecord{
		ID:          uuid.New().String(),
		Topic:       "auth-model",
		Category:    "design",
		Version:     1,
		Producer:    "code-owner",
		Path:        "design/auth-model.md",
		Description: "Authentication model",
		CreatedAtMs: time.Now().UnixMilli(),
	}

	if err := client.AppendRecord(ctx, v1, ""); err != nil {
		t.Fatalf("Failed to append v1: %v", err)
	}

	v2 := &registry.AuthorityRecord{
		ID:              uuid.New().String(),
		Topic:           "auth-model",
		Category:        "design",
		Version:         2,
		Producer:        "code-owner",
		Path:            "design/auth-model-v2.md",
		Description:     "Authentication model",
		Supersedes:      v1.ID,
		SupersededPaths: []string{"design/auth-model.md"},
		Reason:          "OAuth flows replaced the session design",
		CreatedAtMs:     time.Now().UnixMilli(),
	}

	if err := client.AppendRecord(ctx, v2, v1.ID); err != nil {
		t.Fatalf("Failed to append v2: %v", err)
	}

	// Wait for the manifest to show the new head (with timeout)
	manifestPath := manifest.FilePath(filepath.Join(workspaceDir, "knowledge"))
	var entry manifest.TopicEntry
	for i := 0; i < 20; i++ {
		m, err := manifest.Load(manifestPath)
		if err == nil {
			if e, ok := m.Topics["auth-model"]; ok && e.Version == 2 {
				entry = e
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	if entry.Version != 2 {
		t.Fatalf("Manifest did not advance to version 2 within timeout")
	}

	if entry.RecordID != v2.ID {
		t.Errorf("Expected head record %s, got %s", v2.ID, entry.RecordID)
	}

	if entry.Path != "design/auth-model-v2.md" {
		t.Errorf("Expected path design/auth-model-v2.md, got %s", entry.Path)
	}

	// Both events should appear in the audit journal, in order
	auditData, err := os.ReadFile(steward.AuditFilePath(workspaceDir))
	if err != nil {
		t.Fatalf("Failed to read audit journal: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(auditData)), "\n")
	if len(lines) != 2 {
		t.Errorf("Expected 2 audit entries, got %d", len(lines))
	}

	if !strings.Contains(lines[0], v1.ID) || !strings.Contains(lines[1], v2.ID) {
		t.Errorf("Expected audit journal to record v1 then v2")
	}

	// Stop steward
	cancel()
	<-errCh
}

// TestSteward_HealthCheckEndpoint verifies /healthz endpoint works.
func TestSteward_HealthCheckEndpoint(t *testing.T) {
	redisURL, cleanup := setupRedis(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := newRegistryClient(t, redisURL)
	defer client.Close()

	// Start steward
	engine := steward.NewEngine(client, t.TempDir(), nil)
	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.Run(ctx)
	}()

	// Give steward time to start health server
	time.Sleep(500 * time.Millisecond)

	// Call health check endpoint
	resp, err := http.Get("http://localhost:8080/healthz")
	if err != nil {
		t.Fatalf("Failed to call health check: %v", err)
	}
	defer resp.Body.Close()

	// Verify status code
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	// Stop steward
	cancel()
	<-errCh
}

// TestSteward_GracefulShutdown verifies SIGTERM handling.
func TestSteward_GracefulShutdown(t *testing.T) {
	redisURL, cleanup := setupRedis(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := newRegistryClient(t, redisURL)
	defer client.Close()

	// Start steward
	engine := steward.NewEngine(client, t.TempDir(), nil)
	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.Run(ctx)
	}()

	// Give steward time to start
	time.Sleep(500 * time.Millisecond)

	// Cancel context (simulates SIGTERM)
	cancel()

	// Verify steward exits within timeout
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Steward returned error on shutdown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Steward did not shut down within timeout")
	}
}
