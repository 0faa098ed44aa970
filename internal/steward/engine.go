// Package steward implements the lodge-steward daemon engine: it follows
// record events from the registry and keeps the derived workspace files
// current. The registry stays the source of truth; the steward only
// maintains the manifest (knowledge/registry.yml) and the audit journal
// (.lodge/audit.jsonl).
package steward

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/dyluth/lodge/internal/config"
	"github.com/dyluth/lodge/internal/manifest"
	"github.com/dyluth/lodge/pkg/registry"
)

// Engine watches record events and rewrites the derived files on every
// chain mutation.
type Engine struct {
	client        *registry.Client
	instanceName  string
	workspaceDir  string
	knowledgeRoot string
	healthServer  *HealthServer
}

// NewEngine creates a steward engine for the given workspace. A nil
// config falls back to the default knowledge root.
func NewEngine(client *registry.Client, workspaceDir string, cfg *config.LodgeConfig) *Engine {
	knowledgeRoot := config.DefaultKnowledgeRoot
	if cfg != nil {
		knowledgeRoot = cfg.KnowledgeRoot()
	}

	return &Engine{
		client:        client,
		instanceName:  client.InstanceName(),
		workspaceDir:  workspaceDir,
		knowledgeRoot: knowledgeRoot,
		healthServer:  NewHealthServer(client),
	}
}

// manifestPath is the absolute manifest location for this workspace.
func (e *Engine) manifestPath() string {
	return manifest.FilePath(filepath.Join(e.workspaceDir, e.knowledgeRoot))
}

// Run starts the steward engine and blocks until context is cancelled.
// Returns error if the initial sync or the subscription fails.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.healthServer.Start(); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}
	defer e.healthServer.Shutdown(context.Background())

	log.Printf("[Steward] Starting for instance '%s'", e.instanceName)

	// Rewrite the manifest up front so mutations that happened while the
	// steward was down are reflected before the first event arrives.
	if err := manifest.Sync(ctx, e.client, e.manifestPath()); err != nil {
		return fmt.Errorf("failed initial manifest sync: %w", err)
	}
	e.logEvent("manifest_synced", map[string]interface{}{
		"path": e.manifestPath(),
	})

	subscription, err := e.client.SubscribeRecordEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to record events: %w", err)
	}
	defer subscription.Close()

	log.Printf("[Steward] Subscribed to record_events")

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Steward] Shutting down...")
			return nil

		case record, ok := <-subscription.Events():
			if !ok {
				log.Printf("[Steward] Subscription closed")
				return nil
			}

			e.logEvent("record_received", map[string]interface{}{
				"record_id": record.ID,
				"topic":     record.Topic,
				"version":   record.Version,
				"producer":  record.Producer,
			})

			if err := e.processRecord(ctx, record); err != nil {
				log.Printf("[Steward] Error processing record %s: %v", record.ID, err)
				// Continue processing - don't crash on single record failure
			}

		case err, ok := <-subscription.Errors():
			if !ok {
				log.Printf("[Steward] Error channel closed")
				return nil
			}
			log.Printf("[Steward] Subscription error: %v", err)
			// Continue processing - errors are non-fatal
		}
	}
}

// processRecord handles a single record event: append an audit entry and
// rewrite the manifest from the current registry state.
func (e *Engine) processRecord(ctx context.Context, record *registry.AuthorityRecord) error {
	if err := e.appendAudit(record); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	if err := manifest.Sync(ctx, e.client, e.manifestPath()); err != nil {
		return fmt.Errorf("failed to sync manifest: %w", err)
	}

	e.logEvent("derived_files_updated", map[string]interface{}{
		"record_id": record.ID,
		"topic":     record.Topic,
		"manifest":  e.manifestPath(),
	})

	return nil
}

// logEvent logs a structured event in JSON format.
func (e *Engine) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "steward"
	data["event_type"] = eventType
	data["instance"] = e.instanceName

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Steward] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
