// Package manifest maintains the on-disk registry snapshot
// (knowledge/registry.yml): a derived, human-readable index of every
// topic's current head. The Redis registry remains the source of truth;
// the manifest is regenerated from it, never edited in place.
package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dyluth/lodge/pkg/registry"
)

// FileName is the manifest file name inside the knowledge root.
const FileName = "registry.yml"

// Manifest is the registry.yml document: one entry per topic, keyed by
// topic name, describing the current authoritative head.
type Manifest struct {
	Version     string                `yaml:"version"`
	Instance    string                `yaml:"instance"`
	GeneratedAt string                `yaml:"generated_at"`
	Topics      map[string]TopicEntry `yaml:"topics"`
}

// TopicEntry summarizes the current head of one topic.
type TopicEntry struct {
	Version   int    `yaml:"version"`
	Producer  string `yaml:"producer"`
	Category  string `yaml:"category"`
	Path      string `yaml:"path"`
	RecordID  string `yaml:"record_id"`
	UpdatedAt string `yaml:"updated_at"`
}

// FilePath returns the manifest location for a knowledge root.
func FilePath(knowledgeRoot string) string {
	return filepath.Join(knowledgeRoot, FileName)
}

// Build assembles a manifest from the current registry state: every
// topic's head, keyed by topic name.
func Build(ctx context.Context, client *registry.Client) (*Manifest, error) {
	topics, err := client.ScanTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan topics: %w", err)
	}

	m := &Manifest{
		Version:     "1.0",
		Instance:    client.InstanceName(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Topics:      make(map[string]TopicEntry, len(topics)),
	}

	for _, topic := range topics {
		head, err := client.TopicHead(ctx, topic)
		if err != nil {
			return nil, fmt.Errorf("failed to read head of topic %q: %w", topic, err)
		}
		m.Topics[topic] = TopicEntry{
			Version:   head.Version,
			Producer:  head.Producer,
			Category:  head.Category,
			Path:      head.Path,
			RecordID:  head.ID,
			UpdatedAt: time.UnixMilli(head.CreatedAtMs).UTC().Format(time.RFC3339),
		}
	}

	return m, nil
}

// Write serializes the manifest to YAML and writes it atomically.
// The parent directory is created if it does not exist.
func Write(m *Manifest, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	if err := writeFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// Sync rebuilds the manifest from the registry and writes it to path.
func Sync(ctx context.Context, client *registry.Client, path string) error {
	m, err := Build(ctx, client)
	if err != nil {
		return err
	}
	return Write(m, path)
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	return &m, nil
}
