package steward

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dyluth/lodge/pkg/registry"
)

// AuditDirName is the workspace directory holding steward state.
const AuditDirName = ".lodge"

// AuditFileName is the append-only journal of observed record events.
const AuditFileName = "audit.jsonl"

// AuditEntry is one line of the audit journal: a record event as the
// steward observed it.
type AuditEntry struct {
	ObservedAt string `json:"observed_at"`
	RecordID   string `json:"record_id"`
	Topic      string `json:"topic"`
	Version    int    `json:"version"`
	Producer   string `json:"producer"`
	Path       string `json:"path"`
	Supersedes string `json:"supersedes,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// AuditFilePath returns the audit journal location for a workspace.
func AuditFilePath(workspaceDir string) string {
	return filepath.Join(workspaceDir, AuditDirName, AuditFileName)
}

// appendAudit appends one JSONL entry for the record to the workspace
// audit journal, creating the journal and its directory on first use.
func (e *Engine) appendAudit(record *registry.AuthorityRecord) error {
	path := AuditFilePath(e.workspaceDir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}

	entry := AuditEntry{
		ObservedAt: time.Now().UTC().Format(time.RFC3339),
		RecordID:   record.ID,
		Topic:      record.Topic,
		Version:    record.Version,
		Producer:   record.Producer,
		Path:       record.Path,
		Supersedes: record.Supersedes,
		Reason:     record.Reason,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}

	return nil
}
