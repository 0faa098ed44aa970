package registry

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Complex fields like arrays
// are JSON-encoded into single hash fields. This provides a balance between
// queryability (individual fields) and flexibility (complex structures).

// RecordToHash converts an AuthorityRecord struct to a Redis hash format.
// Array fields (superseded_paths) are JSON-encoded.
func RecordToHash(r *AuthorityRecord) (map[string]interface{}, error) {
	supersededPathsJSON, err := json.Marshal(r.SupersededPaths)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal superseded paths: %w", err)
	}

	hash := map[string]interface{}{
		"id":               r.ID,
		"topic":            r.Topic,
		"category":         r.Category,
		"version":          r.Version,
		"producer":         r.Producer,
		"path":             r.Path,
		"description":      r.Description,
		"supersedes":       r.Supersedes,
		"superseded_paths": string(supersededPathsJSON),
		"reason":           r.Reason,
		"created_at_ms":    r.CreatedAtMs,
	}

	return hash, nil
}

// HashToRecord converts a Redis hash to an AuthorityRecord struct.
// JSON fields are decoded back to Go types.
func HashToRecord(hash map[string]string) (*AuthorityRecord, error) {
	version, err := strconv.Atoi(hash["version"])
	if err != nil {
		return nil, fmt.Errorf("invalid version field: %w", err)
	}

	var supersededPaths []string
	if supersededPathsJSON := hash["superseded_paths"]; supersededPathsJSON != "" {
		if err := json.Unmarshal([]byte(supersededPathsJSON), &supersededPaths); err != nil {
			return nil, fmt.Errorf("failed to unmarshal superseded_paths: %w", err)
		}
	}

	// Ensure we have an empty slice instead of nil for consistency
	if supersededPaths == nil {
		supersededPaths = []string{}
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	record := &AuthorityRecord{
		ID:              hash["id"],
		Topic:           hash["topic"],
		Category:        hash["category"],
		Version:         version,
		Producer:        hash["producer"],
		Path:            hash["path"],
		Description:     hash["description"],
		Supersedes:      hash["supersedes"],
		SupersededPaths: supersededPaths,
		Reason:          hash["reason"],
		CreatedAtMs:     createdAtMs,
	}

	return record, nil
}
