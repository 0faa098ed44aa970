package registry

import (
	"strconv"
	"testing"

	"github.com/google/uuid"
)

// TestRecordHashRoundTrip tests struct -> hash -> struct conversion
func TestRecordHashRoundTrip(t *testing.T) {
	original := &AuthorityRecord{
		ID:              uuid.New().String(),
		Topic:           "pricing-strategy",
		Category:        "product",
		Version:         3,
		Producer:        "product-owner",
		Path:            "product/pricing-strategy.md",
		Description:     "pricing tiers and discount policy for enterprise accounts",
		Supersedes:      uuid.New().String(),
		SupersededPaths: []string{"product/pricing-v1.md", "product/discounts.md"},
		Reason:          "merged pricing and discount docs after the Q3 review",
		CreatedAtMs:     1712345678901,
	}

	hash, err := RecordToHash(original)
	if err != nil {
		t.Fatalf("RecordToHash failed: %v", err)
	}

	// Simulate the string map Redis returns from HGETALL
	stringHash := make(map[string]string, len(hash))
	for k, v := range hash {
		switch val := v.(type) {
		case string:
			stringHash[k] = val
		case int:
			stringHash[k] = strconv.Itoa(val)
		case int64:
			stringHash[k] = strconv.FormatInt(val, 10)
		default:
			t.Fatalf("unexpected hash value type for field %q: %T", k, v)
		}
	}

	decoded, err := HashToRecord(stringHash)
	if err != nil {
		t.Fatalf("HashToRecord failed: %v", err)
	}

	if decoded.ID != original.ID ||
		decoded.Topic != original.Topic ||
		decoded.Category != original.Category ||
		decoded.Version != original.Version ||
		decoded.Producer != original.Producer ||
		decoded.Path != original.Path ||
		decoded.Description != original.Description ||
		decoded.Supersedes != original.Supersedes ||
		decoded.Reason != original.Reason ||
		decoded.CreatedAtMs != original.CreatedAtMs {
		t.Errorf("round trip mismatch:\n  original: %+v\n  decoded:  %+v", original, decoded)
	}
	if len(decoded.SupersededPaths) != 2 ||
		decoded.SupersededPaths[0] != original.SupersededPaths[0] ||
		decoded.SupersededPaths[1] != original.SupersededPaths[1] {
		t.Errorf("superseded paths mismatch: %v", decoded.SupersededPaths)
	}
}

// TestHashToRecord_NilPathsNormalized tests nil -> empty slice normalization
func TestHashToRecord_NilPathsNormalized(t *testing.T) {
	hash := map[string]string{
		"id":               uuid.New().String(),
		"topic":            "technical-health",
		"category":         "general",
		"version":          "1",
		"producer":         "code-owner",
		"path":             "general/technical-health.md",
		"description":      "initial assessment",
		"supersedes":       "",
		"superseded_paths": "",
		"reason":           "",
		"created_at_ms":    "1700000000000",
	}

	record, err := HashToRecord(hash)
	if err != nil {
		t.Fatalf("HashToRecord failed: %v", err)
	}

	if record.SupersededPaths == nil {
		t.Error("superseded paths should be an empty slice, not nil")
	}
	if len(record.SupersededPaths) != 0 {
		t.Errorf("expected no superseded paths, got %v", record.SupersededPaths)
	}
}

// TestHashToRecord_InvalidVersion tests version parse failure
func TestHashToRecord_InvalidVersion(t *testing.T) {
	hash := map[string]string{
		"id":      uuid.New().String(),
		"topic":   "technical-health",
		"version": "not-a-number",
	}

	if _, err := HashToRecord(hash); err == nil {
		t.Error("expected HashToRecord to fail for unparseable version")
	}
}
