// Package registry provides type-safe Go definitions and Redis schema patterns
// for the Lodge topic registry.
//
// # Overview
//
// The registry is the central shared state system where all Lodge components
// (warden, steward, CLI) interact via well-defined data structures stored in Redis.
// It tracks which producer holds authority over each knowledge topic, so that
// independent producers can avoid writing duplicate or conflicting artifacts.
//
// # Core Concepts
//
// Authority records are immutable assertions of topic ownership. Every claim and
// every supersede is represented as a record with complete provenance via the
// producer, supersedes and superseded_paths fields.
//
// Chains group every record ever written for a topic, ordered by version. The
// highest version is the topic's current head; older versions are never deleted.
//
// Grants record that a consultation authorized a producer to write into a topic
// owned by someone else. They are TTL-bounded and single-use.
//
// Intent markers flag an in-flight chain mutation so the validation gate can
// refuse to bless a half-completed supersede.
//
// # Multi-Instance Support
//
// All Redis keys and Pub/Sub channels are namespaced by instance name to enable
// multiple Lodge instances to safely coexist on a single Redis server without
// interference. Each instance has complete isolation of its data and events.
//
// # Usage Example
//
//	import "github.com/dyluth/lodge/pkg/registry"
//
//	record := &registry.AuthorityRecord{
//		ID:              uuid.New().String(),
//		Topic:           "technical-health",
//		Category:        "general",
//		Version:         1,
//		Producer:        "code-owner",
//		Path:            "general/technical-health.md",
//		Description:     "initial assessment",
//		SupersededPaths: []string{},
//		CreatedAtMs:     time.Now().UnixMilli(),
//	}
//
//	if err := record.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
//	// Append with optimistic concurrency: "" means the topic must be fresh
//	if err := client.AppendRecord(ctx, record, ""); err != nil {
//		log.Fatal(err)
//	}
//
// # Redis Schema
//
// All Redis keys follow the pattern: lodge:{instance_name}:{entity}:{identifier}
//
// Records: lodge:{instance_name}:record:{record_id}
// Chains: lodge:{instance_name}:topic:{topic}
// Grants: lodge:{instance_name}:grant:{topic}:{producer}
// Intents: lodge:{instance_name}:intent:{topic}
//
// Pub/Sub channels: lodge:{instance_name}:record_events
//
// # Design Principles
//
// - Type Safety: All data structures have strong typing with validation methods
// - Immutability: Records are immutable once appended
// - Auditability: Chains preserve full history; supersedes never deletes
// - Isolation: Instance namespacing prevents cross-instance interference
// - No silent retries: concurrency conflicts surface as errors for the caller
package registry
