package larder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/dyluth/lodge/pkg/registry"
)

// OutputFormat specifies how to format record list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format with truncated paths
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete records as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// FilterCriteria defines filtering options for the larder list command.
// All filters are ANDed together.
type FilterCriteria struct {
	SinceTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	UntilTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	TopicGlob        string // Glob pattern for the topic, empty = no filter
	Producer         string // Exact match on the producer, empty = no filter
}

// matchesFilter returns true if the record matches all filter criteria.
func (fc *FilterCriteria) matchesFilter(rec *registry.AuthorityRecord) bool {
	if fc.SinceTimestampMs > 0 && rec.CreatedAtMs < fc.SinceTimestampMs {
		return false
	}
	if fc.UntilTimestampMs > 0 && rec.CreatedAtMs > fc.UntilTimestampMs {
		return false
	}

	if fc.TopicGlob != "" {
		matched, err := filepath.Match(fc.TopicGlob, rec.Topic)
		if err != nil || !matched {
			return false
		}
	}

	if fc.Producer != "" && rec.Producer != fc.Producer {
		return false
	}

	return true
}

// ListRecords retrieves all authority records for an instance and writes
// them to the provided writer. Uses Redis SCAN to iterate over record keys
// without blocking the server. Applies filter criteria if provided. Sorts
// records by creation time for stable output. Skips malformed records with
// a warning to stderr but continues processing.
func ListRecords(ctx context.Context, client *registry.Client, format OutputFormat, filters *FilterCriteria, w io.Writer) error {
	instanceName := client.InstanceName()
	keyPrefix := registry.RecordKey(instanceName, "")
	iter := client.RedisClient().Scan(ctx, 0, registry.RecordScanPattern(instanceName), 0).Iterator()

	var records []*registry.AuthorityRecord

	for iter.Next(ctx) {
		key := iter.Val()
		recordID := key[len(keyPrefix):]

		record, err := client.GetRecord(ctx, recordID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Skipping malformed record: key=%s (error: %v)\n", key, err)
			continue
		}

		if filters != nil && !filters.matchesFilter(record) {
			continue
		}

		records = append(records, record)
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan records: %w", err)
	}

	// Sort by creation time (oldest first) for chronological output
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAtMs != records[j].CreatedAtMs {
			return records[i].CreatedAtMs < records[j].CreatedAtMs
		}
		return records[i].ID < records[j].ID
	})

	switch format {
	case OutputFormatDefault:
		FormatTable(w, records, instanceName)
	case OutputFormatJSONL:
		if err := FormatJSONL(w, records); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	return nil
}

// ListTopics writes a table of topic heads to the provided writer,
// optionally filtered by owning producer and category. Topics are listed
// alphabetically.
func ListTopics(ctx context.Context, client *registry.Client, producer, category string, w io.Writer) error {
	topics, err := client.ScanTopics(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan topics: %w", err)
	}

	var heads []*registry.AuthorityRecord
	for _, topic := range topics {
		head, err := client.TopicHead(ctx, topic)
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Skipping topic with unreadable head: %s (error: %v)\n", topic, err)
			continue
		}
		if producer != "" && head.Producer != producer {
			continue
		}
		if category != "" && head.Category != category {
			continue
		}
		heads = append(heads, head)
	}

	FormatTopics(w, heads, client.InstanceName())
	return nil
}

// ShowChain writes the full version chain for a topic, oldest first.
// Returns ErrTopicNotFound if the topic has no chain.
func ShowChain(ctx context.Context, client *registry.Client, topic string, w io.Writer) error {
	chain, err := client.TopicChain(ctx, topic)
	if err != nil {
		if registry.IsNotFound(err) {
			return fmt.Errorf("%w: %q", registry.ErrTopicNotFound, topic)
		}
		return fmt.Errorf("failed to read chain for topic %q: %w", topic, err)
	}

	FormatChain(w, topic, chain)
	return nil
}
