package larder

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/lodge/pkg/registry"
)

// FormatTable writes records as a formatted table to the provided writer.
// The table includes columns: ID, VERSION, TOPIC, PRODUCER, AGE, and PATH
// (truncated). Returns the number of records formatted.
func FormatTable(w io.Writer, records []*registry.AuthorityRecord, instanceName string) int {
	if len(records) == 0 {
		fmt.Fprintf(w, "No records found for instance '%s'\n", instanceName)
		return 0
	}

	fmt.Fprintf(w, "Authority records for instance '%s':\n\n", instanceName)

	fmt.Fprintf(w, "%-10s %-5s %-22s %-18s %-8s %s\n",
		"ID", "VER", "TOPIC", "BY", "AGE", "PATH")
	fmt.Fprintf(w, "%-10s %-5s %-22s %-18s %-8s %s\n",
		"----------", "-----", "----------------------", "------------------", "--------", "----------------------------------------")

	for _, rec := range records {
		fmt.Fprintf(w, "%-10s %-5s %-22s %-18s %-8s %s\n",
			formatID(rec.ID),
			formatVersion(rec.Version),
			formatTopic(rec.Topic),
			formatProducer(rec.Producer),
			formatTimestamp(rec.CreatedAtMs),
			formatPath(rec.Path),
		)
	}

	countMsg := "record"
	if len(records) != 1 {
		countMsg = "records"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(records), countMsg)

	return len(records)
}

// FormatTopics writes topic heads as a formatted table to the provided
// writer. One row per topic: the current head's version, category, owner,
// age, and artifact path.
func FormatTopics(w io.Writer, heads []*registry.AuthorityRecord, instanceName string) int {
	if len(heads) == 0 {
		fmt.Fprintf(w, "No topics found for instance '%s'\n", instanceName)
		return 0
	}

	fmt.Fprintf(w, "Topics for instance '%s':\n\n", instanceName)

	fmt.Fprintf(w, "%-22s %-5s %-14s %-18s %-8s %s\n",
		"TOPIC", "VER", "CATEGORY", "OWNER", "AGE", "PATH")
	fmt.Fprintf(w, "%-22s %-5s %-14s %-18s %-8s %s\n",
		"----------------------", "-----", "--------------", "------------------", "--------", "----------------------------------------")

	for _, head := range heads {
		fmt.Fprintf(w, "%-22s %-5s %-14s %-18s %-8s %s\n",
			formatTopic(head.Topic),
			fmt.Sprintf("v%d", head.Version),
			formatTopic(head.Category),
			formatProducer(head.Producer),
			formatTimestamp(head.CreatedAtMs),
			formatPath(head.Path),
		)
	}

	countMsg := "topic"
	if len(heads) != 1 {
		countMsg = "topics"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(heads), countMsg)

	return len(heads)
}

// FormatChain writes a topic's version chain, oldest first, with the
// supersede provenance under each record that carries one.
func FormatChain(w io.Writer, topic string, chain []*registry.AuthorityRecord) {
	versionMsg := "version"
	if len(chain) != 1 {
		versionMsg = "versions"
	}
	fmt.Fprintf(w, "Chain for topic '%s' (%d %s):\n\n", topic, len(chain), versionMsg)

	for _, rec := range chain {
		fmt.Fprintf(w, "v%-4d %-10s %-18s %-8s %s\n",
			rec.Version,
			formatID(rec.ID),
			formatProducer(rec.Producer),
			formatTimestamp(rec.CreatedAtMs),
			rec.Path,
		)
		if rec.Reason != "" {
			fmt.Fprintf(w, "      reason:   %s\n", rec.Reason)
		}
		for _, p := range rec.SupersededPaths {
			fmt.Fprintf(w, "      replaced: %s\n", p)
		}
	}
}

// FormatJSONL writes records as line-delimited JSON (JSONL) to the provided
// writer. Each record is written as a single JSON object on its own line.
// This format is ideal for streaming and processing with tools like jq.
func FormatJSONL(w io.Writer, records []*registry.AuthorityRecord) error {
	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal record to JSON: %w", err)
		}

		_, err = fmt.Fprintf(w, "%s\n", string(data))
		if err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatSingleJSON writes a single record as pretty-printed JSON to the
// provided writer. Used in get mode to display complete record details.
func FormatSingleJSON(w io.Writer, record *registry.AuthorityRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record to JSON: %w", err)
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}

	fmt.Fprintln(w)

	return nil
}

// formatID truncates a record ID to the first 8 characters for compact display.
func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatTopic truncates long topic and category names for table display.
func formatTopic(name string) string {
	if len(name) > 22 {
		return name[:19] + "..."
	}
	return name
}

// formatPath truncates long paths for table display, keeping the tail so
// the filename stays visible.
func formatPath(p string) string {
	if p == "" {
		return "-"
	}
	if len(p) > 40 {
		return "..." + p[len(p)-37:]
	}
	return p
}

// formatProducer formats the producer field for table display.
// Empty values return "-".
func formatProducer(producer string) string {
	if producer == "" {
		return "-"
	}
	return producer
}

// formatVersion formats the version number for table display.
// Shows "v2", "v3", etc. for superseding records, or "-" for version 1.
func formatVersion(version int) string {
	if version <= 1 {
		return "-"
	}
	return fmt.Sprintf("v%d", version)
}

// formatTimestamp formats Unix timestamp in milliseconds to human-readable time.
// Shows relative time like "2m ago", "1h ago", etc.
func formatTimestamp(timestampMs int64) string {
	if timestampMs == 0 {
		return "-"
	}

	t := time.Unix(timestampMs/1000, (timestampMs%1000)*1000000)
	diff := time.Since(t)

	if diff < time.Minute {
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	} else if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	} else if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	} else {
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
