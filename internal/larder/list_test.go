package larder

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/lodge/pkg/registry"
)

// setupClient creates a registry client backed by an in-memory Redis.
func setupClient(t *testing.T) *registry.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := registry.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

// seedRecord appends a fresh version-1 record with the given fields.
func seedRecord(t *testing.T, client *registry.Client, topic, producer, path string, createdAtMs int64) *registry.AuthorityRecord {
	t.Helper()

	record := &registry.AuthorityRecord{
		ID:          uuid.New().String(),
		Topic:       topic,
		Category:    registry.DefaultCategory,
		Version:     1,
		Producer:    producer,
		Path:        path,
		Description: "seed record for " + topic,
		CreatedAtMs: createdAtMs,
	}
	require.NoError(t, client.AppendRecord(context.Background(), record, ""))
	return record
}

func TestListRecords(t *testing.T) {
	ctx := context.Background()

	t.Run("empty registry - default format", func(t *testing.T) {
		client := setupClient(t)

		var buf bytes.Buffer
		err := ListRecords(ctx, client, OutputFormatDefault, nil, &buf)
		require.NoError(t, err)

		assert.Contains(t, buf.String(), "No records found for instance 'test-instance'")
	})

	t.Run("empty registry - JSONL format", func(t *testing.T) {
		client := setupClient(t)

		var buf bytes.Buffer
		err := ListRecords(ctx, client, OutputFormatJSONL, nil, &buf)
		require.NoError(t, err)

		assert.Empty(t, buf.String())
	})

	t.Run("single record - default format", func(t *testing.T) {
		client := setupClient(t)
		rec := seedRecord(t, client, "auth-review", "code-owner", "general/auth-review.md", 1000)

		var buf bytes.Buffer
		err := ListRecords(ctx, client, OutputFormatDefault, nil, &buf)
		require.NoError(t, err)

		output := buf.String()
		assert.Contains(t, output, "Authority records for instance 'test-instance'")
		assert.Contains(t, output, rec.ID[:8])
		assert.Contains(t, output, "auth-review")
		assert.Contains(t, output, "code-owner")
		assert.Contains(t, output, "general/auth-review.md")
		assert.Contains(t, output, "1 record found")
	})

	t.Run("records sorted by creation time", func(t *testing.T) {
		client := setupClient(t)
		third := seedRecord(t, client, "topic-c", "code-owner", "general/c.md", 3000)
		first := seedRecord(t, client, "topic-a", "code-owner", "general/a.md", 1000)
		second := seedRecord(t, client, "topic-b", "code-owner", "general/b.md", 2000)

		var buf bytes.Buffer
		err := ListRecords(ctx, client, OutputFormatJSONL, nil, &buf)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)

		var got []string
		for _, line := range lines {
			var rec registry.AuthorityRecord
			require.NoError(t, json.Unmarshal([]byte(line), &rec))
			got = append(got, rec.ID)
		}
		assert.Equal(t, []string{first.ID, second.ID, third.ID}, got)
	})

	t.Run("filters by time window", func(t *testing.T) {
		client := setupClient(t)
		seedRecord(t, client, "topic-old", "code-owner", "general/old.md", 1000)
		kept := seedRecord(t, client, "topic-mid", "code-owner", "general/mid.md", 2000)
		seedRecord(t, client, "topic-new", "code-owner", "general/new.md", 3000)

		var buf bytes.Buffer
		filters := &FilterCriteria{SinceTimestampMs: 1500, UntilTimestampMs: 2500}
		err := ListRecords(ctx, client, OutputFormatJSONL, filters, &buf)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], kept.ID)
	})

	t.Run("filters by topic glob", func(t *testing.T) {
		client := setupClient(t)
		seedRecord(t, client, "auth-review", "code-owner", "general/auth.md", 1000)
		seedRecord(t, client, "auth-rollout", "code-owner", "general/rollout.md", 2000)
		seedRecord(t, client, "pricing-model", "product-owner", "general/pricing.md", 3000)

		var buf bytes.Buffer
		filters := &FilterCriteria{TopicGlob: "auth-*"}
		err := ListRecords(ctx, client, OutputFormatJSONL, filters, &buf)
		require.NoError(t, err)

		output := buf.String()
		assert.Contains(t, output, "auth-review")
		assert.Contains(t, output, "auth-rollout")
		assert.NotContains(t, output, "pricing-model")
	})

	t.Run("filters by producer", func(t *testing.T) {
		client := setupClient(t)
		seedRecord(t, client, "auth-review", "code-owner", "general/auth.md", 1000)
		seedRecord(t, client, "pricing-model", "product-owner", "general/pricing.md", 2000)

		var buf bytes.Buffer
		filters := &FilterCriteria{Producer: "product-owner"}
		err := ListRecords(ctx, client, OutputFormatJSONL, filters, &buf)
		require.NoError(t, err)

		output := buf.String()
		assert.NotContains(t, output, "auth-review")
		assert.Contains(t, output, "pricing-model")
	})

	t.Run("skips malformed records", func(t *testing.T) {
		client := setupClient(t)
		valid := seedRecord(t, client, "auth-review", "code-owner", "general/auth.md", 1000)

		// Manually plant a record hash with a garbled version field.
		malformedKey := registry.RecordKey("test-instance", "malformed-id")
		client.RedisClient().HSet(ctx, malformedKey, "id", "malformed-id", "version", "not-a-number")

		var buf bytes.Buffer
		err := ListRecords(ctx, client, OutputFormatJSONL, nil, &buf)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], valid.ID)
	})

	t.Run("invalid output format", func(t *testing.T) {
		client := setupClient(t)

		var buf bytes.Buffer
		err := ListRecords(ctx, client, OutputFormat("invalid"), nil, &buf)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown output format")
	})
}

func TestListTopics(t *testing.T) {
	ctx := context.Background()

	t.Run("no topics", func(t *testing.T) {
		client := setupClient(t)

		var buf bytes.Buffer
		err := ListTopics(ctx, client, "", "", &buf)
		require.NoError(t, err)

		assert.Contains(t, buf.String(), "No topics found for instance 'test-instance'")
	})

	t.Run("lists topic heads only", func(t *testing.T) {
		client := setupClient(t)
		v1 := seedRecord(t, client, "auth-review", "code-owner", "general/auth-v1.md", 1000)

		v2 := &registry.AuthorityRecord{
			ID:          uuid.New().String(),
			Topic:       "auth-review",
			Category:    registry.DefaultCategory,
			Version:     2,
			Producer:    "code-owner",
			Path:        "general/auth-v2.md",
			Description: "expanded analysis",
			Supersedes:  v1.ID,
			CreatedAtMs: 2000,
		}
		require.NoError(t, client.AppendRecord(ctx, v2, v1.ID))

		var buf bytes.Buffer
		err := ListTopics(ctx, client, "", "", &buf)
		require.NoError(t, err)

		output := buf.String()
		assert.Contains(t, output, "auth-review")
		assert.Contains(t, output, "v2")
		assert.Contains(t, output, "general/auth-v2.md")
		assert.NotContains(t, output, "general/auth-v1.md")
		assert.Contains(t, output, "1 topic found")
	})

	t.Run("filters by producer and category", func(t *testing.T) {
		client := setupClient(t)
		seedRecord(t, client, "auth-review", "code-owner", "general/auth.md", 1000)
		seedRecord(t, client, "pricing-model", "product-owner", "general/pricing.md", 2000)

		var buf bytes.Buffer
		err := ListTopics(ctx, client, "code-owner", "", &buf)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "auth-review")
		assert.NotContains(t, buf.String(), "pricing-model")

		buf.Reset()
		err = ListTopics(ctx, client, "", "no-such-category", &buf)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "No topics found")
	})
}

func TestShowChain(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown topic", func(t *testing.T) {
		client := setupClient(t)

		var buf bytes.Buffer
		err := ShowChain(ctx, client, "no-such-topic", &buf)
		assert.ErrorIs(t, err, registry.ErrTopicNotFound)
	})

	t.Run("renders the chain oldest first with provenance", func(t *testing.T) {
		client := setupClient(t)
		v1 := seedRecord(t, client, "auth-review", "code-owner", "general/auth-v1.md", 1000)

		v2 := &registry.AuthorityRecord{
			ID:              uuid.New().String(),
			Topic:           "auth-review",
			Category:        registry.DefaultCategory,
			Version:         2,
			Producer:        "code-owner",
			Path:            "general/auth-v2.md",
			Description:     "expanded analysis",
			Supersedes:      v1.ID,
			SupersededPaths: []string{"general/auth-v1.md"},
			Reason:          "restructured the assessment",
			CreatedAtMs:     2000,
		}
		require.NoError(t, client.AppendRecord(ctx, v2, v1.ID))

		var buf bytes.Buffer
		err := ShowChain(ctx, client, "auth-review", &buf)
		require.NoError(t, err)

		output := buf.String()
		assert.Contains(t, output, "Chain for topic 'auth-review' (2 versions)")
		assert.Contains(t, output, "reason:   restructured the assessment")
		assert.Contains(t, output, "replaced: general/auth-v1.md")

		// v1 line appears before v2 line.
		assert.Less(t, strings.Index(output, v1.ID[:8]), strings.Index(output, v2.ID[:8]))
	})
}
