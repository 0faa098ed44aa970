package resolver

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/lodge/pkg/registry"
)

func setupResolver(t *testing.T) *registry.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := registry.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func seedRecord(t *testing.T, client *registry.Client, id, topic string) {
	t.Helper()

	record := &registry.AuthorityRecord{
		ID:          id,
		Topic:       topic,
		Category:    registry.DefaultCategory,
		Version:     1,
		Producer:    "code-owner",
		Path:        "general/" + topic + ".md",
		Description: "seed record",
		CreatedAtMs: 1000,
	}
	require.NoError(t, client.AppendRecord(context.Background(), record, ""))
}

func TestResolveRecordID(t *testing.T) {
	ctx := context.Background()

	t.Run("full UUID passes through when it exists", func(t *testing.T) {
		client := setupResolver(t)
		seedRecord(t, client, "550e8400-e29b-41d4-a716-446655440000", "auth-review")

		got, err := ResolveRecordID(ctx, client, "550e8400-e29b-41d4-a716-446655440000")
		require.NoError(t, err)
		assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", got)
	})

	t.Run("full UUID fails when missing", func(t *testing.T) {
		client := setupResolver(t)

		_, err := ResolveRecordID(ctx, client, "550e8400-e29b-41d4-a716-446655440000")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "record not found")
	})

	t.Run("too-short prefix is rejected", func(t *testing.T) {
		client := setupResolver(t)

		_, err := ResolveRecordID(ctx, client, "550e8")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 6 characters")
	})

	t.Run("unique prefix resolves", func(t *testing.T) {
		client := setupResolver(t)
		seedRecord(t, client, "550e8400-e29b-41d4-a716-446655440000", "auth-review")
		seedRecord(t, client, "660e8400-e29b-41d4-a716-446655440000", "pricing-model")

		got, err := ResolveRecordID(ctx, client, "550e84")
		require.NoError(t, err)
		assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", got)
	})

	t.Run("no match", func(t *testing.T) {
		client := setupResolver(t)

		_, err := ResolveRecordID(ctx, client, "ffffff")
		require.Error(t, err)
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("ambiguous prefix", func(t *testing.T) {
		client := setupResolver(t)
		seedRecord(t, client, "550e8400-e29b-41d4-a716-446655440000", "auth-review")
		seedRecord(t, client, "550e8400-aaaa-41d4-a716-446655440000", "pricing-model")

		_, err := ResolveRecordID(ctx, client, "550e84")
		require.Error(t, err)
		assert.True(t, IsAmbiguousError(err))

		var ambiguous *AmbiguousError
		require.ErrorAs(t, err, &ambiguous)
		msg := FormatAmbiguousError(ambiguous)
		assert.Contains(t, msg, "matches 2 records")
		assert.Contains(t, msg, "longer prefix")
	})
}

func TestFormatAmbiguousErrorTruncation(t *testing.T) {
	matches := make([]string, 13)
	for i := range matches {
		matches[i] = strings.Repeat("a", 36)
	}

	msg := FormatAmbiguousError(&AmbiguousError{ShortID: "aaaaaa", Matches: matches})
	assert.Contains(t, msg, "...and 3 more")
}
