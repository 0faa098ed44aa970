package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/lodge/pkg/registry"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupClient(t *testing.T) *registry.Client {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := registry.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

func newRecord(topic, producer string) *registry.AuthorityRecord {
	return &registry.AuthorityRecord{
		ID:          uuid.New().String(),
		Topic:       topic,
		Category:    registry.DefaultCategory,
		Version:     1,
		Producer:    producer,
		Path:        "general/" + topic + ".md",
		Description: "notes on " + topic,
		CreatedAtMs: time.Now().UnixMilli(),
	}
}

func TestStreamActivity(t *testing.T) {
	ctx := context.Background()

	t.Run("renders published records until canceled", func(t *testing.T) {
		client := setupClient(t)

		streamCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		var buf bytes.Buffer
		done := make(chan error, 1)
		go func() {
			done <- StreamActivity(streamCtx, client, "test-instance", OutputFormatJSON, &buf)
		}()

		// Give the subscription a moment to land before publishing.
		time.Sleep(100 * time.Millisecond)

		record := newRecord("auth-review", "code-owner")
		require.NoError(t, client.AppendRecord(ctx, record, ""))

		time.Sleep(300 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("stream did not stop on context cancellation")
		}

		var decoded registry.AuthorityRecord
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Equal(t, record.ID, decoded.ID)
		require.Equal(t, "auth-review", decoded.Topic)
	})

	t.Run("default format prints a banner", func(t *testing.T) {
		client := setupClient(t)

		streamCtx, cancel := context.WithCancel(ctx)
		var buf bytes.Buffer
		done := make(chan error, 1)
		go func() {
			done <- StreamActivity(streamCtx, client, "test-instance", OutputFormatDefault, &buf)
		}()

		time.Sleep(100 * time.Millisecond)
		cancel()
		require.NoError(t, <-done)

		require.Contains(t, buf.String(), "Watching instance 'test-instance'")
	})

	t.Run("rejects unknown output format", func(t *testing.T) {
		client := setupClient(t)

		err := StreamActivity(ctx, client, "test-instance", OutputFormat("yaml"), &bytes.Buffer{})
		require.Error(t, err)
	})
}

func TestPollForRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("returns record when already present", func(t *testing.T) {
		client := setupClient(t)

		record := newRecord("auth-review", "code-owner")
		require.NoError(t, client.AppendRecord(ctx, record, ""))

		found, err := PollForRecord(ctx, client, record.ID, 2*time.Second)
		require.NoError(t, err)
		require.Equal(t, record.ID, found.ID)
		require.Equal(t, "auth-review", found.Topic)
	})

	t.Run("returns record appearing mid-poll", func(t *testing.T) {
		client := setupClient(t)

		record := newRecord("pricing-model", "product-owner")

		go func() {
			time.Sleep(300 * time.Millisecond)
			client.AppendRecord(ctx, record, "")
		}()

		found, err := PollForRecord(ctx, client, record.ID, 3*time.Second)
		require.NoError(t, err)
		require.Equal(t, record.ID, found.ID)
	})

	t.Run("times out when record never appears", func(t *testing.T) {
		client := setupClient(t)

		_, err := PollForRecord(ctx, client, uuid.New().String(), 500*time.Millisecond)
		require.Error(t, err)
		require.Contains(t, err.Error(), "timeout waiting for record")
	})

	t.Run("honors context cancellation", func(t *testing.T) {
		client := setupClient(t)

		cancelCtx, cancel := context.WithCancel(ctx)
		go func() {
			time.Sleep(100 * time.Millisecond)
			cancel()
		}()

		_, err := PollForRecord(cancelCtx, client, uuid.New().String(), 10*time.Second)
		require.ErrorIs(t, err, context.Canceled)
	})
}
