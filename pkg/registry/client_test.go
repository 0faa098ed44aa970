package registry

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

// newTestRecord builds a valid record extending the given head (nil for a
// fresh topic).
func newTestRecord(topic, producer string, head *AuthorityRecord) *AuthorityRecord {
	record := &AuthorityRecord{
		ID:              uuid.New().String(),
		Topic:           topic,
		Category:        "general",
		Version:         1,
		Producer:        producer,
		Path:            "general/" + topic + ".md",
		Description:     "assessment of " + topic,
		SupersededPaths: []string{},
		CreatedAtMs:     time.Now().UnixMilli(),
	}
	if head != nil {
		record.Version = head.Version + 1
		record.Supersedes = head.ID
	}
	return record
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-instance", client.InstanceName())
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	err := client.Ping(ctx)
	assert.NoError(t, err)
}

func TestAppendRecord(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("appends first record to fresh topic", func(t *testing.T) {
		record := newTestRecord("fresh-topic", "code-owner", nil)

		err := client.AppendRecord(ctx, record, "")
		require.NoError(t, err)

		head, err := client.TopicHead(ctx, "fresh-topic")
		require.NoError(t, err)
		assert.Equal(t, record.ID, head.ID)
		assert.Equal(t, 1, head.Version)
		assert.Equal(t, "", head.Supersedes)
	})

	t.Run("extends chain and repoints head", func(t *testing.T) {
		v1 := newTestRecord("extend-topic", "code-owner", nil)
		require.NoError(t, client.AppendRecord(ctx, v1, ""))

		v2 := newTestRecord("extend-topic", "code-owner", v1)
		require.NoError(t, client.AppendRecord(ctx, v2, v1.ID))

		head, err := client.TopicHead(ctx, "extend-topic")
		require.NoError(t, err)
		assert.Equal(t, v2.ID, head.ID)
		assert.Equal(t, 2, head.Version)
		assert.Equal(t, v1.ID, head.Supersedes)

		// History is preserved
		chain, err := client.TopicChain(ctx, "extend-topic")
		require.NoError(t, err)
		require.Len(t, chain, 2)
		assert.Equal(t, v1.ID, chain[0].ID)
		assert.Equal(t, v2.ID, chain[1].ID)
	})

	t.Run("fails with ErrChainMoved when head changed", func(t *testing.T) {
		v1 := newTestRecord("raced-topic", "code-owner", nil)
		require.NoError(t, client.AppendRecord(ctx, v1, ""))

		// Built against an empty chain that has since gained a head
		stale := newTestRecord("raced-topic", "product-owner", nil)
		err := client.AppendRecord(ctx, stale, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrChainMoved)

		// The losing record must not be written
		exists, err := client.RecordExists(ctx, stale.ID)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("rejects version gaps", func(t *testing.T) {
		v1 := newTestRecord("gap-topic", "code-owner", nil)
		require.NoError(t, client.AppendRecord(ctx, v1, ""))

		skip := newTestRecord("gap-topic", "code-owner", v1)
		skip.Version = 5

		err := client.AppendRecord(ctx, skip, v1.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not extend chain")
	})

	t.Run("rejects mismatched supersedes pointer", func(t *testing.T) {
		v1 := newTestRecord("pointer-topic", "code-owner", nil)
		require.NoError(t, client.AppendRecord(ctx, v1, ""))

		bad := newTestRecord("pointer-topic", "code-owner", v1)
		bad.Supersedes = uuid.New().String()

		err := client.AppendRecord(ctx, bad, v1.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chain head")
	})

	t.Run("rejects invalid record", func(t *testing.T) {
		record := newTestRecord("invalid-topic", "code-owner", nil)
		record.ID = "not-a-uuid"

		err := client.AppendRecord(ctx, record, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid record")
	})

	t.Run("publishes event after append", func(t *testing.T) {
		sub, err := client.SubscribeRecordEvents(ctx)
		require.NoError(t, err)
		defer sub.Close()

		record := newTestRecord("event-topic", "code-owner", nil)
		require.NoError(t, client.AppendRecord(ctx, record, ""))

		select {
		case received := <-sub.Events():
			assert.Equal(t, record.ID, received.ID)
			assert.Equal(t, record.Topic, received.Topic)
		case <-time.After(1 * time.Second):
			t.Fatal("timeout waiting for record event")
		}
	})
}

func TestGetRecord(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("retrieves existing record", func(t *testing.T) {
		record := newTestRecord("get-topic", "code-owner", nil)
		require.NoError(t, client.AppendRecord(ctx, record, ""))

		retrieved, err := client.GetRecord(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, record.ID, retrieved.ID)
		assert.Equal(t, record.Topic, retrieved.Topic)
		assert.Equal(t, record.Producer, retrieved.Producer)
		assert.Equal(t, record.Path, retrieved.Path)
		assert.Equal(t, record.Description, retrieved.Description)
	})

	t.Run("returns redis.Nil for non-existent record", func(t *testing.T) {
		retrieved, err := client.GetRecord(ctx, uuid.New().String())
		assert.Nil(t, retrieved)
		assert.True(t, IsNotFound(err))
	})
}

func TestTopicHead(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("returns redis.Nil for unknown topic", func(t *testing.T) {
		head, err := client.TopicHead(ctx, "never-claimed")
		assert.Nil(t, head)
		assert.True(t, IsNotFound(err))
	})

	t.Run("returns highest version", func(t *testing.T) {
		v1 := newTestRecord("head-topic", "code-owner", nil)
		require.NoError(t, client.AppendRecord(ctx, v1, ""))
		v2 := newTestRecord("head-topic", "code-owner", v1)
		require.NoError(t, client.AppendRecord(ctx, v2, v1.ID))
		v3 := newTestRecord("head-topic", "code-owner", v2)
		require.NoError(t, client.AppendRecord(ctx, v3, v2.ID))

		head, err := client.TopicHead(ctx, "head-topic")
		require.NoError(t, err)
		assert.Equal(t, v3.ID, head.ID)
		assert.Equal(t, 3, head.Version)
	})
}

func TestTopicChain(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("returns redis.Nil for unknown topic", func(t *testing.T) {
		chain, err := client.TopicChain(ctx, "never-claimed")
		assert.Nil(t, chain)
		assert.True(t, IsNotFound(err))
	})

	t.Run("returns chain oldest first", func(t *testing.T) {
		v1 := newTestRecord("chain-topic", "code-owner", nil)
		require.NoError(t, client.AppendRecord(ctx, v1, ""))
		v2 := newTestRecord("chain-topic", "code-owner", v1)
		require.NoError(t, client.AppendRecord(ctx, v2, v1.ID))

		chain, err := client.TopicChain(ctx, "chain-topic")
		require.NoError(t, err)
		require.Len(t, chain, 2)
		assert.Equal(t, 1, chain[0].Version)
		assert.Equal(t, 2, chain[1].Version)
	})
}

func TestScanTopics(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("returns empty for no topics", func(t *testing.T) {
		topics, err := client.ScanTopics(ctx)
		require.NoError(t, err)
		assert.Empty(t, topics)
	})

	t.Run("returns sorted topic names", func(t *testing.T) {
		for _, topic := range []string{"zebra-plan", "alpha-notes", "mid-review"} {
			record := newTestRecord(topic, "code-owner", nil)
			require.NoError(t, client.AppendRecord(ctx, record, ""))
		}

		topics, err := client.ScanTopics(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha-notes", "mid-review", "zebra-plan"}, topics)
	})
}

func TestScanRecords(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("returns empty for no records", func(t *testing.T) {
		ids, err := client.ScanRecords(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("matches by ID prefix", func(t *testing.T) {
		record := newTestRecord("scan-topic", "code-owner", nil)
		require.NoError(t, client.AppendRecord(ctx, record, ""))

		other := newTestRecord("other-topic", "code-owner", nil)
		require.NoError(t, client.AppendRecord(ctx, other, ""))

		ids, err := client.ScanRecords(ctx, record.ID[:8])
		require.NoError(t, err)
		assert.Equal(t, []string{record.ID}, ids)

		all, err := client.ScanRecords(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("no matches for unknown prefix", func(t *testing.T) {
		ids, err := client.ScanRecords(ctx, "zzzzzzzz")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestGrants(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	t.Run("put and get grant", func(t *testing.T) {
		err := client.PutGrant(ctx, "shared-topic", "product-owner", DirectiveCoordinateRequired, time.Hour)
		require.NoError(t, err)

		directive, err := client.GetGrant(ctx, "shared-topic", "product-owner")
		require.NoError(t, err)
		assert.Equal(t, DirectiveCoordinateRequired, directive)
	})

	t.Run("get returns redis.Nil when absent", func(t *testing.T) {
		_, err := client.GetGrant(ctx, "shared-topic", "nobody")
		assert.True(t, IsNotFound(err))
	})

	t.Run("consume is single-use", func(t *testing.T) {
		err := client.PutGrant(ctx, "consume-topic", "product-owner", DirectiveUpdateExisting, time.Hour)
		require.NoError(t, err)

		directive, err := client.ConsumeGrant(ctx, "consume-topic", "product-owner")
		require.NoError(t, err)
		assert.Equal(t, DirectiveUpdateExisting, directive)

		_, err = client.ConsumeGrant(ctx, "consume-topic", "product-owner")
		assert.True(t, IsNotFound(err))
	})

	t.Run("grant expires on TTL", func(t *testing.T) {
		err := client.PutGrant(ctx, "ttl-topic", "product-owner", DirectiveCoordinateRequired, time.Minute)
		require.NoError(t, err)

		mr.FastForward(2 * time.Minute)

		_, err = client.GetGrant(ctx, "ttl-topic", "product-owner")
		assert.True(t, IsNotFound(err))
	})

	t.Run("rejects invalid directive", func(t *testing.T) {
		err := client.PutGrant(ctx, "bad-topic", "product-owner", Directive("bogus"), time.Hour)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid grant directive")
	})
}

func TestIntents(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	t.Run("set, list and clear", func(t *testing.T) {
		ok, err := client.SetIntent(ctx, "busy-topic", "code-owner", 30*time.Second)
		require.NoError(t, err)
		assert.True(t, ok)

		topics, err := client.ActiveIntents(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"busy-topic"}, topics)

		require.NoError(t, client.ClearIntent(ctx, "busy-topic"))

		topics, err = client.ActiveIntents(ctx)
		require.NoError(t, err)
		assert.Empty(t, topics)
	})

	t.Run("second set on same topic fails", func(t *testing.T) {
		ok, err := client.SetIntent(ctx, "contended-topic", "code-owner", 30*time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = client.SetIntent(ctx, "contended-topic", "product-owner", 30*time.Second)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("marker expires on TTL", func(t *testing.T) {
		ok, err := client.SetIntent(ctx, "expiring-topic", "code-owner", 30*time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		mr.FastForward(time.Minute)

		ok, err = client.SetIntent(ctx, "expiring-topic", "product-owner", 30*time.Second)
		require.NoError(t, err)
		assert.True(t, ok, "expired marker should be reclaimable")
	})
}

func TestSubscribeRecordEvents(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("handles multiple subscribers", func(t *testing.T) {
		sub1, err := client.SubscribeRecordEvents(ctx)
		require.NoError(t, err)
		defer sub1.Close()

		sub2, err := client.SubscribeRecordEvents(ctx)
		require.NoError(t, err)
		defer sub2.Close()

		record := newTestRecord("multi-sub-topic", "code-owner", nil)
		require.NoError(t, client.AppendRecord(ctx, record, ""))

		select {
		case received := <-sub1.Events():
			assert.Equal(t, record.ID, received.ID)
		case <-time.After(1 * time.Second):
			t.Fatal("timeout on sub1")
		}

		select {
		case received := <-sub2.Events():
			assert.Equal(t, record.ID, received.ID)
		case <-time.After(1 * time.Second):
			t.Fatal("timeout on sub2")
		}
	})

	t.Run("cleanup on Close", func(t *testing.T) {
		sub, err := client.SubscribeRecordEvents(ctx)
		require.NoError(t, err)

		err = sub.Close()
		assert.NoError(t, err)

		// Calling Close again should be safe
		err = sub.Close()
		assert.NoError(t, err)
	})

	t.Run("cleanup on context cancellation", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)

		sub, err := client.SubscribeRecordEvents(cancelCtx)
		require.NoError(t, err)

		cancel()

		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok, "channel should be closed")
		case <-time.After(1 * time.Second):
			t.Fatal("timeout waiting for channel close")
		}
	})
}

// Instance namespacing tests
func TestInstanceNamespacing_Client(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	defer mr.Close()

	client1, err := NewClient(&redis.Options{Addr: mr.Addr()}, "instance-1")
	require.NoError(t, err)
	defer client1.Close()

	client2, err := NewClient(&redis.Options{Addr: mr.Addr()}, "instance-2")
	require.NoError(t, err)
	defer client2.Close()

	ctx := context.Background()

	t.Run("chains are instance-isolated", func(t *testing.T) {
		record := newTestRecord("shared-name", "code-owner", nil)
		require.NoError(t, client1.AppendRecord(ctx, record, ""))

		head, err := client1.TopicHead(ctx, "shared-name")
		require.NoError(t, err)
		assert.Equal(t, record.ID, head.ID)

		_, err = client2.TopicHead(ctx, "shared-name")
		assert.True(t, IsNotFound(err))
	})

	t.Run("events are instance-isolated", func(t *testing.T) {
		sub2, err := client2.SubscribeRecordEvents(ctx)
		require.NoError(t, err)
		defer sub2.Close()

		record := newTestRecord("isolation-topic", "code-owner", nil)
		require.NoError(t, client1.AppendRecord(ctx, record, ""))

		select {
		case <-sub2.Events():
			t.Fatal("instance-2 should not receive event from instance-1")
		case <-time.After(500 * time.Millisecond):
			// Expected - no event received
		}
	})
}

func TestIsNotFound(t *testing.T) {
	t.Run("returns true for redis.Nil", func(t *testing.T) {
		assert.True(t, IsNotFound(redis.Nil))
	})

	t.Run("returns false for other errors", func(t *testing.T) {
		assert.False(t, IsNotFound(context.Canceled))
		assert.False(t, IsNotFound(nil))
		assert.False(t, IsNotFound(ErrChainMoved))
	})
}
