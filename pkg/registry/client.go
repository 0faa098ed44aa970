package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the registry.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new registry client for the specified instance.
// The client automatically namespaces all keys and channels with the instance name.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: Lodge instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
// Returns an error if Redis is not reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// InstanceName returns the instance this client is scoped to.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// RedisClient exposes the underlying Redis client for SCAN-based listing and
// short-ID resolution. Callers must not write through it.
func (c *Client) RedisClient() *redis.Client {
	return c.rdb
}

// AppendRecord appends a record to its topic chain with optimistic concurrency.
// This is the only write path into a chain: it stores the record hash, adds the
// chain member, and publishes the record event in one transaction.
//
// expectedHeadID is the record ID the caller observed as the topic head (""
// for a fresh topic). If the head has changed by commit time the append fails
// with ErrChainMoved and nothing is written. The error is surfaced, never
// retried here - the caller must re-read the chain and decide.
func (c *Client) AppendRecord(ctx context.Context, record *AuthorityRecord, expectedHeadID string) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	hash, err := RecordToHash(record)
	if err != nil {
		return fmt.Errorf("failed to serialize record: %w", err)
	}

	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record for event: %w", err)
	}

	chainKey := TopicChainKey(c.instanceName, record.Topic)
	recordKey := RecordKey(c.instanceName, record.ID)
	channel := RecordEventsChannel(c.instanceName)

	txf := func(tx *redis.Tx) error {
		// Re-read the head under WATCH. Any concurrent append to this
		// chain between here and EXEC aborts the transaction.
		results, err := tx.ZRevRangeWithScores(ctx, chainKey, 0, 0).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to read topic head: %w", err)
		}

		headID := ""
		headVersion := 0
		if len(results) > 0 {
			headID = results[0].Member.(string)
			headVersion = VersionFromScore(results[0].Score)
		}

		if headID != expectedHeadID {
			return fmt.Errorf("%w: expected head %q, found %q", ErrChainMoved, expectedHeadID, headID)
		}

		// Chain integrity: the new record must extend the chain by exactly
		// one version and point at the head it replaces.
		if record.Version != headVersion+1 {
			return fmt.Errorf("record version %d does not extend chain at version %d", record.Version, headVersion)
		}
		if record.Supersedes != headID {
			return fmt.Errorf("record supersedes %q but chain head is %q", record.Supersedes, headID)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, recordKey, hash)
			pipe.ZAdd(ctx, chainKey, redis.Z{
				Score:  ChainScore(record.Version),
				Member: record.ID,
			})
			pipe.Publish(ctx, channel, recordJSON)
			return nil
		})
		return err
	}

	err = c.rdb.Watch(ctx, txf, chainKey)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: concurrent append committed first", ErrChainMoved)
	}
	return err
}

// GetRecord retrieves an authority record by ID.
// Returns (nil, redis.Nil) if the record doesn't exist.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetRecord(ctx context.Context, recordID string) (*AuthorityRecord, error) {
	key := RecordKey(c.instanceName, recordID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read record from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	record, err := HashToRecord(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize record: %w", err)
	}

	return record, nil
}

// RecordExists checks if a record exists without fetching it.
// More efficient than GetRecord when you only need to check existence.
func (c *Client) RecordExists(ctx context.Context, recordID string) (bool, error) {
	key := RecordKey(c.instanceName, recordID)
	exists, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check record existence: %w", err)
	}
	return exists > 0, nil
}

// TopicHead retrieves the current authoritative record for a topic (the
// highest version in its chain).
// Returns (nil, redis.Nil) if the topic has no chain.
func (c *Client) TopicHead(ctx context.Context, topic string) (*AuthorityRecord, error) {
	key := TopicChainKey(c.instanceName, topic)

	results, err := c.rdb.ZRevRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read topic head: %w", err)
	}

	if len(results) == 0 {
		return nil, redis.Nil
	}

	recordID := results[0].Member.(string)
	record, err := c.GetRecord(ctx, recordID)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("chain for topic %q references missing record %s", topic, recordID)
		}
		return nil, err
	}

	return record, nil
}

// TopicChain retrieves the full version chain for a topic, oldest first.
// Returns (nil, redis.Nil) if the topic has no chain.
func (c *Client) TopicChain(ctx context.Context, topic string) ([]*AuthorityRecord, error) {
	key := TopicChainKey(c.instanceName, topic)

	results, err := c.rdb.ZRangeWithScores(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read topic chain: %w", err)
	}

	if len(results) == 0 {
		return nil, redis.Nil
	}

	chain := make([]*AuthorityRecord, 0, len(results))
	for _, z := range results {
		recordID := z.Member.(string)
		record, err := c.GetRecord(ctx, recordID)
		if err != nil {
			if IsNotFound(err) {
				return nil, fmt.Errorf("chain for topic %q references missing record %s", topic, recordID)
			}
			return nil, err
		}
		chain = append(chain, record)
	}

	return chain, nil
}

// ScanTopics returns the names of all topics with a version chain, sorted
// alphabetically. Uses Redis SCAN to iterate without blocking the server.
func (c *Client) ScanTopics(ctx context.Context) ([]string, error) {
	prefix := TopicChainKey(c.instanceName, "")
	iter := c.rdb.Scan(ctx, 0, TopicScanPattern(c.instanceName), 0).Iterator()

	var topics []string
	for iter.Next(ctx) {
		topics = append(topics, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan topics: %w", err)
	}

	sort.Strings(topics)
	return topics, nil
}

// ScanRecords returns the IDs of all records whose ID starts with the given
// prefix, sorted. An empty prefix matches every record. Supports short-ID
// resolution in the CLI.
func (c *Client) ScanRecords(ctx context.Context, prefix string) ([]string, error) {
	keyPrefix := RecordKey(c.instanceName, "")
	pattern := RecordKey(c.instanceName, prefix) + "*"
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()

	var ids []string
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", err)
	}

	sort.Strings(ids)
	return ids, nil
}

// PutGrant stores a consultation grant authorizing one cross-producer write
// on the topic. The grant expires after ttl.
func (c *Client) PutGrant(ctx context.Context, topic, producer string, directive Directive, ttl time.Duration) error {
	if err := directive.Validate(); err != nil {
		return fmt.Errorf("invalid grant directive: %w", err)
	}

	key := GrantKey(c.instanceName, topic, producer)
	if err := c.rdb.Set(ctx, key, string(directive), ttl).Err(); err != nil {
		return fmt.Errorf("failed to write grant to Redis: %w", err)
	}

	return nil
}

// GetGrant retrieves a live consultation grant without consuming it.
// Returns ("", redis.Nil) if no grant exists.
func (c *Client) GetGrant(ctx context.Context, topic, producer string) (Directive, error) {
	key := GrantKey(c.instanceName, topic, producer)

	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", redis.Nil
		}
		return "", fmt.Errorf("failed to read grant from Redis: %w", err)
	}

	return Directive(val), nil
}

// ConsumeGrant atomically retrieves and deletes a consultation grant.
// Grants are single-use: the claim or supersede that relies on one consumes it.
// Returns ("", redis.Nil) if no grant exists.
func (c *Client) ConsumeGrant(ctx context.Context, topic, producer string) (Directive, error) {
	key := GrantKey(c.instanceName, topic, producer)

	val, err := c.rdb.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", redis.Nil
		}
		return "", fmt.Errorf("failed to consume grant: %w", err)
	}

	return Directive(val), nil
}

// SetIntent marks a chain mutation as in flight for a topic. Returns false if
// another mutation already holds the marker. The marker expires after ttl so
// a crashed writer cannot wedge the topic.
func (c *Client) SetIntent(ctx context.Context, topic, producer string, ttl time.Duration) (bool, error) {
	key := IntentKey(c.instanceName, topic)

	ok, err := c.rdb.SetNX(ctx, key, producer, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set intent marker: %w", err)
	}

	return ok, nil
}

// ClearIntent removes the in-flight marker for a topic.
func (c *Client) ClearIntent(ctx context.Context, topic string) error {
	key := IntentKey(c.instanceName, topic)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to clear intent marker: %w", err)
	}
	return nil
}

// ActiveIntents returns the topics with a live in-flight marker, sorted
// alphabetically. An empty result means no chain mutations are in progress.
func (c *Client) ActiveIntents(ctx context.Context) ([]string, error) {
	prefix := IntentKey(c.instanceName, "")
	iter := c.rdb.Scan(ctx, 0, IntentScanPattern(c.instanceName), 0).Iterator()

	var topics []string
	for iter.Next(ctx) {
		topics = append(topics, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan intent markers: %w", err)
	}

	sort.Strings(topics)
	return topics, nil
}

// Subscription represents an active Pub/Sub subscription to record events.
// Caller must call Close() when done to clean up resources.
// Subscriptions deliver full record objects via the Events() channel.
type Subscription struct {
	events <-chan *AuthorityRecord
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of record events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *AuthorityRecord {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures and other non-fatal issues.
// The subscription continues after errors - messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeRecordEvents subscribes to record append events for this instance.
// Returns a Subscription that delivers full record objects.
// Caller must call subscription.Close() when done.
// Context cancellation also stops the subscription.
//
// Events are delivered on a buffered channel (size 10) to prevent blocking.
// If the subscriber is too slow, events may be dropped by Redis Pub/Sub (at-most-once delivery).
func (c *Client) SubscribeRecordEvents(ctx context.Context) (*Subscription, error) {
	channel := RecordEventsChannel(c.instanceName)
	pubsub := c.rdb.Subscribe(ctx, channel)

	eventsChan := make(chan *AuthorityRecord, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var record AuthorityRecord
				if err := json.Unmarshal([]byte(msg.Payload), &record); err != nil {
					// Send error on error channel, skip message
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal record event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &record:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
