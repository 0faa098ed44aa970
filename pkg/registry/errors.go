package registry

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

// Coordination error kinds
//
// These sentinels are the contract between the registry, the warden and the
// CLI. Callers match them with errors.Is; the warden wraps them with
// topic/producer detail. None of them is ever retried automatically - a
// failed coordination call halts the caller.

var (
	// ErrTopicNotFound indicates an operation referenced a topic with no
	// version chain in the registry.
	ErrTopicNotFound = errors.New("topic not found")

	// ErrTopicLocked indicates a write was attempted on a topic whose head
	// is owned by a different producer, without a consultation grant.
	ErrTopicLocked = errors.New("topic is locked by another producer")

	// ErrStaleSupersede indicates a supersede was built against chain state
	// that is no longer current (old paths not in the chain, or the head
	// moved between read and write).
	ErrStaleSupersede = errors.New("supersede is stale against the current chain")

	// ErrWorkspaceInconsistent indicates the validation gate found the
	// registry unreadable or a chain mutation in flight.
	ErrWorkspaceInconsistent = errors.New("workspace is inconsistent")

	// ErrChainMoved indicates an optimistic chain append lost the race: the
	// topic head changed between the caller's read and the write.
	ErrChainMoved = errors.New("topic chain moved during append")

	// ErrUnknownProducer indicates a producer identity not declared in
	// lodge.yml.
	ErrUnknownProducer = errors.New("unknown producer")
)

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
// Use this to check if GetRecord, TopicHead, or GetGrant returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
