package registry

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name to enable
// multiple Lodge instances to safely coexist on a single Redis server.
//
// Key pattern: lodge:{instance_name}:{entity}:{identifier}
// Channel pattern: lodge:{instance_name}:{event_type}_events

// RecordKey returns the Redis key for an authority record.
// Pattern: lodge:{instance_name}:record:{record_id}
func RecordKey(instanceName, recordID string) string {
	return fmt.Sprintf("lodge:%s:record:%s", instanceName, recordID)
}

// TopicChainKey returns the Redis key for a topic's version chain ZSET.
// Members are record IDs, scores are version numbers.
// Pattern: lodge:{instance_name}:topic:{topic}
func TopicChainKey(instanceName, topic string) string {
	return fmt.Sprintf("lodge:%s:topic:%s", instanceName, topic)
}

// GrantKey returns the Redis key for a consultation grant.
// Grants authorize one cross-producer write and expire on their TTL.
// Pattern: lodge:{instance_name}:grant:{topic}:{producer}
func GrantKey(instanceName, topic, producer string) string {
	return fmt.Sprintf("lodge:%s:grant:%s:%s", instanceName, topic, producer)
}

// IntentKey returns the Redis key for a supersede intent marker.
// A live marker means a chain mutation is in flight for the topic.
// Pattern: lodge:{instance_name}:intent:{topic}
func IntentKey(instanceName, topic string) string {
	return fmt.Sprintf("lodge:%s:intent:%s", instanceName, topic)
}

// RecordEventsChannel returns the Pub/Sub channel name for record events.
// Every successful chain append publishes the full record JSON here.
// Pattern: lodge:{instance_name}:record_events
func RecordEventsChannel(instanceName string) string {
	return fmt.Sprintf("lodge:%s:record_events", instanceName)
}

// RecordScanPattern returns the SCAN pattern matching all record keys for an
// instance. Used by listing and short-ID resolution.
func RecordScanPattern(instanceName string) string {
	return fmt.Sprintf("lodge:%s:record:*", instanceName)
}

// TopicScanPattern returns the SCAN pattern matching all topic chain keys for
// an instance.
func TopicScanPattern(instanceName string) string {
	return fmt.Sprintf("lodge:%s:topic:*", instanceName)
}

// IntentScanPattern returns the SCAN pattern matching all intent markers for
// an instance.
func IntentScanPattern(instanceName string) string {
	return fmt.Sprintf("lodge:%s:intent:*", instanceName)
}
