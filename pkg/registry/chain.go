package registry

// Version chain utilities
//
// Chains group every authority record ever written for a topic. They are
// stored in Redis as ZSETs (sorted sets) where:
// - Key: lodge:{instance_name}:topic:{topic}
// - Members: record IDs
// - Score: The record's version number (as float64)
//
// The head of a topic is the member with the highest score. Appending a new
// head never removes older members, so the full history survives every
// supersede.

// ChainEntry represents a single version in a topic chain.
type ChainEntry struct {
	RecordID string // UUID of the record
	Version  int    // Version number of this record
}

// ChainScore converts a record version number to a Redis ZSET score.
// Version numbers start at 1 and increment sequentially.
func ChainScore(version int) float64 {
	return float64(version)
}

// VersionFromScore converts a Redis ZSET score back to a record version number.
func VersionFromScore(score float64) int {
	return int(score)
}
