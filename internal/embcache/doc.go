// Package embcache caches embedding vectors separately from the item store.
//
// Entries are keyed by item ID and carry the content hash they were computed
// from, so a changed document invalidates its cached vector without any
// explicit delete. The cache keeps a mutex-guarded in-memory map backed by
// an optional on-disk layer with one JSON file per entry, letting vectors
// survive process restarts without re-calling the embedding provider.
//
// Entries expire by TTL. An expired entry is reported as a miss and removed
// from both layers as a side effect of the lookup. When the in-memory entry
// count exceeds the configured maximum, the single oldest entry by creation
// time is evicted.
package embcache
