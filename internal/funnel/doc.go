// Package funnel composes the four-stage retrieval pipeline.
//
// A query passes through keyword recall, semantic rerank, coarse quality
// ranking, and multi-signal scenario ranking, followed by a context-aware
// boost when session history is available. Every stage operates on the
// previous stage's output and only adds score fields, so the final results
// carry the full per-signal breakdown for callers to display.
//
// The funnel never hard-fails a search: a keyword miss falls back to the
// whole candidate set, and an unavailable embedding provider degrades the
// semantic stage to Jaccard similarity over token sets.
//
// Identical queries against an identical candidate set are served from a
// TTL'd LRU cache.
package funnel
