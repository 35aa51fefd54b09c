// Package mcp exposes indexing and retrieval over the Model Context
// Protocol.
//
// Four tools are registered: index_knowledge runs the indexing pipeline
// over a document directory, search_knowledge executes the retrieval
// funnel and returns results with their full per-signal score breakdown,
// get_status reports the manifest and store statistics, and cache_stats
// reports embedding-cache and query-cache counters.
//
// The server speaks stdio; all logging goes to stderr so stdout stays
// clean for the protocol.
package mcp
