// Package store implements the durable item store: validated upserts,
// cosine-similarity queries, and hybrid vector+keyword search over indexed
// knowledge items.
//
// Persistence goes through a pluggable Adapter. The default adapter keeps an
// item collection file and a manifest file as JSON under a fixed directory;
// an alternative adapter persists to SQLite using either the CGO or the pure
// Go driver depending on build tags.
//
// Construction performs no I/O. Call Load to populate in-memory state from
// durable storage; tests can construct and use a store without ever loading.
// A missing, corrupt, or schema-incompatible index is treated as an empty
// store and rebuilt on the next pipeline run, never migrated in place.
package store
