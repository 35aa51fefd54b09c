// Package pipeline orchestrates indexing: scan, chunk, hash-compare, embed,
// upsert.
//
// Documents come from a pull-based Source. Each document is split into
// sections by the chunker, every section gets a content hash, and unchanged
// sections are skipped on incremental runs. Embedding calls go through the
// embedding cache first and run on a bounded worker pool so a large corpus
// cannot flood the provider's rate limits. Provider failures degrade to an
// empty vector for that item; a run never aborts because embeddings are
// unavailable.
//
// Only one run per store may be in flight at a time. Concurrent calls to
// Run fail fast with ErrRunInProgress instead of queueing, which keeps
// manifest updates single-writer.
package pipeline
