// Package embedder provides the embedding-provider collaborator used by the
// indexing pipeline and the retrieval funnel.
//
// Providers implement the Embedder interface over HTTP APIs (OpenAI, Jina)
// or a deterministic local fallback that needs no network. All providers
// honor context cancellation, retry transient failures with exponential
// backoff, and share an in-memory LRU cache keyed by content hash so
// repeated texts are embedded once.
//
// Callers degrade gracefully when a provider fails: the pipeline stores an
// empty vector for the item, the funnel falls back to token-overlap
// similarity. Provider errors never abort an indexing run or a search.
package embedder
