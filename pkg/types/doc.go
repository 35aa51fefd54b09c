// Package types defines the shared data model for the knowdex index:
// indexed items, the index manifest, ranking candidates with per-stage
// scores, and the retrieval context passed through the ranking funnel.
package types
