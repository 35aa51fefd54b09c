// Package chunker splits knowledge documents into indexable sections.
//
// Documents are divided on markdown-style headings so each chunk carries a
// coherent topic, then oversized sections are split again on blank lines to
// respect the size cap. Chunk indexes are assigned in document order and are
// stable for unchanged content, which keeps item IDs stable across re-runs
// of the indexing pipeline.
package chunker
