// Package tokenizer provides the pure text-to-token function shared by
// indexing and keyword scoring, plus a Jaccard similarity helper used as the
// vector-free semantic fallback.
package tokenizer
