// Package rank scores retrieval candidates in two passes.
//
// The coarse ranker is a quality-oriented first pass blending keyword
// relevance, semantic similarity, content quality, freshness, and
// popularity under a single weight set. The multi-signal ranker is a
// scenario-aware second pass: six independent signals, each implemented as
// its own Signal and combined under a per-scenario weight table. Unknown
// scenarios fall back to the default table rather than erroring.
//
// All signal values and both final scores stay within [0,1] as long as the
// weight tables sum to 1.
package rank
