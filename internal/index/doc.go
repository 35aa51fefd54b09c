// Package index implements a transient inverted index mapping tokens to
// document positions. The index is built per search call from a candidate
// set; it is not persisted.
package index
