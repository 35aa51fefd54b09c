package index

import (
	"sort"

	"github.com/knowdex/knowdex/internal/tokenizer"
)

// Document is one searchable unit fed to Build. The index records positions
// into the Build slice, not IDs, so callers map results back themselves.
type Document struct {
	ID   string
	Text string
}

// Index maps tokens to the set of document positions containing them.
type Index struct {
	postings map[string][]int
}

// Build tokenizes every document and constructs the posting lists. Postings
// are stored sorted ascending with one entry per document.
func Build(docs []Document) *Index {
	postings := make(map[string][]int)
	for pos, doc := range docs {
		seen := make(map[string]struct{})
		for _, tok := range tokenizer.Tokenize(doc.Text) {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			postings[tok] = append(postings[tok], pos)
		}
	}
	return &Index{postings: postings}
}

// Lookup returns the union of postings for all query tokens (OR semantics),
// sorted ascending. An empty query returns nil.
func (ix *Index) Lookup(query string) []int {
	tokens := tokenizer.Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	union := make(map[int]struct{})
	for _, tok := range tokens {
		for _, pos := range ix.postings[tok] {
			union[pos] = struct{}{}
		}
	}
	return sortedPositions(union)
}

// LookupAll returns the intersection of postings for all query tokens (AND
// semantics), sorted ascending. Any token with no postings short-circuits to
// an empty result, as does an empty query.
func (ix *Index) LookupAll(query string) []int {
	tokens := tokenizer.Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	var current map[int]struct{}
	for _, tok := range tokens {
		posting := ix.postings[tok]
		if len(posting) == 0 {
			return nil
		}
		if current == nil {
			current = make(map[int]struct{}, len(posting))
			for _, pos := range posting {
				current[pos] = struct{}{}
			}
			continue
		}
		next := make(map[int]struct{})
		for _, pos := range posting {
			if _, ok := current[pos]; ok {
				next[pos] = struct{}{}
			}
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return sortedPositions(current)
}

// Tokens returns the number of distinct tokens indexed.
func (ix *Index) Tokens() int {
	return len(ix.postings)
}

func sortedPositions(set map[int]struct{}) []int {
	if len(set) == 0 {
		return nil
	}
	out := make([]int, 0, len(set))
	for pos := range set {
		out = append(out, pos)
	}
	sort.Ints(out)
	return out
}
