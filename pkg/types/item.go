package types

import (
	"fmt"
	"time"
)

// ItemMetadata describes the provenance and classification of an indexed item.
type ItemMetadata struct {
	SourceType        string    `json:"sourceType,omitempty"`
	SourcePath        string    `json:"sourcePath,omitempty"`
	SourceContentHash string    `json:"sourceContentHash,omitempty"`
	Category          string    `json:"category,omitempty"`
	Module            string    `json:"module,omitempty"`
	ChunkIndex        int       `json:"chunkIndex"`
	SectionTitle      string    `json:"sectionTitle,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt,omitzero"`
	Language          string    `json:"language,omitempty"`
	Tags              []string  `json:"tags,omitempty"`
	Priority          float64   `json:"priority,omitempty"`
	Deprecated        bool      `json:"deprecated,omitempty"`
	Author            string    `json:"author,omitempty"`
	Version           string    `json:"version,omitempty"`
}

// IndexedItem is a unit of retrievable content. The ID is stable across
// re-indexing of the same logical source chunk. Vector is empty when no
// embedding is available; when present its length must equal the store's
// configured embedding dimension.
type IndexedItem struct {
	ID       string       `json:"id"`
	Content  string       `json:"content"`
	Vector   []float32    `json:"vector,omitempty"`
	Metadata ItemMetadata `json:"metadata"`

	// ParentID is a weak back-reference to the unchunked parent document.
	// Lookup only; deleting a parent never cascades.
	ParentID string `json:"parentId,omitempty"`
}

// Validate checks the structural invariants that hold for every stored item.
func (it *IndexedItem) Validate() error {
	if it.ID == "" {
		return fmt.Errorf("%w: missing id", ErrItemInvalid)
	}
	if it.Content == "" {
		return fmt.Errorf("%w: missing content for %q", ErrItemInvalid, it.ID)
	}
	return nil
}

// HasVector reports whether the item carries an embedding.
func (it *IndexedItem) HasVector() bool {
	return len(it.Vector) > 0
}

// Clone returns a deep copy of the item. Vectors and tag slices are copied so
// callers cannot mutate stored state through a returned item.
func (it *IndexedItem) Clone() *IndexedItem {
	dup := *it
	if it.Vector != nil {
		dup.Vector = make([]float32, len(it.Vector))
		copy(dup.Vector, it.Vector)
	}
	if it.Metadata.Tags != nil {
		dup.Metadata.Tags = make([]string, len(it.Metadata.Tags))
		copy(dup.Metadata.Tags, it.Metadata.Tags)
	}
	return &dup
}
