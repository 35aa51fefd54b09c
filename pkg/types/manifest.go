package types

import "time"

// CurrentSchemaVersion is the manifest schema version this code expects.
// A stored manifest with a different version is treated as absent and the
// index is rebuilt from scratch; schemas are never migrated in place.
const CurrentSchemaVersion = 2

// Manifest is the index-level metadata record, one per store.
type Manifest struct {
	SchemaVersion      int       `json:"schemaVersion"`
	IndexVersion       int       `json:"indexVersion"`
	Count              int       `json:"count"`
	UpdatedAt          time.Time `json:"updatedAt,omitzero"`
	EmbeddingModel     string    `json:"embeddingModel,omitempty"`
	EmbeddingDimension int       `json:"embeddingDimension,omitempty"`
	StorageAdapter     string    `json:"storageAdapter,omitempty"`
	LastFullRebuild    time.Time `json:"lastFullRebuild,omitzero"`
}

// NewManifest returns a manifest at the current schema version.
func NewManifest(adapter string) *Manifest {
	return &Manifest{
		SchemaVersion:  CurrentSchemaVersion,
		IndexVersion:   1,
		StorageAdapter: adapter,
	}
}

// Compatible reports whether the manifest was written by the running schema.
func (m *Manifest) Compatible() bool {
	return m != nil && m.SchemaVersion == CurrentSchemaVersion
}
