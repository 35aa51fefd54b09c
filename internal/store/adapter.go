package store

import (
	"context"

	"github.com/knowdex/knowdex/pkg/types"
)

// Adapter persists the item collection and manifest for a store. Adapters
// receive full snapshots: the store's in-memory state is authoritative during
// a run and flushed as a unit, so a cancelled run leaves the previously
// persisted snapshot intact and re-runnable.
type Adapter interface {
	// Name identifies the adapter in the manifest's storageAdapter field.
	Name() string

	// LoadItems reads the persisted item collection in insertion order.
	// A missing collection returns (nil, nil).
	LoadItems(ctx context.Context) ([]*types.IndexedItem, error)

	// SaveItems replaces the persisted collection with the given snapshot.
	SaveItems(ctx context.Context, items []*types.IndexedItem) error

	// LoadManifest reads the persisted manifest. Missing returns (nil, nil).
	LoadManifest(ctx context.Context) (*types.Manifest, error)

	// SaveManifest replaces the persisted manifest.
	SaveManifest(ctx context.Context, manifest *types.Manifest) error

	// Close releases adapter resources.
	Close() error
}
