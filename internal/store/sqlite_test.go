package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowdex/knowdex/pkg/types"
)

func TestSQLiteAdapterRoundTrip(t *testing.T) {
	adapter, err := NewSQLiteAdapter(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer func() { _ = adapter.Close() }()

	ctx := context.Background()

	item := newItem("a", "alpha content", []float32{0.5, -0.5})
	item.ParentID = "docs/alpha.md"
	item.Metadata = types.ItemMetadata{
		SourcePath:   "docs/alpha.md",
		ChunkIndex:   0,
		SectionTitle: "Alpha",
		Tags:         []string{"pattern"},
	}
	require.NoError(t, adapter.SaveItems(ctx, []*types.IndexedItem{
		item,
		newItem("b", "beta content", nil),
	}))

	manifest := types.NewManifest(adapter.Name())
	manifest.Count = 2
	require.NoError(t, adapter.SaveManifest(ctx, manifest))

	items, err := adapter.LoadItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID, "insertion order preserved")
	assert.Equal(t, []float32{0.5, -0.5}, items[0].Vector)
	assert.Equal(t, "docs/alpha.md", items[0].ParentID)
	assert.Equal(t, "Alpha", items[0].Metadata.SectionTitle)
	assert.False(t, items[1].HasVector())

	loaded, err := adapter.LoadManifest(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 2, loaded.Count)
	assert.Equal(t, "sqlite", loaded.StorageAdapter)
}

func TestSQLiteAdapterSnapshotReplaces(t *testing.T) {
	adapter, err := NewSQLiteAdapter(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer func() { _ = adapter.Close() }()

	ctx := context.Background()
	require.NoError(t, adapter.SaveItems(ctx, []*types.IndexedItem{
		newItem("a", "first", nil),
		newItem("b", "second", nil),
	}))
	require.NoError(t, adapter.SaveItems(ctx, []*types.IndexedItem{
		newItem("c", "replacement", nil),
	}))

	items, err := adapter.LoadItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "c", items[0].ID)
}

func TestSQLiteAdapterEmptyDatabase(t *testing.T) {
	adapter, err := NewSQLiteAdapter(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer func() { _ = adapter.Close() }()

	ctx := context.Background()
	items, err := adapter.LoadItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	manifest, err := adapter.LoadManifest(ctx)
	require.NoError(t, err)
	assert.Nil(t, manifest)
}
