package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowdex/knowdex/pkg/types"
)

func newItem(id, content string, vector []float32) *types.IndexedItem {
	return &types.IndexedItem{
		ID:      id,
		Content: content,
		Vector:  vector,
	}
}

func TestUpsertValidation(t *testing.T) {
	s := New(nil)

	err := s.Upsert(&types.IndexedItem{Content: "no id"})
	assert.ErrorIs(t, err, types.ErrItemInvalid)

	err = s.Upsert(&types.IndexedItem{ID: "x"})
	assert.ErrorIs(t, err, types.ErrItemInvalid)

	err = s.Upsert(nil)
	assert.ErrorIs(t, err, types.ErrItemInvalid)

	require.NoError(t, s.Upsert(newItem("x", "content", nil)))
	assert.Equal(t, 1, s.GetStats().Count)
}

func TestUpsertDimensionGuard(t *testing.T) {
	s := New(nil)

	require.NoError(t, s.Upsert(newItem("a", "first", []float32{1, 0, 0})))
	assert.Equal(t, 3, s.Dimension())

	err := s.Upsert(newItem("b", "second", []float32{1, 0}))
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)

	// Vector-less items are always accepted.
	require.NoError(t, s.Upsert(newItem("c", "third", nil)))

	stats := s.GetStats()
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 1, stats.HasVectorCount)
}

func TestBatchUpsertContinuesOnFailure(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Upsert(newItem("seed", "seed", []float32{1, 0})))

	succeeded, errs := s.BatchUpsert([]*types.IndexedItem{
		newItem("a", "ok", []float32{0, 1}),
		newItem("bad", "wrong dimension", []float32{0, 1, 2}),
		newItem("b", "also ok", nil),
	})

	assert.Equal(t, 2, succeeded)
	require.Len(t, errs, 1)
	assert.Equal(t, "bad", errs[0].ID)
	assert.ErrorIs(t, errs[0].Err, types.ErrDimensionMismatch)
	assert.Equal(t, 3, s.GetStats().Count)
}

func TestGetByID(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Upsert(newItem("x", "content", []float32{1, 2})))

	got, err := s.GetByID("x")
	require.NoError(t, err)
	assert.Equal(t, "content", got.Content)

	// Mutating the returned copy must not touch the stored item.
	got.Vector[0] = 99
	again, err := s.GetByID("x")
	require.NoError(t, err)
	assert.Equal(t, float32(1), again.Vector[0])

	_, err = s.GetByID("missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestQueryTopKOrdering(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Upsert(newItem("far", "far", []float32{0, 1})))
	require.NoError(t, s.Upsert(newItem("near", "near", []float32{1, 0.1})))
	require.NoError(t, s.Upsert(newItem("exact", "exact", []float32{1, 0})))
	require.NoError(t, s.Upsert(newItem("novector", "plain", nil)))

	results, err := s.Query([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].Item.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "near", results[1].Item.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestQueryTieBreakInsertionOrder(t *testing.T) {
	s := New(nil)
	// Identical vectors tie exactly; insertion order decides.
	require.NoError(t, s.Upsert(newItem("second", "b", []float32{1, 1})))
	require.NoError(t, s.Upsert(newItem("third", "c", []float32{1, 1})))

	results, err := s.Query([]float32{1, 1}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "second", results[0].Item.ID)
	assert.Equal(t, "third", results[1].Item.ID)
}

func TestQueryDimensionMismatchErrors(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Upsert(newItem("a", "content", []float32{1, 0, 0})))

	_, err := s.Query([]float32{1, 0}, 5)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestQueryEmptyVector(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Upsert(newItem("a", "content", []float32{1, 0})))

	results, err := s.Query(nil, 5)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestCosineSimilarity(t *testing.T) {
	v := []float32{0.3, 0.5, 0.2}
	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity(v, []float32{0, 0, 0}))
	assert.Equal(t, 0.0, CosineSimilarity(v, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
}

func TestSerializeVectorRoundTrip(t *testing.T) {
	v := []float32{0.25, -1.5, 3.0, 0}
	assert.Equal(t, v, DeserializeVector(SerializeVector(v)))
	assert.Nil(t, DeserializeVector(nil))
}

func TestHybridSearchKeywordFallback(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Upsert(newItem("x", "singleton pattern for shared instance", nil)))
	require.NoError(t, s.Upsert(newItem("y", "factory method for object creation", nil)))

	results, err := s.HybridSearch(context.Background(), nil, "singleton shared", HybridOptions{TopK: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "x", results[0].Item.ID)
	assert.Greater(t, results[0].KeywordScore, 0.0)
}

func TestHybridSearchBlendsVectorAndKeyword(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Upsert(newItem("vec", "unrelated words here", []float32{1, 0})))
	require.NoError(t, s.Upsert(newItem("kw", "matching query words", []float32{0, 1})))

	results, err := s.HybridSearch(context.Background(), []float32{1, 0}, "matching query", HybridOptions{TopK: 5})
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		switch r.Item.ID {
		case "vec":
			assert.InDelta(t, 1.0, r.VectorScore, 1e-9)
			assert.Equal(t, 0.0, r.KeywordScore)
		case "kw":
			assert.Equal(t, 0.0, r.VectorScore)
			assert.Greater(t, r.KeywordScore, 0.0)
		}
	}
	// 0.7 weight on a perfect vector match beats 0.3 weight on keywords.
	assert.Equal(t, "vec", results[0].Item.ID)
}

func TestHybridSearchNoMatches(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Upsert(newItem("x", "some content", nil)))

	results, err := s.HybridSearch(context.Background(), nil, "zzz qqq", HybridOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestListIDsInsertionOrder(t *testing.T) {
	s := New(nil)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Upsert(newItem(fmt.Sprintf("id-%d", i), "content", nil)))
	}
	assert.Equal(t, []string{"id-0", "id-1", "id-2", "id-3", "id-4"}, s.ListIDs())

	// Re-upserting keeps the original position.
	require.NoError(t, s.Upsert(newItem("id-1", "updated", nil)))
	assert.Equal(t, []string{"id-0", "id-1", "id-2", "id-3", "id-4"}, s.ListIDs())
}

func TestUpdateManifestStampsState(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Upsert(newItem("a", "content", []float32{1, 0, 0})))

	s.UpdateManifest(func(m *types.Manifest) {
		m.IndexVersion++
		m.EmbeddingModel = "test-model"
	})

	m := s.Manifest()
	assert.Equal(t, 2, m.IndexVersion)
	assert.Equal(t, 1, m.Count)
	assert.Equal(t, 3, m.EmbeddingDimension)
	assert.Equal(t, "test-model", m.EmbeddingModel)
	assert.False(t, m.UpdatedAt.IsZero())
}

func TestTryBeginIndexingExcludes(t *testing.T) {
	s := New(nil)

	require.True(t, s.TryBeginIndexing())
	assert.False(t, s.TryBeginIndexing(), "second run over the same store must fail fast")

	s.EndIndexing()
	assert.True(t, s.TryBeginIndexing())
	s.EndIndexing()
}
