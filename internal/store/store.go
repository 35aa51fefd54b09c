package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/knowdex/knowdex/internal/tokenizer"
	"github.com/knowdex/knowdex/pkg/types"
)

// DefaultTopK is the result limit used when a search request leaves it unset.
const DefaultTopK = 10

// Store is the in-memory working set of indexed items backed by an Adapter.
// Reads may run concurrently with each other and with an in-progress indexing
// run; writes are serialized by the internal lock but never block readers for
// longer than a single item update.
type Store struct {
	mu       sync.RWMutex
	adapter  Adapter
	items    map[string]*types.IndexedItem
	sequence map[string]int // insertion order, for deterministic tie-breaks
	nextSeq  int
	// dimension is the first-seen embedding dimension. Writes with a
	// different dimension are rejected, never truncated or padded.
	dimension int
	manifest  *types.Manifest
	logger    *slog.Logger
	// indexing marks an active pipeline run. The flag lives on the store,
	// not the pipeline, so any two runs over the same store serialize even
	// when each request builds its own pipeline.
	indexing atomic.Bool
}

// TryBeginIndexing marks an indexing run as active on this store. It returns
// false while another run is active, letting concurrent callers fail fast
// instead of interleaving writes.
func (s *Store) TryBeginIndexing() bool {
	return s.indexing.CompareAndSwap(false, true)
}

// EndIndexing clears the marker set by TryBeginIndexing. Must only be called
// after a successful TryBeginIndexing.
func (s *Store) EndIndexing() {
	s.indexing.Store(false)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an empty store on top of the given adapter. No I/O happens
// until Load or Flush is called.
func New(adapter Adapter, opts ...Option) *Store {
	s := &Store{
		adapter:  adapter,
		items:    make(map[string]*types.IndexedItem),
		sequence: make(map[string]int),
		manifest: types.NewManifest(adapterName(adapter)),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func adapterName(a Adapter) string {
	if a == nil {
		return "memory"
	}
	return a.Name()
}

// Load populates in-memory state from durable storage. A missing, corrupt,
// or schema-incompatible index is logged and treated as an empty store; the
// next non-dry-run pipeline execution rebuilds it from scratch. Load never
// fails for recoverable storage problems.
func (s *Store) Load(ctx context.Context) error {
	if s.adapter == nil {
		return nil
	}

	manifest, err := s.adapter.LoadManifest(ctx)
	if err != nil {
		s.logger.Warn("manifest unreadable, starting with empty store", "err", err)
		s.reset()
		return nil
	}
	if manifest != nil && !manifest.Compatible() {
		s.logger.Warn("manifest schema version mismatch, starting with empty store",
			"found", manifest.SchemaVersion, "expected", types.CurrentSchemaVersion)
		s.reset()
		return nil
	}

	items, err := s.adapter.LoadItems(ctx)
	if err != nil {
		s.logger.Warn("item collection unreadable, starting with empty store", "err", err)
		s.reset()
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*types.IndexedItem, len(items))
	s.sequence = make(map[string]int, len(items))
	s.nextSeq = 0
	s.dimension = 0
	if manifest != nil {
		s.manifest = manifest
		s.dimension = manifest.EmbeddingDimension
	}

	for _, item := range items {
		if err := item.Validate(); err != nil {
			s.logger.Warn("skipping invalid persisted item", "err", err)
			continue
		}
		if item.HasVector() {
			if s.dimension == 0 {
				s.dimension = len(item.Vector)
			} else if len(item.Vector) != s.dimension {
				s.logger.Warn("skipping persisted item with mismatched vector",
					"id", item.ID, "len", len(item.Vector), "dimension", s.dimension)
				continue
			}
		}
		s.items[item.ID] = item
		s.sequence[item.ID] = s.nextSeq
		s.nextSeq++
	}

	return nil
}

func (s *Store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*types.IndexedItem)
	s.sequence = make(map[string]int)
	s.nextSeq = 0
	s.dimension = 0
	s.manifest = types.NewManifest(adapterName(s.adapter))
}

// Upsert inserts or replaces a single item. Items with a vector whose length
// differs from the store's first-seen dimension are rejected with
// ErrDimensionMismatch.
func (s *Store) Upsert(item *types.IndexedItem) error {
	if item == nil {
		return fmt.Errorf("%w: nil item", types.ErrItemInvalid)
	}
	if err := item.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item.HasVector() {
		if s.dimension == 0 {
			s.dimension = len(item.Vector)
		} else if len(item.Vector) != s.dimension {
			return fmt.Errorf("%w: item %q has %d, store expects %d",
				types.ErrDimensionMismatch, item.ID, len(item.Vector), s.dimension)
		}
	}

	clone := item.Clone()
	if _, exists := s.items[clone.ID]; !exists {
		s.sequence[clone.ID] = s.nextSeq
		s.nextSeq++
	}
	s.items[clone.ID] = clone
	return nil
}

// ItemError pairs an item id with the error that rejected it.
type ItemError struct {
	ID  string
	Err error
}

// BatchUpsert applies Upsert per item. A failing item never aborts the
// batch; per-item errors are collected and returned alongside the count of
// successful upserts.
func (s *Store) BatchUpsert(items []*types.IndexedItem) (int, []ItemError) {
	var errs []ItemError
	succeeded := 0
	for _, item := range items {
		if err := s.Upsert(item); err != nil {
			id := ""
			if item != nil {
				id = item.ID
			}
			errs = append(errs, ItemError{ID: id, Err: err})
			continue
		}
		succeeded++
	}
	return succeeded, errs
}

// GetByID returns a copy of the stored item or ErrNotFound.
func (s *Store) GetByID(id string) (*types.IndexedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrNotFound, id)
	}
	return item.Clone(), nil
}

// ListIDs returns all item ids in insertion order.
func (s *Store) ListIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.sequence[ids[i]] < s.sequence[ids[j]]
	})
	return ids
}

// Stats summarizes the store's contents.
type Stats struct {
	Count          int `json:"count"`
	HasVectorCount int `json:"hasVectorCount"`
}

// GetStats returns item counts.
func (s *Store) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Count: len(s.items)}
	for _, item := range s.items {
		if item.HasVector() {
			stats.HasVectorCount++
		}
	}
	return stats
}

// Dimension returns the first-seen embedding dimension, 0 if none seen.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// Manifest returns a copy of the current manifest.
func (s *Store) Manifest() types.Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.manifest
}

// UpdateManifest applies fn to the manifest under the write lock and stamps
// count, dimension, and updatedAt from current store state.
func (s *Store) UpdateManifest(fn func(*types.Manifest)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fn != nil {
		fn(s.manifest)
	}
	s.manifest.Count = len(s.items)
	s.manifest.EmbeddingDimension = s.dimension
	s.manifest.UpdatedAt = time.Now().UTC()
	s.manifest.StorageAdapter = adapterName(s.adapter)
}

// QueryResult is one similarity search hit.
type QueryResult struct {
	Item  *types.IndexedItem `json:"item"`
	Score float64            `json:"score"`
}

// Query returns the top-k items by cosine similarity to vector, descending,
// ties broken by original insertion order. Items without embeddings are not
// considered. A query vector whose length differs from the store's dimension
// is an error rather than a silent low-similarity match.
func (s *Store) Query(vector []float32, k int) ([]QueryResult, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = DefaultTopK
	}

	snapshot, sequences := s.snapshot()
	dim := s.Dimension()
	if dim != 0 && len(vector) != dim {
		return nil, fmt.Errorf("%w: query has %d, store expects %d",
			types.ErrDimensionMismatch, len(vector), dim)
	}

	results := make([]QueryResult, 0, len(snapshot))
	for _, item := range snapshot {
		if !item.HasVector() {
			continue
		}
		results = append(results, QueryResult{
			Item:  item,
			Score: CosineSimilarity(vector, item.Vector),
		})
	}

	sortByScore(results, sequences)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// HybridOptions configures HybridSearch.
type HybridOptions struct {
	TopK int
}

// HybridResult is one hybrid search hit with its score breakdown.
type HybridResult struct {
	Item         *types.IndexedItem `json:"item"`
	Score        float64            `json:"score"`
	VectorScore  float64            `json:"vectorScore"`
	KeywordScore float64            `json:"keywordScore"`
}

// Hybrid blend weights. Applied only when a query vector is present;
// otherwise keyword score stands alone.
const (
	hybridVectorWeight  = 0.7
	hybridKeywordWeight = 0.3
)

// HybridSearch blends vector similarity with keyword overlap scoring. With
// an empty query vector it degrades to pure keyword scoring over tokenized
// content, which still returns ranked results whenever any token matches.
func (s *Store) HybridSearch(ctx context.Context, vector []float32, queryText string, opts HybridOptions) ([]HybridResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	snapshot, sequences := s.snapshot()
	if len(snapshot) == 0 {
		return nil, nil
	}

	useVector := len(vector) > 0
	if useVector {
		dim := s.Dimension()
		if dim != 0 && len(vector) != dim {
			return nil, fmt.Errorf("%w: query has %d, store expects %d",
				types.ErrDimensionMismatch, len(vector), dim)
		}
	}

	queryTokens := tokenizer.Tokenize(queryText)

	vectorScores := make([]float64, len(snapshot))
	keywordScores := make([]float64, len(snapshot))

	// Vector and keyword passes are independent; run them concurrently.
	g, _ := errgroup.WithContext(ctx)
	if useVector {
		g.Go(func() error {
			for i, item := range snapshot {
				if item.HasVector() {
					vectorScores[i] = CosineSimilarity(vector, item.Vector)
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		for i, item := range snapshot {
			keywordScores[i] = keywordScore(queryTokens, item.Content)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]HybridResult, 0, len(snapshot))
	for i, item := range snapshot {
		var score float64
		if useVector {
			score = hybridVectorWeight*vectorScores[i] + hybridKeywordWeight*keywordScores[i]
		} else {
			score = keywordScores[i]
		}
		if score <= 0 {
			continue
		}
		results = append(results, HybridResult{
			Item:         item,
			Score:        score,
			VectorScore:  vectorScores[i],
			KeywordScore: keywordScores[i],
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return sequences[results[i].Item.ID] < sequences[results[j].Item.ID]
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Flush persists the current item collection and manifest through the
// adapter. Items are written in insertion order so load round-trips keep
// deterministic tie-breaks.
func (s *Store) Flush(ctx context.Context) error {
	if s.adapter == nil {
		return nil
	}

	snapshot, _ := s.snapshot()
	if err := s.adapter.SaveItems(ctx, snapshot); err != nil {
		return fmt.Errorf("saving item collection: %w", err)
	}

	manifest := s.Manifest()
	if err := s.adapter.SaveManifest(ctx, &manifest); err != nil {
		return fmt.Errorf("saving manifest: %w", err)
	}
	return nil
}

// Close releases the underlying adapter.
func (s *Store) Close() error {
	if s.adapter == nil {
		return nil
	}
	return s.adapter.Close()
}

// snapshot returns the items in insertion order plus the sequence map.
// The returned items are the stored pointers; callers must treat them as
// read-only. Items are only ever replaced wholesale by Upsert, never
// mutated, so concurrent readers observe consistent values.
func (s *Store) snapshot() ([]*types.IndexedItem, map[string]int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*types.IndexedItem, 0, len(s.items))
	sequences := make(map[string]int, len(s.sequence))
	for id, item := range s.items {
		items = append(items, item)
		sequences[id] = s.sequence[id]
	}
	sort.Slice(items, func(i, j int) bool {
		return sequences[items[i].ID] < sequences[items[j].ID]
	})
	return items, sequences
}

func sortByScore(results []QueryResult, sequences map[string]int) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return sequences[results[i].Item.ID] < sequences[results[j].Item.ID]
	})
}

// keywordScore scores an item's content against the query tokens: the
// fraction of query tokens present, with a small bonus per repeated match
// so denser documents edge out sparse ones. Clamped to [0,1].
func keywordScore(queryTokens []string, content string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	counts := make(map[string]int)
	for _, tok := range tokenizer.Tokenize(content) {
		counts[tok]++
	}

	matched := 0
	extra := 0
	for _, tok := range queryTokens {
		n := counts[tok]
		if n > 0 {
			matched++
			extra += n - 1
		}
	}
	if matched == 0 {
		return 0
	}

	score := float64(matched)/float64(len(queryTokens)) + 0.02*float64(extra)
	if score > 1 {
		score = 1
	}
	return score
}
