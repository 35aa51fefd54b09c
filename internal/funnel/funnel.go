package funnel

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/knowdex/knowdex/internal/embedder"
	"github.com/knowdex/knowdex/internal/index"
	"github.com/knowdex/knowdex/internal/rank"
	"github.com/knowdex/knowdex/internal/store"
	"github.com/knowdex/knowdex/internal/tokenizer"
	"github.com/knowdex/knowdex/pkg/types"
)

const (
	// embedTimeout bounds the query-embedding call; past it the semantic
	// stage falls back to Jaccard similarity.
	embedTimeout = 10 * time.Second

	// Context boost parameters: up to +20% for session-history overlap
	// (saturating at 5 shared tokens) and +10% for a language match.
	historyBoostMax   = 0.2
	historyOverlapCap = 5
	languageBoost     = 0.1
)

// Funnel runs candidates through the staged ranking pipeline.
type Funnel struct {
	embedder embedder.Embedder
	coarse   *rank.CoarseRanker
	multi    *rank.MultiSignalRanker
	cache    *queryCache
	logger   *slog.Logger
}

// Option configures a Funnel.
type Option func(*Funnel)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(f *Funnel) { f.logger = logger }
}

// WithEmbedder enables vector scoring in the semantic stage. Without one,
// the stage uses Jaccard similarity.
func WithEmbedder(emb embedder.Embedder) Option {
	return func(f *Funnel) { f.embedder = emb }
}

// WithRankers replaces the default rankers, e.g. to supply custom weight
// tables.
func WithRankers(coarse *rank.CoarseRanker, multi *rank.MultiSignalRanker) Option {
	return func(f *Funnel) {
		if coarse != nil {
			f.coarse = coarse
		}
		if multi != nil {
			f.multi = multi
		}
	}
}

// WithCache sizes the query-result cache.
func WithCache(size int, ttl time.Duration) Option {
	return func(f *Funnel) { f.cache = newQueryCache(size, ttl) }
}

// New creates a funnel with default rankers and cache.
func New(opts ...Option) *Funnel {
	f := &Funnel{
		coarse: rank.NewCoarseRanker(),
		multi:  rank.NewMultiSignalRanker(),
		cache:  newQueryCache(DefaultCacheSize, DefaultCacheTTL),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Execute runs the staged pipeline and returns candidates ranked best
// first, each carrying its full score breakdown. An empty candidate set
// returns empty immediately; an empty query returns the candidates
// unmodified.
func (f *Funnel) Execute(ctx context.Context, query string, candidates []*types.RankingCandidate, rctx *types.RetrievalContext) []*types.RankingCandidate {
	if len(candidates) == 0 {
		return []*types.RankingCandidate{}
	}
	if query == "" {
		return candidates
	}

	key := cacheKey(query, candidates, rctx)
	if cached, ok := f.cache.get(key); ok {
		return cached
	}

	working := f.keywordStage(query, candidates)
	f.semanticStage(ctx, query, working)
	working = f.coarse.Rank(working)
	working = f.multi.Rank(working, query, rctx)
	working = f.contextStage(working, rctx)

	f.cache.set(key, working)
	return working
}

// InvalidateCache drops all cached query results. Call after an indexing
// run changes the underlying items.
func (f *Funnel) InvalidateCache() {
	f.cache.purge()
}

// CachedQueries returns the number of live cache entries.
func (f *Funnel) CachedQueries() int {
	return f.cache.len()
}

// keywordStage narrows candidates to those matching any query token. Zero
// matches fall back to the full set so a vocabulary mismatch alone never
// empties the result. Either way every surviving candidate gets a keyword
// score.
func (f *Funnel) keywordStage(query string, candidates []*types.RankingCandidate) []*types.RankingCandidate {
	docs := make([]index.Document, len(candidates))
	for i, c := range candidates {
		docs[i] = index.Document{ID: c.Item.ID, Text: c.SearchableText()}
	}

	matched := index.Build(docs).Lookup(query)

	var working []*types.RankingCandidate
	if len(matched) == 0 {
		working = candidates
	} else {
		working = make([]*types.RankingCandidate, len(matched))
		for i, pos := range matched {
			working[i] = candidates[pos]
		}
	}

	queryTokens := tokenizer.Tokenize(query)
	for _, c := range working {
		c.KeywordScore = keywordOverlap(queryTokens, tokenizer.Tokenize(c.SearchableText()))
	}
	return working
}

// keywordOverlap is the fraction of query tokens present in the document
// token set.
func keywordOverlap(queryTokens, docTokens []string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	docSet := make(map[string]struct{}, len(docTokens))
	for _, t := range docTokens {
		docSet[t] = struct{}{}
	}
	matched := 0
	for _, t := range queryTokens {
		if _, ok := docSet[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

// semanticStage scores candidates by stored-vector similarity to the
// embedded query, then sorts by that score. Provider failure, a dimension
// mismatch, or a vectorless candidate all degrade to Jaccard similarity
// between token sets.
func (f *Funnel) semanticStage(ctx context.Context, query string, candidates []*types.RankingCandidate) {
	queryVector := f.embedQuery(ctx, query)
	queryTokens := tokenizer.Tokenize(query)

	for _, c := range candidates {
		vec := c.Item.Vector
		if len(queryVector) > 0 && len(vec) == len(queryVector) {
			c.SemanticScore = clamp01(store.CosineSimilarity(queryVector, vec))
		} else {
			c.SemanticScore = tokenizer.Jaccard(queryTokens, tokenizer.Tokenize(c.Item.Content))
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].SemanticScore > candidates[j].SemanticScore
	})
}

func (f *Funnel) embedQuery(ctx context.Context, query string) []float32 {
	if f.embedder == nil {
		return nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	vec, err := f.embedder.Embed(embedCtx, query)
	if err != nil {
		f.logger.Warn("query embedding failed, using token similarity", "error", err)
		return nil
	}
	return vec
}

// contextStage boosts candidates overlapping recent session history and
// matching the caller's language, then sorts by the boosted score. Without
// any context the stage just mirrors RankerScore into ContextScore.
func (f *Funnel) contextStage(candidates []*types.RankingCandidate, rctx *types.RetrievalContext) []*types.RankingCandidate {
	var historyTokens map[string]struct{}
	language := ""
	if rctx != nil {
		language = rctx.Language
		if len(rctx.SessionHistory) > 0 {
			historyTokens = make(map[string]struct{})
			for _, h := range rctx.SessionHistory {
				for _, t := range tokenizer.Tokenize(h) {
					historyTokens[t] = struct{}{}
				}
			}
		}
	}

	for _, c := range candidates {
		boost := 0.0
		if len(historyTokens) > 0 {
			overlap := 0
			seen := make(map[string]struct{})
			for _, t := range tokenizer.Tokenize(c.SearchableText()) {
				if _, dup := seen[t]; dup {
					continue
				}
				seen[t] = struct{}{}
				if _, ok := historyTokens[t]; ok {
					overlap++
					if overlap == historyOverlapCap {
						break
					}
				}
			}
			boost += historyBoostMax * float64(overlap) / float64(historyOverlapCap)
		}
		if language != "" && c.Item.Metadata.Language == language {
			boost += languageBoost
		}
		c.ContextBoost = boost
		c.ContextScore = c.RankerScore * (1 + boost)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ContextScore > candidates[j].ContextScore
	})
	return candidates
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
