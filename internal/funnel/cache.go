package funnel

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/knowdex/knowdex/pkg/types"
)

// Query cache defaults.
const (
	DefaultCacheSize = 128
	DefaultCacheTTL  = 5 * time.Minute
)

type cacheEntry struct {
	results   []*types.RankingCandidate
	expiresAt time.Time
}

// queryCache memoizes funnel results per query + context + candidate set.
type queryCache struct {
	cache *lru.Cache[string, cacheEntry]
	ttl   time.Duration
	now   func() time.Time
}

func newQueryCache(size int, ttl time.Duration) *queryCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	cache, _ := lru.New[string, cacheEntry](size)
	return &queryCache{cache: cache, ttl: ttl, now: time.Now}
}

func (qc *queryCache) get(key string) ([]*types.RankingCandidate, bool) {
	entry, ok := qc.cache.Get(key)
	if !ok {
		return nil, false
	}
	if qc.now().After(entry.expiresAt) {
		qc.cache.Remove(key)
		return nil, false
	}
	return cloneCandidates(entry.results), true
}

func (qc *queryCache) set(key string, results []*types.RankingCandidate) {
	qc.cache.Add(key, cacheEntry{
		results:   cloneCandidates(results),
		expiresAt: qc.now().Add(qc.ttl),
	})
}

func (qc *queryCache) purge() {
	qc.cache.Purge()
}

func (qc *queryCache) len() int {
	return qc.cache.Len()
}

// cacheKey hashes the query together with everything else that influences
// the result: the ranking context and the candidate set.
func cacheKey(query string, candidates []*types.RankingCandidate, rctx *types.RetrievalContext) string {
	var b strings.Builder
	b.WriteString(query)
	b.WriteByte('\n')
	if rctx != nil {
		b.WriteString(rctx.Scenario)
		b.WriteByte('|')
		b.WriteString(rctx.Intent)
		b.WriteByte('|')
		b.WriteString(rctx.Language)
		b.WriteByte('|')
		b.WriteString(rctx.UserLevel)
		b.WriteByte('|')
		b.WriteString(strings.Join(rctx.SessionHistory, "|"))
	}
	b.WriteByte('\n')
	for _, c := range candidates {
		b.WriteString(c.Item.ID)
		b.WriteByte('|')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// cloneCandidates copies candidate structs so callers and later stages
// cannot mutate cached results. Slices inside the item are shared and
// treated as read-only.
func cloneCandidates(candidates []*types.RankingCandidate) []*types.RankingCandidate {
	dup := make([]*types.RankingCandidate, len(candidates))
	for i, c := range candidates {
		cc := *c
		dup[i] = &cc
	}
	return dup
}
