package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowdex/knowdex/pkg/types"
)

func candidate(id string) *types.RankingCandidate {
	return &types.RankingCandidate{
		Item: types.IndexedItem{ID: id, Content: "body"},
	}
}

func TestCoarseRankSortsDescending(t *testing.T) {
	r := NewCoarseRanker()

	weak := candidate("weak")
	strong := candidate("strong")
	strong.KeywordScore = 0.9
	strong.SemanticScore = 0.8

	ranked := r.Rank([]*types.RankingCandidate{weak, strong})
	require.Len(t, ranked, 2)
	assert.Equal(t, "strong", ranked[0].Item.ID)
	assert.Greater(t, ranked[0].CoarseScore, ranked[1].CoarseScore)
}

func TestCoarseScoreStaysInUnitInterval(t *testing.T) {
	r := NewCoarseRanker()

	maxed := &types.RankingCandidate{
		Item: types.IndexedItem{
			ID:      "maxed",
			Content: "line one\nline two\nline three\nline four",
			Metadata: types.ItemMetadata{
				Category:     "patterns",
				Language:     "go",
				Tags:         []string{"design"},
				SectionTitle: "Overview",
				UpdatedAt:    time.Now(),
			},
		},
		Title:         "Everything Set",
		Description:   "complete candidate",
		UsageCount:    100000,
		KeywordScore:  5.0,  // out of range on purpose, must be clamped
		SemanticScore: -2.0, // same
	}

	ranked := r.Rank([]*types.RankingCandidate{maxed})
	score := ranked[0].CoarseScore
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)

	s := ranked[0].CoarseSignals
	assert.Equal(t, 1.0, s.BM25)
	assert.Equal(t, 0.0, s.Semantic)
	assert.InDelta(t, 1.0, s.Quality, 1e-9)
	assert.Equal(t, 1.0, s.Popularity)
}

func TestQualityChecklist(t *testing.T) {
	r := NewCoarseRanker()

	bare := candidate("bare")
	assert.InDelta(t, 0.15, r.quality(bare), 1e-9, "only content present")

	bare.Title = "Titled"
	assert.InDelta(t, 0.30, r.quality(bare), 1e-9)

	bare.Item.Metadata.Tags = []string{"a"}
	assert.InDelta(t, 0.40, r.quality(bare), 1e-9)
}

func TestFreshnessDecay(t *testing.T) {
	r := NewCoarseRanker()
	now := time.Now()
	r.now = func() time.Time { return now }

	assert.Equal(t, 0.5, r.freshness(time.Time{}), "missing timestamp is neutral")
	assert.InDelta(t, 1.0, r.freshness(now), 1e-6)
	assert.InDelta(t, 0.5, r.freshness(now.Add(-180*24*time.Hour)), 1e-6, "half-life at 180 days")
	assert.InDelta(t, 0.25, r.freshness(now.Add(-360*24*time.Hour)), 1e-6)
	assert.Equal(t, 1.0, r.freshness(now.Add(time.Hour)), "future timestamps do not exceed 1")
}

func TestUsagePopularity(t *testing.T) {
	assert.Equal(t, 0.0, usagePopularity(0))
	assert.InDelta(t, 1.0/3.0, usagePopularity(9), 1e-9)
	assert.InDelta(t, 2.0/3.0, usagePopularity(99), 1e-9)
	assert.Equal(t, 1.0, usagePopularity(999))
	assert.Equal(t, 1.0, usagePopularity(10_000_000), "saturates at 1")
}

func TestCoarseRankStableTieBreak(t *testing.T) {
	r := NewCoarseRanker()

	a := candidate("a")
	b := candidate("b")
	ranked := r.Rank([]*types.RankingCandidate{a, b})
	assert.Equal(t, "a", ranked[0].Item.ID, "equal scores keep input order")
}
