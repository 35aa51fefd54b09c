package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowdex/knowdex/pkg/types"
)

func TestWeightTablesSumToOne(t *testing.T) {
	for name, w := range DefaultWeightTables() {
		sum := w.Relevance + w.Authority + w.Recency + w.Popularity + w.Difficulty + w.Seasonality
		assert.InDelta(t, 1.0, sum, 1e-9, "table %q", name)
	}
}

func TestUnknownScenarioFallsBackToDefault(t *testing.T) {
	r := NewMultiSignalRanker()
	assert.Equal(t, r.Weights(ScenarioDefault), r.Weights("no-such-scenario"))
	assert.Equal(t, r.Weights(ScenarioDefault), r.Weights(""))
	assert.NotEqual(t, r.Weights(ScenarioDefault), r.Weights(ScenarioSearch))
}

func TestCustomTableOverlaysDefaults(t *testing.T) {
	custom := SignalWeights{Relevance: 1.0}
	r := NewMultiSignalRankerWithTables(map[string]SignalWeights{"mine": custom})

	assert.Equal(t, custom, r.Weights("mine"))
	assert.Equal(t, DefaultWeightTables()[ScenarioSearch], r.Weights(ScenarioSearch))
}

func TestRankerScoreStaysInUnitInterval(t *testing.T) {
	r := NewMultiSignalRanker()

	c := &types.RankingCandidate{
		Item: types.IndexedItem{
			ID:      "c1",
			Content: "singleton pattern ensures a single shared instance",
			Metadata: types.ItemMetadata{
				Language:  "go",
				UpdatedAt: time.Now(),
			},
		},
		Title:        "Singleton Pattern",
		Triggers:     []string{"singleton"},
		UsageCount:   5000,
		Clicks:       90,
		Impressions:  100,
		QualityScore: 0.9,
		Level:        "expert",
		KeywordScore: 1.0,
	}

	ranked := r.Rank([]*types.RankingCandidate{c}, "singleton", &types.RetrievalContext{
		Scenario:  ScenarioSearch,
		Language:  "go",
		UserLevel: "beginner",
	})

	score := ranked[0].RankerScore
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)

	s := ranked[0].Signals
	for name, v := range map[string]float64{
		"relevance":   s.Relevance,
		"authority":   s.Authority,
		"recency":     s.Recency,
		"popularity":  s.Popularity,
		"difficulty":  s.Difficulty,
		"seasonality": s.Seasonality,
	} {
		assert.GreaterOrEqual(t, v, 0.0, "signal %s", name)
		assert.LessOrEqual(t, v, 1.0, "signal %s", name)
	}
}

func TestRelevanceBoosts(t *testing.T) {
	sig := relevanceSignal{}
	q := NewQuery("singleton")

	base := &types.RankingCandidate{
		Item:         types.IndexedItem{Content: "unrelated text"},
		KeywordScore: 0.2,
	}
	assert.InDelta(t, 0.2, sig.Compute(base, q, nil), 1e-9)

	triggered := &types.RankingCandidate{
		Item:         types.IndexedItem{Content: "unrelated text"},
		Triggers:     []string{"Singleton"},
		KeywordScore: 0.2,
	}
	assert.InDelta(t, 0.6, sig.Compute(triggered, q, nil), 1e-9, "exact trigger match adds 0.4")

	titled := &types.RankingCandidate{
		Item:  types.IndexedItem{Content: "the singleton pattern explained"},
		Title: "Singleton Pattern",
	}
	// title substring 0.3 + all query words in title 0.2 + content substring 0.1
	assert.InDelta(t, 0.6, sig.Compute(titled, q, nil), 1e-9)

	maxed := &types.RankingCandidate{
		Item:         types.IndexedItem{Content: "singleton"},
		Title:        "singleton",
		Triggers:     []string{"singleton"},
		KeywordScore: 1.0,
	}
	assert.Equal(t, 1.0, sig.Compute(maxed, q, nil), "clamped at 1")
}

func TestAuthorityNeutralWithoutSignals(t *testing.T) {
	sig := authoritySignal{}
	empty := &types.RankingCandidate{Item: types.IndexedItem{ID: "x"}}
	assert.Equal(t, 0.5, sig.Compute(empty, Query{}, nil))

	scored := &types.RankingCandidate{QualityScore: 1.0, AuthorityScore: 1.0, UsageCount: 999}
	assert.InDelta(t, 1.0, sig.Compute(scored, Query{}, nil), 1e-9)
}

func TestDifficultyGap(t *testing.T) {
	sig := difficultySignal{}

	tests := []struct {
		candLevel string
		userLevel string
		want      float64
	}{
		{"beginner", "beginner", 1.0},
		{"expert", "beginner", 0.1},
		{"advanced", "intermediate", 0.7},
		{"", "", 1.0},          // both default to intermediate
		{"mystery", "expert", 0.4}, // unknown candidate level reads as intermediate
	}
	for _, tt := range tests {
		c := &types.RankingCandidate{Level: tt.candLevel}
		rctx := &types.RetrievalContext{UserLevel: tt.userLevel}
		assert.InDelta(t, tt.want, sig.Compute(c, Query{}, rctx), 1e-9,
			"candidate %q vs user %q", tt.candLevel, tt.userLevel)
	}
}

func TestSeasonalityPreference(t *testing.T) {
	sig := seasonalitySignal{}

	goItem := &types.RankingCandidate{
		Item: types.IndexedItem{Metadata: types.ItemMetadata{Language: "go", Category: "lint"}},
	}

	assert.Equal(t, 0.8, sig.Compute(goItem, Query{}, &types.RetrievalContext{Language: "go"}))
	assert.Equal(t, 0.6, sig.Compute(goItem, Query{}, &types.RetrievalContext{Language: "rust", Scenario: "lint"}))
	assert.Equal(t, 0.5, sig.Compute(goItem, Query{}, &types.RetrievalContext{Language: "rust"}))
	assert.Equal(t, 0.5, sig.Compute(goItem, Query{}, nil))
}

func TestScenarioChangesOrdering(t *testing.T) {
	r := NewMultiSignalRanker()

	// Relevant but beginner-hostile vs less relevant but level-matched.
	relevant := func() *types.RankingCandidate {
		return &types.RankingCandidate{
			Item:         types.IndexedItem{ID: "relevant", Content: "goroutine leak detection with pprof"},
			Title:        "Goroutine Leak Detection",
			Level:        "expert",
			KeywordScore: 0.9,
		}
	}
	approachable := func() *types.RankingCandidate {
		return &types.RankingCandidate{
			Item:         types.IndexedItem{ID: "approachable", Content: "introduction to goroutines"},
			Title:        "Intro",
			Level:        "beginner",
			KeywordScore: 0.35,
		}
	}

	rctx := func(scenario string) *types.RetrievalContext {
		return &types.RetrievalContext{Scenario: scenario, UserLevel: "beginner"}
	}

	search := r.Rank([]*types.RankingCandidate{relevant(), approachable()}, "goroutine leak detection", rctx(ScenarioSearch))
	require.Equal(t, "relevant", search[0].Item.ID)

	learning := r.Rank([]*types.RankingCandidate{relevant(), approachable()}, "goroutine leak detection", rctx(ScenarioLearning))
	require.Equal(t, "approachable", learning[0].Item.ID,
		"learning scenario weights difficulty enough to flip the order")
}
