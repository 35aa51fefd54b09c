package rank

import (
	"sort"
	"time"

	"github.com/knowdex/knowdex/pkg/types"
)

// Scenario names with shipped weight tables.
const (
	ScenarioDefault  = "default"
	ScenarioSearch   = "search"
	ScenarioLint     = "lint"
	ScenarioGenerate = "generate"
	ScenarioLearning = "learning"
)

// SignalWeights is one scenario's weight table. Should sum to 1.
type SignalWeights struct {
	Relevance   float64 `json:"relevance"`
	Authority   float64 `json:"authority"`
	Recency     float64 `json:"recency"`
	Popularity  float64 `json:"popularity"`
	Difficulty  float64 `json:"difficulty"`
	Seasonality float64 `json:"seasonality"`
}

// DefaultWeightTables are the shipped per-scenario weight tables.
func DefaultWeightTables() map[string]SignalWeights {
	return map[string]SignalWeights{
		ScenarioDefault:  {Relevance: 0.30, Authority: 0.15, Recency: 0.15, Popularity: 0.15, Difficulty: 0.10, Seasonality: 0.15},
		ScenarioSearch:   {Relevance: 0.40, Authority: 0.15, Recency: 0.15, Popularity: 0.15, Difficulty: 0.05, Seasonality: 0.10},
		ScenarioLint:     {Relevance: 0.25, Authority: 0.30, Recency: 0.15, Popularity: 0.10, Difficulty: 0.05, Seasonality: 0.15},
		ScenarioGenerate: {Relevance: 0.35, Authority: 0.20, Recency: 0.10, Popularity: 0.15, Difficulty: 0.10, Seasonality: 0.10},
		ScenarioLearning: {Relevance: 0.25, Authority: 0.15, Recency: 0.10, Popularity: 0.10, Difficulty: 0.30, Seasonality: 0.10},
	}
}

// MultiSignalRanker performs the scenario-weighted second ranking pass.
type MultiSignalRanker struct {
	tables map[string]SignalWeights

	relevance   Signal
	authority   Signal
	recency     Signal
	popularity  Signal
	difficulty  Signal
	seasonality Signal
}

// NewMultiSignalRanker creates a ranker with the shipped weight tables.
func NewMultiSignalRanker() *MultiSignalRanker {
	return NewMultiSignalRankerWithTables(nil)
}

// NewMultiSignalRankerWithTables overlays custom weight tables on the
// shipped defaults. The default table always exists.
func NewMultiSignalRankerWithTables(tables map[string]SignalWeights) *MultiSignalRanker {
	merged := DefaultWeightTables()
	for name, w := range tables {
		merged[name] = w
	}
	return &MultiSignalRanker{
		tables:      merged,
		relevance:   relevanceSignal{},
		authority:   authoritySignal{},
		recency:     recencySignal{now: time.Now},
		popularity:  popularitySignal{},
		difficulty:  difficultySignal{},
		seasonality: seasonalitySignal{},
	}
}

// Signals returns the registry of signals by name, for introspection.
func (r *MultiSignalRanker) Signals() map[string]Signal {
	return map[string]Signal{
		r.relevance.Name():   r.relevance,
		r.authority.Name():   r.authority,
		r.recency.Name():     r.recency,
		r.popularity.Name():  r.popularity,
		r.difficulty.Name():  r.difficulty,
		r.seasonality.Name(): r.seasonality,
	}
}

// Weights returns the table for a scenario, resolving unknown names to the
// default table.
func (r *MultiSignalRanker) Weights(scenario string) SignalWeights {
	if w, ok := r.tables[scenario]; ok {
		return w
	}
	return r.tables[ScenarioDefault]
}

// Rank fills each candidate's Signals and RankerScore and returns the slice
// sorted by RankerScore descending. The weight table is selected by the
// context's scenario (or intent); unknown scenarios use the default table.
func (r *MultiSignalRanker) Rank(candidates []*types.RankingCandidate, query string, rctx *types.RetrievalContext) []*types.RankingCandidate {
	q := NewQuery(query)
	weights := r.Weights(rctx.EffectiveScenario())

	for _, c := range candidates {
		signals := types.SignalScores{
			Relevance:   r.relevance.Compute(c, q, rctx),
			Authority:   r.authority.Compute(c, q, rctx),
			Recency:     r.recency.Compute(c, q, rctx),
			Popularity:  r.popularity.Compute(c, q, rctx),
			Difficulty:  r.difficulty.Compute(c, q, rctx),
			Seasonality: r.seasonality.Compute(c, q, rctx),
		}
		c.Signals = signals
		c.RankerScore = weights.Relevance*signals.Relevance +
			weights.Authority*signals.Authority +
			weights.Recency*signals.Recency +
			weights.Popularity*signals.Popularity +
			weights.Difficulty*signals.Difficulty +
			weights.Seasonality*signals.Seasonality
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].RankerScore > candidates[j].RankerScore
	})
	return candidates
}
