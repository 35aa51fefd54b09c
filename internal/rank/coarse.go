package rank

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/knowdex/knowdex/pkg/types"
)

// CoarseWeights blends the five first-pass signals. Should sum to 1.
type CoarseWeights struct {
	BM25       float64
	Semantic   float64
	Quality    float64
	Freshness  float64
	Popularity float64
}

// DefaultCoarseWeights is the shipped first-pass weight set.
var DefaultCoarseWeights = CoarseWeights{
	BM25:       0.30,
	Semantic:   0.30,
	Quality:    0.20,
	Freshness:  0.10,
	Popularity: 0.10,
}

const (
	// freshnessHalfLife is the age at which the freshness signal halves.
	freshnessHalfLife = 180 * 24 * time.Hour

	// usageLogCeiling normalizes log-scaled usage: 1000 uses saturate the
	// popularity signal.
	usageLogCeiling = 3.0

	minReasonableLines = 3
	maxReasonableLines = 500
)

// CoarseRanker performs the quality-weighted first ranking pass.
type CoarseRanker struct {
	weights CoarseWeights
	now     func() time.Time
}

// NewCoarseRanker creates a ranker with the default weights.
func NewCoarseRanker() *CoarseRanker {
	return NewCoarseRankerWithWeights(DefaultCoarseWeights)
}

// NewCoarseRankerWithWeights creates a ranker with custom weights.
func NewCoarseRankerWithWeights(w CoarseWeights) *CoarseRanker {
	return &CoarseRanker{weights: w, now: time.Now}
}

// Rank fills each candidate's CoarseSignals and CoarseScore and returns the
// slice sorted by CoarseScore descending. The sort is stable so earlier
// candidates win ties.
func (r *CoarseRanker) Rank(candidates []*types.RankingCandidate) []*types.RankingCandidate {
	for _, c := range candidates {
		signals := types.CoarseSignals{
			BM25:       clamp01(c.KeywordScore),
			Semantic:   clamp01(c.SemanticScore),
			Quality:    r.quality(c),
			Freshness:  r.freshness(c.Item.Metadata.UpdatedAt),
			Popularity: usagePopularity(c.UsageCount),
		}
		c.CoarseSignals = signals
		c.CoarseScore = r.weights.BM25*signals.BM25 +
			r.weights.Semantic*signals.Semantic +
			r.weights.Quality*signals.Quality +
			r.weights.Freshness*signals.Freshness +
			r.weights.Popularity*signals.Popularity
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CoarseScore > candidates[j].CoarseScore
	})
	return candidates
}

// quality is a completeness checklist. The three groups (completeness,
// classification, structure) carry 0.40, 0.30, and 0.30 of the signal.
func (r *CoarseRanker) quality(c *types.RankingCandidate) float64 {
	meta := c.Item.Metadata
	score := 0.0

	// Completeness: 0.40.
	if c.Title != "" {
		score += 0.15
	}
	if strings.TrimSpace(c.Item.Content) != "" {
		score += 0.15
	}
	if c.Description != "" {
		score += 0.10
	}

	// Classification: 0.30.
	if meta.Category != "" {
		score += 0.10
	}
	if meta.Language != "" {
		score += 0.10
	}
	if len(meta.Tags) > 0 {
		score += 0.10
	}

	// Structure: 0.30.
	if meta.SectionTitle != "" {
		score += 0.15
	}
	if lines := strings.Count(c.Item.Content, "\n") + 1; lines >= minReasonableLines && lines <= maxReasonableLines {
		score += 0.15
	}

	return score
}

// freshness decays exponentially with a 180-day half-life. Items without a
// timestamp get the neutral 0.5.
func (r *CoarseRanker) freshness(updatedAt time.Time) float64 {
	return decay(r.now(), updatedAt, freshnessHalfLife)
}

// usagePopularity is log-scaled usage, saturating at 1000 uses.
func usagePopularity(usageCount int) float64 {
	if usageCount <= 0 {
		return 0
	}
	return math.Min(math.Log10(float64(usageCount)+1)/usageLogCeiling, 1.0)
}

// decay computes exp(-ln2 * age/halfLife), the neutral 0.5 for a zero
// timestamp, and 1 for timestamps in the future.
func decay(now, at time.Time, halfLife time.Duration) float64 {
	if at.IsZero() {
		return 0.5
	}
	age := now.Sub(at)
	if age <= 0 {
		return 1.0
	}
	return math.Exp(-math.Ln2 * age.Hours() / halfLife.Hours())
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
