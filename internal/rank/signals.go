package rank

import (
	"math"
	"strings"
	"time"

	"github.com/knowdex/knowdex/pkg/types"
)

// Query is the pre-tokenized query shared by all signals of one ranking
// call.
type Query struct {
	Text  string
	Lower string
	Words []string
}

// NewQuery prepares a query for signal computation.
func NewQuery(text string) Query {
	lower := strings.ToLower(strings.TrimSpace(text))
	return Query{
		Text:  text,
		Lower: lower,
		Words: strings.Fields(lower),
	}
}

// Signal computes one independent ranking dimension in [0,1].
type Signal interface {
	Name() string
	Compute(c *types.RankingCandidate, q Query, rctx *types.RetrievalContext) float64
}

// recencyHalfLife is shorter than the coarse freshness half-life; the
// second pass cares about what changed this quarter.
const recencyHalfLife = 90 * 24 * time.Hour

// Relevance boosts lexical matches against triggers, title, and content on
// top of the keyword score from stage 1.
type relevanceSignal struct{}

func (relevanceSignal) Name() string { return "relevance" }

func (relevanceSignal) Compute(c *types.RankingCandidate, q Query, _ *types.RetrievalContext) float64 {
	score := clamp01(c.KeywordScore)
	if q.Lower == "" {
		return score
	}

	for _, trigger := range c.Triggers {
		if strings.EqualFold(strings.TrimSpace(trigger), q.Lower) {
			score += 0.4
			break
		}
	}

	titleLower := strings.ToLower(c.Title)
	if titleLower != "" {
		if strings.Contains(titleLower, q.Lower) {
			score += 0.3
		}
		if len(q.Words) > 0 {
			present := 0
			for _, w := range q.Words {
				if strings.Contains(titleLower, w) {
					present++
				}
			}
			score += 0.2 * float64(present) / float64(len(q.Words))
		}
	}

	if strings.Contains(strings.ToLower(c.Item.Content), q.Lower) {
		score += 0.1
	}
	return clamp01(score)
}

// Authority blends stored quality and authority scores with log-scaled
// usage. A candidate with no authority signal at all scores the neutral
// 0.5.
type authoritySignal struct{}

func (authoritySignal) Name() string { return "authority" }

func (authoritySignal) Compute(c *types.RankingCandidate, _ Query, _ *types.RetrievalContext) float64 {
	if c.QualityScore == 0 && c.AuthorityScore == 0 && c.UsageCount == 0 {
		return 0.5
	}
	return clamp01(0.4*clamp01(c.QualityScore) +
		0.4*clamp01(c.AuthorityScore) +
		0.2*usagePopularity(c.UsageCount))
}

// Recency decays with a 90-day half-life.
type recencySignal struct {
	now func() time.Time
}

func (recencySignal) Name() string { return "recency" }

func (s recencySignal) Compute(c *types.RankingCandidate, _ Query, _ *types.RetrievalContext) float64 {
	return decay(s.now(), c.Item.Metadata.UpdatedAt, recencyHalfLife)
}

// Popularity mixes log-scaled usage with observed click-through rate.
type popularitySignal struct{}

func (popularitySignal) Name() string { return "popularity" }

func (popularitySignal) Compute(c *types.RankingCandidate, _ Query, _ *types.RetrievalContext) float64 {
	return 0.7*usagePopularity(c.UsageCount) + 0.3*c.CTR()
}

// Difficulty penalizes the gap between the candidate's level and the
// user's on a four-step ordinal scale.
type difficultySignal struct{}

func (difficultySignal) Name() string { return "difficulty" }

func (difficultySignal) Compute(c *types.RankingCandidate, _ Query, rctx *types.RetrievalContext) float64 {
	userLevel := levelOrdinal("")
	if rctx != nil {
		userLevel = levelOrdinal(rctx.UserLevel)
	}
	gap := math.Abs(float64(levelOrdinal(c.Level) - userLevel))
	return math.Max(0, 1-0.3*gap)
}

// levelOrdinal maps named levels to the ordinal scale. Unknown levels read
// as intermediate.
func levelOrdinal(level string) int {
	switch strings.ToLower(level) {
	case "beginner":
		return 0
	case "intermediate":
		return 1
	case "advanced":
		return 2
	case "expert":
		return 3
	default:
		return 1
	}
}

// Seasonality prefers candidates matching the caller's language, then
// candidates whose category matches the scenario.
type seasonalitySignal struct{}

func (seasonalitySignal) Name() string { return "seasonality" }

func (seasonalitySignal) Compute(c *types.RankingCandidate, _ Query, rctx *types.RetrievalContext) float64 {
	if rctx == nil {
		return 0.5
	}
	if rctx.Language != "" && strings.EqualFold(c.Item.Metadata.Language, rctx.Language) {
		return 0.8
	}
	if category := c.Item.Metadata.Category; category != "" &&
		strings.EqualFold(category, rctx.EffectiveScenario()) {
		return 0.6
	}
	return 0.5
}
