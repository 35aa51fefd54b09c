package types

// CoarseSignals holds the five first-pass ranking signals, each in [0,1].
type CoarseSignals struct {
	BM25       float64 `json:"bm25"`
	Semantic   float64 `json:"semantic"`
	Quality    float64 `json:"quality"`
	Freshness  float64 `json:"freshness"`
	Popularity float64 `json:"popularity"`
}

// SignalScores holds the six scenario-weighted ranking signals, each in [0,1].
type SignalScores struct {
	Relevance   float64 `json:"relevance"`
	Authority   float64 `json:"authority"`
	Recency     float64 `json:"recency"`
	Popularity  float64 `json:"popularity"`
	Difficulty  float64 `json:"difficulty"`
	Seasonality float64 `json:"seasonality"`
}

// RankingCandidate is an IndexedItem enriched with the business signals the
// rankers consume and the per-stage scores the funnel produces. Every funnel
// stage only adds fields; nothing is removed before the next stage runs, so
// callers always see the full score breakdown of a result.
type RankingCandidate struct {
	Item IndexedItem `json:"item"`

	// Business signals supplied by the owning entity model.
	Title          string   `json:"title,omitempty"`
	Description    string   `json:"description,omitempty"`
	Triggers       []string `json:"triggers,omitempty"`
	UsageCount     int      `json:"usageCount,omitempty"`
	Clicks         int      `json:"clicks,omitempty"`
	Impressions    int      `json:"impressions,omitempty"`
	QualityScore   float64  `json:"qualityScore,omitempty"`
	AuthorityScore float64  `json:"authorityScore,omitempty"`
	Level          string   `json:"level,omitempty"`

	// Stage 1: keyword recall.
	KeywordScore float64 `json:"keywordScore"`

	// Stage 2: semantic rerank.
	SemanticScore float64 `json:"semanticScore"`

	// Stage 3: coarse quality ranking.
	CoarseScore   float64       `json:"coarseScore"`
	CoarseSignals CoarseSignals `json:"coarseSignals"`

	// Stage 4: multi-signal scenario ranking.
	RankerScore float64      `json:"rankerScore"`
	Signals     SignalScores `json:"signals"`

	// Stage 5: context-aware rerank.
	ContextScore float64 `json:"contextScore"`
	ContextBoost float64 `json:"contextBoost"`
}

// SearchableText returns the text keyword recall indexes for this candidate.
func (c *RankingCandidate) SearchableText() string {
	text := c.Item.Content
	if c.Title != "" {
		text = c.Title + "\n" + text
	}
	if c.Description != "" {
		text += "\n" + c.Description
	}
	return text
}

// CTR returns the observed click-through rate, clamped to [0,1].
func (c *RankingCandidate) CTR() float64 {
	if c.Impressions <= 0 {
		return 0
	}
	ctr := float64(c.Clicks) / float64(c.Impressions)
	if ctr > 1 {
		return 1
	}
	return ctr
}
