package schema

import "sort"

// Source identifies which retrieval modality produced a candidate.
type Source string

const (
	// SourceSemantic is text embedding similarity over descriptions.
	SourceSemantic Source = "semantic"
	// SourceVisualCover is image similarity over cover art.
	SourceVisualCover Source = "visual-cover"
	// SourceVisualScreenshot is image similarity over screenshots.
	SourceVisualScreenshot Source = "visual-screenshot"
	// SourceFilter marks candidates produced by structured filtering alone.
	SourceFilter Source = "filter"
)

// Scope selects which embedding collection a vector query runs against.
type Scope string

const (
	// ScopeDescription holds text embeddings of game descriptions.
	ScopeDescription Scope = "description"
	// ScopeCover holds image embeddings of cover art.
	ScopeCover Scope = "cover"
	// ScopeScreenshot holds image embeddings of screenshots.
	ScopeScreenshot Scope = "screenshot"
)

// Strategy is the closed set of retrieval strategies. It is selected once
// by the planner and never re-derived downstream.
type Strategy int

const (
	// StrategyText runs the semantic retriever only.
	StrategyText Strategy = iota
	// StrategyVisual runs a single visual retriever.
	StrategyVisual
	// StrategyBoth runs semantic and visual retrieval concurrently.
	StrategyBoth
	// StrategyAgentic is StrategyText plus reasoning calls around the pipeline.
	StrategyAgentic
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyText:
		return "text"
	case StrategyVisual:
		return "visual"
	case StrategyBoth:
		return "both"
	case StrategyAgentic:
		return "agentic"
	}
	return "unknown"
}

// ScoredCandidate is a raw candidate from one retrieval source. Scores are
// in the source's native scale and are not comparable across sources.
type ScoredCandidate struct {
	ItemID string  `json:"item_id"`
	Source Source  `json:"source"`
	Score  float64 `json:"score"`
}

// FusedCandidate is one unique item after score fusion; Score is comparable
// across the whole candidate set.
type FusedCandidate struct {
	ItemID  string   `json:"item_id"`
	Score   float64  `json:"score"`
	Sources []Source `json:"sources"`
}

// RankedItem is one entry of the final ranked order. Score is the reranker's
// relevance score when reranking ran, otherwise the fused score.
type RankedItem struct {
	ItemID       string
	Score        float64
	Sources      []Source
	CatalogScore *float64
}

// SortRanked sorts items into the total presentation order: score descending,
// then contributing source count descending, then catalog score descending
// (absent score loses), then item id ascending.
func SortRanked(items []RankedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if len(a.Sources) != len(b.Sources) {
			return len(a.Sources) > len(b.Sources)
		}
		as, bs := -1.0, -1.0
		if a.CatalogScore != nil {
			as = *a.CatalogScore
		}
		if b.CatalogScore != nil {
			bs = *b.CatalogScore
		}
		if as != bs {
			return as > bs
		}
		return a.ItemID < b.ItemID
	})
}

// SearchRequest is the public search contract.
type SearchRequest struct {
	QueryText  string      `json:"query_text,omitempty"`
	QueryImage []byte      `json:"query_image,omitempty"`
	ImageScope Scope       `json:"image_scope,omitempty"`
	Filters    *FilterSpec `json:"filters,omitempty"`
	TopK       int         `json:"top_k,omitempty"`
	Mode       string      `json:"mode,omitempty"`
}

// Result is one entry of the response payload.
type Result struct {
	Game    Game     `json:"game"`
	Score   float64  `json:"score"`
	Sources []Source `json:"sources"`
}

// SearchResponse is the public response contract. DegradedSources lists
// retrievers that failed or timed out; partial degradation is not an error.
type SearchResponse struct {
	Results         []Result `json:"results"`
	Explanation     string   `json:"explanation,omitempty"`
	DegradedSources []string `json:"degraded_sources,omitempty"`
}
