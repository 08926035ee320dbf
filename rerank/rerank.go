package rerank

import (
	"context"
	"fmt"

	"github.com/celt313/gamequest/schema"
)

// DefaultWindow is how many leading candidates are submitted for scoring.
const DefaultWindow = 50

// Reranker reorders a fused candidate list by scored relevance. Only the
// leading window is rescored; the tail keeps its fused order strictly below
// the window. No candidate is ever dropped.
type Reranker struct {
	scorer Scorer
	window int
}

// RerankerOption is a functional option for Reranker.
type RerankerOption func(*Reranker)

// WithWindow sets the rescoring window size.
func WithWindow(n int) RerankerOption {
	return func(r *Reranker) {
		r.window = n
	}
}

// NewReranker creates a Reranker.
func NewReranker(scorer Scorer, opts ...RerankerOption) *Reranker {
	r := &Reranker{scorer: scorer, window: DefaultWindow}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Window returns the configured rescoring window size.
func (r *Reranker) Window() int {
	return r.window
}

// Rerank returns the candidates in refined order. The returned order is
// authoritative; scores on rescored entries are the scorer's relevance.
//
// An empty query is a pass-through: there is no relevance to judge. When
// the scorer fails, the input order comes back unchanged together with an
// ErrRerankUnavailable so the caller can report degradation.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []schema.FusedCandidate, games map[string]schema.Game) ([]schema.FusedCandidate, error) {
	if query == "" || len(candidates) == 0 {
		return candidates, nil
	}

	window := r.window
	if window > len(candidates) {
		window = len(candidates)
	}

	items := make([]Item, window)
	for i, c := range candidates[:window] {
		g := games[c.ItemID]
		items[i] = Item{ID: c.ItemID, Title: g.Title, Description: g.Description}
	}

	choices, err := r.scorer.Score(ctx, query, items)
	if err != nil {
		return candidates, fmt.Errorf("%w: falling back to fused order: %v", schema.ErrRerankUnavailable, err)
	}

	// Scored entries first. Equal relevance falls through the standard
	// tie-break: source count, catalog score, item id.
	ranked := make([]schema.RankedItem, 0, len(choices))
	taken := make(map[int]bool, len(choices))
	for _, choice := range choices {
		if choice.Index < 0 || choice.Index >= window || taken[choice.Index] {
			continue
		}
		taken[choice.Index] = true
		c := candidates[choice.Index]
		g := games[c.ItemID]
		ranked = append(ranked, schema.RankedItem{
			ItemID:       c.ItemID,
			Score:        choice.Score,
			Sources:      c.Sources,
			CatalogScore: g.MobyScore,
		})
	}
	schema.SortRanked(ranked)

	reordered := make([]schema.FusedCandidate, 0, len(candidates))
	for _, item := range ranked {
		reordered = append(reordered, schema.FusedCandidate{
			ItemID:  item.ItemID,
			Score:   item.Score,
			Sources: item.Sources,
		})
	}

	// Entries the scorer skipped stay in the window below everything it
	// scored, keeping their fused order and scores.
	for i := 0; i < window; i++ {
		if !taken[i] {
			reordered = append(reordered, candidates[i])
		}
	}

	reordered = append(reordered, candidates[window:]...)
	return reordered, nil
}
