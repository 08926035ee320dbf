package retriever

import (
	"sort"

	"github.com/celt313/gamequest/schema"
)

// sourceOrder fixes the presentation order of contributing sources.
var sourceOrder = map[schema.Source]int{
	schema.SourceSemantic:         0,
	schema.SourceVisualCover:      1,
	schema.SourceVisualScreenshot: 2,
	schema.SourceFilter:           3,
}

// FusionEngine combines candidates from multiple sources into one ranking.
// Each source's scores are min-max normalized to [0, 1] before weighting,
// so native score scales never leak across sources. Items corroborated by
// several sources accumulate several weighted contributions and rank above
// single-source items with comparable normalized scores.
type FusionEngine struct {
	weights map[schema.Source]float64
}

// FusionOption is a functional option for FusionEngine.
type FusionOption func(*FusionEngine)

// WithSourceWeight sets the relative weight of one source. Unset sources
// weigh 1.
func WithSourceWeight(source schema.Source, weight float64) FusionOption {
	return func(e *FusionEngine) {
		e.weights[source] = weight
	}
}

// NewFusionEngine creates a FusionEngine.
func NewFusionEngine(opts ...FusionOption) *FusionEngine {
	e := &FusionEngine{weights: make(map[schema.Source]float64)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *FusionEngine) weight(source schema.Source) float64 {
	if w, ok := e.weights[source]; ok {
		return w
	}
	return 1.0
}

// Fuse merges per-source candidate lists into one deduplicated ranking,
// best first. Sources with no candidates do not dilute the scores of the
// rest: the weight denominator covers contributing sources only. The
// result is deterministic for equal inputs; limit <= 0 means no truncation.
func (e *FusionEngine) Fuse(bySource map[schema.Source][]schema.ScoredCandidate, limit int) []schema.FusedCandidate {
	var weightTotal float64
	for source, candidates := range bySource {
		if len(candidates) > 0 {
			weightTotal += e.weight(source)
		}
	}
	if weightTotal == 0 {
		return nil
	}

	type accum struct {
		score   float64
		sources []schema.Source
	}
	items := make(map[string]*accum)

	for source, candidates := range bySource {
		if len(candidates) == 0 {
			continue
		}

		minScore, maxScore := candidates[0].Score, candidates[0].Score
		for _, c := range candidates {
			if c.Score < minScore {
				minScore = c.Score
			}
			if c.Score > maxScore {
				maxScore = c.Score
			}
		}

		weight := e.weight(source)
		for _, c := range candidates {
			// A degenerate spread (single candidate or all-equal
			// scores) normalizes to full confidence.
			norm := 1.0
			if maxScore > minScore {
				norm = (c.Score - minScore) / (maxScore - minScore)
			}

			a, ok := items[c.ItemID]
			if !ok {
				a = &accum{}
				items[c.ItemID] = a
			}
			a.score += norm * weight
			a.sources = append(a.sources, source)
		}
	}

	fused := make([]schema.FusedCandidate, 0, len(items))
	for id, a := range items {
		sort.Slice(a.sources, func(i, j int) bool {
			return sourceOrder[a.sources[i]] < sourceOrder[a.sources[j]]
		})
		fused = append(fused, schema.FusedCandidate{
			ItemID:  id,
			Score:   a.score / weightTotal,
			Sources: a.sources,
		})
	}

	sort.Slice(fused, func(i, j int) bool {
		a, b := fused[i], fused[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if len(a.Sources) != len(b.Sources) {
			return len(a.Sources) > len(b.Sources)
		}
		return a.ItemID < b.ItemID
	})

	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}
	return fused
}
