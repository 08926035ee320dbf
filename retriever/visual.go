package retriever

import (
	"context"
	"fmt"

	"github.com/celt313/gamequest/embedding"
	"github.com/celt313/gamequest/schema"
	"github.com/celt313/gamequest/vectorstore"
)

// VisualRetriever retrieves by image embedding similarity over a single
// visual scope (cover art or screenshots).
type VisualRetriever struct {
	embedModel      embedding.MultiModalModel
	store           vectorstore.Store
	scope           schema.Scope
	source          schema.Source
	overFetchFactor int
}

// VisualRetrieverOption is a functional option for VisualRetriever.
type VisualRetrieverOption func(*VisualRetriever)

// WithVisualOverFetch sets the over-fetch factor used when an id filter
// is active.
func WithVisualOverFetch(factor int) VisualRetrieverOption {
	return func(r *VisualRetriever) {
		r.overFetchFactor = factor
	}
}

// NewVisualRetriever creates a VisualRetriever over the given scope.
// The scope must be a visual one; ScopeDescription is rejected.
func NewVisualRetriever(embedModel embedding.MultiModalModel, store vectorstore.Store, scope schema.Scope, opts ...VisualRetrieverOption) (*VisualRetriever, error) {
	var source schema.Source
	switch scope {
	case schema.ScopeCover:
		source = schema.SourceVisualCover
	case schema.ScopeScreenshot:
		source = schema.SourceVisualScreenshot
	default:
		return nil, fmt.Errorf("scope %q is not a visual scope", scope)
	}

	r := &VisualRetriever{
		embedModel:      embedModel,
		store:           store,
		scope:           scope,
		source:          source,
		overFetchFactor: defaultOverFetchFactor,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Source identifies the retrieval modality.
func (r *VisualRetriever) Source() schema.Source {
	return r.source
}

// Retrieve returns up to TopK candidates, best first. A scope with several
// documents per item (screenshots) yields one candidate per item, keeping
// the best hit.
func (r *VisualRetriever) Retrieve(ctx context.Context, query Query) ([]schema.ScoredCandidate, error) {
	if len(query.Image) == 0 {
		return nil, fmt.Errorf("visual retrieval requires a query image")
	}

	emb, err := r.embedModel.GetImageEmbedding(ctx, query.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query image: %w", err)
	}

	// Over-fetch for duplicates too: the same item can occupy several
	// of the store's top slots.
	fetchK := query.TopK * r.overFetchFactor

	matches, err := r.store.Query(ctx, r.scope, emb, fetchK)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s index: %w", r.scope, err)
	}

	seen := make(map[string]struct{}, len(matches))
	candidates := make([]schema.ScoredCandidate, 0, query.TopK)
	for _, m := range matches {
		if !query.Allowed.Allows(m.ItemID) {
			continue
		}
		// Matches arrive best first, so the first hit per item wins.
		if _, dup := seen[m.ItemID]; dup {
			continue
		}
		seen[m.ItemID] = struct{}{}
		candidates = append(candidates, schema.ScoredCandidate{
			ItemID: m.ItemID,
			Source: r.source,
			Score:  m.Score,
		})
		if len(candidates) == query.TopK {
			break
		}
	}
	return candidates, nil
}

var _ Retriever = (*VisualRetriever)(nil)
