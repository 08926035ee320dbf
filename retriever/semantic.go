package retriever

import (
	"context"
	"fmt"

	"github.com/celt313/gamequest/embedding"
	"github.com/celt313/gamequest/schema"
	"github.com/celt313/gamequest/vectorstore"
)

// defaultOverFetchFactor compensates for candidates removed by the eligible
// id set: the store is asked for factor*TopK hits before filtering.
const defaultOverFetchFactor = 2

// SemanticRetriever retrieves by text embedding similarity over game
// descriptions.
type SemanticRetriever struct {
	embedModel      embedding.Model
	store           vectorstore.Store
	overFetchFactor int
}

// SemanticRetrieverOption is a functional option for SemanticRetriever.
type SemanticRetrieverOption func(*SemanticRetriever)

// WithSemanticOverFetch sets the over-fetch factor used when an id filter
// is active.
func WithSemanticOverFetch(factor int) SemanticRetrieverOption {
	return func(r *SemanticRetriever) {
		r.overFetchFactor = factor
	}
}

// NewSemanticRetriever creates a SemanticRetriever.
func NewSemanticRetriever(embedModel embedding.Model, store vectorstore.Store, opts ...SemanticRetrieverOption) *SemanticRetriever {
	r := &SemanticRetriever{
		embedModel:      embedModel,
		store:           store,
		overFetchFactor: defaultOverFetchFactor,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Source identifies the retrieval modality.
func (r *SemanticRetriever) Source() schema.Source {
	return schema.SourceSemantic
}

// Retrieve returns up to TopK candidates, best first.
func (r *SemanticRetriever) Retrieve(ctx context.Context, query Query) ([]schema.ScoredCandidate, error) {
	if query.Text == "" {
		return nil, fmt.Errorf("semantic retrieval requires query text")
	}

	emb, err := r.embedModel.GetQueryEmbedding(ctx, query.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	fetchK := query.TopK
	if query.Allowed != nil {
		fetchK *= r.overFetchFactor
	}

	matches, err := r.store.Query(ctx, schema.ScopeDescription, emb, fetchK)
	if err != nil {
		return nil, fmt.Errorf("failed to query description index: %w", err)
	}

	candidates := make([]schema.ScoredCandidate, 0, query.TopK)
	for _, m := range matches {
		if !query.Allowed.Allows(m.ItemID) {
			continue
		}
		candidates = append(candidates, schema.ScoredCandidate{
			ItemID: m.ItemID,
			Source: schema.SourceSemantic,
			Score:  m.Score,
		})
		if len(candidates) == query.TopK {
			break
		}
	}
	return candidates, nil
}

var _ Retriever = (*SemanticRetriever)(nil)
