// Package vectorstore provides similarity search over embedding collections.
package vectorstore

import (
	"context"

	"github.com/celt313/gamequest/schema"
)

// Match is a single similarity hit. Score is the store's native metric
// (cosine similarity, higher is better); rescaling is the fusion engine's
// job, never the store's.
type Match struct {
	ItemID string
	Score  float64
}

// Store queries embedding collections by scope. Index population and
// persistence are external concerns.
type Store interface {
	// Query returns the topK nearest items in the scope, best first.
	// A scope may hold several documents per item (e.g. screenshots);
	// Query reports them all and leaves deduplication to the caller.
	Query(ctx context.Context, scope schema.Scope, embedding []float64, topK int) ([]Match, error)
}
