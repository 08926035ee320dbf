// Package retriever produces scored candidates from the embedding index
// and fuses them into a single comparable ranking.
package retriever

import (
	"context"

	"github.com/celt313/gamequest/schema"
)

// Query is one retrieval request against a single source.
type Query struct {
	// Text is the query text for semantic retrieval.
	Text string
	// Image is the raw query image for visual retrieval.
	Image []byte
	// TopK is the number of candidates the caller wants back.
	TopK int
	// Allowed scopes candidates to eligible item ids. The nil sentinel
	// means the full catalog is in scope.
	Allowed schema.IDSet
}

// Retriever retrieves scored candidates for a query. Scores are in the
// source's native scale; only the fusion engine may compare them across
// retrievers.
type Retriever interface {
	// Retrieve returns up to TopK candidates, best first.
	Retrieve(ctx context.Context, query Query) ([]schema.ScoredCandidate, error)
	// Source identifies the retrieval modality.
	Source() schema.Source
}
