// Package rerank refines a fused candidate order with a relevance-scoring
// service.
package rerank

import "context"

// Item is one candidate presented to a relevance scorer.
type Item struct {
	ID          string
	Title       string
	Description string
}

// Relevance is a scored reference to one input item.
type Relevance struct {
	// Index is the position of the item in the scorer's input.
	Index int
	// Score is the relevance in [0, 1].
	Score float64
}

// Scorer judges how relevant each item is to a query. Items the scorer
// considers irrelevant may be omitted from the result; the reranker decides
// what happens to them.
type Scorer interface {
	Score(ctx context.Context, query string, items []Item) ([]Relevance, error)
}
