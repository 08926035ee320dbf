// Package embedding provides text and image embedding models.
package embedding

import "context"

// Model is the interface for generating text embeddings.
// Implementations must be deterministic for identical input.
type Model interface {
	// GetTextEmbedding generates an embedding for a given text.
	GetTextEmbedding(ctx context.Context, text string) ([]float64, error)
	// GetQueryEmbedding generates an embedding for a given query.
	// This is often the same as GetTextEmbedding, but some models treat
	// queries differently.
	GetQueryEmbedding(ctx context.Context, query string) ([]float64, error)
}

// MultiModalModel extends Model with image embedding capabilities.
type MultiModalModel interface {
	Model
	// GetImageEmbedding generates an embedding for raw image bytes.
	GetImageEmbedding(ctx context.Context, image []byte) ([]float64, error)
}
