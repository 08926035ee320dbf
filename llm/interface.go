// Package llm provides clients for text generation services.
package llm

import "context"

// Options bounds a single generation call. The zero value uses the
// provider's defaults.
type Options struct {
	// MaxTokens caps the generated output length. 0 means provider default.
	MaxTokens int
	// Temperature controls sampling randomness.
	Temperature float32
}

// LLM is the interface for reasoning and scoring services. Implementations
// must respect context cancellation so callers can enforce hard timeouts.
type LLM interface {
	// Complete generates a completion for a given prompt.
	Complete(ctx context.Context, prompt string, opts *Options) (string, error)
}
