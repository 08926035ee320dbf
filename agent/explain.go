package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/celt313/gamequest/llm"
	"github.com/celt313/gamequest/schema"
)

// explanationHeader opens the explanation prompt. The game list and closing
// format instructions are appended per request.
const explanationHeader = `You are a knowledgeable gaming expert. A user is searching for games with the query: "%s"

I found %d relevant games for them. Please provide intelligent recommendations explaining WHY each game matches their search, focusing on the reasoning rather than just listing facts.

For each game, provide:
1. The game title and year
2. A thoughtful explanation of WHY this game matches their search query
3. Focus on what makes this game special or relevant to what they're looking for

Only discuss the games listed below. Do not introduce any other games.

Here are the games:
`

const explanationFooter = `
Please provide your recommendations in this format:

Based on your query, I found X highly relevant games:

1. **Game Title** (Year)
   **Why I recommend it**: [Intelligent reasoning about why this matches their search]

Continue for all games. Be concise and stop after listing all games.`

// maxExplainDescriptionChars bounds per-game prompt size.
const maxExplainDescriptionChars = 300

// Explainer produces a natural-language justification of the final ranked
// results, grounded strictly in those results.
type Explainer struct {
	llm       llm.LLM
	maxTokens int
}

// ExplainerOption is a functional option for Explainer.
type ExplainerOption func(*Explainer)

// WithExplainMaxTokens bounds the explanation length.
func WithExplainMaxTokens(n int) ExplainerOption {
	return func(e *Explainer) {
		e.maxTokens = n
	}
}

// NewExplainer creates an Explainer.
func NewExplainer(model llm.LLM, opts ...ExplainerOption) *Explainer {
	e := &Explainer{llm: model, maxTokens: 1024}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Explain generates the explanation text. Failure is reported as
// ErrReasoningUnavailable; the caller proceeds without an explanation.
func (e *Explainer) Explain(ctx context.Context, query string, games []schema.Game) (string, error) {
	if len(games) == 0 {
		return "", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, explanationHeader, query, len(games))
	for i, g := range games {
		year := "Unknown"
		if g.Year() != 0 {
			year = fmt.Sprintf("%d", g.Year())
		}
		genres := "Unknown"
		if len(g.Genres) > 0 {
			genres = strings.Join(g.Genres, ", ")
		}
		desc := g.Description
		if len(desc) > maxExplainDescriptionChars {
			desc = desc[:maxExplainDescriptionChars] + "..."
		}
		fmt.Fprintf(&b, "\n%d. **%s** (%s)\n   Genres: %s\n   Description: %s\n", i+1, g.Title, year, genres, desc)
	}
	b.WriteString(explanationFooter)

	text, err := e.llm.Complete(ctx, b.String(), &llm.Options{MaxTokens: e.maxTokens})
	if err != nil {
		return "", fmt.Errorf("%w: explanation: %v", schema.ErrReasoningUnavailable, err)
	}
	return strings.TrimSpace(text), nil
}
