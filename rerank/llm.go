package rerank

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/celt313/gamequest/llm"
	"github.com/celt313/gamequest/schema"
)

// DefaultRerankPrompt asks the model to grade each candidate game against
// the query on a 1-10 scale.
const DefaultRerankPrompt = `A list of games is shown below. Each game has a number next to it along with its title and a short description. A player's search query is also provided.
Respond with the numbers of the games that match the query, in order of relevance, along with a relevance score. The relevance score is a number from 1-10 based on how well the game matches the query.
Do not include games that do not match the query.
Example format:
Game 1:
Title: <title of game 1>
<description of game 1>

Game 2:
Title: <title of game 2>
<description of game 2>

...

Query: <query>
Answer:
Game: 2, Relevance: 8
Game: 1, Relevance: 3

Let's try this now:

{context_str}
Query: {query_str}
Answer:
`

// maxDescriptionChars bounds per-game prompt size.
const maxDescriptionChars = 500

// LLMScorer is a Scorer backed by a text generation model.
type LLMScorer struct {
	llm    llm.LLM
	prompt string
}

// LLMScorerOption is a functional option for LLMScorer.
type LLMScorerOption func(*LLMScorer)

// WithRerankPrompt overrides the scoring prompt. The prompt must keep the
// {context_str} and {query_str} placeholders.
func WithRerankPrompt(prompt string) LLMScorerOption {
	return func(s *LLMScorer) {
		s.prompt = prompt
	}
}

// NewLLMScorer creates an LLMScorer.
func NewLLMScorer(model llm.LLM, opts ...LLMScorerOption) *LLMScorer {
	s := &LLMScorer{llm: model, prompt: DefaultRerankPrompt}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score grades the items against the query. Scores come back normalized
// to [0, 1].
func (s *LLMScorer) Score(ctx context.Context, query string, items []Item) ([]Relevance, error) {
	prompt := strings.ReplaceAll(s.prompt, "{context_str}", formatItems(items))
	prompt = strings.ReplaceAll(prompt, "{query_str}", query)

	raw, err := s.llm.Complete(ctx, prompt, &llm.Options{Temperature: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: rerank completion: %v", schema.ErrRerankUnavailable, err)
	}

	choices, err := parseRelevanceAnswer(raw, len(items))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrMalformedUpstream, err)
	}
	return choices, nil
}

func formatItems(items []Item) string {
	var b strings.Builder
	for i, item := range items {
		desc := item.Description
		if len(desc) > maxDescriptionChars {
			desc = desc[:maxDescriptionChars] + "..."
		}
		fmt.Fprintf(&b, "Game %d:\nTitle: %s\n%s\n\n", i+1, item.Title, desc)
	}
	return b.String()
}

// relevancePatterns match "Game: N, Relevance: M" and the looser variants
// models actually produce.
var relevancePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Game[:\s]*(\d+)[,\s]*Relevance[:\s]*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)(\d+)[:\s]*Relevance[:\s]*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)Game[:\s]*(\d+)`),
}

func parseRelevanceAnswer(response string, numItems int) ([]Relevance, error) {
	var choices []Relevance
	seen := make(map[int]bool)

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var (
			gameNum   int
			relevance = 5.0
			matched   bool
		)
		for _, pattern := range relevancePatterns {
			m := pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			gameNum = n
			if len(m) > 2 && m[2] != "" {
				relevance, _ = strconv.ParseFloat(m[2], 64)
			}
			matched = true
			break
		}

		if !matched || gameNum < 1 || gameNum > numItems {
			continue
		}
		idx := gameNum - 1
		if seen[idx] {
			continue
		}
		seen[idx] = true

		score := relevance / 10
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		choices = append(choices, Relevance{Index: idx, Score: score})
	}

	if len(choices) == 0 {
		return nil, fmt.Errorf("could not parse any relevance choices from response")
	}
	return choices, nil
}

var _ Scorer = (*LLMScorer)(nil)
