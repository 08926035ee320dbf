package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/celt313/gamequest/llm"
	"github.com/celt313/gamequest/schema"
)

// DefaultFilterPrompt asks the model to turn a free-text game query into
// structured filters.
const DefaultFilterPrompt = `You are a gaming expert. A user is searching for games with this query: "{query_str}"

Extract any structured filters implied by the query. Respond with a single JSON object and nothing else, using only these keys (omit keys the query does not imply):
{
  "platforms": ["platform names"],
  "genres": ["genre names"],
  "min_score": 7.5,
  "min_year": 1990,
  "max_year": 1999,
  "scored_only": false
}

Examples:
- "RPGs from the 90s" -> {"genres": ["RPG"], "min_year": 1990, "max_year": 1999}
- "highly rated racing games on PC" -> {"genres": ["Racing"], "platforms": ["PC"], "min_score": 8.0}

JSON:`

// filterPayload mirrors the JSON shape the model is asked to produce.
// Pointer fields distinguish "absent" from zero values.
type filterPayload struct {
	Platforms  []string `json:"platforms"`
	Genres     []string `json:"genres"`
	MinScore   *float64 `json:"min_score"`
	MinYear    *int     `json:"min_year"`
	MaxYear    *int     `json:"max_year"`
	ScoredOnly *bool    `json:"scored_only"`
}

// FilterExtractor derives a FilterSpec from free-text queries through a
// reasoning service. Model output is untrusted: fields that fail the same
// validation applied to caller-supplied filters are dropped, never
// propagated.
type FilterExtractor struct {
	llm       llm.LLM
	prompt    string
	yearFloor int
	maxTokens int
}

// FilterExtractorOption is a functional option for FilterExtractor.
type FilterExtractorOption func(*FilterExtractor)

// WithFilterPrompt overrides the extraction prompt. The prompt must keep
// the {query_str} placeholder.
func WithFilterPrompt(prompt string) FilterExtractorOption {
	return func(e *FilterExtractor) {
		e.prompt = prompt
	}
}

// WithYearFloor sets the earliest year the catalog accepts.
func WithYearFloor(year int) FilterExtractorOption {
	return func(e *FilterExtractor) {
		e.yearFloor = year
	}
}

// NewFilterExtractor creates a FilterExtractor.
func NewFilterExtractor(model llm.LLM, opts ...FilterExtractorOption) *FilterExtractor {
	e := &FilterExtractor{
		llm:       model,
		prompt:    DefaultFilterPrompt,
		yearFloor: 1950,
		maxTokens: 256,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract asks the reasoning service for implied filters. The raw model
// output comes back alongside the spec for trace recording. An unreachable
// service is reported as ErrReasoningUnavailable; unparseable output yields
// an empty spec with no error, since the output is advisory only.
func (e *FilterExtractor) Extract(ctx context.Context, query string) (*schema.FilterSpec, string, error) {
	prompt := strings.ReplaceAll(e.prompt, "{query_str}", query)

	raw, err := e.llm.Complete(ctx, prompt, &llm.Options{MaxTokens: e.maxTokens, Temperature: 0})
	if err != nil {
		return nil, "", fmt.Errorf("%w: filter extraction: %v", schema.ErrReasoningUnavailable, err)
	}

	jsonStr := extractJSON(raw)
	if jsonStr == "" {
		return &schema.FilterSpec{}, raw, nil
	}

	var payload filterPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return &schema.FilterSpec{}, raw, nil
	}

	return e.sanitize(payload), raw, nil
}

// sanitize validates each extracted field in isolation, keeping the valid
// ones and discarding the rest.
func (e *FilterExtractor) sanitize(p filterPayload) *schema.FilterSpec {
	spec := &schema.FilterSpec{
		Platforms: cleanStrings(p.Platforms),
		Genres:    cleanStrings(p.Genres),
	}
	if p.MinScore != nil && !math.IsNaN(*p.MinScore) && !math.IsInf(*p.MinScore, 0) {
		v := *p.MinScore
		spec.MinScore = &v
	}
	if p.MinYear != nil && *p.MinYear >= e.yearFloor {
		spec.MinYear = *p.MinYear
	}
	if p.MaxYear != nil && *p.MaxYear >= e.yearFloor {
		spec.MaxYear = *p.MaxYear
	}
	// An inverted range keeps the lower bound only.
	if spec.MinYear != 0 && spec.MaxYear != 0 && spec.MaxYear < spec.MinYear {
		spec.MaxYear = 0
	}
	if p.ScoredOnly != nil {
		spec.ScoredOnly = *p.ScoredOnly
	}
	return spec
}

func cleanStrings(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// extractJSON pulls a JSON object out of surrounding model chatter.
func extractJSON(text string) string {
	if start := strings.Index(text, "```json"); start != -1 {
		rest := text[start+7:]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
	}
	if start := strings.Index(text, "```"); start != -1 {
		rest := text[start+3:]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		return text[start : end+1]
	}
	return ""
}
