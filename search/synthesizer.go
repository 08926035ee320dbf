package search

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/celt313/gamequest/schema"
)

// Synthesizer assembles the final response payload and enforces its size
// and grounding contracts.
type Synthesizer struct {
	maxResults int
}

// SynthesizerOption is a functional option for Synthesizer.
type SynthesizerOption func(*Synthesizer)

// WithMaxResults caps the number of results a response may carry.
func WithMaxResults(n int) SynthesizerOption {
	return func(s *Synthesizer) { s.maxResults = n }
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{maxResults: 100}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize builds the response from the final ranked order. count is the
// caller's requested result count; a negative count is a contract violation.
// Explanation references to titles outside the result list are dropped
// rather than presented as results.
func (s *Synthesizer) Synthesize(
	ranked []schema.RankedItem,
	games map[string]schema.Game,
	explanation string,
	degraded []string,
	count int,
) (*schema.SearchResponse, error) {
	if count < 0 {
		return nil, fmt.Errorf("requested result count must be non-negative, got %d", count)
	}
	if count > s.maxResults {
		count = s.maxResults
	}
	if count > len(ranked) {
		count = len(ranked)
	}

	results := make([]schema.Result, 0, count)
	titles := make(map[string]struct{}, count)
	for _, item := range ranked[:count] {
		g, ok := games[item.ItemID]
		if !ok {
			continue
		}
		titles[g.Title] = struct{}{}
		results = append(results, schema.Result{
			Game:    g,
			Score:   item.Score,
			Sources: item.Sources,
		})
	}

	return &schema.SearchResponse{
		Results:         results,
		Explanation:     groundExplanation(explanation, titles),
		DegradedSources: degraded,
	}, nil
}

var (
	numberedLine = regexp.MustCompile(`^\s*\d+\.\s`)
	boldTitle    = regexp.MustCompile(`\*\*([^*]+)\*\*`)
)

// groundExplanation removes numbered recommendation blocks whose bold title
// does not belong to the presented results. The reasoning service must not
// introduce items the pipeline did not return.
func groundExplanation(text string, titles map[string]struct{}) string {
	if text == "" {
		return ""
	}

	lines := strings.Split(text, "\n")
	var (
		out      []string
		dropping bool
	)
	for _, line := range lines {
		if numberedLine.MatchString(line) {
			dropping = false
			if m := boldTitle.FindStringSubmatch(line); m != nil {
				if _, ok := titles[strings.TrimSpace(m[1])]; !ok {
					dropping = true
				}
			}
		}
		if !dropping {
			out = append(out, line)
		}
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
