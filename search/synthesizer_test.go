package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celt313/gamequest/schema"
)

func TestSynthesizeClampsAndFormats(t *testing.T) {
	s := NewSynthesizer(WithMaxResults(2))

	ranked := []schema.RankedItem{
		{ItemID: "g1", Score: 0.9, Sources: []schema.Source{schema.SourceSemantic}},
		{ItemID: "g2", Score: 0.8, Sources: []schema.Source{schema.SourceSemantic}},
		{ItemID: "g3", Score: 0.7, Sources: []schema.Source{schema.SourceSemantic}},
	}
	games := map[string]schema.Game{
		"g1": {ID: "g1", Title: "Chrono Quest"},
		"g2": {ID: "g2", Title: "Star Racer"},
		"g3": {ID: "g3", Title: "Mystery Depths"},
	}

	resp, err := s.Synthesize(ranked, games, "", []string{"visual-cover"}, 10)
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "Chrono Quest", resp.Results[0].Game.Title)
	assert.InDelta(t, 0.9, resp.Results[0].Score, 1e-9)
	assert.Equal(t, []string{"visual-cover"}, resp.DegradedSources)
}

func TestSynthesizeNegativeCount(t *testing.T) {
	s := NewSynthesizer()
	_, err := s.Synthesize(nil, nil, "", nil, -1)
	assert.Error(t, err)
}

func TestSynthesizeEmpty(t *testing.T) {
	s := NewSynthesizer()
	resp, err := s.Synthesize(nil, nil, "", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Empty(t, resp.Explanation)
}

func TestGroundExplanationDropsUnknownTitles(t *testing.T) {
	s := NewSynthesizer()

	ranked := []schema.RankedItem{{ItemID: "g1", Score: 0.9}}
	games := map[string]schema.Game{"g1": {ID: "g1", Title: "Chrono Quest"}}

	explanation := `Based on your query, I found 2 highly relevant games:

1. **Chrono Quest** (1995)
   **Why I recommend it**: A time-travel adventure.

2. **Fabricated Game** (2001)
   **Why I recommend it**: This one does not exist in the results.`

	resp, err := s.Synthesize(ranked, games, explanation, nil, 5)
	require.NoError(t, err)
	assert.Contains(t, resp.Explanation, "Chrono Quest")
	assert.Contains(t, resp.Explanation, "time-travel adventure")
	assert.NotContains(t, resp.Explanation, "Fabricated Game")
	assert.NotContains(t, resp.Explanation, "does not exist")
}

func TestGroundExplanationKeepsPreamble(t *testing.T) {
	s := NewSynthesizer()
	ranked := []schema.RankedItem{{ItemID: "g1", Score: 1}}
	games := map[string]schema.Game{"g1": {ID: "g1", Title: "Chrono Quest"}}

	resp, err := s.Synthesize(ranked, games, "Here is what I found.\n\n1. **Chrono Quest** (1995)\n   Great fit.", nil, 5)
	require.NoError(t, err)
	assert.Contains(t, resp.Explanation, "Here is what I found.")
	assert.Contains(t, resp.Explanation, "Great fit.")
}
