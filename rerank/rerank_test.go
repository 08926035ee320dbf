package rerank

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celt313/gamequest/llm"
	"github.com/celt313/gamequest/schema"
)

func fusedFixture() []schema.FusedCandidate {
	return []schema.FusedCandidate{
		{ItemID: "g1", Score: 0.9, Sources: []schema.Source{schema.SourceSemantic}},
		{ItemID: "g2", Score: 0.8, Sources: []schema.Source{schema.SourceSemantic}},
		{ItemID: "g3", Score: 0.7, Sources: []schema.Source{schema.SourceSemantic}},
		{ItemID: "g4", Score: 0.6, Sources: []schema.Source{schema.SourceSemantic}},
	}
}

func gamesFixture() map[string]schema.Game {
	return map[string]schema.Game{
		"g1": {ID: "g1", Title: "Chrono Quest", Description: "Time travel RPG."},
		"g2": {ID: "g2", Title: "Star Racer", Description: "Futuristic racing."},
		"g3": {ID: "g3", Title: "Mystery Depths", Description: "Undersea adventure."},
		"g4": {ID: "g4", Title: "Block Builder", Description: "Sandbox crafting."},
	}
}

func TestLLMScorerParsesRelevance(t *testing.T) {
	mock := llm.NewMockLLM("Game: 2, Relevance: 9\nGame: 1, Relevance: 4\n")
	scorer := NewLLMScorer(mock)

	got, err := scorer.Score(context.Background(), "racing games", []Item{
		{ID: "g1", Title: "Chrono Quest"},
		{ID: "g2", Title: "Star Racer"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Relevance{Index: 1, Score: 0.9}, got[0])
	assert.Equal(t, Relevance{Index: 0, Score: 0.4}, got[1])

	require.Len(t, mock.Prompts, 1)
	assert.Contains(t, mock.Prompts[0], "Query: racing games")
	assert.Contains(t, mock.Prompts[0], "Title: Star Racer")
}

func TestLLMScorerIgnoresOutOfRangeAndDuplicates(t *testing.T) {
	mock := llm.NewMockLLM("Game: 1, Relevance: 7\nGame: 1, Relevance: 2\nGame: 9, Relevance: 10\n")
	scorer := NewLLMScorer(mock)

	got, err := scorer.Score(context.Background(), "q", []Item{{ID: "g1"}, {ID: "g2"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Index)
	assert.InDelta(t, 0.7, got[0].Score, 1e-9)
}

func TestLLMScorerUnparseableResponse(t *testing.T) {
	scorer := NewLLMScorer(llm.NewMockLLM("I cannot rank these games."))
	_, err := scorer.Score(context.Background(), "q", []Item{{ID: "g1"}})
	assert.ErrorIs(t, err, schema.ErrMalformedUpstream)
}

func TestLLMScorerTruncatesLongDescriptions(t *testing.T) {
	mock := llm.NewMockLLM("Game: 1, Relevance: 5")
	scorer := NewLLMScorer(mock)

	long := strings.Repeat("x", 2000)
	_, err := scorer.Score(context.Background(), "q", []Item{{ID: "g1", Description: long}})
	require.NoError(t, err)
	assert.NotContains(t, mock.Prompts[0], long)
	assert.Contains(t, mock.Prompts[0], strings.Repeat("x", maxDescriptionChars)+"...")
}

func TestRerankReorders(t *testing.T) {
	scorer := NewLLMScorer(llm.NewMockLLM("Game: 3, Relevance: 9\nGame: 1, Relevance: 6\n"))
	reranker := NewReranker(scorer)

	got, err := reranker.Rerank(context.Background(), "undersea", fusedFixture(), gamesFixture())
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "g3", got[0].ItemID)
	assert.InDelta(t, 0.9, got[0].Score, 1e-9)
	assert.Equal(t, "g1", got[1].ItemID)
	assert.InDelta(t, 0.6, got[1].Score, 1e-9)

	// Unscored entries survive below the scored ones, in fused order.
	assert.Equal(t, "g2", got[2].ItemID)
	assert.Equal(t, "g4", got[3].ItemID)

	// Sources carry through untouched.
	assert.Equal(t, []schema.Source{schema.SourceSemantic}, got[0].Sources)
}

func TestRerankWindowLimitsScoring(t *testing.T) {
	scorer := NewLLMScorer(llm.NewMockLLM("Game: 2, Relevance: 10"))
	reranker := NewReranker(scorer, WithWindow(2))

	got, err := reranker.Rerank(context.Background(), "q", fusedFixture(), gamesFixture())
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "g2", got[0].ItemID)
	assert.Equal(t, "g1", got[1].ItemID)
	// The tail beyond the window keeps its fused order and scores.
	assert.Equal(t, "g3", got[2].ItemID)
	assert.InDelta(t, 0.7, got[2].Score, 1e-9)
	assert.Equal(t, "g4", got[3].ItemID)
}

func TestRerankEmptyQueryPassesThrough(t *testing.T) {
	scorer := NewLLMScorer(llm.NewMockLLMWithError(errors.New("must not be called")))
	reranker := NewReranker(scorer)

	in := fusedFixture()
	got, err := reranker.Rerank(context.Background(), "", in, gamesFixture())
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestRerankFailureFallsBackToFusedOrder(t *testing.T) {
	scorer := NewLLMScorer(llm.NewMockLLMWithError(errors.New("upstream down")))
	reranker := NewReranker(scorer)

	in := fusedFixture()
	got, err := reranker.Rerank(context.Background(), "q", in, gamesFixture())
	require.ErrorIs(t, err, schema.ErrRerankUnavailable)
	assert.Equal(t, in, got)
}
