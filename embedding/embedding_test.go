package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCacheHit(t *testing.T) {
	ctx := context.Background()
	mock := &MockModel{Embedding: []float64{0.1, 0.2}}
	cache := NewCache(mock, zap.NewNop())

	first, err := cache.GetQueryEmbedding(ctx, "open world survival")
	require.NoError(t, err)
	second, err := cache.GetQueryEmbedding(ctx, "open world survival")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, mock.Calls)
	assert.Equal(t, 1, cache.Len())
}

func TestCacheDistinguishesInputKinds(t *testing.T) {
	ctx := context.Background()
	mock := &MockModel{Embedding: []float64{0.5}}
	cache := NewCache(mock, nil)

	_, err := cache.GetTextEmbedding(ctx, "payload")
	require.NoError(t, err)
	_, err = cache.GetQueryEmbedding(ctx, "payload")
	require.NoError(t, err)
	_, err = cache.GetImageEmbedding(ctx, []byte("payload"))
	require.NoError(t, err)

	// Same payload under different input kinds is three distinct entries.
	assert.Equal(t, 3, cache.Len())
	assert.Equal(t, 3, mock.Calls)
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	ctx := context.Background()
	mock := &MockModel{Err: errors.New("upstream down")}
	cache := NewCache(mock, nil)

	_, err := cache.GetTextEmbedding(ctx, "query")
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())

	mock.Err = nil
	mock.Embedding = []float64{1}
	_, err = cache.GetTextEmbedding(ctx, "query")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())
}

func TestMockModelByText(t *testing.T) {
	ctx := context.Background()
	mock := &MockModel{
		Embedding: []float64{0},
		ByText:    map[string][]float64{"rpg": {1, 0}},
	}

	emb, err := mock.GetQueryEmbedding(ctx, "rpg")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, emb)

	emb, err = mock.GetQueryEmbedding(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, emb)
}
