package embedding

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/celt313/gamequest/schema"
)

// OpenAIEmbedding generates embeddings through an OpenAI-compatible API.
// Text and image inputs may be served by different models behind the same
// endpoint; the image model receives the payload base64-encoded, which is
// the convention of multimodal embedding servers exposing this API.
type OpenAIEmbedding struct {
	client     *openai.Client
	textModel  openai.EmbeddingModel
	imageModel openai.EmbeddingModel
	logger     *zap.Logger
}

// OpenAIEmbeddingOption configures an OpenAIEmbedding.
type OpenAIEmbeddingOption func(*OpenAIEmbedding)

// WithImageModel sets the model used for image payloads.
func WithImageModel(model string) OpenAIEmbeddingOption {
	return func(o *OpenAIEmbedding) {
		o.imageModel = openai.EmbeddingModel(model)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) OpenAIEmbeddingOption {
	return func(o *OpenAIEmbedding) {
		o.logger = logger
	}
}

// NewOpenAIEmbedding creates an OpenAIEmbedding against api.openai.com.
func NewOpenAIEmbedding(apiKey, modelName string, opts ...OpenAIEmbeddingOption) *OpenAIEmbedding {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return NewOpenAIEmbeddingWithClient(openai.NewClient(apiKey), modelName, opts...)
}

// NewOpenAIEmbeddingWithClient creates an OpenAIEmbedding with a preconfigured
// client, e.g. one pointed at a self-hosted compatible endpoint.
func NewOpenAIEmbeddingWithClient(client *openai.Client, modelName string, opts ...OpenAIEmbeddingOption) *OpenAIEmbedding {
	model := openai.SmallEmbedding3
	if modelName != "" {
		model = openai.EmbeddingModel(modelName)
	}

	o := &OpenAIEmbedding{
		client:     client,
		textModel:  model,
		imageModel: model,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GetTextEmbedding generates an embedding for a given text.
func (o *OpenAIEmbedding) GetTextEmbedding(ctx context.Context, text string) ([]float64, error) {
	return o.getEmbedding(ctx, text, o.textModel)
}

// GetQueryEmbedding generates an embedding for a given query.
func (o *OpenAIEmbedding) GetQueryEmbedding(ctx context.Context, query string) ([]float64, error) {
	return o.getEmbedding(ctx, query, o.textModel)
}

// GetImageEmbedding generates an embedding for raw image bytes.
func (o *OpenAIEmbedding) GetImageEmbedding(ctx context.Context, image []byte) ([]float64, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image payload", schema.ErrMalformedUpstream)
	}
	return o.getEmbedding(ctx, base64.StdEncoding.EncodeToString(image), o.imageModel)
}

func (o *OpenAIEmbedding) getEmbedding(ctx context.Context, input string, model openai.EmbeddingModel) ([]float64, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{input},
		Model: model,
	})
	if err != nil {
		o.logger.Warn("embedding request failed", zap.String("model", string(model)), zap.Error(err))
		return nil, fmt.Errorf("%w: openai embedding: %v", schema.ErrRetrievalUnavailable, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: openai returned no embeddings", schema.ErrMalformedUpstream)
	}

	embedding32 := resp.Data[0].Embedding
	embedding64 := make([]float64, len(embedding32))
	for i, v := range embedding32 {
		embedding64[i] = float64(v)
	}
	return embedding64, nil
}

var _ MultiModalModel = (*OpenAIEmbedding)(nil)
