package llm

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/celt313/gamequest/schema"
)

// OpenAILLM generates completions through an OpenAI-compatible chat API.
type OpenAILLM struct {
	client *openai.Client
	model  string
}

// NewOpenAILLM creates an OpenAILLM against api.openai.com.
func NewOpenAILLM(apiKey, model string) *OpenAILLM {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return NewOpenAILLMWithClient(openai.NewClient(apiKey), model)
}

// NewOpenAILLMWithClient creates an OpenAILLM with a preconfigured client.
func NewOpenAILLMWithClient(client *openai.Client, model string) *OpenAILLM {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAILLM{client: client, model: model}
}

// Complete generates a completion for a given prompt.
func (o *OpenAILLM) Complete(ctx context.Context, prompt string, opts *Options) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if opts != nil {
		req.MaxTokens = opts.MaxTokens
		req.Temperature = opts.Temperature
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: openai completion: %v", schema.ErrReasoningUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", schema.ErrMalformedUpstream)
	}
	return resp.Choices[0].Message.Content, nil
}

var _ LLM = (*OpenAILLM)(nil)
