package llm

import "context"

// MockLLM is a mock implementation of the LLM interface. Responses are
// returned in order; the last one repeats once the list is exhausted.
type MockLLM struct {
	Responses []string
	Err       error
	// Prompts records every prompt received, for assertions.
	Prompts []string
	// LastOptions records the options of the most recent call.
	LastOptions *Options

	calls int
}

// NewMockLLM creates a MockLLM that always answers with response.
func NewMockLLM(response string) *MockLLM {
	return &MockLLM{Responses: []string{response}}
}

// NewMockLLMWithError creates a MockLLM that always fails.
func NewMockLLMWithError(err error) *MockLLM {
	return &MockLLM{Err: err}
}

func (m *MockLLM) Complete(ctx context.Context, prompt string, opts *Options) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	m.LastOptions = opts
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	idx := m.calls
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	m.calls++
	return m.Responses[idx], nil
}

var _ LLM = (*MockLLM)(nil)
