package embedding

import "context"

// MockModel is a mock implementation of the MultiModalModel interface.
// ByText takes precedence over Embedding when set. Calls counts invocations
// of the underlying model, which cache tests rely on.
type MockModel struct {
	Embedding []float64
	ByText    map[string][]float64
	Err       error
	Calls     int
}

func (m *MockModel) GetTextEmbedding(ctx context.Context, text string) ([]float64, error) {
	return m.embed(text)
}

func (m *MockModel) GetQueryEmbedding(ctx context.Context, query string) ([]float64, error) {
	return m.embed(query)
}

func (m *MockModel) GetImageEmbedding(ctx context.Context, image []byte) ([]float64, error) {
	return m.embed(string(image))
}

func (m *MockModel) embed(input string) ([]float64, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if emb, ok := m.ByText[input]; ok {
		return emb, nil
	}
	return m.Embedding, nil
}

var _ MultiModalModel = (*MockModel)(nil)
