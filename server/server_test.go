package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/celt313/gamequest/catalog"
	"github.com/celt313/gamequest/resilience"
	"github.com/celt313/gamequest/retriever"
	"github.com/celt313/gamequest/schema"
	"github.com/celt313/gamequest/search"
	"github.com/celt313/gamequest/vectorstore"
)

func scoreOf(v float64) *float64 { return &v }

// newTestServer wires a planner against in-memory stores with a single
// indexed game.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	cat := catalog.NewMemoryStore(schema.Game{
		ID:          "g1",
		Title:       "Wasteland Wanderer",
		Description: "Open world survival.",
		ReleaseDate: time.Date(2018, 5, 1, 0, 0, 0, 0, time.UTC),
		MobyScore:   scoreOf(8.2),
		Genres:      []string{"Survival"},
	})

	store := &fixedStore{matches: []vectorstore.Match{{ItemID: "g1", Score: 0.93}}}
	semantic := retriever.NewSemanticRetriever(&fixedEmbedder{}, store)

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    1,
		RetryInitialBackoff: time.Millisecond,
		BreakerEnabled:      false,
	}, zap.NewNop())

	planner := search.NewPlanner(cat, retriever.NewFusionEngine(),
		search.WithSemanticRetriever(semantic),
		search.WithExecutor(executor),
	)
	return NewServer(planner, zap.NewNop())
}

type fixedStore struct {
	matches []vectorstore.Match
}

func (s *fixedStore) Query(ctx context.Context, scope schema.Scope, embedding []float64, topK int) ([]vectorstore.Match, error) {
	return s.matches, nil
}

type fixedEmbedder struct{}

func (e *fixedEmbedder) GetTextEmbedding(ctx context.Context, text string) ([]float64, error) {
	return []float64{1, 0}, nil
}

func (e *fixedEmbedder) GetQueryEmbedding(ctx context.Context, query string) ([]float64, error) {
	return []float64{1, 0}, nil
}

func TestHandleSearchOK(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	body, _ := json.Marshal(schema.SearchRequest{QueryText: "survival", TopK: 5})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp schema.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Wasteland Wanderer", resp.Results[0].Game.Title)
}

func TestHandleSearchInvalidBody(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader([]byte("{not json"))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSearchInvalidFilter(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	body, _ := json.Marshal(schema.SearchRequest{
		QueryText: "q",
		Filters:   &schema.FilterSpec{MinYear: 1800},
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader(body)))

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "invalid_filter", errResp.Error.Code)
}

func TestHandleSearchNoInputs(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader([]byte("{}"))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusForError(t *testing.T) {
	status, code := statusForError(schema.ErrInvalidFilter)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_filter", code)

	status, code = statusForError(schema.ErrRetrievalUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "retrieval_unavailable", code)

	status, code = statusForError(schema.ErrMalformedUpstream)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "malformed_upstream", code)

	status, code = statusForError(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal_error", code)
}
