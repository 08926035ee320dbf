// Package server exposes the search pipeline over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/celt313/gamequest/logger"
	"github.com/celt313/gamequest/metrics"
	"github.com/celt313/gamequest/schema"
	"github.com/celt313/gamequest/search"
)

// maxRequestBytes bounds the request body; query images arrive base64
// encoded in the JSON payload.
const maxRequestBytes = 16 << 20

// Server handles the public search API.
type Server struct {
	planner *search.Planner
	log     *zap.Logger
}

// NewServer creates a Server.
func NewServer(planner *search.Planner, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{planner: planner, log: log}
}

// Router builds the chi router with middleware, health, and metrics routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/search", s.handleSearch)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.With(zap.String("request_id", chiMiddleware.GetReqID(r.Context())))
	ctx := logger.WithContext(r.Context(), reqLog)

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var req schema.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	resp, err := s.planner.Search(ctx, req)
	if err != nil {
		status, code := statusForError(err)
		if status >= http.StatusInternalServerError {
			reqLog.Error("search failed", zap.Error(err))
		} else {
			reqLog.Warn("search rejected", zap.Error(err))
		}
		writeError(w, status, code, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// statusForError maps the error taxonomy onto HTTP statuses.
func statusForError(err error) (int, string) {
	code := schema.ErrorCode(err)
	switch {
	case errors.Is(err, schema.ErrInvalidFilter):
		return http.StatusBadRequest, code
	case errors.Is(err, schema.ErrRetrievalUnavailable),
		errors.Is(err, schema.ErrRerankUnavailable),
		errors.Is(err, schema.ErrReasoningUnavailable):
		return http.StatusServiceUnavailable, code
	case errors.Is(err, schema.ErrMalformedUpstream):
		return http.StatusBadGateway, code
	default:
		return http.StatusInternalServerError, code
	}
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
