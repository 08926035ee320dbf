package schema

import "errors"

// Error taxonomy for the retrieval pipeline. Components wrap these with
// fmt.Errorf("...: %w", ...) and callers branch with errors.Is.
var (
	// ErrInvalidFilter marks a caller error in a filter specification.
	// It is never retried.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrRetrievalUnavailable marks a retrieval source that could not be
	// reached. One failed source degrades; all sources failing is fatal
	// for the request.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrRerankUnavailable marks an unreachable relevance-scoring service.
	// Non-fatal: the fused order is used instead.
	ErrRerankUnavailable = errors.New("rerank unavailable")

	// ErrReasoningUnavailable marks an unreachable or timed-out reasoning
	// service. Non-fatal: the response omits the explanation.
	ErrReasoningUnavailable = errors.New("reasoning unavailable")

	// ErrMalformedUpstream marks an upstream response that could not be
	// interpreted. It is treated as that source's failure.
	ErrMalformedUpstream = errors.New("malformed upstream response")
)

// ErrorCode returns the stable wire code for an error, or "internal_error"
// for anything outside the taxonomy.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidFilter):
		return "invalid_filter"
	case errors.Is(err, ErrRetrievalUnavailable):
		return "retrieval_unavailable"
	case errors.Is(err, ErrRerankUnavailable):
		return "rerank_unavailable"
	case errors.Is(err, ErrReasoningUnavailable):
		return "reasoning_unavailable"
	case errors.Is(err, ErrMalformedUpstream):
		return "malformed_upstream"
	default:
		return "internal_error"
	}
}
