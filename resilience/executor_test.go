package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/celt313/gamequest/schema"
)

func testConfig() Config {
	return Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2.0,
		BreakerEnabled:      false,
	}
}

func TestExecuteRetriesOnce(t *testing.T) {
	e := NewExecutor(testConfig(), zap.NewNop())

	calls := 0
	err := e.Execute(context.Background(), "vector_query", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return schema.ErrRetrievalUnavailable
		}
		return nil
	}, RetrievalClassifier)

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestExecuteExhaustsRetries(t *testing.T) {
	e := NewExecutor(testConfig(), zap.NewNop())

	calls := 0
	err := e.Execute(context.Background(), "vector_query", func(ctx context.Context) error {
		calls++
		return schema.ErrRetrievalUnavailable
	}, RetrievalClassifier)

	assert.ErrorIs(t, err, schema.ErrRetrievalUnavailable)
	assert.Equal(t, 2, calls)
}

func TestExecuteDoesNotRetryCallerErrors(t *testing.T) {
	e := NewExecutor(testConfig(), zap.NewNop())

	calls := 0
	err := e.Execute(context.Background(), "filter", func(ctx context.Context) error {
		calls++
		return schema.ErrInvalidFilter
	}, RetrievalClassifier)

	assert.ErrorIs(t, err, schema.ErrInvalidFilter)
	assert.Equal(t, 1, calls)
}

func TestExecuteDoesNotRetryMalformedUpstream(t *testing.T) {
	e := NewExecutor(testConfig(), zap.NewNop())

	calls := 0
	err := e.Execute(context.Background(), "embed", func(ctx context.Context) error {
		calls++
		return schema.ErrMalformedUpstream
	}, RetrievalClassifier)

	assert.ErrorIs(t, err, schema.ErrMalformedUpstream)
	assert.Equal(t, 1, calls)
}

func TestReasoningClassifierNeverRetries(t *testing.T) {
	e := NewExecutor(testConfig(), zap.NewNop())

	calls := 0
	err := e.Execute(context.Background(), "rerank", func(ctx context.Context) error {
		calls++
		return schema.ErrRerankUnavailable
	}, ReasoningClassifier)

	assert.ErrorIs(t, err, schema.ErrRerankUnavailable)
	assert.Equal(t, 1, calls)

	assert.True(t, ReasoningClassifier(schema.ErrReasoningUnavailable).RecordFailure)
	assert.False(t, ReasoningClassifier(context.Canceled).RecordFailure)
}

func TestExecuteRespectsCancellation(t *testing.T) {
	e := NewExecutor(testConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Execute(ctx, "embed", func(ctx context.Context) error {
		t.Fatal("callback must not run on canceled context")
		return nil
	}, RetrievalClassifier)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	cfg := testConfig()
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 3
	cfg.BreakerFailureRatio = 0.5
	cfg.RetryMaxAttempts = 1
	e := NewExecutor(cfg, zap.NewNop())

	boom := errors.New("down")
	for i := 0; i < 3; i++ {
		_ = e.Execute(context.Background(), "rerank", func(ctx context.Context) error {
			return boom
		}, nil)
	}

	err := e.Execute(context.Background(), "rerank", func(ctx context.Context) error {
		return nil
	}, nil)
	assert.True(t, IsCircuitOpen(err))
}

func TestBreakersAreIndependentPerOperation(t *testing.T) {
	cfg := testConfig()
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 2
	cfg.RetryMaxAttempts = 1
	e := NewExecutor(cfg, zap.NewNop())

	for i := 0; i < 2; i++ {
		_ = e.Execute(context.Background(), "semantic", func(ctx context.Context) error {
			return errors.New("down")
		}, nil)
	}

	// The semantic breaker is open, the visual one is not.
	err := e.Execute(context.Background(), "semantic", func(ctx context.Context) error { return nil }, nil)
	assert.True(t, IsCircuitOpen(err))

	err = e.Execute(context.Background(), "visual", func(ctx context.Context) error { return nil }, nil)
	assert.NoError(t, err)
}

func TestNilCallback(t *testing.T) {
	e := NewExecutor(testConfig(), zap.NewNop())
	err := e.Execute(context.Background(), "x", nil, nil)
	assert.Error(t, err)
}
