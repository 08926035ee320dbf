package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	l, err := New("prod", "")
	require.NoError(t, err)
	assert.NotNil(t, l)

	l, err = New("", "debug")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	_, err = New("staging", "")
	assert.Error(t, err)

	_, err = New("prod", "loud")
	assert.Error(t, err)
}

func TestContextRoundTrip(t *testing.T) {
	l := zap.NewExample()
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))

	// Missing logger degrades to a no-op, never nil.
	assert.NotNil(t, FromContext(context.Background()))
}
