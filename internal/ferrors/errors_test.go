package ferrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Unwrap_PreservesOriginalError(t *testing.T) {
	originalErr := errors.New("connection reset")

	wrapped := Wrap(FetchFailed, originalErr)

	require.NotNil(t, wrapped)
	assert.Equal(t, originalErr, errors.Unwrap(wrapped))
	assert.True(t, errors.Is(wrapped, originalErr))
}

func TestError_Error_ReturnsFormattedMessage(t *testing.T) {
	e := New(NotFound, "memory mem_123 not found", nil)
	assert.Equal(t, "[not_found] memory mem_123 not found", e.Error())
}

func TestError_Is_MatchesByKindNotMessage(t *testing.T) {
	a := New(Conflict, "write lost race", nil)
	b := New(Conflict, "a different conflict message", nil)
	c := New(NotFound, "write lost race", nil)

	assert.True(t, errors.Is(a, b), "same kind should match regardless of message")
	assert.False(t, errors.Is(a, c), "different kind must not match")
}

func TestNew_DerivesCategorySeverityRetryable(t *testing.T) {
	cases := []struct {
		kind        Kind
		category    Category
		severity    Severity
		retryable   bool
	}{
		{InvalidInput, CategoryValidation, SeverityError, false},
		{NotFound, CategoryLookup, SeverityError, false},
		{Ambiguous, CategoryLookup, SeverityError, false},
		{EmbedderUnavailable, CategoryEmbedding, SeverityWarning, false},
		{FetchFailed, CategoryNetwork, SeverityWarning, false},
		{EmbeddingModelMismatch, CategoryEmbedding, SeverityFatal, false},
		{Corruption, CategoryStorage, SeverityFatal, false},
		{Conflict, CategoryStorage, SeverityWarning, true},
	}

	for _, tc := range cases {
		e := New(tc.kind, "msg", nil)
		assert.Equal(t, tc.category, e.Category, tc.kind)
		assert.Equal(t, tc.severity, e.Severity, tc.kind)
		assert.Equal(t, tc.retryable, e.Retryable, tc.kind)
	}
}

func TestIsRetryable_OnlyConflictIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(Conflict, "x", nil)))
	assert.False(t, IsRetryable(New(FetchFailed, "x", nil)))
	assert.False(t, IsRetryable(errors.New("plain error")))
	assert.False(t, IsRetryable(nil))
}

func TestExitCode_MapsKindToSpecExitCodes(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(New(InvalidInput, "x", nil)))
	assert.Equal(t, 3, ExitCode(New(NotFound, "x", nil)))
	assert.Equal(t, 4, ExitCode(New(EmbedderUnavailable, "x", nil)))
	assert.Equal(t, 5, ExitCode(New(FetchFailed, "x", nil)))
	assert.Equal(t, 1, ExitCode(New(Ambiguous, "x", nil)))
	assert.Equal(t, 1, ExitCode(New(EmbeddingModelMismatch, "x", nil)))
	assert.Equal(t, 1, ExitCode(New(Corruption, "x", nil)))
	assert.Equal(t, 1, ExitCode(New(Conflict, "x", nil)))
	assert.Equal(t, 1, ExitCode(errors.New("unclassified")))
}

func TestWithDetailAndSuggestion_Chain(t *testing.T) {
	e := New(InvalidInput, "bad weight", nil).
		WithDetail("field", "alpha").
		WithSuggestion("alpha must be in [0,1]")

	assert.Equal(t, "alpha", e.Details["field"])
	assert.Equal(t, "alpha must be in [0,1]", e.Suggestion)
}
