package dErrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode_ChainTraversal(t *testing.T) {
	t.Run("direct error", func(t *testing.T) {
		err := New(CodeNotFound, "contract not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("wrapped cause stays reachable", func(t *testing.T) {
		cause := errors.New("sql: no rows in result set")
		err := Wrap(cause, CodeNotFound, "session not found")

		assert.True(t, HasCode(err, CodeNotFound))
		assert.True(t, errors.Is(err, cause))
	})

	t.Run("fmt wrapping preserves code", func(t *testing.T) {
		err := fmt.Errorf("loading contract: %w", New(CodeConflict, "stale phase"))
		assert.True(t, HasCode(err, CodeConflict))
	})

	t.Run("plain error has no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})

	t.Run("nil error", func(t *testing.T) {
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestCodeOf_OutermostWins(t *testing.T) {
	inner := New(CodeNotFound, "row missing")
	outer := Wrap(inner, CodeConflict, "phase moved while verifying")

	require.Equal(t, CodeConflict, CodeOf(outer))
	assert.Equal(t, "phase moved while verifying", DescriptionOf(outer))
}

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeBadRequest, http.StatusBadRequest},
		{CodeValidation, http.StatusBadRequest},
		{CodeInvalidInput, http.StatusBadRequest},
		{CodeInvalidRequest, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeInternal, http.StatusInternalServerError},
		{CodeInvariantViolation, http.StatusInternalServerError},
		{Code("unknown_code"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, ToHTTPStatus(tt.code))
		})
	}
}
