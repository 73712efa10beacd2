package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatchesSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		code     Code
	}{
		{"validation", Validation("nothing changed"), ErrValidation, CodeValidation},
		{"invalid state", InvalidState("status not valid"), ErrInvalidState, CodeInvalidState},
		{"not found", NotFound("order not found"), ErrNotFound, CodeNotFound},
		{"storage", Storage("write failed", errors.New("disk full")), ErrStorage, CodeStorage},
		{"conflict", Conflict("username taken", nil), ErrConflict, CodeConflict},
		{"unauthorized", Unauthorized("bad credentials"), ErrUnauthorized, CodeUnauthorized},
		{"forbidden", Forbidden("not your order"), ErrForbidden, CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("handler: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Equal(t, tt.code, CodeOf(wrapped))
		})
	}
}

func TestErrorDoesNotMatchOtherKinds(t *testing.T) {
	err := NotFound("order not found")
	assert.NotErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrStorage)
}

func TestCodeOfUnclassified(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestStorageUnwrapsCause(t *testing.T) {
	cause := errors.New("bucket missing")
	err := Storage("upload failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "bucket missing")
}

func TestValidationFields(t *testing.T) {
	err := ValidationFields("invalid request", map[string]string{"colore": "required"})

	appErr, ok := As(fmt.Errorf("wrap: %w", err))
	require.True(t, ok)
	assert.Equal(t, "required", appErr.Fields["colore"])
}
