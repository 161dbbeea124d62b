package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknownAsInternal(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
}

func TestIsMatchesByCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", Clone(ErrInvalidTransition, "live sessions cannot be cancelled"))
	assert.True(t, Is(err, ErrInvalidTransition))
	assert.False(t, Is(err, ErrConflict))
	assert.False(t, Is(nil, ErrConflict))
}

func TestCloneKeepsOriginalUntouched(t *testing.T) {
	clone := Clone(ErrNotFound, "session not found")
	assert.Equal(t, "session not found", clone.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}
