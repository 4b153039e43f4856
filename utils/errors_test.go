package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKind(t *testing.T) {
	err := NewNotFound("nothing here")
	assert.True(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(err, KindInvalidInput))
	assert.False(t, IsKind(nil, KindNotFound))
	assert.False(t, IsKind(errors.New("plain"), KindNotFound))
}

func TestIsKindThroughWrapping(t *testing.T) {
	inner := NewRateLimited("slow down", errors.New("429"))
	wrapped := fmt.Errorf("calling embeddings: %w", inner)

	assert.True(t, IsKind(wrapped, KindRateLimited))
}

func TestServiceErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewExternalUnavailable("upstream down", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "upstream down")
}
