package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMatchesKind(t *testing.T) {
	err := New(ErrQuotaExceeded, "file limit reached")

	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "file limit reached")
}

func TestWrapMatchesKindAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrStorageUnavailable, "query", cause)

	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}
