package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"upstream", fmt.Errorf("calling vendor: %w", ErrUpstream), http.StatusBadRequest},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"target not found", fmt.Errorf("lookup: %w", ErrTargetNotFound), http.StatusNotFound},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"conflict", ErrConflict, http.StatusConflict},
		{"timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
		{"app error wins", New(ErrUpstream, http.StatusTeapot, "short and stout"), http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "missing %s", "zip")

	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, "invalid input: missing zip", err.Error())
	assert.Equal(t, "missing zip", PublicMessage(err))
}

func TestPublicMessageHidesInternals(t *testing.T) {
	err := errors.New("dial tcp 10.0.0.1:3306: connection refused")
	assert.Equal(t, "Internal Server Error", PublicMessage(err))
	assert.Equal(t, "unauthorized", PublicMessage(ErrUnauthorized))
}
