package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout", NewTransportError(KindTimeout, "get", nil), true},
		{"network", NewTransportError(KindNetwork, "get", stderrors.New("reset")), true},
		{"server error", NewStatusError("get", http.StatusBadGateway), true},
		{"request timeout", NewStatusError("get", http.StatusRequestTimeout), true},
		{"too many requests", NewStatusError("get", http.StatusTooManyRequests), true},
		{"not found", NewStatusError("get", http.StatusNotFound), false},
		{"unauthorized", NewStatusError("get", http.StatusUnauthorized), false},
		{"capacity", NewTransportError(KindCapacity, "upload", nil), false},
		{"circuit open", NewTransportError(KindCircuitOpen, "upload", nil), false},
		{"wrapped server error", fmt.Errorf("search: %w", NewStatusError("get", 503)), true},
		{"plain error", stderrors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestStatusErrorKind(t *testing.T) {
	assert.Equal(t, KindServer, NewStatusError("op", 500).Kind)
	assert.Equal(t, KindClient, NewStatusError("op", 404).Kind)
	assert.Contains(t, NewStatusError("op", 404).Error(), "status 404")
}

func TestMalformedInputClassification(t *testing.T) {
	assert.True(t, IsMalformedInput(NewInvalidTokenError(stderrors.New("bad base64"))))
	assert.True(t, IsMalformedInput(NewConfigurationError("bad config", nil)))
	assert.True(t, IsMalformedInput(NewAPIKeyMissingError("AllDebrid")))
	assert.False(t, IsMalformedInput(NewUnlockError("failed", nil)))
}

func TestIsKindAndNotFound(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NewTransportError(KindCapacity, "rate limiter", nil))
	assert.True(t, IsKind(err, KindCapacity))
	assert.False(t, IsKind(err, KindTimeout))
	assert.True(t, IsNotFound(fmt.Errorf("tmdb: %w", ErrNotFound)))
}
