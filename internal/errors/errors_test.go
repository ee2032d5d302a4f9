package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToAppErrorNil(t *testing.T) {
	assert.Nil(t, ToAppError(nil))
}

func TestToAppErrorPassesThroughAppError(t *testing.T) {
	original := NewInvalidInputError("bad stance value")
	assert.Same(t, original, ToAppError(original))
}

func TestToAppErrorUnwrapsWrappedErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		category   ErrorCategory
		httpStatus int
	}{
		{
			name:       "wrapped capability error keeps 503",
			err:        WrapError(NewCapabilityUnavailableError("embedding", nil), "semantic diversity embedding failed"),
			category:   CategoryCapability,
			httpStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "wrapped validation error keeps 400",
			err:        WrapError(NewInvalidInputError("stance label count does not match item count"), "diversity metrics failed"),
			category:   CategoryValidation,
			httpStatus: http.StatusBadRequest,
		},
		{
			name:       "doubly wrapped network error keeps 502",
			err:        WrapError(WrapError(NewNetworkError("inference request failed", nil), "classification failed"), "batch aborted"),
			category:   CategoryNetwork,
			httpStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := ToAppError(tt.err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.category, appErr.Category)
			assert.Equal(t, tt.httpStatus, appErr.HTTPStatus)
		})
	}
}

func TestToAppErrorHeuristicsForPlainErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category ErrorCategory
	}{
		{"connection refused", fmt.Errorf("dial tcp: connection refused"), CategoryNetwork},
		{"timeout", fmt.Errorf("request timeout after 30s"), CategoryTimeout},
		{"unknown", fmt.Errorf("something broke"), CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := ToAppError(tt.err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.category, appErr.Category)
		})
	}
}

func TestIsRetryableErrorSeesThroughWrapping(t *testing.T) {
	assert.True(t, IsRetryableError(WrapError(NewTimeoutError("inference call timed out", nil), "classification failed")))
	assert.False(t, IsRetryableError(WrapError(NewInvalidInputError("empty label set"), "classification failed")))
}

func TestIsCapabilityUnavailable(t *testing.T) {
	assert.True(t, IsCapabilityUnavailable(NewCapabilityUnavailableError("text classification", nil)))
	assert.True(t, IsCapabilityUnavailable(WrapError(NewCapabilityUnavailableError("embedding", nil), "detect failed")))
	assert.False(t, IsCapabilityUnavailable(fmt.Errorf("plain failure")))
}
