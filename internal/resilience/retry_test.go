package resilience

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackedBody struct {
	*strings.Reader
	closed bool
}

func (b *trackedBody) Close() error {
	b.closed = true
	return nil
}

func newTestResponse(statusCode int) (*http.Response, *trackedBody) {
	body := &trackedBody{Reader: strings.NewReader("payload")}
	return &http.Response{
		StatusCode: statusCode,
		Status:     fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode)),
		Body:       body,
	}, body
}

func fastRetryConfig(maxAttempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:     maxAttempts,
		InitialDelay:    time.Millisecond,
		MaxDelay:        10 * time.Millisecond,
		BackoffFactor:   1.0,
		JitterEnabled:   false,
		RetryableErrors: func(error) bool { return true },
	}
}

func TestRetryHTTPReturnsFinalResponseAfterExhaustedRetries(t *testing.T) {
	var bodies []*trackedBody
	calls := 0

	resp, err := RetryHTTP(context.Background(), fastRetryConfig(3), func() (*http.Response, error) {
		calls++
		r, b := newTestResponse(http.StatusServiceUnavailable)
		bodies = append(bodies, b)
		return r, nil
	})

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 3, calls)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)

	// Abandoned attempts are closed; the returned response stays readable.
	assert.True(t, bodies[0].closed)
	assert.True(t, bodies[1].closed)
	assert.False(t, bodies[2].closed)
}

func TestRetryHTTPSuccessAfterRetry(t *testing.T) {
	var firstBody *trackedBody
	calls := 0

	resp, err := RetryHTTP(context.Background(), fastRetryConfig(3), func() (*http.Response, error) {
		calls++
		if calls == 1 {
			r, b := newTestResponse(http.StatusTooManyRequests)
			firstBody = b
			return r, nil
		}
		r, _ := newTestResponse(http.StatusOK)
		return r, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, firstBody.closed)
}

func TestRetryHTTPDoesNotRetryAcceptedStatus(t *testing.T) {
	calls := 0

	resp, err := RetryHTTP(context.Background(), fastRetryConfig(3), func() (*http.Response, error) {
		calls++
		r, _ := newTestResponse(http.StatusBadRequest)
		return r, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRetryHTTPNonRetryableTransportError(t *testing.T) {
	config := fastRetryConfig(3)
	config.RetryableErrors = func(error) bool { return false }
	transportErr := fmt.Errorf("connection reset")
	calls := 0

	resp, err := RetryHTTP(context.Background(), config, func() (*http.Response, error) {
		calls++
		return nil, transportErr
	})

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, 1, calls)
	assert.Equal(t, transportErr, err)
}
