package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Daniromero1410/Sistema-Positiva/config"
	"github.com/Daniromero1410/Sistema-Positiva/model"
	"github.com/stretchr/testify/assert"
)

func TestTransportErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *TransportError
		want string
	}{
		{
			name: "no response",
			err:  &TransportError{Op: "poll progress", Err: errors.New("connection refused")},
			want: "poll progress: connection refused",
		},
		{
			name: "detail string",
			err:  &TransportError{Op: "cancel run", StatusCode: 400, Body: `{"detail":"La ejecución no está en proceso"}`},
			want: "cancel run: HTTP 400: La ejecución no está en proceso",
		},
		{
			name: "detail list",
			err:  &TransportError{Op: "start run", StatusCode: 422, Body: `{"detail":[{"loc":["body","modo"]}]}`},
			want: `start run: HTTP 422: [{"loc":["body","modo"]}]`,
		},
		{
			name: "plain body",
			err:  &TransportError{Op: "health", StatusCode: 502, Body: "Bad Gateway"},
			want: "health: HTTP 502: Bad Gateway",
		},
		{
			name: "empty body",
			err:  &TransportError{Op: "health", StatusCode: 500},
			want: "health: HTTP 500",
		},
		{
			name: "bad payload",
			err:  &TransportError{Op: "run results", StatusCode: 200, Err: errors.New("failed to parse response")},
			want: "run results: HTTP 200: failed to parse response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestTransportErrorRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  *TransportError
		want bool
	}{
		{"network", &TransportError{Err: errors.New("reset")}, true},
		{"cancelled", &TransportError{Err: fmt.Errorf("send: %w", context.Canceled)}, false},
		{"deadline", &TransportError{Err: context.DeadlineExceeded}, false},
		{"500", &TransportError{StatusCode: 500}, true},
		{"503", &TransportError{StatusCode: 503}, true},
		{"429", &TransportError{StatusCode: 429}, true},
		{"400", &TransportError{StatusCode: 400}, false},
		{"404", &TransportError{StatusCode: 404}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Retryable())
		})
	}
}

func TestStatusCodeWrapped(t *testing.T) {
	err := fmt.Errorf("watch: %w", &TransportError{Op: "poll progress", StatusCode: 404})
	assert.Equal(t, 404, StatusCode(err))
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 0, StatusCode(errors.New("other")))
	assert.Equal(t, 0, StatusCode(nil))
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, BaseDelay: time.Millisecond}

	tests := []struct {
		name  string
		err   error
		calls int
	}{
		{"validation", &model.ValidationError{Field: "ano", Message: "required"}, 1},
		{"client error", &TransportError{StatusCode: 400}, 1},
		{"server error", &TransportError{StatusCode: 500}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), policy, func(ctx context.Context) error {
				calls++
				return tt.err
			})
			assert.Equal(t, tt.calls, calls)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestRetryZeroPolicyRunsOnce(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryPolicy{}, func(ctx context.Context) error {
		calls++
		return &TransportError{StatusCode: 503}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &TransportError{StatusCode: 502}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestNewRetryPolicy(t *testing.T) {
	p := NewRetryPolicy(config.RetryConfig{MaxRetries: 2, BaseDelayMS: 250, MaxDelayMS: 4000})
	assert.Equal(t, 2, p.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, p.BaseDelay)
	assert.Equal(t, 4*time.Second, p.MaxDelay)
}
