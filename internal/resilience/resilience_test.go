package resilience

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestDoVal(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		transient bool
		wantCalls int
		wantErr   bool
	}{
		{name: "first try", failures: 0, transient: true, wantCalls: 1},
		{name: "recovers", failures: 2, transient: true, wantCalls: 3},
		{name: "exhausted", failures: 5, transient: true, wantCalls: 3, wantErr: true},
		{name: "permanent", failures: 5, transient: false, wantCalls: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			var retried []int
			cfg := fast()
			cfg.OnRetry = func(attempt int, _ time.Duration, _ error) { retried = append(retried, attempt) }

			v, err := DoVal(context.Background(), cfg, func(context.Context) (int, error) {
				calls++
				if calls <= tt.failures {
					if tt.transient {
						return 0, NewTransientError(errors.New("unavailable"), 503)
					}
					return 0, errors.New("bad input")
				}
				return 42, nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			assert.Len(t, retried, tt.wantCalls-1)
			if tt.wantErr {
				require.Error(t, err)
				assert.Zero(t, v)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 42, v)
		})
	}
}

func TestDoVal_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := DoVal(ctx, RetryConfig{MaxAttempts: 5, InitialBackoff: time.Hour}, func(context.Context) (string, error) {
		calls++
		cancel()
		return "", NewTransientError(errors.New("timeout"), 504)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_CancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Hour}
	cfg.OnRetry = func(int, time.Duration, error) { cancel() }

	calls := 0
	_, err := DoVal(ctx, cfg, func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("busy"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_ShouldRetryOverride(t *testing.T) {
	calls := 0
	cfg := fast()
	cfg.ShouldRetry = func(error) bool { return true }
	_, err := DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("plain")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoVal_HonorsRetryAfter(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: 40 * time.Millisecond}
	var delays []time.Duration
	cfg.OnRetry = func(_ int, d time.Duration, _ error) { delays = append(delays, d) }

	calls := 0
	v, err := DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			te := NewTransientError(errors.New("throttled"), 429)
			te.RetryAfter = time.Minute
			return 0, eris.Wrap(te, "arcgis: solve")
		}
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	// The server's wait wins over backoff but is capped by MaxBackoff.
	assert.Equal(t, []time.Duration{40 * time.Millisecond}, delays)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{name: "empty", header: "", want: 0},
		{name: "seconds", header: "3", want: 3 * time.Second},
		{name: "negative", header: "-5", want: 0},
		{name: "http date", header: "Sat, 17 Oct 2026 12:00:10 GMT", want: 10 * time.Second},
		{name: "past date", header: "Sat, 17 Oct 2026 11:00:00 GMT", want: 0},
		{name: "garbage", header: "soon", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRetryAfter(tt.header, now))
		})
	}
}

func TestRetryAfter(t *testing.T) {
	assert.Zero(t, RetryAfter(errors.New("plain")))
	te := NewTransientError(errors.New("x"), 503)
	te.RetryAfter = 2 * time.Second
	assert.Equal(t, 2*time.Second, RetryAfter(fmt.Errorf("wrapped: %w", te)))
}

func TestWithMaxAttempts(t *testing.T) {
	assert.Equal(t, 7, DefaultRetryConfig().WithMaxAttempts(7).MaxAttempts)
	assert.Equal(t, 3, DefaultRetryConfig().WithMaxAttempts(0).MaxAttempts)
}

func TestBackoff(t *testing.T) {
	cfg := applyDefaults(RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond})
	assert.Equal(t, 100*time.Millisecond, backoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, backoff(1, cfg))
	assert.Equal(t, 300*time.Millisecond, backoff(5, cfg))

	cfg.JitterFraction = 0.5
	for i := 0; i < 20; i++ {
		d := backoff(0, cfg)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "explicit", err: NewTransientError(errors.New("x"), 429), want: true},
		{name: "eris wrapped", err: eris.Wrap(NewTransientError(errors.New("x"), 503), "arcgis: solve"), want: true},
		{name: "reset", err: fmt.Errorf("write: %w", syscall.ECONNRESET), want: true},
		{name: "refused", err: fmt.Errorf("dial: %w", syscall.ECONNREFUSED), want: true},
		{name: "message", err: errors.New("read tcp: i/o timeout"), want: true},
		{name: "plain", err: errors.New("invalid token"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 404, 498} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	base := errors.New("root")
	te := NewTransientError(base, 500)
	assert.ErrorIs(t, te, base)
	assert.Equal(t, "root", te.Error())
}
