package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuemap/venue-cli/internal/resilience"
)

// newTestClient points a client at srv with no throttle backoff.
func newTestClient(srv *httptest.Server, opts ...Option) Client {
	base := []Option{
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithThrottleBackoff(time.Millisecond),
	}
	return NewClient(append(base, opts...)...)
}

func TestResolve_Match(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Main St 1", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "venue-test/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"lat":"52.1","lon":"5.2","display_name":"Main St 1, Utrecht"}]`)
	}))
	defer srv.Close()

	c := newTestClient(srv, WithUserAgent("venue-test/1.0"))
	res, err := c.Resolve(context.Background(), "Main St 1")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.InDelta(t, 52.1, res.Latitude, 1e-9)
	assert.InDelta(t, 5.2, res.Longitude, 1e-9)
	assert.Equal(t, "Main St 1, Utrecht", res.DisplayName)
}

func TestResolve_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	res, err := newTestClient(srv).Resolve(context.Background(), "Nowhere")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestResolve_ThrottledThenSuccess_RetriesOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `[{"lat":"52.1","lon":"5.2"}]`)
	}))
	defer srv.Close()

	res, err := newTestClient(srv).Resolve(context.Background(), "Main St 1")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.InDelta(t, 52.1, res.Latitude, 1e-9)
	assert.Equal(t, int32(2), calls.Load(), "exactly one retry")
}

func TestResolve_ThrottledTwice_AcceptsRetryOutcome(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Resolve(context.Background(), "Main St 1")
	require.Error(t, err)
	assert.True(t, IsThrottled(err))
	assert.True(t, resilience.IsTransient(err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestResolve_ThrottledThenEmpty(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	res, err := newTestClient(srv).Resolve(context.Background(), "Main St 1")
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResolve_ServerErrorIsTransient_NoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Resolve(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Contains(t, err.Error(), "status 502")
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolve_ForbiddenIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Resolve(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
	assert.Contains(t, err.Error(), "status 403")
}

func TestResolve_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<html>oops</html>`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Resolve(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse response")
	assert.True(t, resilience.IsTransient(err))
}

func TestResolve_BadCoordinateString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"lat":"north","lon":"5.2"}]`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Resolve(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse lat")
}

func TestResolve_ConnectionFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := NewClient(WithBaseURL(base), WithThrottleBackoff(time.Millisecond))
	_, err := c.Resolve(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestResolve_CircuitOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	c := newTestClient(srv, WithCircuitBreaker(cb))

	for i := 0; i < 2; i++ {
		_, err := c.Resolve(context.Background(), "x")
		require.Error(t, err)
	}
	_, err := c.Resolve(context.Background(), "x")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResolve_ThrottlingDoesNotOpenCircuit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cb := resilience.NewCircuitBreaker(resilience.FromCircuitConfig(2, 3600))
	c := newTestClient(srv, WithCircuitBreaker(cb))

	for i := 0; i < 3; i++ {
		_, err := c.Resolve(context.Background(), "x")
		require.Error(t, err)
		assert.True(t, IsThrottled(err), "call %d", i)
		assert.NotErrorIs(t, err, resilience.ErrCircuitOpen)
	}
	// Every call reached the service and got its single retry.
	assert.Equal(t, int32(6), calls.Load())
	assert.Equal(t, resilience.CircuitClosed, cb.State())
}
