// Package geocode resolves free-text addresses to coordinates through a
// Nominatim-compatible search API.
package geocode

import (
	"context"
	"net/http"
	"time"

	"github.com/venuemap/venue-cli/internal/resilience"
)

// DefaultBaseURL is the public OpenStreetMap Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Result is the best candidate returned for a query.
type Result struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
}

// Client resolves a single free-text query.
type Client interface {
	// Resolve returns the top candidate for query. A nil result with a nil
	// error means the service answered and found nothing.
	Resolve(ctx context.Context, query string) (*Result, error)
}

// Option configures the geocoder.
type Option func(*nominatim)

// WithHTTPClient sets the HTTP client. The client's Timeout is the per-call
// timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(n *nominatim) {
		n.httpClient = hc
	}
}

// WithBaseURL points the client at a different Nominatim-compatible service.
func WithBaseURL(u string) Option {
	return func(n *nominatim) {
		if u != "" {
			n.baseURL = u
		}
	}
}

// WithUserAgent sets the User-Agent header. Nominatim's usage policy requires
// an identifying agent.
func WithUserAgent(ua string) Option {
	return func(n *nominatim) {
		if ua != "" {
			n.userAgent = ua
		}
	}
}

// WithThrottleBackoff sets how long to wait before the single retry of a
// throttled (429) request.
func WithThrottleBackoff(d time.Duration) Option {
	return func(n *nominatim) {
		n.throttleBackoff = d
	}
}

// WithCircuitBreaker guards calls with cb. Calls rejected by an open circuit
// fail with resilience.ErrCircuitOpen.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(n *nominatim) {
		n.breaker = cb
	}
}

type nominatim struct {
	httpClient      *http.Client
	baseURL         string
	userAgent       string
	throttleBackoff time.Duration
	breaker         *resilience.CircuitBreaker
}

// NewClient creates a Nominatim Client with the given options.
func NewClient(opts ...Option) Client {
	n := &nominatim{
		httpClient:      &http.Client{Timeout: 20 * time.Second},
		baseURL:         DefaultBaseURL,
		userAgent:       "venue-cli/1.0",
		throttleBackoff: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.breaker == nil {
		n.breaker = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig())
	}
	return n
}

// Resolve searches for query. A throttled response is retried exactly once
// after the throttle backoff and the retry's outcome is returned as is.
func (n *nominatim) Resolve(ctx context.Context, query string) (*Result, error) {
	cfg := resilience.ThrottleRetryConfig(n.throttleBackoff)
	cfg.OnRetry = resilience.RetryLogger("nominatim", "search")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Result, error) {
		return resilience.ExecuteVal(ctx, n.breaker, func(ctx context.Context) (*Result, error) {
			return n.search(ctx, query)
		})
	})
}

// IsThrottled reports whether err is a 429 response from the service.
func IsThrottled(err error) bool {
	return resilience.IsRateLimited(err)
}
