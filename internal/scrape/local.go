package scrape

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/venuemap/venue-cli/internal/resilience"
)

// maxBodyBytes caps how much of a detail page is read.
const maxBodyBytes = 2 << 20

// LocalScraper fetches pages with a shared net/http client, paced by a
// per-scraper rate limiter.
type LocalScraper struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// LocalOptions configures a LocalScraper.
type LocalOptions struct {
	Client    *http.Client
	UserAgent string
	// RPS limits detail-page requests per second. Zero means unlimited.
	RPS float64
}

// NewLocalScraper creates a LocalScraper. The client is shared with the rest
// of the pipeline and is not closed by the scraper.
func NewLocalScraper(opts LocalOptions) *LocalScraper {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (compatible; venue-cli/1.0)"
	}
	return &LocalScraper{client: client, limiter: limiter, userAgent: ua}
}

// Fetch downloads targetURL and rejects blocked or error responses.
func (l *LocalScraper) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "local_http: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "local_http: fetch"), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "local_http: read body"), 0)
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", blockType)
	}

	if resp.StatusCode >= 400 {
		statusErr := eris.Errorf("local_http: status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	if len(body) == 0 {
		return nil, eris.New("local_http: empty page")
	}

	return &Page{
		URL:        targetURL,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}
