package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/venuemap/venue-cli/internal/enrich"
	"github.com/venuemap/venue-cli/internal/harvest"
	"github.com/venuemap/venue-cli/internal/model"
	"github.com/venuemap/venue-cli/internal/resilience"
	"github.com/venuemap/venue-cli/internal/scrape"
	"github.com/venuemap/venue-cli/internal/store"
	"github.com/venuemap/venue-cli/pkg/geocode"
)

// appEnv holds the stores and the shared HTTP transport used by every
// command. Callers should defer env.Close().
type appEnv struct {
	Backend   store.Backend
	Records   *store.RecordStore
	Cache     *store.CacheStore
	Transport *http.Transport
}

// Close releases the backend and idle connections.
func (e *appEnv) Close() {
	if e.Transport != nil {
		e.Transport.CloseIdleConnections()
	}
	if e.Backend != nil {
		if err := e.Backend.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// httpClient returns a client over the shared connection pool with its own
// per-request timeout.
func (e *appEnv) httpClient(timeout time.Duration) *http.Client {
	return &http.Client{Transport: e.Transport, Timeout: timeout}
}

// initEnv validates the config for mode and opens the configured store.
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	backend, err := store.Open(ctx, store.Options{
		Driver:      cfg.Store.Driver,
		Dir:         cfg.Store.Dir,
		DatabaseURL: cfg.Store.DatabaseURL,
	})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	recordPolicy, err := store.ParseCorruptPolicy(cfg.Store.OnCorrupt)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	cachePolicy, err := store.ParseCorruptPolicy(cfg.Store.CacheOnCorrupt)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	return &appEnv{
		Backend:   backend,
		Records:   store.NewRecordStore(backend, cfg.Store.RecordsKey, recordPolicy),
		Cache:     store.NewCacheStore(backend, cfg.Store.CacheKey, cachePolicy),
		Transport: newTransport(),
	}, nil
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// newHarvester builds the harvester for the configured listing backend.
func newHarvester(env *appEnv) (*harvest.Harvester, error) {
	hc := cfg.Harvest

	merge, err := harvest.ParseMergePolicy(hc.Merge)
	if err != nil {
		return nil, err
	}

	fetcher := scrape.NewLocalScraper(scrape.LocalOptions{
		Client:    env.httpClient(time.Duration(hc.TimeoutSecs) * time.Second),
		UserAgent: hc.UserAgent,
		RPS:       hc.DetailRPS,
	})

	listingSel := harvest.ListingSelectors{
		Card:       hc.Selectors.Card,
		CardLink:   hc.Selectors.CardLink,
		CardImage:  hc.Selectors.CardImage,
		RevealMore: hc.Selectors.RevealMore,
	}

	var listing harvest.Listing
	switch hc.Backend {
	case "http":
		listing = harvest.NewPagedListing(fetcher, harvest.PagedOptions{
			Selectors: listingSel,
			PageParam: hc.PageParam,
		})
	default:
		listing = harvest.NewBrowserListing(harvest.BrowserOptions{
			Selectors: listingSel,
			Headless:  hc.Headless,
			ExecPath:  hc.ChromePath,
		})
	}

	detailSel := scrape.DefaultSelectors()
	if hc.Selectors.Title != "" {
		detailSel.Title = hc.Selectors.Title
	}
	if hc.Selectors.AddressBlock != "" {
		detailSel.AddressBlock = hc.Selectors.AddressBlock
	}
	if hc.Selectors.AddressStrip != nil {
		detailSel.AddressStrip = hc.Selectors.AddressStrip
	}

	return harvest.New(listing, fetcher, env.Records, harvest.Options{
		BaseURL:          hc.BaseURL,
		Selectors:        detailSel,
		RevealDelay:      hc.RevealDelay(),
		RetryDelay:       hc.RetryDelay(),
		MaxRevealRetries: hc.MaxRevealRetries,
		MaxReveals:       hc.MaxReveals,
		Merge:            merge,
	}), nil
}

// newEnricher builds the enricher with a circuit-guarded Nominatim client.
func newEnricher(env *appEnv) *enrich.Enricher {
	gc := cfg.Geocode
	breaker := resilience.NewCircuitBreaker(resilience.FromCircuitConfig(gc.CircuitThreshold, gc.CircuitResetSecs))
	client := geocode.NewClient(
		geocode.WithHTTPClient(env.httpClient(gc.Timeout())),
		geocode.WithBaseURL(gc.BaseURL),
		geocode.WithUserAgent(gc.UserAgent),
		geocode.WithThrottleBackoff(gc.ThrottleBackoff()),
		geocode.WithCircuitBreaker(breaker),
	)
	return enrich.New(env.Records, env.Cache, client, enrich.Options{
		CountrySuffix: gc.CountrySuffix,
		Delay:         gc.Delay(),
	})
}

// finishSummary logs s and, when path is set, writes it as YAML.
func finishSummary(s *model.Summary, path string) error {
	if s == nil {
		return nil
	}
	s.Log(zap.L())
	if path == "" {
		return nil
	}
	return s.WriteYAML(path)
}
