// Package enrich fills in missing record coordinates through a geocoder,
// consulting and extending a persisted address cache.
package enrich

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/venuemap/venue-cli/internal/model"
	"github.com/venuemap/venue-cli/internal/resilience"
	"github.com/venuemap/venue-cli/internal/store"
	"github.com/venuemap/venue-cli/pkg/geocode"
)

// Options tunes enrichment.
type Options struct {
	// CountrySuffix is appended to the address for the fallback query.
	// Empty disables the fallback.
	CountrySuffix string
	// Delay is the pause after every geocoder call.
	Delay time.Duration
}

// DefaultOptions matches Nominatim's one-request-per-second policy.
func DefaultOptions() Options {
	return Options{
		CountrySuffix: ", Netherlands",
		Delay:         1200 * time.Millisecond,
	}
}

// Enricher resolves coordinates for persisted records.
type Enricher struct {
	records *store.RecordStore
	cache   *store.CacheStore
	client  geocode.Client
	opts    Options
}

// New creates an Enricher.
func New(records *store.RecordStore, cache *store.CacheStore, client geocode.Client, opts Options) *Enricher {
	return &Enricher{records: records, cache: cache, client: client, opts: opts}
}

// Enrich walks the record list in order. Records that already have
// coordinates are left alone. Cached addresses never reach the geocoder.
// Each new cache entry and each updated record is saved immediately.
// Transient failures leave the record unresolved and are not cached, so a
// later run retries them.
func (e *Enricher) Enrich(ctx context.Context) (*model.Summary, error) {
	log := zap.L().With(zap.String("component", "enrich"))
	summary := model.NewSummary("enrich")

	cache, err := e.cache.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: load cache")
	}
	records, err := e.records.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: load records")
	}
	found, notFound := cache.Stats()
	log.Info("starting enrichment",
		zap.Int("records", len(records)),
		zap.Int("cached_found", found),
		zap.Int("cached_not_found", notFound),
	)

	for i := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := &records[i]
		recLog := log.With(
			zap.Int("index", i+1),
			zap.Int("total", len(records)),
			zap.String("name", rec.Name),
		)

		if rec.HasCoordinates() {
			summary.Add(model.OutcomeAlreadyResolved)
			continue
		}

		address := rec.Address
		if strings.TrimSpace(address) == "" {
			recLog.Debug("record has no address")
			summary.Add(model.OutcomeNoAddress)
			continue
		}
		recLog = recLog.With(zap.String("address", address))

		entry, hit := cache.Lookup(address)
		if hit {
			summary.Add(model.OutcomeCacheHit)
		} else {
			var transientErr error
			entry, transientErr = e.resolve(ctx, address)
			if transientErr != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				recLog.Warn("geocode failed, will retry on a later run", zap.Error(transientErr))
				summary.Add(model.OutcomeTransientFailure)
				continue
			}

			cache[address] = entry
			if err := e.cache.Save(ctx, cache); err != nil {
				return nil, eris.Wrap(err, "enrich: save cache")
			}
			if entry.IsFound() {
				summary.Add(model.OutcomeResolved)
			} else {
				summary.Add(model.OutcomeNotFound)
			}
		}

		// A negative outcome only changes the record if it held half a pair.
		changed := entry.IsFound() || rec.Latitude != nil || rec.Longitude != nil
		rec.SetCoordinates(entry.Coordinates)
		if changed {
			if err := e.records.Save(ctx, records); err != nil {
				return nil, eris.Wrap(err, "enrich: save records")
			}
		}

		if entry.IsFound() {
			recLog.Info("coordinates set",
				zap.Bool("cached", hit),
				zap.Float64("lat", entry.Coordinates.Lat),
				zap.Float64("lon", entry.Coordinates.Lon),
			)
		} else {
			recLog.Info("no coordinates found", zap.Bool("cached", hit))
		}
	}

	summary.Finish()
	return summary, nil
}

// resolve queries the raw address, then the address with the country suffix.
// A non-nil error means the outcome is unknown and must not be cached.
// Permanent service errors are treated as "not found".
func (e *Enricher) resolve(ctx context.Context, address string) (model.CacheEntry, error) {
	queries := []string{address}
	if e.opts.CountrySuffix != "" {
		queries = append(queries, address+e.opts.CountrySuffix)
	}

	for _, q := range queries {
		res, err := e.client.Resolve(ctx, q)
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			if serr := resilience.Sleep(ctx, e.opts.Delay); serr != nil {
				return model.CacheEntry{}, serr
			}
		}
		if err != nil {
			if resilience.IsTransient(err) || ctx.Err() != nil {
				return model.CacheEntry{}, err
			}
			zap.L().Debug("geocode rejected query",
				zap.String("component", "enrich"),
				zap.String("query", q),
				zap.Error(err),
			)
			continue
		}
		if res != nil {
			return model.Found(model.Coordinates{Lat: res.Latitude, Lon: res.Longitude}), nil
		}
	}
	return model.NotFound(), nil
}
