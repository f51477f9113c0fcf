package harvest

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/venuemap/venue-cli/internal/model"
	"github.com/venuemap/venue-cli/internal/resilience"
	"github.com/venuemap/venue-cli/internal/scrape"
	"github.com/venuemap/venue-cli/internal/store"
)

// MergePolicy decides what happens to cards already present in the store.
type MergePolicy string

const (
	// MergeAppend appends every harvested card, even if an earlier run
	// stored the same link.
	MergeAppend MergePolicy = "append"
	// MergeSkipExisting skips cards whose absolute link is already stored.
	MergeSkipExisting MergePolicy = "skip_existing"
)

// ParseMergePolicy converts a config string into a MergePolicy.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch MergePolicy(s) {
	case "", MergeAppend:
		return MergeAppend, nil
	case MergeSkipExisting:
		return MergeSkipExisting, nil
	default:
		return "", eris.Errorf("harvest: unknown merge policy %q (valid: append, skip_existing)", s)
	}
}

// Options tunes the harvest loop.
type Options struct {
	// BaseURL resolves relative card links. Defaults to the listing URL.
	BaseURL   string
	Selectors scrape.Selectors
	// RevealDelay is the pause after each successful reveal.
	RevealDelay time.Duration
	// RetryDelay is the pause before retrying a failed reveal.
	RetryDelay time.Duration
	// MaxRevealRetries bounds consecutive failed reveals before the listing
	// is declared stuck.
	MaxRevealRetries int
	// MaxReveals caps successful reveals. Zero means no cap.
	MaxReveals int
	Merge      MergePolicy
}

// DefaultOptions returns the pacing used against museum.nl.
func DefaultOptions() Options {
	return Options{
		Selectors:        scrape.DefaultSelectors(),
		RevealDelay:      3 * time.Second,
		RetryDelay:       2 * time.Second,
		MaxRevealRetries: 5,
		Merge:            MergeAppend,
	}
}

// Harvester turns listing cards into persisted records.
type Harvester struct {
	listing Listing
	fetcher scrape.Fetcher
	records *store.RecordStore
	opts    Options
}

// New creates a Harvester. The listing is opened and closed by Harvest.
func New(listing Listing, fetcher scrape.Fetcher, records *store.RecordStore, opts Options) *Harvester {
	if opts.Merge == "" {
		opts.Merge = MergeAppend
	}
	if opts.Selectors.Title == "" && opts.Selectors.AddressBlock == "" {
		opts.Selectors = scrape.DefaultSelectors()
	}
	return &Harvester{listing: listing, fetcher: fetcher, records: records, opts: opts}
}

// Harvest reveals the whole listing, then fetches each card's detail page and
// appends a record for it. Records are saved after every append so an
// interrupted run keeps everything collected so far. Per-card failures are
// counted and skipped; only storage failures abort.
func (h *Harvester) Harvest(ctx context.Context, listingURL string) (*model.Summary, error) {
	log := zap.L().With(zap.String("component", "harvest"))
	summary := model.NewSummary("harvest")

	records, err := h.records.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "harvest: load records")
	}
	log.Info("loaded existing records", zap.Int("count", len(records)))

	existing := make(map[string]bool, len(records))
	for _, r := range records {
		existing[r.DetailLink] = true
	}

	if err := h.listing.Open(ctx, listingURL); err != nil {
		return nil, err
	}
	defer func() {
		if cerr := h.listing.Close(); cerr != nil {
			log.Warn("close listing", zap.Error(cerr))
		}
	}()

	stuck, err := h.revealAll(ctx, log)
	if err != nil {
		return nil, err
	}
	summary.Stuck = stuck

	cards, err := h.listing.Cards(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "harvest: read cards")
	}
	log.Info("listing revealed", zap.Int("cards", len(cards)), zap.Bool("stuck", stuck))

	base := h.opts.BaseURL
	if base == "" {
		base = listingURL
	}

	for i, card := range cards {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cardLog := log.With(zap.Int("index", i+1), zap.Int("total", len(cards)))

		link, err := scrape.ResolveLink(base, card.Href)
		if err != nil {
			cardLog.Warn("card has no usable link", zap.Error(err))
			summary.Add(model.OutcomeExtractionFailed)
			continue
		}
		cardLog = cardLog.With(zap.String("link", link))

		if h.opts.Merge == MergeSkipExisting && existing[link] {
			cardLog.Debug("already stored")
			summary.Add(model.OutcomeSkippedExisting)
			continue
		}

		rec, err := h.buildRecord(ctx, link, card)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			cardLog.Warn("extract card", zap.Error(err))
			summary.Add(model.OutcomeExtractionFailed)
			continue
		}

		records = append(records, *rec)
		existing[link] = true
		if err := h.records.Save(ctx, records); err != nil {
			return nil, eris.Wrap(err, "harvest: save records")
		}
		summary.Add(model.OutcomeHarvested)
		cardLog.Info("harvested", zap.String("name", rec.Name), zap.String("address", rec.Address))
	}

	summary.Finish()
	return summary, nil
}

// revealAll triggers the reveal control until the listing is exhausted, the
// reveal cap is hit, or too many consecutive attempts fail. It reports
// whether it gave up on a control that was still present.
func (h *Harvester) revealAll(ctx context.Context, log *zap.Logger) (bool, error) {
	reveals, failures := 0, 0
	for {
		if h.opts.MaxReveals > 0 && reveals >= h.opts.MaxReveals {
			log.Info("reveal cap reached", zap.Int("reveals", reveals))
			return false, nil
		}

		err := h.listing.RevealMore(ctx)
		switch {
		case err == nil:
			reveals++
			failures = 0
			log.Debug("revealed more entries", zap.Int("reveals", reveals))
			if err := resilience.Sleep(ctx, h.opts.RevealDelay); err != nil {
				return false, err
			}
		case errors.Is(err, ErrExhausted):
			log.Info("listing exhausted", zap.Int("reveals", reveals))
			return false, nil
		case ctx.Err() != nil:
			return false, ctx.Err()
		default:
			failures++
			if failures > h.opts.MaxRevealRetries {
				log.Warn("reveal control stuck, continuing with entries revealed so far",
					zap.Int("reveals", reveals),
					zap.Int("attempts", failures),
					zap.Error(err),
				)
				return true, nil
			}
			log.Debug("reveal failed, retrying", zap.Int("attempt", failures), zap.Error(err))
			if err := resilience.Sleep(ctx, h.opts.RetryDelay); err != nil {
				return false, err
			}
		}
	}
}

func (h *Harvester) buildRecord(ctx context.Context, link string, card Card) (*model.Record, error) {
	page, err := h.fetcher.Fetch(ctx, link)
	if err != nil {
		return nil, eris.Wrap(err, "harvest: fetch detail")
	}
	detail, err := scrape.ExtractDetail(page.Body, h.opts.Selectors)
	if err != nil {
		return nil, err
	}

	thumb := card.Thumbnail
	if thumb != "" {
		if abs, err := scrape.ResolveLink(link, thumb); err == nil {
			thumb = abs
		}
	}

	return &model.Record{
		Name:         detail.Title,
		Address:      detail.Address,
		DetailLink:   link,
		ThumbnailURL: model.StringPtr(thumb),
	}, nil
}
