package harvest

import (
	"bytes"
	"context"
	"net/url"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/venuemap/venue-cli/internal/scrape"
)

// DefaultPageParam is the query parameter museum.nl uses for the page index.
const DefaultPageParam = "mv-PageIndex"

// PagedOptions configures a PagedListing.
type PagedOptions struct {
	Selectors ListingSelectors
	// PageParam is the query parameter that selects a page index.
	PageParam string
}

// PagedListing walks a listing over plain HTTP by incrementing a page index
// query parameter instead of clicking the reveal control. A page without the
// reveal control is the last one.
type PagedListing struct {
	fetcher scrape.Fetcher
	opts    PagedOptions

	base    *url.URL
	index   int
	hasMore bool
	cards   []Card
	seen    map[string]bool
}

// NewPagedListing creates an unopened HTTP listing.
func NewPagedListing(f scrape.Fetcher, opts PagedOptions) *PagedListing {
	opts.Selectors = opts.Selectors.withDefaults()
	if opts.PageParam == "" {
		opts.PageParam = DefaultPageParam
	}
	return &PagedListing{fetcher: f, opts: opts}
}

// Open fetches the page named by rawURL. Its page index, if any, is the
// starting index.
func (p *PagedListing) Open(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return eris.Wrapf(err, "harvest: parse listing url %q", rawURL)
	}
	p.base = u
	p.index = 0
	if v := u.Query().Get(p.opts.PageParam); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.index = n
		}
	}
	p.cards = nil
	p.seen = make(map[string]bool)

	if _, err := p.load(ctx); err != nil {
		return eris.Wrapf(err, "harvest: open listing %s", rawURL)
	}
	return nil
}

// RevealMore fetches the next page index.
func (p *PagedListing) RevealMore(ctx context.Context) error {
	if p.base == nil {
		return eris.New("harvest: paged listing not open")
	}
	if !p.hasMore {
		return ErrExhausted
	}

	p.index++
	added, err := p.load(ctx)
	if err != nil {
		p.index--
		return eris.Wrapf(err, "harvest: load page %d", p.index+1)
	}
	if added == 0 {
		// A page that repeats what we already have would loop forever.
		p.hasMore = false
		return ErrExhausted
	}
	return nil
}

// Cards returns the cards accumulated across all loaded pages.
func (p *PagedListing) Cards(_ context.Context) ([]Card, error) {
	out := make([]Card, len(p.cards))
	copy(out, p.cards)
	return out, nil
}

// Close is a no-op; the HTTP client is shared.
func (p *PagedListing) Close() error { return nil }

func (p *PagedListing) pageURL() string {
	u := *p.base
	q := u.Query()
	q.Set(p.opts.PageParam, strconv.Itoa(p.index))
	u.RawQuery = q.Encode()
	return u.String()
}

// load fetches the current index and appends unseen cards.
func (p *PagedListing) load(ctx context.Context) (int, error) {
	pageURL := p.pageURL()
	page, err := p.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return 0, err
	}

	cards, hasMore, err := ParseListingPage(page.Body, p.opts.Selectors)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, c := range cards {
		if c.Href != "" {
			if p.seen[c.Href] {
				continue
			}
			p.seen[c.Href] = true
		}
		if c.Thumbnail != "" {
			if abs, err := scrape.ResolveLink(pageURL, c.Thumbnail); err == nil {
				c.Thumbnail = abs
			}
		}
		p.cards = append(p.cards, c)
		added++
	}
	p.hasMore = hasMore
	return added, nil
}

// ParseListingPage extracts cards from a listing page and reports whether
// the page still offers the reveal control.
func ParseListingPage(body []byte, sel ListingSelectors) ([]Card, bool, error) {
	sel = sel.withDefaults()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false, eris.Wrap(err, "harvest: parse listing html")
	}

	var cards []Card
	doc.Find(sel.Card).Each(func(_ int, s *goquery.Selection) {
		var c Card
		if href, ok := s.Find(sel.CardLink).First().Attr("href"); ok {
			c.Href = href
		}
		if src, ok := s.Find(sel.CardImage).First().Attr("src"); ok {
			c.Thumbnail = src
		}
		cards = append(cards, c)
	})

	hasMore := doc.Find(sel.RevealMore).Length() > 0
	return cards, hasMore, nil
}
