// Package harvest walks a paginated venue listing and persists one record
// per listing card.
package harvest

import (
	"context"

	"github.com/rotisserie/eris"
)

var (
	// ErrExhausted means the reveal control is gone: every entry is shown.
	ErrExhausted = eris.New("harvest: listing exhausted")
	// ErrObstructed means the reveal control exists but could not be
	// triggered, typically because an overlay covers it.
	ErrObstructed = eris.New("harvest: reveal control obstructed")
)

// Card is one entry on the listing page.
type Card struct {
	Href      string `json:"href"`
	Thumbnail string `json:"thumbnail"`
}

// Listing is a paginated listing session. Implementations own whatever
// resource backs the session and release it in Close.
type Listing interface {
	// Open loads the first page of the listing.
	Open(ctx context.Context, url string) error
	// RevealMore shows the next batch of entries. It returns ErrExhausted
	// when there is nothing left to reveal.
	RevealMore(ctx context.Context) error
	// Cards returns every entry revealed so far, in page order.
	Cards(ctx context.Context) ([]Card, error)
	// Close releases the session. It is safe to call more than once.
	Close() error
}

// ListingSelectors locate the reveal control and cards on a listing page.
type ListingSelectors struct {
	Card       string
	CardLink   string
	CardImage  string
	RevealMore string
}

// DefaultListingSelectors returns the selectors for the museum.nl listing.
func DefaultListingSelectors() ListingSelectors {
	return ListingSelectors{
		Card:       ".see-and-do-card",
		CardLink:   "a",
		CardImage:  "img",
		RevealMore: ".tiles-block_load-more button.btn-default",
	}
}

func (s ListingSelectors) withDefaults() ListingSelectors {
	d := DefaultListingSelectors()
	if s.Card == "" {
		s.Card = d.Card
	}
	if s.CardLink == "" {
		s.CardLink = d.CardLink
	}
	if s.CardImage == "" {
		s.CardImage = d.CardImage
	}
	if s.RevealMore == "" {
		s.RevealMore = d.RevealMore
	}
	return s
}
