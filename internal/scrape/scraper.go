// Package scrape fetches venue detail pages and extracts structured fields
// from their HTML.
package scrape

import (
	"context"
)

// Page is a fetched HTML document.
type Page struct {
	URL        string // requested URL
	FinalURL   string // URL after redirects
	StatusCode int
	Body       []byte
}

// Fetcher fetches a single URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}
