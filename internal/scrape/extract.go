package scrape

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// UnknownTitle is used when a detail page has neither an h1 nor a <title>.
const UnknownTitle = "Unknown"

// ErrMissingElement is wrapped by extraction errors for absent markup.
var ErrMissingElement = eris.New("scrape: expected element missing")

// Selectors locate fields on a detail page.
type Selectors struct {
	Title        string
	AddressBlock string
	// AddressStrip lists elements inside the address block whose content
	// is decoration (links, icons, labels) and not part of the address.
	AddressStrip []string
}

// DefaultSelectors returns the selectors for museum.nl detail pages.
func DefaultSelectors() Selectors {
	return Selectors{
		Title:        "h1",
		AddressBlock: "section.practical-info address",
		AddressStrip: []string{"a", "svg", "strong", "span"},
	}
}

// Detail holds the fields extracted from a detail page.
type Detail struct {
	Title   string
	Address string
}

// ExtractDetail parses body and pulls the title and postal address. A missing
// address block is an error; a missing title falls back to the document
// <title>, then to UnknownTitle.
func ExtractDetail(body []byte, sel Selectors) (*Detail, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse html")
	}

	title := cleanText(doc.Find(sel.Title).First().Text())
	if title == "" {
		title = extractTitle(body)
	}
	if title == "" {
		title = UnknownTitle
	}

	block := doc.Find(sel.AddressBlock).First()
	if block.Length() == 0 {
		return nil, eris.Wrapf(ErrMissingElement, "address block %q", sel.AddressBlock)
	}
	if len(sel.AddressStrip) > 0 {
		block.Find(strings.Join(sel.AddressStrip, ", ")).Remove()
	}
	address := strings.Join(textParts(block), " ")
	if address == "" {
		return nil, eris.Wrapf(ErrMissingElement, "address block %q is empty", sel.AddressBlock)
	}

	return &Detail{Title: title, Address: address}, nil
}

// textParts returns every non-blank text node under sel, cleaned, in
// document order.
func textParts(sel *goquery.Selection) []string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := cleanText(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return parts
}

// cleanText NFC-normalizes s and collapses all whitespace, including
// non-breaking spaces, to single spaces.
func cleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// extractTitle pulls the <title> from HTML.
func extractTitle(body []byte) string {
	m := titleRe.FindSubmatch(body)
	if len(m) > 1 {
		return cleanText(html.UnescapeString(string(m[1])))
	}
	return ""
}

// ResolveLink makes href absolute against base.
func ResolveLink(base, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", eris.Wrap(ErrMissingElement, "empty link")
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", eris.Wrapf(err, "scrape: parse link %q", href)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", eris.Wrapf(err, "scrape: parse base %q", base)
	}
	return b.ResolveReference(ref).String(), nil
}
