package scrape

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDetail(t *testing.T) {
	d, err := ExtractDetail([]byte(detailHTML), DefaultSelectors())
	require.NoError(t, err)
	assert.Equal(t, "Van Gogh Museum", d.Title)
	assert.Equal(t, "Museumplein 6 1071 DJ Amsterdam", d.Address)
}

func TestExtractDetail_StripsDecoration(t *testing.T) {
	body := `<html><body><h1>  Rijks
	museum </h1><section class="practical-info"><address>
<span class="icon">pin</span><svg><text>x</text></svg>
Museumstraat&nbsp;1
<strong>Open</strong>
1071&#160;XX  Amsterdam
</address></section></body></html>`
	d, err := ExtractDetail([]byte(body), DefaultSelectors())
	require.NoError(t, err)
	assert.Equal(t, "Rijks museum", d.Title)
	assert.Equal(t, "Museumstraat 1 1071 XX Amsterdam", d.Address)
}

func TestExtractDetail_NormalizesUnicode(t *testing.T) {
	// "e" followed by a combining acute accent.
	body := "<html><body><h1>Cafe\u0301</h1><section class=\"practical-info\"><address>Plein 1</address></section></body></html>"
	d, err := ExtractDetail([]byte(body), DefaultSelectors())
	require.NoError(t, err)
	assert.Equal(t, "Caf\u00e9", d.Title)
}

func TestExtractDetail_TitleFallback(t *testing.T) {
	body := `<html><head><title>Fries Museum</title></head><body>
<section class="practical-info"><address>Wilhelminaplein 92</address></section></body></html>`
	d, err := ExtractDetail([]byte(body), DefaultSelectors())
	require.NoError(t, err)
	assert.Equal(t, "Fries Museum", d.Title)

	body = `<html><body><section class="practical-info"><address>Wilhelminaplein 92</address></section></body></html>`
	d, err = ExtractDetail([]byte(body), DefaultSelectors())
	require.NoError(t, err)
	assert.Equal(t, UnknownTitle, d.Title)
}

func TestExtractDetail_MissingAddress(t *testing.T) {
	_, err := ExtractDetail([]byte(`<html><body><h1>Museum</h1></body></html>`), DefaultSelectors())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingElement))
}

func TestExtractDetail_AddressOnlyDecoration(t *testing.T) {
	body := `<html><body><h1>M</h1><section class="practical-info"><address><a href="/x">Route</a></address></section></body></html>`
	_, err := ExtractDetail([]byte(body), DefaultSelectors())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingElement))
}

func TestExtractDetail_CustomSelectors(t *testing.T) {
	body := `<html><body><h2 class="name">Zaans</h2><div id="addr">Schansend 7</div></body></html>`
	d, err := ExtractDetail([]byte(body), Selectors{Title: "h2.name", AddressBlock: "#addr"})
	require.NoError(t, err)
	assert.Equal(t, "Zaans", d.Title)
	assert.Equal(t, "Schansend 7", d.Address)
}

func TestResolveLink(t *testing.T) {
	tests := []struct {
		name string
		base string
		href string
		want string
	}{
		{"root relative", "https://www.museum.nl", "/nl/rijksmuseum", "https://www.museum.nl/nl/rijksmuseum"},
		{"absolute", "https://www.museum.nl", "https://other.nl/a", "https://other.nl/a"},
		{"relative to path", "https://www.museum.nl/nl/zien-en-doen/", "museum-x", "https://www.museum.nl/nl/zien-en-doen/museum-x"},
		{"trims space", "https://www.museum.nl", "  /nl/a ", "https://www.museum.nl/nl/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveLink(tt.base, tt.href)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveLink_Empty(t *testing.T) {
	_, err := ResolveLink("https://www.museum.nl", " ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingElement))
}
