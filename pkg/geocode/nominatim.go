package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/venuemap/venue-cli/internal/resilience"
)

// searchCandidate is one element of the /search JSON response. Nominatim
// returns coordinates as strings.
type searchCandidate struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// search performs one GET /search request.
func (n *nominatim) search(ctx context.Context, query string) (*Result, error) {
	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}
	reqURL := strings.TrimRight(n.baseURL, "/") + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "geocode: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024)) //nolint:errcheck
		statusErr := eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "geocode: read body"), 0)
	}

	var candidates []searchCandidate
	if err := json.Unmarshal(body, &candidates); err != nil {
		// A 200 with a non-JSON body is a maintenance or proxy page, not an answer.
		return nil, resilience.NewTransientError(eris.Wrap(err, "geocode: parse response"), resp.StatusCode)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	return parseCandidate(candidates[0])
}

func parseCandidate(c searchCandidate) (*Result, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(c.Lat), 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: parse lat %q", c.Lat)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(c.Lon), 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: parse lon %q", c.Lon)
	}
	return &Result{Latitude: lat, Longitude: lon, DisplayName: c.DisplayName}, nil
}
