package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// CacheEntry is the outcome of resolving one raw address. A nil Coordinates
// value is the negative "not found" sentinel.
type CacheEntry struct {
	Coordinates *Coordinates
}

// NotFound returns the negative cache entry.
func NotFound() CacheEntry { return CacheEntry{} }

// Found returns a positive cache entry for c.
func Found(c Coordinates) CacheEntry { return CacheEntry{Coordinates: &c} }

// IsFound reports whether the entry carries coordinates.
func (e CacheEntry) IsFound() bool { return e.Coordinates != nil }

// MarshalJSON encodes the entry as [lat, lon] or [null, null].
func (e CacheEntry) MarshalJSON() ([]byte, error) {
	if e.Coordinates == nil {
		return []byte("[null,null]"), nil
	}
	return json.Marshal([2]float64{e.Coordinates.Lat, e.Coordinates.Lon})
}

// UnmarshalJSON accepts [lat, lon] or [null, null]. A bare null, an empty
// array, or a pair with only one side present is treated as not found.
func (e *CacheEntry) UnmarshalJSON(data []byte) error {
	var pair []*float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return eris.Wrap(err, "model: decode cache entry")
	}
	if len(pair) == 0 {
		e.Coordinates = nil
		return nil
	}
	if len(pair) != 2 {
		return eris.Errorf("model: cache entry must have 2 elements, got %d", len(pair))
	}
	if pair[0] == nil || pair[1] == nil {
		e.Coordinates = nil
		return nil
	}
	e.Coordinates = &Coordinates{Lat: *pair[0], Lon: *pair[1]}
	return nil
}

// GeocodeCache maps a raw address string, exactly as it appeared on the record,
// to its resolution outcome.
type GeocodeCache map[string]CacheEntry

// Lookup returns the entry for address and whether one exists.
func (c GeocodeCache) Lookup(address string) (CacheEntry, bool) {
	e, ok := c[address]
	return e, ok
}

// Stats returns the number of positive and negative entries.
func (c GeocodeCache) Stats() (found, notFound int) {
	for _, e := range c {
		if e.IsFound() {
			found++
		} else {
			notFound++
		}
	}
	return found, notFound
}
