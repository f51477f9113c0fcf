package model

// Coordinates is a resolved latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Record is one harvested venue. Identity is positional: records are kept in
// harvest order and never deduplicated by the store.
//
// The JSON field names match the record files written by earlier versions of
// the harvester, so existing progress loads unchanged.
type Record struct {
	Name         string   `json:"name"`
	Address      string   `json:"location"`
	DetailLink   string   `json:"link"`
	ThumbnailURL *string  `json:"thumbnail"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are set. A
// partial pair counts as unresolved.
func (r *Record) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Coordinates returns the record's pair, or nil when unresolved.
func (r *Record) Coordinates() *Coordinates {
	if !r.HasCoordinates() {
		return nil
	}
	return &Coordinates{Lat: *r.Latitude, Lon: *r.Longitude}
}

// SetCoordinates stores c on the record. A nil c clears both fields so the
// pair is never left half-populated.
func (r *Record) SetCoordinates(c *Coordinates) {
	if c == nil {
		r.ClearCoordinates()
		return
	}
	lat, lon := c.Lat, c.Lon
	r.Latitude = &lat
	r.Longitude = &lon
}

// ClearCoordinates removes both coordinate fields.
func (r *Record) ClearCoordinates() {
	r.Latitude = nil
	r.Longitude = nil
}

// Thumbnail returns the thumbnail URL or "" when absent.
func (r *Record) Thumbnail() string {
	if r.ThumbnailURL == nil {
		return ""
	}
	return *r.ThumbnailURL
}

// StringPtr returns a pointer to s, or nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
