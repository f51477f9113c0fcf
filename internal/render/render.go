// Package render turns enriched records into map and table artifacts.
package render

import (
	"context"
	"io"

	"github.com/venuemap/venue-cli/internal/model"
)

// Marker is a record that can be placed on a map.
type Marker struct {
	// Index is the record's position in the record list.
	Index     int
	Name      string
	Address   string
	Link      string
	Thumbnail string
	Lat       float64
	Lon       float64
}

// Renderable returns markers for the records that have both coordinates,
// in record order. Records without a full pair are left out.
func Renderable(records []model.Record) []Marker {
	markers := make([]Marker, 0, len(records))
	for i := range records {
		r := &records[i]
		c := r.Coordinates()
		if c == nil {
			continue
		}
		markers = append(markers, Marker{
			Index:     i,
			Name:      r.Name,
			Address:   r.Address,
			Link:      r.DetailLink,
			Thumbnail: r.Thumbnail(),
			Lat:       c.Lat,
			Lon:       c.Lon,
		})
	}
	return markers
}

// Renderer writes a map artifact for a set of markers.
type Renderer interface {
	Render(ctx context.Context, w io.Writer, markers []Marker) error
}

// Exporter writes every record, resolved or not, as a table.
type Exporter interface {
	Export(ctx context.Context, w io.Writer, records []model.Record) error
}
