package render

import (
	"context"
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// GeoJSON renders markers as a FeatureCollection of points. Any web map
// library can load the result directly.
type GeoJSON struct {
	// Name is written as the collection's "name" member when set.
	Name string
}

// Render encodes markers to w.
func (g GeoJSON) Render(ctx context.Context, w io.Writer, markers []Marker) error {
	fc, err := g.collection(ctx, markers)
	if err != nil {
		return err
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrap(err, "render: marshal geojson")
	}
	if g.Name != "" {
		data, err = withName(data, g.Name)
		if err != nil {
			return err
		}
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "render: write geojson")
	}
	return nil
}

func (g GeoJSON) collection(ctx context.Context, markers []Marker) (*geojson.FeatureCollection, error) {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(markers))}
	if len(markers) == 0 {
		return fc, nil
	}

	bounds := geom.NewBounds(geom.XY)
	for _, m := range markers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// GeoJSON positions are longitude first.
		pt := geom.NewPointFlat(geom.XY, []float64{m.Lon, m.Lat})
		bounds.Extend(pt)

		props := map[string]interface{}{
			"name":    m.Name,
			"address": m.Address,
			"link":    m.Link,
			"index":   m.Index,
		}
		if m.Thumbnail != "" {
			props["thumbnail"] = m.Thumbnail
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         strconv.Itoa(m.Index),
			Geometry:   pt,
			Properties: props,
		})
	}
	fc.BBox = bounds
	return fc, nil
}

// withName adds a top-level "name" member, which go-geom does not model.
func withName(data []byte, name string) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "render: reparse geojson")
	}
	raw, err := json.Marshal(name)
	if err != nil {
		return nil, eris.Wrap(err, "render: encode name")
	}
	doc["name"] = raw
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, eris.Wrap(err, "render: marshal geojson")
	}
	return out, nil
}
