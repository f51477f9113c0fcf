package render

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/venuemap/venue-cli/internal/model"
)

func f64(v float64) *float64 { return &v }

func sampleRecords() []model.Record {
	return []model.Record{
		{
			Name:         "Rijksmuseum",
			Address:      "Museumstraat 1 Amsterdam",
			DetailLink:   "https://www.museum.nl/nl/rijksmuseum",
			ThumbnailURL: model.StringPtr("https://img.example/rijks.jpg"),
			Latitude:     f64(52.36),
			Longitude:    f64(4.885),
		},
		{Name: "Nowhere", Address: "Unknown street", DetailLink: "https://www.museum.nl/nl/nowhere"},
		{Name: "Half", Address: "Half 1", DetailLink: "https://www.museum.nl/nl/half", Latitude: f64(52)},
		{
			Name:       "Mauritshuis",
			Address:    "Plein 29 Den Haag",
			DetailLink: "https://www.museum.nl/nl/mauritshuis",
			Latitude:   f64(52.0805),
			Longitude:  f64(4.3143),
		},
	}
}

func TestRenderable_OnlyFullPairs(t *testing.T) {
	markers := Renderable(sampleRecords())
	require.Len(t, markers, 2)
	assert.Equal(t, Marker{
		Index:     0,
		Name:      "Rijksmuseum",
		Address:   "Museumstraat 1 Amsterdam",
		Link:      "https://www.museum.nl/nl/rijksmuseum",
		Thumbnail: "https://img.example/rijks.jpg",
		Lat:       52.36,
		Lon:       4.885,
	}, markers[0])
	assert.Equal(t, 3, markers[1].Index)
	assert.Empty(t, markers[1].Thumbnail)
}

func TestRenderable_Empty(t *testing.T) {
	assert.Empty(t, Renderable(nil))
}

type featureCollection struct {
	Type     string    `json:"type"`
	Name     string    `json:"name"`
	BBox     []float64 `json:"bbox"`
	Features []struct {
		Type     string `json:"type"`
		ID       string `json:"id"`
		Geometry struct {
			Type        string    `json:"type"`
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]interface{} `json:"properties"`
	} `json:"features"`
}

func TestGeoJSON_Render(t *testing.T) {
	var buf bytes.Buffer
	err := GeoJSON{Name: "Musea"}.Render(context.Background(), &buf, Renderable(sampleRecords()))
	require.NoError(t, err)

	var fc featureCollection
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Equal(t, "Musea", fc.Name)
	require.Len(t, fc.Features, 2)

	first := fc.Features[0]
	assert.Equal(t, "Point", first.Geometry.Type)
	assert.Equal(t, []float64{4.885, 52.36}, first.Geometry.Coordinates)
	assert.Equal(t, "0", first.ID)
	assert.Equal(t, "Rijksmuseum", first.Properties["name"])
	assert.Equal(t, "Museumstraat 1 Amsterdam", first.Properties["address"])
	assert.Equal(t, "https://www.museum.nl/nl/rijksmuseum", first.Properties["link"])
	assert.Equal(t, "https://img.example/rijks.jpg", first.Properties["thumbnail"])
	assert.Equal(t, float64(0), first.Properties["index"])

	second := fc.Features[1]
	_, hasThumb := second.Properties["thumbnail"]
	assert.False(t, hasThumb)
	assert.Equal(t, "3", second.ID)

	assert.Equal(t, []float64{4.3143, 52.0805, 4.885, 52.36}, fc.BBox)
}

func TestGeoJSON_RenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, GeoJSON{}.Render(context.Background(), &buf, nil))

	var fc featureCollection
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Empty(t, fc.Features)
}

func TestGeoJSON_RenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	err := GeoJSON{}.Render(ctx, &buf, Renderable(sampleRecords()))
	require.Error(t, err)
	assert.Zero(t, buf.Len())
}

func TestCSV_Export(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV{}.Export(context.Background(), &buf, sampleRecords()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, tableColumns, rows[0])
	assert.Equal(t, []string{
		"Rijksmuseum", "Museumstraat 1 Amsterdam", "https://www.museum.nl/nl/rijksmuseum",
		"https://img.example/rijks.jpg", "52.36", "4.885",
	}, rows[1])
	assert.Equal(t, []string{"Nowhere", "Unknown street", "https://www.museum.nl/nl/nowhere", "", "", ""}, rows[2])
	// A partial pair exports as unresolved.
	assert.Equal(t, "", rows[3][4])
}

func TestXLSX_Export(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, XLSX{}.Export(context.Background(), &buf, sampleRecords()))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	assert.Equal(t, "Venues", sheet.Name)
	require.Len(t, sheet.Rows, 5)
	assert.Equal(t, "Name", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "Rijksmuseum", sheet.Rows[1].Cells[0].String())

	lat, err := sheet.Rows[1].Cells[4].Float()
	require.NoError(t, err)
	assert.InDelta(t, 52.36, lat, 1e-9)
	assert.Equal(t, "", cellString(sheet.Rows[2], 4))
}

// cellString tolerates rows whose trailing empty cells were not written.
func cellString(row *xlsx.Row, i int) string {
	if i >= len(row.Cells) {
		return ""
	}
	return row.Cells[i].String()
}
