package render

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/venuemap/venue-cli/internal/model"
)

// tableColumns is the column order shared by the CSV and XLSX exports.
var tableColumns = []string{
	"Name",
	"Address",
	"Link",
	"Thumbnail",
	"Latitude",
	"Longitude",
}

func tableRow(r *model.Record) []string {
	lat, lon := "", ""
	if c := r.Coordinates(); c != nil {
		lat = strconv.FormatFloat(c.Lat, 'f', -1, 64)
		lon = strconv.FormatFloat(c.Lon, 'f', -1, 64)
	}
	return []string{
		r.Name,
		r.Address,
		r.DetailLink,
		r.Thumbnail(),
		lat,
		lon,
	}
}

// CSV exports records as comma-separated values with a header row.
type CSV struct{}

// Export writes records to w.
func (CSV) Export(ctx context.Context, w io.Writer, records []model.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tableColumns); err != nil {
		return eris.Wrap(err, "csv export: write header")
	}
	for i := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := cw.Write(tableRow(&records[i])); err != nil {
			return eris.Wrap(err, "csv export: write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "csv export: flush")
	}
	return nil
}

// XLSX exports records as a single-sheet workbook.
type XLSX struct {
	// Sheet names the worksheet. Defaults to "Venues".
	Sheet string
}

// Export writes the workbook to w.
func (x XLSX) Export(ctx context.Context, w io.Writer, records []model.Record) error {
	name := x.Sheet
	if name == "" {
		name = "Venues"
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrap(err, "xlsx export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range tableColumns {
		header.AddCell().SetString(col)
	}

	for i := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		r := &records[i]
		row := sheet.AddRow()
		row.AddCell().SetString(r.Name)
		row.AddCell().SetString(r.Address)
		row.AddCell().SetString(r.DetailLink)
		row.AddCell().SetString(r.Thumbnail())
		if c := r.Coordinates(); c != nil {
			row.AddCell().SetFloat(c.Lat)
			row.AddCell().SetFloat(c.Lon)
		} else {
			row.AddCell()
			row.AddCell()
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx export: write")
	}
	return nil
}
