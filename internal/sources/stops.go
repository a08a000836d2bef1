package sources

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/paulmach/orb"

	"github.com/HSLdevcom/digitransit-geocoder/internal/model"
)

// StopAdapter reads a GTFS stops.txt. The feed is UTF-8 CSV with a header
// row; coordinates are already WGS84.
type StopAdapter struct{}

func (StopAdapter) Name() string { return "stops" }

func (s StopAdapter) Parse(ctx context.Context, path string) (*Batch, Diag, error) {
	diag := Diag{Source: s.Name()}
	f, err := os.Open(path)
	if err != nil {
		return nil, diag, &ParseError{Source: s.Name(), Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, diag, &ParseError{Source: s.Name(), Err: err}
	}
	col := map[string]int{}
	for i, h := range header {
		col[h] = i
	}
	for _, required := range []string{"stop_name", "stop_lat", "stop_lon"} {
		if _, ok := col[required]; !ok {
			return nil, diag, &ParseError{Source: s.Name(), Err: errMissingColumn(required)}
		}
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	batch := &Batch{}
	now := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return nil, diag, err
		}
		rec, err := r.Read()
		if err != nil {
			break
		}
		lat, errLat := strconv.ParseFloat(field(rec, "stop_lat"), 64)
		lon, errLon := strconv.ParseFloat(field(rec, "stop_lon"), 64)
		name := field(rec, "stop_name")
		if name == "" || errLat != nil || errLon != nil {
			diag.Skipped++
			continue
		}
		desc := field(rec, "stop_desc")
		if desc == "" {
			desc = field(rec, "stop_code")
		}
		batch.Features = append(batch.Features, model.NamedFeature{
			Name:       name,
			NameSv:     name,
			Category:   model.CategoryStop,
			Code:       field(rec, "stop_code"),
			Desc:       desc,
			Location:   orb.Point{lon, lat},
			Provenance: model.Provenance{Source: s.Name(), ImportedAt: now},
		})
		diag.Parsed++
	}
	return batch, diag, nil
}
