package sources

import (
	"context"
	"time"

	shp "github.com/jonas-p/go-shp"

	"github.com/HSLdevcom/digitransit-geocoder/internal/model"
	"github.com/HSLdevcom/digitransit-geocoder/internal/projection"
)

// FacilityAdapter reads the LIPAS sports facility shapefile. Attribute
// columns are positional in this export: type names in Finnish, Swedish and
// English followed by the facility names in Finnish and Swedish. Geometry
// is TM35FIN points.
type FacilityAdapter struct{}

const (
	colTypeFi = 2
	colNameFi = 5
	colNameSv = 6
)

func (FacilityAdapter) Name() string { return "facilities" }

func (fa FacilityAdapter) Parse(ctx context.Context, path string) (*Batch, Diag, error) {
	diag := Diag{Source: fa.Name()}
	r, err := shp.Open(path)
	if err != nil {
		return nil, diag, &ParseError{Source: fa.Name(), Err: err}
	}
	defer r.Close()

	batch := &Batch{}
	now := time.Now()
	for r.Next() {
		if err := ctx.Err(); err != nil {
			return nil, diag, err
		}
		row, shape := r.Shape()
		pt, ok := shape.(*shp.Point)
		if !ok {
			diag.Skipped++
			continue
		}
		name := r.ReadAttribute(row, colNameFi)
		if name == "" {
			diag.Skipped++
			continue
		}
		nameSv := r.ReadAttribute(row, colNameSv)
		if nameSv == "" {
			nameSv = name
		}
		batch.Features = append(batch.Features, model.NamedFeature{
			Name:     name,
			NameSv:   nameSv,
			Category: model.CategoryFacility,
			Desc:     r.ReadAttribute(row, colTypeFi),
			// shapefile X is easting and Y northing
			Location:   projection.FromTM35(pt.Y, pt.X),
			Provenance: model.Provenance{Source: fa.Name(), ImportedAt: now},
		})
		diag.Parsed++
	}
	if err := r.Err(); err != nil {
		return nil, diag, &ParseError{Source: fa.Name(), Err: err}
	}
	return batch, diag, nil
}
