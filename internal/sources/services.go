package sources

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/paulmach/orb"

	"github.com/HSLdevcom/digitransit-geocoder/internal/model"
)

// ServiceAdapter reads the regional service registry, a JSON array of
// service units. The array is decoded element by element since the full
// dump runs to tens of megabytes.
type ServiceAdapter struct{}

func (ServiceAdapter) Name() string { return "services" }

type serviceUnit struct {
	NameFi    string   `json:"name_fi"`
	NameSv    string   `json:"name_sv"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	StreetFi  string   `json:"street_address_fi"`
}

func (s ServiceAdapter) Parse(ctx context.Context, path string) (*Batch, Diag, error) {
	diag := Diag{Source: s.Name()}
	f, err := os.Open(path)
	if err != nil {
		return nil, diag, &ParseError{Source: s.Name(), Err: err}
	}
	defer f.Close()

	d := json.NewDecoder(f)
	if _, err := d.Token(); err != nil { // opening bracket
		return nil, diag, &ParseError{Source: s.Name(), Err: err}
	}

	batch := &Batch{}
	now := time.Now()
	for d.More() {
		if err := ctx.Err(); err != nil {
			return nil, diag, err
		}
		var u serviceUnit
		if err := d.Decode(&u); err != nil {
			return nil, diag, &ParseError{Source: s.Name(), Err: err}
		}
		if u.Latitude == nil || u.Longitude == nil {
			// unit without a location is listed but not mappable
			diag.Skipped++
			continue
		}
		name := u.NameFi
		if name == "" {
			name = u.NameSv
		}
		if name == "" {
			diag.Skipped++
			continue
		}
		nameSv := u.NameSv
		if nameSv == "" {
			nameSv = name
		}
		batch.Features = append(batch.Features, model.NamedFeature{
			Name:       name,
			NameSv:     nameSv,
			Category:   model.CategoryService,
			Desc:       u.StreetFi,
			Location:   orb.Point{*u.Longitude, *u.Latitude},
			Provenance: model.Provenance{Source: s.Name(), ImportedAt: now},
		})
		diag.Parsed++
	}
	return batch, diag, nil
}
