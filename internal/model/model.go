// Package model defines the canonical spatial documents shared by the
// import pipeline and the query engine. Every document carries provenance
// (source id + import time) so the last-write-wins merge in the builder
// stays inspectable after the fact.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// DocType discriminates persisted documents.
type DocType string

const (
	TypeAddress       DocType = "address"
	TypeStreetSegment DocType = "street_segment"
	TypeMunicipality  DocType = "municipality"
	TypeFeature       DocType = "feature"
)

// Provenance records which adapter produced a document and when.
type Provenance struct {
	Source     string    `json:"source"`
	ImportedAt time.Time `json:"imported_at"`
}

// Address is one entry of the address register. Number may describe a range
// (Number..NumberEnd share one geopoint, e.g. "Virsutie 4-6") and Unit a
// letter splitting several points on one number (e.g. "Ylästöntie 76a").
type Address struct {
	StreetFi       string    `json:"street_fi"`
	StreetSv       string    `json:"street_sv,omitempty"`
	Number         int       `json:"number"`
	NumberEnd      int       `json:"number_end,omitempty"`
	Unit           string    `json:"unit,omitempty"`
	MunicipalityFi string    `json:"municipality_fi"`
	MunicipalitySv string    `json:"municipality_sv,omitempty"`
	Location       orb.Point `json:"location"`
	Provenance
}

// NumberLabel renders the housenumber the way clients expect: "9" or "4-6".
func (a Address) NumberLabel() string {
	if a.NumberEnd != 0 && a.NumberEnd != a.Number {
		return fmt.Sprintf("%d-%d", a.Number, a.NumberEnd)
	}
	return fmt.Sprintf("%d", a.Number)
}

// Covers reports whether housenumber n falls on this address, honouring
// range entries.
func (a Address) Covers(n int) bool {
	if a.NumberEnd != 0 {
		return a.Number <= n && n <= a.NumberEnd
	}
	return a.Number == n
}

// Key is the natural identity used for dedupe across imports:
// street + housenumber + unit + municipality, case-insensitive.
func (a Address) Key() string {
	return strings.ToLower(a.StreetFi) + "|" + a.NumberLabel() + "|" +
		strings.ToLower(a.Unit) + "|" + strings.ToLower(a.MunicipalityFi)
}

// StreetSegment is a road polyline with housenumber bounds per parity side.
// By the national road network convention even numbers run on the left side
// of the digitisation direction and odd numbers on the right. A zero bound
// pair means the side carries no addresses and is not interpolatable.
type StreetSegment struct {
	NameFi       string         `json:"name_fi"`
	NameSv       string         `json:"name_sv,omitempty"`
	Municipality string         `json:"municipality,omitempty"`
	Geometry     orb.LineString `json:"geometry"`
	MinEven      int            `json:"min_even,omitempty"`
	MaxEven      int            `json:"max_even,omitempty"`
	MinOdd       int            `json:"min_odd,omitempty"`
	MaxOdd       int            `json:"max_odd,omitempty"`
	Provenance
}

// Bounds returns the housenumber bounds for the parity of n (n%2) and
// whether that side is interpolatable at all.
func (s StreetSegment) Bounds(parity int) (min, max int, ok bool) {
	if parity%2 == 0 {
		if s.MinEven == 0 && s.MaxEven == 0 {
			return 0, 0, false
		}
		return s.MinEven, s.MaxEven, true
	}
	if s.MinOdd == 0 && s.MaxOdd == 0 {
		return 0, 0, false
	}
	return s.MinOdd, s.MaxOdd, true
}

// Key identifies a segment by name and geometry endpoints; segments are
// per-file records in the source and have no upstream id worth keeping.
func (s StreetSegment) Key() string {
	k := strings.ToLower(s.NameFi)
	if len(s.Geometry) > 0 {
		first := s.Geometry[0]
		last := s.Geometry[len(s.Geometry)-1]
		k += fmt.Sprintf("|%.6f,%.6f|%.6f,%.6f", first.Lon(), first.Lat(), last.Lon(), last.Lat())
	}
	return k
}

// Municipality is an administrative boundary. ZoomThreshold is the zoom
// level below which reverse geocoding answers with the municipality
// instead of a point address.
type Municipality struct {
	NameFi        string           `json:"name_fi"`
	NameSv        string           `json:"name_sv,omitempty"`
	Boundary      orb.MultiPolygon `json:"boundary"`
	ZoomThreshold int              `json:"zoom_threshold"`
	Provenance
}

func (m Municipality) Key() string { return strings.ToLower(m.NameFi) }

// FeatureCategory groups NamedFeatures in suggest responses.
type FeatureCategory string

const (
	CategoryPOI      FeatureCategory = "poi"
	CategoryStop     FeatureCategory = "stop"
	CategoryFacility FeatureCategory = "facility"
	CategoryService  FeatureCategory = "service"
)

// NamedFeature is a point of interest, transit stop, sports facility or
// public service point. Municipality is derived from the boundary data and
// empty when the point falls outside every known boundary.
type NamedFeature struct {
	Name         string          `json:"name"`
	NameSv       string          `json:"name_sv,omitempty"`
	Category     FeatureCategory `json:"category"`
	Code         string          `json:"code,omitempty"`
	Desc         string          `json:"desc,omitempty"`
	Municipality string          `json:"municipality,omitempty"`
	Location     orb.Point       `json:"location"`
	Provenance
}

// Key dedupes features by name, category and rounded location; two sources
// describing the same feature rarely agree beyond ~10 m.
func (f NamedFeature) Key() string {
	return strings.ToLower(f.Name) + "|" + string(f.Category) +
		fmt.Sprintf("|%.4f,%.4f", f.Location.Lon(), f.Location.Lat())
}

// DocumentSet is the merged output of one import run, the unit handed to
// the indexer.
type DocumentSet struct {
	Addresses      []Address
	Segments       []StreetSegment
	Municipalities []Municipality
	Features       []NamedFeature
}

// Len is the total document count across families.
func (d *DocumentSet) Len() int {
	return len(d.Addresses) + len(d.Segments) + len(d.Municipalities) + len(d.Features)
}
