package builder

import (
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/HSLdevcom/digitransit-geocoder/internal/model"
	"github.com/HSLdevcom/digitransit-geocoder/internal/sources"
)

func helsinkiBoundary() model.Municipality {
	return model.Municipality{
		NameFi: "Helsinki",
		NameSv: "Helsingfors",
		Boundary: orb.MultiPolygon{{{
			{24.8, 60.1}, {25.2, 60.1}, {25.2, 60.3}, {24.8, 60.3}, {24.8, 60.1},
		}}},
		ZoomThreshold: 8,
	}
}

func addr(street string, n int, at time.Time, src string) model.Address {
	return model.Address{
		StreetFi:       street,
		Number:         n,
		MunicipalityFi: "Helsinki",
		Location:       orb.Point{24.94, 60.17},
		Provenance:     model.Provenance{Source: src, ImportedAt: at},
	}
}

func TestBuildLastWriteWins(t *testing.T) {
	early := time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	set, diag := Build([]*sources.Batch{
		{Addresses: []model.Address{addr("Fabianinkatu", 1, late, "addresses")}},
		{Addresses: []model.Address{addr("Fabianinkatu", 1, early, "legacy")}},
	})
	if diag.Duplicates != 1 {
		t.Fatalf("duplicates = %d, want 1", diag.Duplicates)
	}
	if len(set.Addresses) != 1 || set.Addresses[0].Source != "addresses" {
		t.Fatalf("merge kept the older document: %+v", set.Addresses)
	}
}

func TestBuildTieGoesToLaterBatch(t *testing.T) {
	at := time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC)
	set, _ := Build([]*sources.Batch{
		{Addresses: []model.Address{addr("Fabianinkatu", 1, at, "first")}},
		{Addresses: []model.Address{addr("Fabianinkatu", 1, at, "second")}},
	})
	if set.Addresses[0].Source != "second" {
		t.Fatalf("tie broke towards %q", set.Addresses[0].Source)
	}
}

func TestBuildAssignsMunicipality(t *testing.T) {
	at := time.Now()
	inside := model.NamedFeature{
		Name: "Kamppi", Category: model.CategoryStop,
		Location:   orb.Point{24.93, 60.168},
		Provenance: model.Provenance{Source: "stops", ImportedAt: at},
	}
	outside := model.NamedFeature{
		Name: "Kaukosaari", Category: model.CategoryPOI,
		Location:   orb.Point{23.0, 59.0},
		Provenance: model.Provenance{Source: "pois", ImportedAt: at},
	}
	seg := model.StreetSegment{
		NameFi:   "Fredrikinkatu",
		Geometry: orb.LineString{{24.935, 60.163}, {24.936, 60.168}},
		MinOdd:   1, MaxOdd: 9,
		Provenance: model.Provenance{Source: "roads", ImportedAt: at},
	}
	blank := addr("Eerikinkatu", 2, at, "addresses")
	blank.MunicipalityFi = ""

	set, diag := Build([]*sources.Batch{
		{Municipalities: []model.Municipality{helsinkiBoundary()}},
		{Features: []model.NamedFeature{inside, outside}},
		{Segments: []model.StreetSegment{seg}},
		{Addresses: []model.Address{blank}},
	})

	if got := set.Features[0].Municipality; got != "Helsinki" {
		t.Fatalf("feature municipality = %q", got)
	}
	if got := set.Features[1].Municipality; got != "" {
		t.Fatalf("out-of-region feature assigned to %q", got)
	}
	if got := set.Segments[0].Municipality; got != "Helsinki" {
		t.Fatalf("segment municipality = %q", got)
	}
	a := set.Addresses[0]
	if a.MunicipalityFi != "Helsinki" || a.MunicipalitySv != "Helsingfors" {
		t.Fatalf("address municipality = %q / %q", a.MunicipalityFi, a.MunicipalitySv)
	}
	if diag.Unassigned != 1 {
		t.Fatalf("unassigned = %d, want 1", diag.Unassigned)
	}
}

func TestBuildRegisterValueWins(t *testing.T) {
	at := time.Now()
	a := addr("Rajakatu", 1, at, "addresses")
	a.MunicipalityFi = "Vantaa"
	set, _ := Build([]*sources.Batch{
		{Municipalities: []model.Municipality{helsinkiBoundary()}},
		{Addresses: []model.Address{a}},
	})
	if set.Addresses[0].MunicipalityFi != "Vantaa" {
		t.Fatalf("register value overwritten: %+v", set.Addresses[0])
	}
}

func vantaaBoundary() model.Municipality {
	return model.Municipality{
		NameFi: "Vantaa",
		NameSv: "Vanda",
		Boundary: orb.MultiPolygon{{{
			{24.8, 60.3}, {25.2, 60.3}, {25.2, 60.4}, {24.8, 60.4}, {24.8, 60.3},
		}}},
		ZoomThreshold: 8,
	}
}

func TestBuildDerivedMunicipalityKeepsCitiesApart(t *testing.T) {
	at := time.Now()
	inHelsinki := model.Address{
		StreetFi: "Asematie", Number: 1,
		Location:   orb.Point{24.94, 60.17},
		Provenance: model.Provenance{Source: "osm", ImportedAt: at},
	}
	inVantaa := model.Address{
		StreetFi: "Asematie", Number: 1,
		Location:   orb.Point{24.94, 60.35},
		Provenance: model.Provenance{Source: "osm", ImportedAt: at},
	}

	set, diag := Build([]*sources.Batch{
		{Municipalities: []model.Municipality{helsinkiBoundary(), vantaaBoundary()}},
		{Addresses: []model.Address{inHelsinki, inVantaa}},
	})
	if diag.Duplicates != 0 || len(set.Addresses) != 2 {
		t.Fatalf("equal street and number in two cities collapsed: %+v", set.Addresses)
	}
	got := map[string]bool{}
	for _, a := range set.Addresses {
		got[a.MunicipalityFi] = true
	}
	if !got["Helsinki"] || !got["Vantaa"] {
		t.Fatalf("municipalities = %v", got)
	}
}

func TestBuildMergesAddressesAcrossSources(t *testing.T) {
	early := time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	register := addr("Fabianinkatu", 1, early, "addresses")
	osm := model.Address{
		StreetFi: "Fabianinkatu", Number: 1,
		Location:   orb.Point{24.95, 60.168},
		Provenance: model.Provenance{Source: "osm", ImportedAt: late},
	}

	set, diag := Build([]*sources.Batch{
		{Municipalities: []model.Municipality{helsinkiBoundary()}},
		{Addresses: []model.Address{register}},
		{Addresses: []model.Address{osm}},
	})
	if diag.Duplicates != 1 || len(set.Addresses) != 1 {
		t.Fatalf("cross-source merge: %+v diag = %+v", set.Addresses, diag)
	}
	if set.Addresses[0].Source != "osm" {
		t.Fatalf("later import lost the merge: %+v", set.Addresses[0])
	}
}

func TestBuildNilBatches(t *testing.T) {
	set, diag := Build([]*sources.Batch{nil, {}, nil})
	if set.Len() != 0 || diag.Duplicates != 0 {
		t.Fatalf("set = %+v diag = %+v", set, diag)
	}
}
