package sources

import (
	"context"
	"testing"

	"github.com/HSLdevcom/digitransit-geocoder/internal/model"
)

func TestServiceAdapter(t *testing.T) {
	body := `[
  {"id": 1, "name_fi": "Kallion kirjasto", "name_sv": "Berghälls bibliotek",
   "street_address_fi": "Viides linja 11", "latitude": 60.18416, "longitude": 24.95378},
  {"id": 2, "name_fi": "Neuvontapiste", "latitude": null, "longitude": null},
  {"id": 3, "name_sv": "Simhallen", "latitude": 60.19, "longitude": 24.96},
  {"id": 4, "latitude": 60.20, "longitude": 24.97}
]`
	path := writeFixture(t, "services.json", []byte(body))

	batch, diag, err := ServiceAdapter{}.Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if diag.Parsed != 2 || diag.Skipped != 2 {
		t.Fatalf("diag = %+v, want 2 parsed / 2 skipped", diag)
	}

	lib := batch.Features[0]
	if lib.Name != "Kallion kirjasto" || lib.NameSv != "Berghälls bibliotek" {
		t.Fatalf("names = %q / %q", lib.Name, lib.NameSv)
	}
	if lib.Category != model.CategoryService || lib.Desc != "Viides linja 11" {
		t.Fatalf("service = %+v", lib)
	}

	// swedish-only unit still indexes under both names
	if sv := batch.Features[1]; sv.Name != "Simhallen" || sv.NameSv != "Simhallen" {
		t.Fatalf("swedish-only unit = %+v", sv)
	}
}

func TestServiceAdapterBrokenBody(t *testing.T) {
	path := writeFixture(t, "services.json", []byte(`{"not": "an array"}`))
	if _, _, err := (ServiceAdapter{}).Parse(context.Background(), path); err == nil {
		t.Fatal("want error for non-array body")
	}
}
