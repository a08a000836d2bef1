package sources

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const addressHeader = "katunimi,osoitenumero,osoitenumero2,kiinteiston_jakokirjain,kaupunki,yhdistekentta,N,E,gatan,staden,tyyppi,tyyppi_selite,ajo_pvm\n"

func writeFixture(t *testing.T, name string, body []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAddressAdapter(t *testing.T) {
	// latin-1 encoded on purpose: \xf6 = ö, \xe4 = ä
	body := []byte(addressHeader +
		"Ty\xf6pajankatu,9,,,Helsinki,Ty\xf6pajankatu 9,6673226,25497111,Verkstadsgatan,Helsingfors,,,2014-01-01\n" +
		"Virsutie,4,6,,Helsinki,Virsutie 4-6,6678745,25499167,N\xe4verstigen,Helsingfors,,,2014-01-01\n" +
		"Yl\xe4st\xf6ntie,76,,a,Vantaa,Yl\xe4st\xf6ntie 76a,6683243,25492894,Gjutans v\xe4g,Vanda,,,2014-01-01\n" +
		"Puistokuja,,,,Helsinki,Puistokuja,,,Parkgr\xe4nden,Helsingfors,,,2014-01-01\n")
	path := writeFixture(t, "addresses.csv", body)

	batch, diag, err := AddressAdapter{}.Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if diag.Parsed != 3 || diag.Skipped != 1 {
		t.Fatalf("diag = %+v, want 3 parsed / 1 skipped", diag)
	}

	a := batch.Addresses[0]
	if a.StreetFi != "Työpajankatu" || a.StreetSv != "Verkstadsgatan" {
		t.Fatalf("latin-1 decode broken: %q / %q", a.StreetFi, a.StreetSv)
	}
	if a.Number != 9 || a.MunicipalityFi != "Helsinki" || a.MunicipalitySv != "Helsingfors" {
		t.Fatalf("address = %+v", a)
	}
	if lat, lon := a.Location.Lat(), a.Location.Lon(); lat < 59 || lat > 61 || lon < 24 || lon > 26 {
		t.Fatalf("location outside the region: %v", a.Location)
	}

	if r := batch.Addresses[1]; r.NumberEnd != 6 || r.NumberLabel() != "4-6" || !r.Covers(5) {
		t.Fatalf("range address = %+v", r)
	}
	if u := batch.Addresses[2]; u.Unit != "a" {
		t.Fatalf("unit address = %+v", u)
	}
}

func TestAddressAdapterMissingColumn(t *testing.T) {
	path := writeFixture(t, "addresses.csv", []byte("katunimi,kaupunki\nFoo,Helsinki\n"))
	_, _, err := AddressAdapter{}.Parse(context.Background(), path)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ParseError", err)
	}
}
