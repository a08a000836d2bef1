package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/HSLdevcom/digitransit-geocoder/internal/index"
	"github.com/HSLdevcom/digitransit-geocoder/internal/model"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	set := &model.DocumentSet{
		Addresses: []model.Address{
			{StreetFi: "Mannerheimintie", StreetSv: "Mannerheimvägen", Number: 3,
				MunicipalityFi: "Helsinki", MunicipalitySv: "Helsingfors",
				Location:   orb.Point{24.9414, 60.1681},
				Provenance: model.Provenance{Source: "addresses"}},
			{StreetFi: "Virsutie", Number: 4, NumberEnd: 6,
				MunicipalityFi: "Helsinki", MunicipalitySv: "Helsingfors",
				Location: orb.Point{25.0102, 60.2210}},
			{StreetFi: "Asematie", Number: 1,
				MunicipalityFi: "Vantaa", MunicipalitySv: "Vanda",
				Location: orb.Point{25.0400, 60.3290}},
		},
		Segments: []model.StreetSegment{
			{NameFi: "Mannerheimintie", Municipality: "Helsinki",
				Geometry: orb.LineString{{24.9420, 60.1670}, {24.9400, 60.1700}},
				MinOdd:   1, MaxOdd: 9},
		},
		Municipalities: []model.Municipality{
			{NameFi: "Helsinki", NameSv: "Helsingfors", ZoomThreshold: 8,
				Boundary: orb.MultiPolygon{{{
					{24.8, 60.1}, {25.2, 60.1}, {25.2, 60.3}, {24.8, 60.3}, {24.8, 60.1},
				}}}},
			{NameFi: "Vantaa", NameSv: "Vanda", ZoomThreshold: 8,
				Boundary: orb.MultiPolygon{{{
					{24.8, 60.3}, {25.2, 60.3}, {25.2, 60.4}, {24.8, 60.4}, {24.8, 60.3},
				}}}},
		},
		Features: []model.NamedFeature{
			{Name: "Ritarihuone", Category: model.CategoryStop, Code: "0013",
				Municipality: "Helsinki", Location: orb.Point{24.9565, 60.1694}},
		},
	}
	holder := &index.Holder{}
	holder.Set(index.BuildSnapshot(3, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), set))
	srv := httptest.NewServer(NewServer(holder, nil).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp
}

func TestAddressEndpoint(t *testing.T) {
	srv := testServer(t)

	var list AddressList
	resp := get(t, srv, "/address/Helsinki/Mannerheimintie", &list)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(list.Results) != 1 {
		t.Fatalf("results = %+v", list.Results)
	}
	a := list.Results[0]
	if a.Number != "3" || a.StreetSv != "Mannerheimvägen" || a.MunicipalitySv != "Helsingfors" {
		t.Fatalf("result = %+v", a)
	}
	if a.Location[0] != 24.9414 || a.Location[1] != 60.1681 {
		t.Fatalf("location = %v, want [lon, lat]", a.Location)
	}

	var ranged AddressList
	get(t, srv, "/address/Helsinki/Virsutie/5", &ranged)
	if len(ranged.Results) != 1 || ranged.Results[0].Number != "4-6" {
		t.Fatalf("range lookup = %+v", ranged.Results)
	}

	if resp := get(t, srv, "/address/Helsinki/Olematonkatu", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown street status = %d", resp.StatusCode)
	}
	if resp := get(t, srv, "/address/Helsinki/Mannerheimintie/abc", nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad housenumber status = %d", resp.StatusCode)
	}
}

func TestSuggestEndpoint(t *testing.T) {
	srv := testServer(t)
	var got struct {
		Streets []index.StreetName `json:"streets"`
		Stops   []json.RawMessage  `json:"stops"`
	}
	resp := get(t, srv, "/suggest/manner", &got)
	if resp.StatusCode != http.StatusOK || len(got.Streets) != 1 {
		t.Fatalf("status = %d streets = %+v", resp.StatusCode, got.Streets)
	}

	var stops struct {
		Stops []json.RawMessage `json:"stops"`
	}
	get(t, srv, "/suggest/ritari", &stops)
	if len(stops.Stops) != 1 {
		t.Fatalf("stops = %d", len(stops.Stops))
	}
}

func TestSuggestRepeatedCityParams(t *testing.T) {
	srv := testServer(t)

	var one struct {
		Streets []index.StreetName `json:"streets"`
	}
	get(t, srv, "/suggest/tie?city=Vantaa", &one)
	if len(one.Streets) != 1 || one.Streets[0].NameFi != "Asematie" {
		t.Fatalf("single city streets = %+v", one.Streets)
	}

	var both struct {
		Streets []index.StreetName `json:"streets"`
	}
	get(t, srv, "/suggest/tie?city=Helsinki&city=Vantaa", &both)
	if len(both.Streets) != 3 {
		t.Fatalf("two-city streets = %+v, want streets from both cities", both.Streets)
	}
}

func TestReverseEndpoint(t *testing.T) {
	srv := testServer(t)

	var coarse ReverseResponse
	get(t, srv, "/reverse/60.1681,24.9414?zoom=7", &coarse)
	if coarse.MunicipalityFi != "Helsinki" || coarse.Address != nil {
		t.Fatalf("coarse = %+v", coarse)
	}

	var fine ReverseResponse
	get(t, srv, "/reverse/60.1681,24.9414?zoom=12", &fine)
	if fine.Address == nil || fine.Address.StreetFi != "Mannerheimintie" {
		t.Fatalf("fine = %+v", fine)
	}

	for _, bad := range []string{
		"/reverse/60.1681", "/reverse/xx,yy", "/reverse/60.1681,24.9414?zoom=x",
	} {
		if resp := get(t, srv, bad, nil); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s status = %d", bad, resp.StatusCode)
		}
	}

	if resp := get(t, srv, "/reverse/50.0,10.0?zoom=5", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("outside region status = %d", resp.StatusCode)
	}
}

func TestInterpolateEndpoint(t *testing.T) {
	srv := testServer(t)
	var got InterpolateResponse
	resp := get(t, srv, "/interpolate/Mannerheimintie/1", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got.Street != "Mannerheimintie" || got.Number != 1 {
		t.Fatalf("response = %+v", got)
	}
	if got.Location[0] != 24.9420 || got.Location[1] != 60.1670 {
		t.Fatalf("location = %v", got.Location)
	}

	if resp := get(t, srv, "/interpolate/Mannerheimintie/4", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unnumbered side status = %d", resp.StatusCode)
	}
}

func TestMetaEndpoint(t *testing.T) {
	srv := testServer(t)
	var got MetaResponse
	get(t, srv, "/meta", &got)
	if got.Updated == nil || *got.Updated != "2026-08-29" || got.Generation != 3 {
		t.Fatalf("meta = %+v", got)
	}
}

func TestSnapshotNotLoaded(t *testing.T) {
	srv := httptest.NewServer(NewServer(&index.Holder{}, nil).Routes())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/address/Helsinki/Mannerheimintie")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	health, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("healthz status = %d, want 503", health.StatusCode)
	}
}

func TestCORSMirrorsOrigin(t *testing.T) {
	srv := testServer(t)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/meta", nil)
	req.Header.Set("Origin", "https://reittiopas.fi")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://reittiopas.fi" {
		t.Fatalf("allow-origin = %q", got)
	}

	plain, err := http.Get(srv.URL + "/meta")
	if err != nil {
		t.Fatal(err)
	}
	plain.Body.Close()
	if got := plain.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin without origin header = %q", got)
	}
}
