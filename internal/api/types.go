package api

import (
	"github.com/paulmach/orb"

	"github.com/HSLdevcom/digitransit-geocoder/internal/model"
	"github.com/HSLdevcom/digitransit-geocoder/internal/query"
)

// AddressResult is the wire form of one address. Location is a GeoJSON
// style [lon, lat] pair.
type AddressResult struct {
	StreetFi       string    `json:"street_fi"`
	StreetSv       string    `json:"street_sv,omitempty"`
	Number         string    `json:"number"`
	Unit           string    `json:"unit,omitempty"`
	MunicipalityFi string    `json:"municipality_fi"`
	MunicipalitySv string    `json:"municipality_sv,omitempty"`
	Location       orb.Point `json:"location"`
	Source         string    `json:"source,omitempty"`
}

func toAddressResult(a model.Address) AddressResult {
	return AddressResult{
		StreetFi:       a.StreetFi,
		StreetSv:       a.StreetSv,
		Number:         a.NumberLabel(),
		Unit:           a.Unit,
		MunicipalityFi: a.MunicipalityFi,
		MunicipalitySv: a.MunicipalitySv,
		Location:       a.Location,
		Source:         a.Source,
	}
}

// AddressList wraps exact lookup results.
type AddressList struct {
	Results []AddressResult `json:"results"`
}

func toAddressList(addrs []model.Address) AddressList {
	out := AddressList{Results: make([]AddressResult, 0, len(addrs))}
	for _, a := range addrs {
		out.Results = append(out.Results, toAddressResult(a))
	}
	return out
}

// ReverseResponse is either a municipality or the nearest address.
type ReverseResponse struct {
	MunicipalityFi string         `json:"municipality_fi,omitempty"`
	MunicipalitySv string         `json:"municipality_sv,omitempty"`
	Address        *AddressResult `json:"address,omitempty"`
	DistanceM      float64        `json:"distance_m,omitempty"`
}

func toReverseResponse(r *query.ReverseResult) ReverseResponse {
	if r.Municipality != nil {
		return ReverseResponse{
			MunicipalityFi: r.Municipality.NameFi,
			MunicipalitySv: r.Municipality.NameSv,
		}
	}
	a := toAddressResult(*r.Address)
	return ReverseResponse{Address: &a, DistanceM: r.DistanceM}
}

// InterpolateResponse carries an estimated position.
type InterpolateResponse struct {
	Street       string    `json:"street"`
	Municipality string    `json:"municipality,omitempty"`
	Number       int       `json:"number"`
	Location     orb.Point `json:"location"`
}

// MetaResponse mirrors the import marker; Updated is null until the first
// import completes.
type MetaResponse struct {
	Updated    *string `json:"updated"`
	Generation int64   `json:"generation,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
