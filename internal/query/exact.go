package query

import (
	"strconv"
	"strings"

	"github.com/HSLdevcom/digitransit-geocoder/internal/index"
	"github.com/HSLdevcom/digitransit-geocoder/internal/model"
)

// StreetAddresses lists every address of one street in one municipality,
// sorted by housenumber. Either language resolves both parts.
func StreetAddresses(s *index.Snapshot, city, street string) ([]model.Address, error) {
	out := s.StreetAddresses(city, street)
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// LookupAddress resolves one housenumber on a street. Range entries cover
// every number inside them, so "Virsutie 5" hits the "4-6" record. Several
// results are possible when units split the number.
func LookupAddress(s *index.Snapshot, city, street, housenumber string) ([]model.Address, error) {
	n, err := strconv.Atoi(strings.TrimSpace(housenumber))
	if err != nil || n <= 0 {
		return nil, ErrBadRequest
	}
	all := s.StreetAddresses(city, street)
	if len(all) == 0 {
		return nil, ErrNotFound
	}
	var out []model.Address
	for _, a := range all {
		if a.Covers(n) {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}
