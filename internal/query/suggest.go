package query

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/HSLdevcom/digitransit-geocoder/internal/index"
	"github.com/HSLdevcom/digitransit-geocoder/internal/model"
)

// Suggestions groups completion candidates the way clients render them.
// Substring hits on street names rank ahead of fuzzy ones, which only
// appear when they are not already exact hits.
type Suggestions struct {
	Streets      []index.StreetName   `json:"streets"`
	FuzzyStreets []index.StreetName   `json:"fuzzy_streets"`
	Stops        []model.NamedFeature `json:"stops"`
	POIs         []model.NamedFeature `json:"pois"`
	Facilities   []model.NamedFeature `json:"facilities"`
	Services     []model.NamedFeature `json:"services"`
}

// Empty reports whether no group produced a candidate.
func (s *Suggestions) Empty() bool {
	return len(s.Streets) == 0 && len(s.FuzzyStreets) == 0 && len(s.Stops) == 0 &&
		len(s.POIs) == 0 && len(s.Facilities) == 0 && len(s.Services) == 0
}

// Suggest completes a partial term against street names and named features.
// cities, when non-empty, restricts every group to those municipalities
// (either language). Street matching is typo tolerant up to MaxEditDistance.
func Suggest(s *index.Snapshot, term string, cities []string) (*Suggestions, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, ErrBadRequest
	}
	filter := cityFilter(s, cities)
	out := &Suggestions{}

	for _, n := range s.StreetNames() {
		if filter != nil && !filter[strings.ToLower(n.MunicipalityFi)] && !filter[strings.ToLower(n.MunicipalitySv)] {
			continue
		}
		switch {
		case nameContains(term, n.NameFi, n.NameSv):
			if len(out.Streets) < GroupLimit {
				out.Streets = append(out.Streets, n)
			}
		case nameFuzzyMatches(term, n.NameFi) || nameFuzzyMatches(term, n.NameSv):
			if len(out.FuzzyStreets) < GroupLimit {
				out.FuzzyStreets = append(out.FuzzyStreets, n)
			}
		}
	}

	feats := make([]model.NamedFeature, 0)
	for _, f := range s.Features() {
		if filter != nil && !filter[strings.ToLower(f.Municipality)] {
			continue
		}
		if nameContains(term, f.Name, f.NameSv) ||
			(f.Code != "" && strings.Contains(strings.ToLower(f.Code), term)) ||
			(f.Desc != "" && strings.Contains(strings.ToLower(f.Desc), term)) {
			feats = append(feats, f)
		}
	}
	sort.Slice(feats, func(a, b int) bool {
		if feats[a].Name != feats[b].Name {
			return feats[a].Name < feats[b].Name
		}
		if feats[a].Desc != feats[b].Desc {
			return feats[a].Desc < feats[b].Desc
		}
		return feats[a].Code < feats[b].Code
	})
	for _, f := range feats {
		switch f.Category {
		case model.CategoryStop:
			if len(out.Stops) < GroupLimit {
				out.Stops = append(out.Stops, f)
			}
		case model.CategoryPOI:
			if len(out.POIs) < GroupLimit {
				out.POIs = append(out.POIs, f)
			}
		case model.CategoryFacility:
			if len(out.Facilities) < GroupLimit {
				out.Facilities = append(out.Facilities, f)
			}
		case model.CategoryService:
			if len(out.Services) < GroupLimit {
				out.Services = append(out.Services, f)
			}
		}
	}
	return out, nil
}

// cityFilter builds the set of lowered municipality names the request
// allows. Each supplied city is also resolved through the index, so a
// swedish name admits finnish-keyed documents and vice versa. nil means
// no filtering.
func cityFilter(s *index.Snapshot, cities []string) map[string]bool {
	var filter map[string]bool
	for _, city := range cities {
		city = strings.ToLower(strings.TrimSpace(city))
		if city == "" {
			continue
		}
		if filter == nil {
			filter = make(map[string]bool)
		}
		filter[city] = true
		if m, ok := s.MunicipalityNamed(city); ok {
			filter[strings.ToLower(m.NameFi)] = true
			if m.NameSv != "" {
				filter[strings.ToLower(m.NameSv)] = true
			}
		}
	}
	return filter
}

func nameContains(term string, names ...string) bool {
	for _, n := range names {
		if n != "" && strings.Contains(strings.ToLower(n), term) {
			return true
		}
	}
	return false
}

// nameFuzzyMatches compares the term against the name and against the
// name's prefix of the term's length, so a typo inside a partial term still
// matches ("mannerhemintie" finds Mannerheimintie).
func nameFuzzyMatches(term, name string) bool {
	if name == "" {
		return false
	}
	low := strings.ToLower(name)
	if levenshtein.ComputeDistance(term, low) <= MaxEditDistance {
		return true
	}
	prefix := []rune(low)
	tl := len([]rune(term))
	if len(prefix) > tl {
		prefix = prefix[:tl]
	}
	return levenshtein.ComputeDistance(term, string(prefix)) <= MaxEditDistance
}
