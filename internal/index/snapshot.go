// Package index persists document generations in Postgres and serves them
// through an immutable in-memory snapshot. A rebuild writes a fresh
// generation table, flips the current marker in one transaction and drops
// the old table; the server swaps snapshots atomically so queries never see
// a half-built index.
package index

import (
	"sort"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/HSLdevcom/digitransit-geocoder/internal/model"
)

// StreetName is one street aggregated across its addresses, used by the
// suggest endpoint.
type StreetName struct {
	NameFi         string `json:"name_fi"`
	NameSv         string `json:"name_sv,omitempty"`
	MunicipalityFi string `json:"municipality_fi"`
	MunicipalitySv string `json:"municipality_sv,omitempty"`
	Count          int    `json:"count"`
}

// Snapshot is one generation's documents plus the derived lookup
// structures. It is immutable after BuildSnapshot returns.
type Snapshot struct {
	Generation int64
	UpdatedAt  time.Time
	Docs       *model.DocumentSet

	streets  map[string][]int // lower(city)|lower(street) -> address indexes
	segments map[string][]int // lower(street) -> segment indexes
	munis    map[string]int   // lower(name, both languages) -> municipality index
	names    []StreetName
	kd       *kdTree
	bounds   *BoundaryIndex
}

func streetKey(city, street string) string {
	return strings.ToLower(strings.TrimSpace(city)) + "|" + strings.ToLower(strings.TrimSpace(street))
}

// BuildSnapshot derives every lookup structure from the document set.
// Streets and municipalities register under both their Finnish and Swedish
// names so either language resolves.
func BuildSnapshot(generation int64, updatedAt time.Time, set *model.DocumentSet) *Snapshot {
	s := &Snapshot{
		Generation: generation,
		UpdatedAt:  updatedAt,
		Docs:       set,
		streets:    map[string][]int{},
		segments:   map[string][]int{},
		munis:      map[string]int{},
	}

	for i, m := range set.Municipalities {
		for _, name := range []string{m.NameFi, m.NameSv} {
			if name != "" {
				s.munis[strings.ToLower(name)] = i
			}
		}
	}

	nameAgg := map[string]*StreetName{}
	pts := make([]orb.Point, len(set.Addresses))
	keys := make([]string, len(set.Addresses))
	for i, a := range set.Addresses {
		pts[i] = a.Location
		keys[i] = a.Key()
		for _, city := range []string{a.MunicipalityFi, a.MunicipalitySv} {
			if city == "" {
				continue
			}
			for _, street := range []string{a.StreetFi, a.StreetSv} {
				if street == "" {
					continue
				}
				k := streetKey(city, street)
				if n := len(s.streets[k]); n > 0 && s.streets[k][n-1] == i {
					continue // fi and sv names may coincide
				}
				s.streets[k] = append(s.streets[k], i)
			}
		}
		ak := streetKey(a.MunicipalityFi, a.StreetFi)
		if agg, ok := nameAgg[ak]; ok {
			agg.Count++
		} else {
			nameAgg[ak] = &StreetName{
				NameFi: a.StreetFi, NameSv: a.StreetSv,
				MunicipalityFi: a.MunicipalityFi, MunicipalitySv: a.MunicipalitySv,
				Count: 1,
			}
		}
	}
	s.names = make([]StreetName, 0, len(nameAgg))
	for _, n := range nameAgg {
		s.names = append(s.names, *n)
	}
	sort.Slice(s.names, func(a, b int) bool {
		if s.names[a].NameFi != s.names[b].NameFi {
			return s.names[a].NameFi < s.names[b].NameFi
		}
		return s.names[a].MunicipalityFi < s.names[b].MunicipalityFi
	})

	for i, seg := range set.Segments {
		for _, name := range []string{seg.NameFi, seg.NameSv} {
			if name == "" {
				continue
			}
			k := strings.ToLower(name)
			if n := len(s.segments[k]); n > 0 && s.segments[k][n-1] == i {
				continue
			}
			s.segments[k] = append(s.segments[k], i)
		}
	}

	s.kd = newKDTree(pts, keys)
	s.bounds = NewBoundaryIndex(set.Municipalities)
	return s
}

// StreetAddresses returns the addresses of one street in one municipality,
// sorted by housenumber then unit. Either language works for both parts.
func (s *Snapshot) StreetAddresses(city, street string) []model.Address {
	idxs := s.streets[streetKey(city, street)]
	out := make([]model.Address, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.Docs.Addresses[i])
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Number != out[b].Number {
			return out[a].Number < out[b].Number
		}
		if out[a].NumberEnd != out[b].NumberEnd {
			return out[a].NumberEnd < out[b].NumberEnd
		}
		return out[a].Unit < out[b].Unit
	})
	return out
}

// NearestAddress returns the closest address to p in metres.
func (s *Snapshot) NearestAddress(p orb.Point) (model.Address, float64, bool) {
	i, d, ok := s.kd.Nearest(p)
	if !ok {
		return model.Address{}, 0, false
	}
	return s.Docs.Addresses[i], d, true
}

// MunicipalityAt returns the municipality whose boundary contains p.
func (s *Snapshot) MunicipalityAt(p orb.Point) (model.Municipality, bool) {
	return s.bounds.Find(p)
}

// MunicipalityNamed resolves a municipality by either language's name,
// case-insensitively.
func (s *Snapshot) MunicipalityNamed(name string) (model.Municipality, bool) {
	i, ok := s.munis[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return model.Municipality{}, false
	}
	return s.Docs.Municipalities[i], true
}

// SegmentsFor returns the road segments carrying the given street name in
// either language.
func (s *Snapshot) SegmentsFor(street string) []model.StreetSegment {
	idxs := s.segments[strings.ToLower(strings.TrimSpace(street))]
	out := make([]model.StreetSegment, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.Docs.Segments[i])
	}
	return out
}

// StreetNames returns every street aggregated by municipality, sorted by
// Finnish name.
func (s *Snapshot) StreetNames() []StreetName { return s.names }

// Features returns all named features of the snapshot.
func (s *Snapshot) Features() []model.NamedFeature { return s.Docs.Features }
