// Package builder merges the per-source batches of one import run into a
// single deduplicated document set. Documents sharing a natural key collapse
// to the one with the latest import time; municipality membership is derived
// from the boundary documents for everything that lacks it.
package builder

import (
	"github.com/HSLdevcom/digitransit-geocoder/internal/index"
	"github.com/HSLdevcom/digitransit-geocoder/internal/logger"
	"github.com/HSLdevcom/digitransit-geocoder/internal/model"
	"github.com/HSLdevcom/digitransit-geocoder/internal/sources"
)

// Diag summarises one merge.
type Diag struct {
	Duplicates int `json:"duplicates"`
	Unassigned int `json:"unassigned"` // documents outside every boundary
}

// Build merges batches in order; on key collisions the document with the
// later ImportedAt wins, ties going to the later batch. Nil batches from
// skipped sources are allowed.
func Build(batches []*sources.Batch) (*model.DocumentSet, Diag) {
	var diag Diag
	set := &model.DocumentSet{}

	muniIdx := map[string]int{}
	for _, b := range batches {
		if b == nil {
			continue
		}
		for _, m := range b.Municipalities {
			if i, ok := muniIdx[m.Key()]; ok {
				diag.Duplicates++
				if !m.ImportedAt.Before(set.Municipalities[i].ImportedAt) {
					set.Municipalities[i] = m
				}
				continue
			}
			muniIdx[m.Key()] = len(set.Municipalities)
			set.Municipalities = append(set.Municipalities, m)
		}
	}

	// Boundaries go first: the address identity includes the municipality,
	// so a source that ships none (OSM) needs it derived before keying or
	// equal street and number pairs in two cities would collapse.
	var bi *index.BoundaryIndex
	if len(set.Municipalities) > 0 {
		bi = index.NewBoundaryIndex(set.Municipalities)
	}

	addrIdx := map[string]int{}
	segIdx := map[string]int{}
	featIdx := map[string]int{}

	for _, b := range batches {
		if b == nil {
			continue
		}
		for _, a := range b.Addresses {
			if a.MunicipalityFi == "" && bi != nil {
				if m, ok := bi.Find(a.Location); ok {
					a.MunicipalityFi = m.NameFi
					a.MunicipalitySv = m.NameSv
				} else {
					diag.Unassigned++
				}
			}
			if i, ok := addrIdx[a.Key()]; ok {
				diag.Duplicates++
				if !a.ImportedAt.Before(set.Addresses[i].ImportedAt) {
					set.Addresses[i] = a
				}
				continue
			}
			addrIdx[a.Key()] = len(set.Addresses)
			set.Addresses = append(set.Addresses, a)
		}
		for _, s := range b.Segments {
			if i, ok := segIdx[s.Key()]; ok {
				diag.Duplicates++
				if !s.ImportedAt.Before(set.Segments[i].ImportedAt) {
					set.Segments[i] = s
				}
				continue
			}
			segIdx[s.Key()] = len(set.Segments)
			set.Segments = append(set.Segments, s)
		}
		for _, f := range b.Features {
			if i, ok := featIdx[f.Key()]; ok {
				diag.Duplicates++
				if !f.ImportedAt.Before(set.Features[i].ImportedAt) {
					set.Features[i] = f
				}
				continue
			}
			featIdx[f.Key()] = len(set.Features)
			set.Features = append(set.Features, f)
		}
	}

	assignMunicipalities(set, bi, &diag)
	logger.L().Info("build_done",
		"addresses", len(set.Addresses), "segments", len(set.Segments),
		"municipalities", len(set.Municipalities), "features", len(set.Features),
		"duplicates", diag.Duplicates, "unassigned", diag.Unassigned)
	return set, diag
}

// assignMunicipalities derives membership for segments and features;
// addresses got theirs during the merge. A point outside every boundary
// stays unassigned, which is valid for features near the region edge.
func assignMunicipalities(set *model.DocumentSet, bi *index.BoundaryIndex, diag *Diag) {
	if bi == nil {
		return
	}
	for i := range set.Segments {
		s := &set.Segments[i]
		if len(s.Geometry) == 0 {
			continue
		}
		if m, ok := bi.Find(s.Geometry[0]); ok {
			s.Municipality = m.NameFi
		} else {
			diag.Unassigned++
		}
	}
	for i := range set.Features {
		f := &set.Features[i]
		if m, ok := bi.Find(f.Location); ok {
			f.Municipality = m.NameFi
		} else {
			diag.Unassigned++
		}
	}
}
