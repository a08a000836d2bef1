package query

import (
	"github.com/paulmach/orb"

	"github.com/HSLdevcom/digitransit-geocoder/internal/index"
	"github.com/HSLdevcom/digitransit-geocoder/internal/model"
)

// ReverseResult is either a municipality (coarse zoom) or the nearest
// address (detailed zoom), never both.
type ReverseResult struct {
	Municipality *model.Municipality
	Address      *model.Address
	DistanceM    float64
}

// Reverse answers "what is here". Below the zoom threshold the point's
// municipality is the answer; at or above it the nearest address wins. The
// threshold comes from the containing municipality's document and falls
// back to the default outside every boundary.
func Reverse(s *index.Snapshot, p orb.Point, zoom int) (*ReverseResult, error) {
	if p.Lat() < -90 || p.Lat() > 90 || p.Lon() < -180 || p.Lon() > 180 {
		return nil, ErrBadRequest
	}
	muni, inRegion := s.MunicipalityAt(p)

	threshold := DefaultZoomThreshold
	if inRegion && muni.ZoomThreshold > 0 {
		threshold = muni.ZoomThreshold
	}
	if zoom < threshold {
		if !inRegion {
			return nil, ErrNotFound
		}
		return &ReverseResult{Municipality: &muni}, nil
	}

	a, d, ok := s.NearestAddress(p)
	if !ok {
		return nil, ErrNotFound
	}
	return &ReverseResult{Address: &a, DistanceM: d}, nil
}
