package query

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/HSLdevcom/digitransit-geocoder/internal/index"
)

// Interpolated is an estimated address position derived from a road
// segment's housenumber range.
type Interpolated struct {
	Street       string
	Municipality string
	Number       int
	Location     orb.Point
}

// Interpolate estimates where a housenumber sits on a street from the road
// network's per-side number ranges. The number's parity picks the side of
// the road; among segments whose range covers the number the narrowest
// range wins, since it localises the number best.
func Interpolate(s *index.Snapshot, street string, number int) (*Interpolated, error) {
	if number <= 0 {
		return nil, ErrBadRequest
	}
	segs := s.SegmentsFor(street)
	if len(segs) == 0 {
		return nil, ErrNotFound
	}

	best := -1
	var bestMin, bestMax int
	for i, seg := range segs {
		min, max, ok := seg.Bounds(number)
		if !ok || number < min || number > max {
			continue
		}
		if best >= 0 {
			if span, bestSpan := max-min, bestMax-bestMin; span > bestSpan ||
				(span == bestSpan && min >= bestMin) {
				continue
			}
		}
		best, bestMin, bestMax = i, min, max
	}
	if best < 0 {
		return nil, ErrNotFound
	}
	seg := segs[best]

	f := 0.5
	if bestMax > bestMin {
		f = float64(number-bestMin) / float64(bestMax-bestMin)
	}
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return &Interpolated{
		Street:       seg.NameFi,
		Municipality: seg.Municipality,
		Number:       number,
		Location:     alongLine(seg.Geometry, f),
	}, nil
}

// alongLine walks the polyline to the point at fraction f of its total
// arc length.
func alongLine(line orb.LineString, f float64) orb.Point {
	if len(line) == 0 {
		return orb.Point{}
	}
	if len(line) == 1 || f <= 0 {
		return line[0]
	}
	total := 0.0
	for i := 1; i < len(line); i++ {
		total += geo.Distance(line[i-1], line[i])
	}
	if total == 0 || f >= 1 {
		return line[len(line)-1]
	}
	target := total * f
	walked := 0.0
	for i := 1; i < len(line); i++ {
		d := geo.Distance(line[i-1], line[i])
		if walked+d >= target {
			t := 0.0
			if d > 0 {
				t = (target - walked) / d
			}
			return orb.Point{
				line[i-1].Lon() + (line[i].Lon()-line[i-1].Lon())*t,
				line[i-1].Lat() + (line[i].Lat()-line[i-1].Lat())*t,
			}
		}
		walked += d
	}
	return line[len(line)-1]
}
