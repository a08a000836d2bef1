// Package projection converts the source-native reference frames to WGS84.
// The feeds arrive in two ETRS89 frames: the municipal address register in
// GK25FIN (EPSG:3879) and the national datasets in TM35FIN (EPSG:3067).
// Everything downstream of the source adapters assumes WGS84 lon/lat.
package projection

import (
	"math"

	"github.com/paulmach/orb"
)

// GRS80 ellipsoid, shared by both frames.
const (
	a = 6378137.0
	f = 1 / 298.257222101
)

// tm describes one transverse Mercator frame.
type tm struct {
	lon0    float64 // central meridian, degrees
	k0      float64 // scale at the central meridian
	falseE  float64
	falseN  float64
}

var (
	// ETRS89 / GK25FIN. Not ETRS89 / ETRS-GK25FIN (EPSG:3132), which has a
	// different false easting.
	gk25 = tm{lon0: 25, k0: 1, falseE: 25500000, falseN: 0}
	// ETRS89 / TM35FIN.
	tm35 = tm{lon0: 27, k0: 0.9996, falseE: 500000, falseN: 0}
)

// FromGK25 converts an EPSG:3879 northing/easting pair to WGS84.
func FromGK25(n, e float64) orb.Point { return gk25.inverse(n, e) }

// FromTM35 converts an EPSG:3067 northing/easting pair to WGS84.
func FromTM35(n, e float64) orb.Point { return tm35.inverse(n, e) }

// ToGK25 projects a WGS84 point back to EPSG:3879 (northing, easting).
func ToGK25(p orb.Point) (n, e float64) { return gk25.forward(p) }

// ToTM35 projects a WGS84 point back to EPSG:3067 (northing, easting).
func ToTM35(p orb.Point) (n, e float64) { return tm35.forward(p) }

// inverse is the standard series expansion for the transverse Mercator
// inverse (footpoint latitude form); error is sub-millimetre inside the
// frames' validity zones, far below the source data accuracy.
func (t tm) inverse(northing, easting float64) orb.Point {
	e2 := f * (2 - f)
	ep2 := e2 / (1 - e2)

	m := (northing - t.falseN) / t.k0
	mu := m / (a * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))
	phi1 := mu +
		(3*e1/2-27*e1*e1*e1/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*e1*e1*e1*e1/32)*math.Sin(4*mu) +
		(151*e1*e1*e1/96)*math.Sin(6*mu) +
		(1097*e1*e1*e1*e1/512)*math.Sin(8*mu)

	sin1 := math.Sin(phi1)
	cos1 := math.Cos(phi1)
	tan1 := math.Tan(phi1)

	c1 := ep2 * cos1 * cos1
	t1 := tan1 * tan1
	n1 := a / math.Sqrt(1-e2*sin1*sin1)
	r1 := a * (1 - e2) / math.Pow(1-e2*sin1*sin1, 1.5)
	d := (easting - t.falseE) / (n1 * t.k0)

	lat := phi1 - (n1*tan1/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*d*d*d*d/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*d*d*d*d*d*d/720)
	lon := t.lon0*math.Pi/180 + (d-
		(1+2*t1+c1)*d*d*d/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*d*d*d*d*d/120)/cos1

	return orb.Point{lon * 180 / math.Pi, lat * 180 / math.Pi}
}

// forward is the matching projection; the adapters never need it but the
// round trip anchors the inverse in tests.
func (t tm) forward(p orb.Point) (northing, easting float64) {
	e2 := f * (2 - f)
	ep2 := e2 / (1 - e2)

	lat := p.Lat() * math.Pi / 180
	lon := p.Lon() * math.Pi / 180
	lon0 := t.lon0 * math.Pi / 180

	sin := math.Sin(lat)
	cos := math.Cos(lat)
	tan := math.Tan(lat)

	nn := a / math.Sqrt(1-e2*sin*sin)
	tt := tan * tan
	cc := ep2 * cos * cos
	aa := (lon - lon0) * cos

	m := a * ((1-e2/4-3*e2*e2/64-5*e2*e2*e2/256)*lat -
		(3*e2/8+3*e2*e2/32+45*e2*e2*e2/1024)*math.Sin(2*lat) +
		(15*e2*e2/256+45*e2*e2*e2/1024)*math.Sin(4*lat) -
		(35*e2*e2*e2/3072)*math.Sin(6*lat))

	easting = t.falseE + t.k0*nn*(aa+
		(1-tt+cc)*aa*aa*aa/6+
		(5-18*tt+tt*tt+72*cc-58*ep2)*aa*aa*aa*aa*aa/120)
	northing = t.falseN + t.k0*(m+nn*tan*(aa*aa/2+
		(5-tt+9*cc+4*cc*cc)*aa*aa*aa*aa/24+
		(61-58*tt+tt*tt+600*cc-330*ep2)*aa*aa*aa*aa*aa*aa/720))
	return northing, easting
}
