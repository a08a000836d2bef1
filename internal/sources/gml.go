package sources

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/HSLdevcom/digitransit-geocoder/internal/projection"
)

// parsePosList turns a GML posList into WGS84 points. The national datasets
// are TM35FIN; some files carry a Z component (srsDimension 3) which is
// flattened away. Axis order varies between exports, but in Finland the
// northing is always in the millions and the easting below one million, so
// the order is detected per tuple instead of trusting srsName.
func parsePosList(text string, dim int) ([]orb.Point, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty posList")
	}
	if dim != 2 && dim != 3 {
		dim = 2
	}
	if len(fields)%dim != 0 {
		// srsDimension was absent or wrong; a 3D list is the only other
		// layout these files use
		if len(fields)%3 == 0 {
			dim = 3
		} else {
			return nil, fmt.Errorf("posList length %d not divisible by %d", len(fields), dim)
		}
	}
	pts := make([]orb.Point, 0, len(fields)/dim)
	for i := 0; i+dim <= len(fields); i += dim {
		a, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, err
		}
		b, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return nil, err
		}
		n, e := a, b
		if a < 1_000_000 && b > 6_000_000 {
			n, e = b, a
		}
		pts = append(pts, projection.FromTM35(n, e))
	}
	return pts, nil
}

// srsDim reads the srsDimension attribute, defaulting to def.
func srsDim(attrs []attr, def int) int {
	for _, a := range attrs {
		if a.name == "srsDimension" {
			if n, err := strconv.Atoi(a.value); err == nil {
				return n
			}
		}
	}
	return def
}

// attr is a namespace-stripped XML attribute.
type attr struct {
	name  string
	value string
}
