package sources

import (
	"context"
	"encoding/xml"
	"io"
	"os"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/HSLdevcom/digitransit-geocoder/internal/logger"
	"github.com/HSLdevcom/digitransit-geocoder/internal/model"
)

// DefaultZoomThreshold is written onto every municipality document; below
// this zoom reverse geocoding answers with the municipality.
const DefaultZoomThreshold = 8

// MunicipalityAdapter reads the NLS INSPIRE Administrative Units GML. Only
// 4thOrder units are municipalities; the file also carries regional areas
// and the shared boundary LineStrings between neighbours, both ignored.
// Elements are matched by local name since the namespace URNs have changed
// between dataset revisions.
type MunicipalityAdapter struct{}

func (MunicipalityAdapter) Name() string { return "municipalities" }

func (m MunicipalityAdapter) Parse(ctx context.Context, path string) (*Batch, Diag, error) {
	diag := Diag{Source: m.Name()}
	f, err := os.Open(path)
	if err != nil {
		return nil, diag, &ParseError{Source: m.Name(), Err: err}
	}
	defer f.Close()

	batch := &Batch{}
	now := time.Now()
	d := xml.NewDecoder(f)

	type memberState struct {
		level         string
		nameFi        string
		nameSv        string
		lang          string
		boundary      orb.MultiPolygon
		poly          orb.Polygon
		inPoly        bool
		interior      bool
		hasLineString bool
	}
	var ms *memberState

	for {
		if err := ctx.Err(); err != nil {
			return nil, diag, err
		}
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, diag, &ParseError{Source: m.Name(), Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "featureMember", "member":
				ms = &memberState{}
			case "nationalLevel":
				if ms != nil {
					ms.level = strings.TrimSpace(charData(d))
				}
			case "language":
				if ms != nil {
					ms.lang = strings.TrimSpace(charData(d))
				}
			case "text":
				if ms == nil {
					continue
				}
				name := strings.TrimSpace(charData(d))
				switch ms.lang {
				case "fin":
					ms.nameFi = name
				case "swe":
					ms.nameSv = name
				}
			case "Polygon":
				if ms != nil {
					ms.poly = orb.Polygon{}
					ms.inPoly = true
				}
			case "interior":
				if ms != nil {
					ms.interior = true
				}
			case "LineString":
				if ms != nil {
					ms.hasLineString = true
					// boundary-between-neighbours geometry, not a unit
					_ = d.Skip()
				}
			case "posList":
				if ms == nil || !ms.inPoly {
					continue
				}
				dim := srsDim(xmlAttrs(t), 2)
				pts, perr := parsePosList(charData(d), dim)
				if perr != nil {
					diag.Skipped++
					ms.inPoly = false
					continue
				}
				ring := orb.Ring(pts)
				if ms.interior {
					ms.poly = append(ms.poly, ring)
					ms.interior = false
				} else {
					// exterior ring, always first in the polygon
					ms.poly = orb.Polygon{ring}
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "Polygon":
				if ms != nil && ms.inPoly && len(ms.poly) > 0 {
					ms.boundary = append(ms.boundary, ms.poly)
					ms.inPoly = false
				}
			case "featureMember", "member":
				if ms == nil {
					continue
				}
				switch {
				case ms.level != "" && ms.level != "4thOrder":
					// regional unit, not a municipality
				case len(ms.boundary) == 0:
					if !ms.hasLineString {
						diag.Skipped++
					}
				case ms.nameFi == "" && ms.nameSv == "":
					logger.L().Warn("municipality_without_name", "source", m.Name())
					diag.Skipped++
				default:
					if ms.nameFi == "" {
						ms.nameFi = ms.nameSv
					}
					if ms.nameSv == "" {
						ms.nameSv = ms.nameFi
					}
					batch.Municipalities = append(batch.Municipalities, model.Municipality{
						NameFi:        ms.nameFi,
						NameSv:        ms.nameSv,
						Boundary:      ms.boundary,
						ZoomThreshold: DefaultZoomThreshold,
						Provenance:    model.Provenance{Source: m.Name(), ImportedAt: now},
					})
					diag.Parsed++
				}
				ms = nil
			}
		}
	}
	return batch, diag, nil
}

// charData collects the character data up to the matching end element.
func charData(d *xml.Decoder) string {
	var out []byte
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return string(out)
		}
		switch t := tok.(type) {
		case xml.CharData:
			if depth == 0 {
				out = append(out, t...)
			}
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return string(out)
			}
			depth--
		}
	}
}

func xmlAttrs(t xml.StartElement) []attr {
	out := make([]attr, 0, len(t.Attr))
	for _, a := range t.Attr {
		out = append(out, attr{name: a.Name.Local, value: a.Value})
	}
	return out
}
