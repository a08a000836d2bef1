package sources

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/HSLdevcom/digitransit-geocoder/internal/model"
)

// RoadAdapter reads the NLS topographic road link GML (Tieviiva features).
// Each link carries the address number ranges for its left and right side;
// left-side numbers are even and right-side numbers odd in the Finnish
// addressing convention. Downloads arrive zipped, so a .zip path is opened
// and the first GML entry inside is parsed.
type RoadAdapter struct{}

func (RoadAdapter) Name() string { return "roads" }

func (r RoadAdapter) Parse(ctx context.Context, path string) (*Batch, Diag, error) {
	diag := Diag{Source: r.Name()}

	var src io.Reader
	if strings.HasSuffix(strings.ToLower(path), ".zip") {
		zr, err := zip.OpenReader(path)
		if err != nil {
			return nil, diag, &ParseError{Source: r.Name(), Err: err}
		}
		defer zr.Close()
		var entry *zip.File
		for _, f := range zr.File {
			low := strings.ToLower(f.Name)
			if strings.HasSuffix(low, ".xml") || strings.HasSuffix(low, ".gml") {
				entry = f
				break
			}
		}
		if entry == nil {
			return nil, diag, &ParseError{Source: r.Name(), Err: fmt.Errorf("no gml entry in %s", path)}
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, diag, &ParseError{Source: r.Name(), Err: err}
		}
		defer rc.Close()
		src = rc
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, diag, &ParseError{Source: r.Name(), Err: err}
		}
		defer f.Close()
		src = f
	}

	batch := &Batch{}
	now := time.Now()
	d := xml.NewDecoder(src)

	var (
		fields map[string]string
		line   orb.LineString
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, diag, err
		}
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, diag, &ParseError{Source: r.Name(), Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Tieviiva":
				fields = map[string]string{}
				line = nil
			case "posList":
				if fields == nil {
					continue
				}
				// road geometry carries elevation as a third ordinate
				dim := srsDim(xmlAttrs(t), 3)
				pts, perr := parsePosList(charData(d), dim)
				if perr != nil {
					diag.Skipped++
					fields = nil
					continue
				}
				line = orb.LineString(pts)
			case "nimi_suomi", "nimi_ruotsi",
				"minOsoitenumeroVasen", "maxOsoitenumeroVasen",
				"minOsoitenumeroOikea", "maxOsoitenumeroOikea":
				if fields != nil {
					fields[t.Name.Local] = strings.TrimSpace(charData(d))
				}
			}
		case xml.EndElement:
			if t.Name.Local != "Tieviiva" || fields == nil {
				continue
			}
			seg, ok := segmentFromFields(fields, line, now)
			if ok {
				batch.Segments = append(batch.Segments, seg)
				diag.Parsed++
			} else {
				diag.Skipped++
			}
			fields = nil
			line = nil
		}
	}
	return batch, diag, nil
}

// segmentFromFields validates one road link. Links without a street name or
// geometry cannot serve interpolation and are dropped. A side is usable only
// when both its min and max are present and ordered; "0" means absent.
func segmentFromFields(f map[string]string, line orb.LineString, now time.Time) (model.StreetSegment, bool) {
	var zero model.StreetSegment
	nameFi := f["nimi_suomi"]
	nameSv := f["nimi_ruotsi"]
	if nameFi == "" && nameSv == "" {
		return zero, false
	}
	if nameFi == "" {
		nameFi = nameSv
	}
	if nameSv == "" {
		nameSv = nameFi
	}
	if len(line) < 2 {
		return zero, false
	}
	minEven, maxEven, ok := sideBounds(f["minOsoitenumeroVasen"], f["maxOsoitenumeroVasen"])
	if !ok {
		return zero, false
	}
	minOdd, maxOdd, ok := sideBounds(f["minOsoitenumeroOikea"], f["maxOsoitenumeroOikea"])
	if !ok {
		return zero, false
	}
	if minEven == 0 && minOdd == 0 {
		// no numbering on either side, nothing to interpolate
		return zero, false
	}
	return model.StreetSegment{
		NameFi:     nameFi,
		NameSv:     nameSv,
		Geometry:   line,
		MinEven:    minEven,
		MaxEven:    maxEven,
		MinOdd:     minOdd,
		MaxOdd:     maxOdd,
		Provenance: model.Provenance{Source: "roads", ImportedAt: now},
	}, true
}

// sideBounds parses one side's pair. Both empty or both zero is a valid
// unnumbered side; exactly one present, or an inverted range, is malformed.
func sideBounds(minS, maxS string) (int, int, bool) {
	minN := parseBound(minS)
	maxN := parseBound(maxS)
	if minN == 0 && maxN == 0 {
		return 0, 0, true
	}
	if minN == 0 || maxN == 0 {
		return 0, 0, false
	}
	if minN > maxN {
		return 0, 0, false
	}
	return minN, maxN, true
}

func parseBound(s string) int {
	if s == "" || s == "0" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
