package sources

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"github.com/HSLdevcom/digitransit-geocoder/internal/logger"
	"github.com/HSLdevcom/digitransit-geocoder/internal/model"
)

// POIAdapter extracts two record families from an OpenStreetMap PBF
// extract: named points of interest from nodes, and addresses from addr:*
// tagged nodes and ways. Building ways borrow the locations of their
// entrance nodes; without entrances the polygon centroid has to do.
// Street relations supply the street name for members lacking addr:street.
type POIAdapter struct{}

func (POIAdapter) Name() string { return "pois" }

// sameAddressMeters bounds how far apart two sightings of one street,
// number and staircase can be. Beyond it they are different addresses,
// the same combination exists in more than one municipality.
const sameAddressMeters = 1000

type addrNode struct {
	tags osm.Tags
	loc  orb.Point
}

func (p POIAdapter) Parse(ctx context.Context, path string) (*Batch, Diag, error) {
	diag := Diag{Source: p.Name()}
	f, err := os.Open(path)
	if err != nil {
		return nil, diag, &ParseError{Source: p.Name(), Err: err}
	}
	defer f.Close()

	batch := &Batch{}
	now := time.Now()

	coords := map[osm.NodeID]orb.Point{}
	addrNodes := map[osm.NodeID]addrNode{}
	var addrOrder []osm.NodeID // scan order keeps the first-wins dedupe stable
	var addrWays []*osm.Way
	streetOf := map[osm.FeatureID]string{}

	scanner := osmpbf.New(ctx, f, runtime.GOMAXPROCS(0))
	defer scanner.Close()

	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			coords[o.ID] = orb.Point{o.Lon, o.Lat}
			if hasAddrTags(o.Tags) {
				addrNodes[o.ID] = addrNode{tags: o.Tags, loc: orb.Point{o.Lon, o.Lat}}
				addrOrder = append(addrOrder, o.ID)
			}
			if feat, ok := poiFromNode(o, now); ok {
				batch.Features = append(batch.Features, feat)
				diag.Parsed++
			} else {
				diag.Skipped++
			}
		case *osm.Way:
			if hasAddrTags(o.Tags) {
				addrWays = append(addrWays, o)
			}
		case *osm.Relation:
			t := o.Tags.Find("type")
			if t != "street" && t != "associatedStreet" {
				continue
			}
			name := o.Tags.Find("name")
			if name == "" {
				logger.L().Debug("street_relation_without_name", "relation", o.ID)
				continue
			}
			for _, m := range o.Members {
				if m.Type == osm.TypeNode || m.Type == osm.TypeWay {
					streetOf[m.FeatureID()] = name
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, diag, &ParseError{Source: p.Name(), Err: err}
	}

	col := newAddressCollector(now)
	for _, id := range addrOrder {
		n := addrNodes[id]
		number := n.tags.Find("addr:housenumber")
		if number == "" {
			continue
		}
		street := n.tags.Find("addr:street")
		if street == "" {
			street = streetOf[id.FeatureID()]
		}
		if street == "" {
			diag.Skipped++
			continue
		}
		unit, main := unitTag(n.tags)
		if !col.add(street, number, unit, n.loc, main) {
			diag.Skipped++
		}
	}
	for _, w := range addrWays {
		if !wayAddresses(col, w, addrNodes, coords, streetOf) {
			diag.Skipped++
		}
	}
	batch.Addresses = col.addresses()
	diag.Parsed += len(batch.Addresses)
	return batch, diag, nil
}

// wayAddresses resolves the address records a tagged way stands for.
// A building way with its own housenumber prefers the entrance nodes on
// its outline, falling back to the centroid; a street way contributes
// the numbered house nodes sitting on it.
func wayAddresses(col *addressCollector, w *osm.Way, addrNodes map[osm.NodeID]addrNode, coords map[osm.NodeID]orb.Point, streetOf map[osm.FeatureID]string) bool {
	number := w.Tags.Find("addr:housenumber")
	street := w.Tags.Find("addr:street")
	if street == "" {
		street = streetOf[w.FeatureID()]
	}
	switch {
	case number != "" && street != "":
		found := false
		for _, wn := range w.Nodes {
			n, ok := addrNodes[wn.ID]
			if !ok {
				continue
			}
			unit, main := unitTag(n.tags)
			if unit == "" {
				continue
			}
			if col.add(street, number, unit, n.loc, main) {
				found = true
			}
		}
		if found {
			return true
		}
		ring := make(orb.Ring, 0, len(w.Nodes))
		for _, wn := range w.Nodes {
			if pt, ok := coords[wn.ID]; ok {
				ring = append(ring, pt)
			}
		}
		if len(ring) < 3 {
			logger.L().Debug("address_way_without_geometry", "way", w.ID)
			return false
		}
		c, _ := planar.CentroidArea(orb.Polygon{ring})
		return col.add(street, number, "", c, false)
	case street != "":
		found := false
		for _, wn := range w.Nodes {
			n, ok := addrNodes[wn.ID]
			if !ok {
				continue
			}
			num := n.tags.Find("addr:housenumber")
			if num == "" {
				continue
			}
			if col.add(street, num, "", n.loc, false) {
				found = true
			}
		}
		return found
	}
	return false
}

func hasAddrTags(tags osm.Tags) bool {
	for _, t := range tags {
		if strings.HasPrefix(t.Key, "addr:") {
			return true
		}
	}
	return false
}

// unitTag returns the staircase letter of an entrance node and whether it
// is the main entrance. addr:unit wins when a node carries both spellings.
func unitTag(tags osm.Tags) (string, bool) {
	main := tags.Find("entrance") == "main"
	if u := tags.Find("addr:unit"); u != "" {
		return u, main
	}
	return tags.Find("addr:staircase"), main
}

// addressCollector dedupes entrance sightings sharing street, number and
// unit. The first location sticks unless a main entrance overrides it;
// sightings farther apart than sameAddressMeters stay separate records.
type addressCollector struct {
	now   time.Time
	index map[string][]int
	list  []collectedAddress
}

type collectedAddress struct {
	addr model.Address
	main bool
}

func newAddressCollector(now time.Time) *addressCollector {
	return &addressCollector{now: now, index: map[string][]int{}}
}

func (c *addressCollector) add(street, label, unit string, loc orb.Point, main bool) bool {
	number, numberEnd, letter, ok := parseHouseNumber(label)
	if !ok {
		return false
	}
	if unit == "" {
		unit = letter
	}
	a := model.Address{
		StreetFi:   street,
		Number:     number,
		NumberEnd:  numberEnd,
		Unit:       unit,
		Location:   loc,
		Provenance: model.Provenance{Source: "osm", ImportedAt: c.now},
	}
	key := a.Key()
	for _, i := range c.index[key] {
		e := &c.list[i]
		if geo.Distance(e.addr.Location, loc) > sameAddressMeters {
			continue
		}
		if main && !e.main {
			e.addr.Location = loc
			e.main = true
		}
		return true
	}
	c.index[key] = append(c.index[key], len(c.list))
	c.list = append(c.list, collectedAddress{addr: a, main: main})
	return true
}

func (c *addressCollector) addresses() []model.Address {
	out := make([]model.Address, len(c.list))
	for i, e := range c.list {
		out[i] = e.addr
	}
	return out
}

// parseHouseNumber splits an OSM housenumber like "12", "4-6" or "12a"
// into the register's structured form.
func parseHouseNumber(s string) (number, numberEnd int, unit string, ok bool) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, 0, "", false
	}
	number, _ = strconv.Atoi(s[:i])
	if number <= 0 {
		return 0, 0, "", false
	}
	rest := s[i:]
	switch {
	case rest == "":
	case strings.HasPrefix(rest, "-"):
		end, err := strconv.Atoi(strings.TrimSpace(rest[1:]))
		if err != nil || end < number {
			return 0, 0, "", false
		}
		numberEnd = end
	default:
		r := []rune(rest)
		if len(r) != 1 || !unicode.IsLetter(r[0]) {
			return 0, 0, "", false
		}
		unit = strings.ToLower(rest)
	}
	return number, numberEnd, unit, true
}

// poiFromNode decides whether a node is worth indexing. Unnamed nodes,
// wildlife sightings and nodes with nearly no tags beyond an editor
// signature carry no address value.
func poiFromNode(n *osm.Node, now time.Time) (model.NamedFeature, bool) {
	var zero model.NamedFeature
	tags := n.Tags
	if len(tags) == 0 {
		return zero, false
	}
	if tags.Find("leisure") == "animal_spotting" {
		return zero, false
	}
	hasCreator := tags.Find("created_by") != ""
	if (hasCreator && len(tags) <= 3) || len(tags) <= 2 {
		return zero, false
	}
	name := tags.Find("name:fi")
	if name == "" {
		name = tags.Find("name")
	}
	if name == "" {
		return zero, false
	}
	nameSv := tags.Find("name:sv")
	if nameSv == "" {
		nameSv = name
	}
	desc := tags.Find("amenity")
	if desc == "" {
		desc = tags.Find("shop")
	}
	if desc == "" {
		desc = tags.Find("leisure")
	}
	return model.NamedFeature{
		Name:       name,
		NameSv:     nameSv,
		Category:   model.CategoryPOI,
		Desc:       desc,
		Location:   orb.Point{n.Lon, n.Lat},
		Provenance: model.Provenance{Source: "pois", ImportedAt: now},
	}, true
}
