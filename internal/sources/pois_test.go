package sources

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"

	"github.com/HSLdevcom/digitransit-geocoder/internal/model"
)

func node(lat, lon float64, kv ...string) *osm.Node {
	n := &osm.Node{Lat: lat, Lon: lon}
	for i := 0; i+1 < len(kv); i += 2 {
		n.Tags = append(n.Tags, osm.Tag{Key: kv[i], Value: kv[i+1]})
	}
	return n
}

func TestPOIFromNode(t *testing.T) {
	now := time.Now()

	feat, ok := poiFromNode(node(60.17, 24.94,
		"name", "Ateneum", "name:sv", "Ateneum", "tourism", "museum", "amenity", "arts_centre"), now)
	if !ok {
		t.Fatal("museum node dropped")
	}
	if feat.Name != "Ateneum" || feat.Category != model.CategoryPOI || feat.Desc != "arts_centre" {
		t.Fatalf("feature = %+v", feat)
	}
	if feat.Location.Lon() != 24.94 || feat.Location.Lat() != 60.17 {
		t.Fatalf("location = %v", feat.Location)
	}

	// finnish name wins over the default
	feat, ok = poiFromNode(node(60.17, 24.94,
		"name", "Helsinki Central Station", "name:fi", "Helsingin päärautatieasema",
		"railway", "station", "operator", "VR"), now)
	if !ok || feat.Name != "Helsingin päärautatieasema" {
		t.Fatalf("feature = %+v ok = %v", feat, ok)
	}
}

func TestPOIFromNodeFilters(t *testing.T) {
	now := time.Now()
	drop := []*osm.Node{
		node(60, 24), // no tags
		node(60, 24, "name", "Hirvi", "leisure", "animal_spotting", "species", "moose"),
		node(60, 24, "name", "X", "created_by", "JOSM", "note", "fixme"), // editor noise
		node(60, 24, "name", "Y"),                                       // too sparse
		node(60, 24, "amenity", "bench", "backrest", "yes", "material", "wood"), // unnamed
	}
	for i, n := range drop {
		if _, ok := poiFromNode(n, now); ok {
			t.Errorf("node %d should have been dropped: %v", i, n.Tags)
		}
	}
}

func TestParseHouseNumber(t *testing.T) {
	cases := []struct {
		in          string
		number, end int
		unit        string
		ok          bool
	}{
		{"12", 12, 0, "", true},
		{"4-6", 4, 6, "", true},
		{"12a", 12, 0, "a", true},
		{"12B", 12, 0, "b", true},
		{" 7 ", 7, 0, "", true},
		{"6-4", 0, 0, "", false}, // inverted range
		{"abc", 0, 0, "", false},
		{"12ab", 0, 0, "", false},
		{"0", 0, 0, "", false},
		{"", 0, 0, "", false},
	}
	for _, c := range cases {
		number, end, unit, ok := parseHouseNumber(c.in)
		if number != c.number || end != c.end || unit != c.unit || ok != c.ok {
			t.Errorf("parseHouseNumber(%q) = %d %d %q %v, want %d %d %q %v",
				c.in, number, end, unit, ok, c.number, c.end, c.unit, c.ok)
		}
	}
}

func TestAddressCollector(t *testing.T) {
	col := newAddressCollector(time.Now())
	first := orb.Point{24.94, 60.17}
	second := orb.Point{24.9401, 60.1701}

	if !col.add("Asematie", "12", "a", first, false) {
		t.Fatal("add rejected a valid record")
	}
	// another entrance of the same staircase keeps the first location
	col.add("Asematie", "12", "a", second, false)
	got := col.addresses()
	if len(got) != 1 || got[0].Location != first {
		t.Fatalf("duplicate staircase: %+v", got)
	}

	// a main entrance overrides the earlier sighting
	col.add("Asematie", "12", "a", second, true)
	if got = col.addresses(); got[0].Location != second {
		t.Fatalf("main entrance did not win: %+v", got)
	}

	// another staircase is its own record
	col.add("Asematie", "12", "b", first, false)
	if got = col.addresses(); len(got) != 2 {
		t.Fatalf("staircases collapsed: %+v", got)
	}

	// the same street and number far away is a different address
	col.add("Asematie", "12", "a", orb.Point{25.1, 60.4}, false)
	if got = col.addresses(); len(got) != 3 {
		t.Fatalf("distant address collapsed: %+v", got)
	}

	if col.add("Asematie", "unnumbered", "", first, false) {
		t.Fatal("unparseable housenumber accepted")
	}
}

func TestWayAddressesEntrances(t *testing.T) {
	entrance := orb.Point{24.94, 60.17}
	addrNodes := map[osm.NodeID]addrNode{
		1: {tags: osm.Tags{
			{Key: "addr:staircase", Value: "a"},
			{Key: "entrance", Value: "main"},
		}, loc: entrance},
	}
	w := &osm.Way{
		ID: 7,
		Tags: osm.Tags{
			{Key: "addr:street", Value: "Asematie"},
			{Key: "addr:housenumber", Value: "3"},
		},
		Nodes: osm.WayNodes{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 1}},
	}

	col := newAddressCollector(time.Now())
	if !wayAddresses(col, w, addrNodes, nil, nil) {
		t.Fatal("way with an entrance produced nothing")
	}
	got := col.addresses()
	if len(got) != 1 || got[0].Unit != "a" || got[0].Location != entrance {
		t.Fatalf("entrance address = %+v", got)
	}
	if got[0].StreetFi != "Asematie" || got[0].Number != 3 {
		t.Fatalf("entrance address = %+v", got)
	}
}

func TestWayAddressesCentroidFallback(t *testing.T) {
	coords := map[osm.NodeID]orb.Point{
		1: {24.0, 60.0}, 2: {24.2, 60.0}, 3: {24.2, 60.2}, 4: {24.0, 60.2},
	}
	w := &osm.Way{
		ID: 8,
		Tags: osm.Tags{
			{Key: "addr:street", Value: "Asematie"},
			{Key: "addr:housenumber", Value: "4-6"},
		},
		Nodes: osm.WayNodes{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 1}},
	}

	col := newAddressCollector(time.Now())
	if !wayAddresses(col, w, map[osm.NodeID]addrNode{}, coords, nil) {
		t.Fatal("building without entrances produced nothing")
	}
	got := col.addresses()
	if len(got) != 1 || got[0].Number != 4 || got[0].NumberEnd != 6 {
		t.Fatalf("centroid address = %+v", got)
	}
	loc := got[0].Location
	if loc.Lon() < 24.09 || loc.Lon() > 24.11 || loc.Lat() < 60.09 || loc.Lat() > 60.11 {
		t.Fatalf("centroid = %v, want the middle of the square", loc)
	}

	// too few coordinates for a polygon
	short := &osm.Way{ID: 9, Tags: w.Tags, Nodes: osm.WayNodes{{ID: 1}, {ID: 2}}}
	if wayAddresses(newAddressCollector(time.Now()), short, map[osm.NodeID]addrNode{}, coords, nil) {
		t.Fatal("two-node way accepted")
	}
}

func TestWayAddressesStreetWay(t *testing.T) {
	addrNodes := map[osm.NodeID]addrNode{
		1: {tags: osm.Tags{{Key: "addr:housenumber", Value: "5"}}, loc: orb.Point{24.95, 60.18}},
		2: {tags: osm.Tags{{Key: "addr:city", Value: "Helsinki"}}, loc: orb.Point{24.951, 60.181}},
	}
	w := &osm.Way{
		ID:    10,
		Tags:  osm.Tags{{Key: "addr:street", Value: "Liisankatu"}},
		Nodes: osm.WayNodes{{ID: 1}, {ID: 2}, {ID: 3}},
	}

	col := newAddressCollector(time.Now())
	if !wayAddresses(col, w, addrNodes, nil, nil) {
		t.Fatal("street way with a numbered house produced nothing")
	}
	got := col.addresses()
	if len(got) != 1 || got[0].StreetFi != "Liisankatu" || got[0].Number != 5 {
		t.Fatalf("street way address = %+v", got)
	}
}

func TestWayAddressesRelationStreetName(t *testing.T) {
	w := &osm.Way{
		ID:    11,
		Tags:  osm.Tags{{Key: "addr:housenumber", Value: "2"}},
		Nodes: osm.WayNodes{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 1}},
	}
	coords := map[osm.NodeID]orb.Point{
		1: {24.90, 60.20}, 2: {24.901, 60.20}, 3: {24.901, 60.201},
	}

	// without a street name from anywhere the way is unusable
	if wayAddresses(newAddressCollector(time.Now()), w, map[osm.NodeID]addrNode{}, coords, nil) {
		t.Fatal("way without a street name accepted")
	}

	streetOf := map[osm.FeatureID]string{w.FeatureID(): "Siltasaarenkatu"}
	col := newAddressCollector(time.Now())
	if !wayAddresses(col, w, map[osm.NodeID]addrNode{}, coords, streetOf) {
		t.Fatal("associated street name ignored")
	}
	if got := col.addresses(); len(got) != 1 || got[0].StreetFi != "Siltasaarenkatu" {
		t.Fatalf("relation-named address = %+v", got)
	}
}
