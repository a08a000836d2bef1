// Package importer drives one end-to-end import: fetch every source, parse,
// merge, and commit a new index generation. Source failures degrade the run
// (the source keeps its previous documents out of the index and the run is
// marked partial); only a commit failure aborts it, leaving the previous
// generation serving.
package importer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/HSLdevcom/digitransit-geocoder/internal/builder"
	"github.com/HSLdevcom/digitransit-geocoder/internal/index"
	"github.com/HSLdevcom/digitransit-geocoder/internal/logger"
	"github.com/HSLdevcom/digitransit-geocoder/internal/metrics"
	"github.com/HSLdevcom/digitransit-geocoder/internal/sources"
)

// SourceSpec binds one adapter to its upstream. Path, when set, bypasses
// the fetcher and parses a local file.
type SourceSpec struct {
	Name    string
	URL     string
	Path    string
	Adapter sources.Adapter
}

// DefaultSources lists the region's feeds. Each URL can be overridden
// through GEOCODER_<NAME>_URL for mirrors and test fixtures.
func DefaultSources() []SourceSpec {
	specs := []SourceSpec{
		{Name: "addresses", URL: "https://www.hel.fi/palvelukarttaws/rest/v2/address.csv", Adapter: sources.AddressAdapter{}},
		{Name: "municipalities", URL: "https://tiedostopalvelu.maanmittauslaitos.fi/geocoder/SuomenKuntajako_2021_10k.xml", Adapter: sources.MunicipalityAdapter{}},
		{Name: "roads", URL: "https://tiedostopalvelu.maanmittauslaitos.fi/geocoder/tieviivat_uusimaa.zip", Adapter: sources.RoadAdapter{}},
		{Name: "pois", URL: "https://download.geofabrik.de/europe/finland-latest.osm.pbf", Adapter: sources.POIAdapter{}},
		{Name: "stops", URL: "https://dev.hsl.fi/gtfs/hsl/stops.txt", Adapter: sources.StopAdapter{}},
		{Name: "facilities", URL: "https://lipas.cc.jyu.fi/geoserver/lipas/liikuntapaikat.shp", Adapter: sources.FacilityAdapter{}},
		{Name: "services", URL: "https://www.hel.fi/palvelukarttaws/rest/v4/unit/", Adapter: sources.ServiceAdapter{}},
	}
	for i := range specs {
		if u := os.Getenv("GEOCODER_" + envName(specs[i].Name) + "_URL"); u != "" {
			specs[i].URL = u
		}
	}
	return specs
}

func envName(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// Options tunes one run.
type Options struct {
	Force    bool     // refetch everything, reuse stale caches on failure
	Only     []string // restrict to these source names; empty = all
	DataDir  string
	Parallel int // concurrent source pipelines, default 3
}

// Report is the outcome of one run.
type Report struct {
	Generation int64          `json:"generation"`
	Started    time.Time      `json:"started"`
	Finished   time.Time      `json:"finished"`
	Diags      []sources.Diag `json:"sources"`
	Build      builder.Diag   `json:"build"`
	Partial    bool           `json:"partial"` // at least one source contributed nothing
}

// Run executes the full pipeline against db.
func Run(ctx context.Context, db *sql.DB, specs []SourceSpec, opts Options) (*Report, error) {
	started := time.Now()
	specs = filterSpecs(specs, opts.Only)
	if len(specs) == 0 {
		return nil, errors.New("no sources selected")
	}

	fetcher := sources.NewFetcher(db, opts.DataDir)
	batches, diags := collect(ctx, fetcher, specs, opts)

	report := &Report{Started: started, Diags: diags}
	for _, d := range diags {
		if d.Error != "" {
			report.Partial = true
		}
	}

	set, bdiag := builder.Build(batches)
	report.Build = bdiag
	if set.Len() == 0 {
		metrics.ImportRunsTotal.WithLabelValues("empty").Inc()
		recordRun(ctx, db, report, opts.Force, false)
		return report, errors.New("no documents produced, keeping previous generation")
	}

	gen, err := index.Commit(ctx, db, set)
	if err != nil {
		metrics.ImportRunsTotal.WithLabelValues("error").Inc()
		recordRun(ctx, db, report, opts.Force, false)
		return report, err
	}
	report.Generation = gen
	report.Finished = time.Now()

	result := "ok"
	if report.Partial {
		result = "partial"
	}
	metrics.ImportRunsTotal.WithLabelValues(result).Inc()
	metrics.ImportDurationMs.Observe(float64(report.Finished.Sub(started).Milliseconds()))
	metrics.ObserveSnapshot(set)
	recordRun(ctx, db, report, opts.Force, true)
	logger.L().Info("import_done", "generation", gen, "documents", set.Len(),
		"partial", report.Partial, "took", report.Finished.Sub(started).String())
	return report, nil
}

// collect fetches and parses every source concurrently. Each pipeline
// records its outcome in its diag and never fails its siblings, so the
// errgroup funcs always return nil.
func collect(ctx context.Context, fetcher *sources.Fetcher, specs []SourceSpec, opts Options) ([]*sources.Batch, []sources.Diag) {
	batches := make([]*sources.Batch, len(specs))
	diags := make([]sources.Diag, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	limit := opts.Parallel
	if limit <= 0 {
		limit = 3
	}
	g.SetLimit(limit)

	for i, spec := range specs {
		g.Go(func() error {
			diag := sources.Diag{Source: spec.Name}
			path := spec.Path
			if path == "" {
				var err error
				var state string
				path, state, err = fetcher.Fetch(gctx, spec.Name, spec.URL, opts.Force)
				diag.Fetch = state
				metrics.SourceFetchTotal.WithLabelValues(spec.Name, state).Inc()
				if err != nil {
					diag.Error = err.Error()
					diags[i] = diag
					logger.L().Error("source_fetch_failed", "source", spec.Name, "err", err)
					return nil
				}
			}
			batch, pdiag, err := spec.Adapter.Parse(gctx, path)
			diag.Parsed, diag.Skipped = pdiag.Parsed, pdiag.Skipped
			if err != nil {
				diag.Error = err.Error()
				logger.L().Error("source_parse_failed", "source", spec.Name, "err", err)
			} else {
				batches[i] = batch
				metrics.RecordsParsedTotal.WithLabelValues(spec.Name).Add(float64(diag.Parsed))
				metrics.RecordsSkippedTotal.WithLabelValues(spec.Name).Add(float64(diag.Skipped))
				logger.L().Info("source_done", "source", spec.Name,
					"fetch", diag.Fetch, "parsed", diag.Parsed, "skipped", diag.Skipped)
			}
			diags[i] = diag
			return nil
		})
	}
	g.Wait()
	return batches, diags
}

func filterSpecs(specs []SourceSpec, only []string) []SourceSpec {
	if len(only) == 0 {
		return specs
	}
	want := map[string]bool{}
	for _, n := range only {
		want[n] = true
	}
	out := specs[:0:0]
	for _, s := range specs {
		if want[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

// recordRun appends a diagnostics row; failures only log, the run's outcome
// is already decided.
func recordRun(ctx context.Context, db *sql.DB, r *Report, forced, ok bool) {
	if db == nil {
		return
	}
	detail, err := json.Marshal(r)
	if err != nil {
		detail = []byte("{}")
	}
	finished := r.Finished
	if finished.IsZero() {
		finished = time.Now()
	}
	_, err = db.ExecContext(ctx, `INSERT INTO _geo_import_runs
        (started_at, finished_at, generation, forced, ok, detail)
        VALUES($1,$2,$3,$4,$5,$6)`,
		r.Started, finished, r.Generation, forced, ok, detail)
	if err != nil {
		logger.L().Warn("import_run_record_error", "err", err)
	}
}
