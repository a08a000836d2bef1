package sources

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/HSLdevcom/digitransit-geocoder/internal/logger"
)

// Fetch outcome states, recorded in Diag.Fetch and the fetch metrics.
const (
	FetchFresh     = "fresh"     // upstream returned a new body
	FetchUnchanged = "unchanged" // upstream said 304, cached copy reused
	FetchCached    = "cached"    // upstream unreachable, cached copy reused
	FetchSkipped   = "skipped"   // unreachable and nothing cached
)

const (
	fetchAttempts = 3
	fetchBackoff  = 2 * time.Second
)

// Fetcher downloads feeds into the data directory and remembers upstream
// freshness signals (ETag / Last-Modified) in Postgres so incremental runs
// can skip unchanged sources with a conditional GET.
type Fetcher struct {
	DB     *sql.DB
	Client *http.Client
	Dir    string

	// Backoff overrides the initial retry delay; zero means the default.
	Backoff time.Duration
}

// NewFetcher uses a 60 s client; the PBF extract is the largest feed and
// dominates the budget.
func NewFetcher(db *sql.DB, dir string) *Fetcher {
	return &Fetcher{DB: db, Client: &http.Client{Timeout: 60 * time.Second}, Dir: dir}
}

func (f *Fetcher) cachePath(name string) string { return filepath.Join(f.Dir, name) }

// Fetch retrieves one source. Without force, a stored ETag/Last-Modified is
// sent and a 304 short-circuits to the cached file. Retries are bounded
// with doubling backoff; an upstream that stays down degrades to the cached
// copy under force, else the source is skipped for this run.
func (f *Fetcher) Fetch(ctx context.Context, name, url string, force bool) (path, state string, err error) {
	path = f.cachePath(name)
	_, cacheErr := os.Stat(path)
	cached := cacheErr == nil

	etag, lastMod := f.loadValidators(ctx, name)

	var resp *http.Response
	backoff := f.Backoff
	if backoff <= 0 {
		backoff = fetchBackoff
	}
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		req, rerr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if rerr != nil {
			return "", FetchSkipped, &FetchError{Source: name, Err: rerr}
		}
		if !force && cached {
			if etag != "" {
				req.Header.Set("If-None-Match", etag)
			}
			if lastMod != "" {
				req.Header.Set("If-Modified-Since", lastMod)
			}
		}
		resp, err = f.Client.Do(req)
		if err == nil && resp.StatusCode < 500 {
			break
		}
		if resp != nil {
			resp.Body.Close()
			err = fmt.Errorf("status %d", resp.StatusCode)
		}
		logger.L().Warn("fetch_retry", "source", name, "attempt", attempt, "err", err)
		if attempt == fetchAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", FetchSkipped, &FetchError{Source: name, Err: ctx.Err()}
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if err != nil {
		if cached {
			// A stale copy beats no data. The state stays distinct from a
			// 304 so diagnostics show the outage.
			logger.L().Warn("fetch_fallback_cached", "source", name, "err", err)
			return path, FetchCached, nil
		}
		return "", FetchSkipped, &FetchError{Source: name, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		logger.L().Debug("fetch_unchanged", "source", name)
		return path, FetchUnchanged, nil
	case resp.StatusCode != http.StatusOK:
		if cached && force {
			return path, FetchCached, nil
		}
		return "", FetchSkipped, &FetchError{Source: name, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return "", FetchSkipped, &FetchError{Source: name, Err: err}
	}
	tmp := path + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return "", FetchSkipped, &FetchError{Source: name, Err: err}
	}
	n, err := io.Copy(out, resp.Body)
	cerr := out.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return "", FetchSkipped, &FetchError{Source: name, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", FetchSkipped, &FetchError{Source: name, Err: err}
	}
	f.storeValidators(ctx, name, url, resp.Header.Get("Etag"), resp.Header.Get("Last-Modified"))
	logger.L().Info("fetch_done", "source", name, "bytes", n)
	return path, FetchFresh, nil
}

func (f *Fetcher) loadValidators(ctx context.Context, name string) (etag, lastMod string) {
	if f.DB == nil {
		return "", ""
	}
	row := f.DB.QueryRowContext(ctx,
		"SELECT etag, last_modified FROM _geo_sources WHERE name=$1", name)
	if err := row.Scan(&etag, &lastMod); err != nil && !errors.Is(err, sql.ErrNoRows) {
		logger.L().Warn("source_validators_read_error", "source", name, "err", err)
	}
	return etag, lastMod
}

func (f *Fetcher) storeValidators(ctx context.Context, name, url, etag, lastMod string) {
	if f.DB == nil {
		return
	}
	_, err := f.DB.ExecContext(ctx, `INSERT INTO _geo_sources(name, url, etag, last_modified, fetched_at)
        VALUES($1,$2,$3,$4,now())
        ON CONFLICT (name) DO UPDATE SET url=EXCLUDED.url, etag=EXCLUDED.etag,
            last_modified=EXCLUDED.last_modified, fetched_at=now()`,
		name, url, etag, lastMod)
	if err != nil {
		logger.L().Warn("source_validators_write_error", "source", name, "err", err)
	}
}
