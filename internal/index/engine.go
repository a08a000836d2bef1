package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HSLdevcom/digitransit-geocoder/internal/logger"
	"github.com/HSLdevcom/digitransit-geocoder/internal/metrics"
	"github.com/HSLdevcom/digitransit-geocoder/internal/model"
)

// ErrNoGeneration means no import has ever completed against this database.
var ErrNoGeneration = errors.New("no indexed generation")

// IndexError marks a failed commit or load; the previously served snapshot
// stays in place when one occurs.
type IndexError struct {
	Op  string
	Err error
}

func (e *IndexError) Error() string { return fmt.Sprintf("index %s: %v", e.Op, e.Err) }
func (e *IndexError) Unwrap() error { return e.Err }

const insertChunk = 500

func docTable(gen int64) string { return fmt.Sprintf("_geo_documents_g%d", gen) }

// Commit writes set as a new generation and makes it current. The new
// documents land in their own table first; only the final marker flip runs
// in a transaction, so a crash mid-write leaves the previous generation
// untouched. Superseded generation tables are dropped afterwards.
func Commit(ctx context.Context, db *sql.DB, set *model.DocumentSet) (int64, error) {
	var gen int64
	err := db.QueryRowContext(ctx,
		"INSERT INTO _geo_generations(created_at, doc_count, current) VALUES(now(), $1, FALSE) RETURNING id",
		set.Len()).Scan(&gen)
	if err != nil {
		return 0, &IndexError{Op: "generation", Err: err}
	}
	table := docTable(gen)
	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %s (
        id BIGSERIAL PRIMARY KEY,
        doc_type TEXT NOT NULL,
        natural_key TEXT NOT NULL,
        body JSONB NOT NULL
    )`, table))
	if err != nil {
		return 0, &IndexError{Op: "create", Err: err}
	}

	w := &docWriter{ctx: ctx, db: db, table: table}
	for _, a := range set.Addresses {
		if err := w.add(model.TypeAddress, a.Key(), a); err != nil {
			return 0, err
		}
	}
	for _, s := range set.Segments {
		if err := w.add(model.TypeStreetSegment, s.Key(), s); err != nil {
			return 0, err
		}
	}
	for _, m := range set.Municipalities {
		if err := w.add(model.TypeMunicipality, m.Key(), m); err != nil {
			return 0, err
		}
	}
	for _, f := range set.Features {
		if err := w.add(model.TypeFeature, f.Key(), f); err != nil {
			return 0, err
		}
	}
	if err := w.flush(); err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &IndexError{Op: "flip", Err: err}
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, "UPDATE _geo_generations SET current=FALSE WHERE current"); err != nil {
		return 0, &IndexError{Op: "flip", Err: err}
	}
	if _, err := tx.ExecContext(ctx, "UPDATE _geo_generations SET current=TRUE WHERE id=$1", gen); err != nil {
		return 0, &IndexError{Op: "flip", Err: err}
	}
	if _, err := tx.ExecContext(ctx, "UPDATE _geo_meta SET updated=CURRENT_DATE, generation=$1 WHERE id=1", gen); err != nil {
		return 0, &IndexError{Op: "flip", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return 0, &IndexError{Op: "flip", Err: err}
	}

	dropSuperseded(ctx, db, gen)
	metrics.SnapshotGeneration.Set(float64(gen))
	logger.L().Info("index_commit", "generation", gen, "documents", set.Len())
	return gen, nil
}

// dropSuperseded removes old generation rows and tables. Failures are
// logged, not returned; the new generation is already live.
func dropSuperseded(ctx context.Context, db *sql.DB, keep int64) {
	rows, err := db.QueryContext(ctx, "SELECT id FROM _geo_generations WHERE id <> $1", keep)
	if err != nil {
		logger.L().Warn("generation_gc_error", "err", err)
		return
	}
	defer rows.Close()
	var old []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err == nil {
			old = append(old, id)
		}
	}
	for _, id := range old {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+docTable(id)); err != nil {
			logger.L().Warn("generation_gc_error", "generation", id, "err", err)
			continue
		}
		if _, err := db.ExecContext(ctx, "DELETE FROM _geo_generations WHERE id=$1", id); err != nil {
			logger.L().Warn("generation_gc_error", "generation", id, "err", err)
		}
		logger.L().Debug("generation_dropped", "generation", id)
	}
}

// Load reads the current generation into a fresh snapshot.
func Load(ctx context.Context, db *sql.DB) (*Snapshot, error) {
	var gen int64
	err := db.QueryRowContext(ctx, "SELECT id FROM _geo_generations WHERE current").Scan(&gen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoGeneration
	}
	if err != nil {
		return nil, &IndexError{Op: "load", Err: err}
	}
	var updated sql.NullTime
	if err := db.QueryRowContext(ctx, "SELECT updated FROM _geo_meta WHERE id=1").Scan(&updated); err != nil {
		return nil, &IndexError{Op: "load", Err: err}
	}

	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT doc_type, body FROM %s", docTable(gen)))
	if err != nil {
		return nil, &IndexError{Op: "load", Err: err}
	}
	defer rows.Close()

	set := &model.DocumentSet{}
	for rows.Next() {
		var (
			docType string
			body    []byte
		)
		if err := rows.Scan(&docType, &body); err != nil {
			return nil, &IndexError{Op: "load", Err: err}
		}
		switch model.DocType(docType) {
		case model.TypeAddress:
			var a model.Address
			if err := json.Unmarshal(body, &a); err != nil {
				return nil, &IndexError{Op: "load", Err: err}
			}
			set.Addresses = append(set.Addresses, a)
		case model.TypeStreetSegment:
			var s model.StreetSegment
			if err := json.Unmarshal(body, &s); err != nil {
				return nil, &IndexError{Op: "load", Err: err}
			}
			set.Segments = append(set.Segments, s)
		case model.TypeMunicipality:
			var m model.Municipality
			if err := json.Unmarshal(body, &m); err != nil {
				return nil, &IndexError{Op: "load", Err: err}
			}
			set.Municipalities = append(set.Municipalities, m)
		case model.TypeFeature:
			var f model.NamedFeature
			if err := json.Unmarshal(body, &f); err != nil {
				return nil, &IndexError{Op: "load", Err: err}
			}
			set.Features = append(set.Features, f)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &IndexError{Op: "load", Err: err}
	}

	var at time.Time
	if updated.Valid {
		at = updated.Time
	}
	snap := BuildSnapshot(gen, at, set)
	metrics.ObserveSnapshot(set)
	logger.L().Info("index_loaded", "generation", gen, "documents", set.Len())
	return snap, nil
}

// docWriter batches multi-row inserts.
type docWriter struct {
	ctx   context.Context
	db    *sql.DB
	table string

	types []model.DocType
	keys  []string
	docs  []any
}

func (w *docWriter) add(t model.DocType, key string, doc any) error {
	w.types = append(w.types, t)
	w.keys = append(w.keys, key)
	w.docs = append(w.docs, doc)
	if len(w.docs) >= insertChunk {
		return w.flush()
	}
	return nil
}

func (w *docWriter) flush() error {
	if len(w.docs) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO " + w.table + "(doc_type, natural_key, body) VALUES")
	args := make([]any, 0, len(w.docs)*3)
	for i := range w.docs {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "($%d,$%d,$%d)", i*3+1, i*3+2, i*3+3)
		body, err := json.Marshal(w.docs[i])
		if err != nil {
			return &IndexError{Op: "marshal", Err: err}
		}
		args = append(args, string(w.types[i]), w.keys[i], body)
	}
	if _, err := w.db.ExecContext(w.ctx, sb.String(), args...); err != nil {
		return &IndexError{Op: "insert", Err: err}
	}
	w.types, w.keys, w.docs = w.types[:0], w.keys[:0], w.docs[:0]
	return nil
}
