// Package migrate creates the minimal Postgres structure on first run so
// neither the server nor the import CLI needs a manual provisioning step.
package migrate

import (
	"database/sql"

	"github.com/HSLdevcom/digitransit-geocoder/internal/logger"
)

// EnsureSchema applies the fixed DDL list. Statements use IF NOT EXISTS so
// re-running against an existing database is a no-op. Per-generation
// document tables are created by the indexer, not here.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _geo_generations (
            id BIGSERIAL PRIMARY KEY,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            doc_count BIGINT NOT NULL DEFAULT 0,
            current BOOLEAN NOT NULL DEFAULT FALSE
        )`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_current_generation
            ON _geo_generations(current) WHERE current`,
		`CREATE TABLE IF NOT EXISTS _geo_sources (
            name TEXT PRIMARY KEY,
            url TEXT NOT NULL,
            etag TEXT NOT NULL DEFAULT '',
            last_modified TEXT NOT NULL DEFAULT '',
            fetched_at TIMESTAMPTZ
        )`,
		`CREATE TABLE IF NOT EXISTS _geo_meta (
            id INT PRIMARY KEY,
            updated DATE,
            generation BIGINT
        )`,
		`INSERT INTO _geo_meta(id, updated, generation)
         VALUES(1, NULL, NULL)
         ON CONFLICT (id) DO NOTHING`,
		`CREATE TABLE IF NOT EXISTS _geo_import_runs (
            id BIGSERIAL PRIMARY KEY,
            started_at TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ,
            generation BIGINT,
            forced BOOLEAN NOT NULL DEFAULT FALSE,
            ok BOOLEAN NOT NULL DEFAULT FALSE,
            detail JSONB
        )`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
