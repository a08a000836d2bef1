package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/HSLdevcom/digitransit-geocoder/internal/importer"
	"github.com/HSLdevcom/digitransit-geocoder/internal/logger"
	"github.com/HSLdevcom/digitransit-geocoder/internal/migrate"
	"github.com/HSLdevcom/digitransit-geocoder/internal/utils"
)

func main() {
	force := flag.Bool("force", false, "refetch every source even if unchanged")
	only := flag.String("sources", "", "comma separated subset of sources to import")
	dataDir := flag.String("data", "data", "feed cache directory")
	verbose := flag.Int("v", 1, "log verbosity 0..2")
	flag.Parse()

	_ = godotenv.Load(".env")
	_ = godotenv.Load("env/.env")

	switch *verbose {
	case 0:
		logger.SetupLevel(slog.LevelWarn)
	case 2:
		logger.SetupLevel(slog.LevelDebug)
	default:
		logger.Setup()
	}
	l := logger.L()

	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	if err := db.Ping(); err != nil {
		l.Error("db_ping_error", "err", err)
		os.Exit(1)
	}
	if err := migrate.EnsureSchema(db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}

	opts := importer.Options{Force: *force, DataDir: *dataDir}
	if *only != "" {
		for _, n := range strings.Split(*only, ",") {
			if n = strings.TrimSpace(n); n != "" {
				opts.Only = append(opts.Only, n)
			}
		}
	}

	report, err := importer.Run(context.Background(), db, importer.DefaultSources(), opts)
	if err != nil {
		l.Error("import_failed", "err", err)
		os.Exit(1)
	}
	l.Info("import_ok", "generation", report.Generation, "partial", report.Partial)
	if report.Partial {
		os.Exit(2)
	}
}
