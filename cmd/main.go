package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/HSLdevcom/digitransit-geocoder/internal/api"
	"github.com/HSLdevcom/digitransit-geocoder/internal/importer"
	"github.com/HSLdevcom/digitransit-geocoder/internal/index"
	"github.com/HSLdevcom/digitransit-geocoder/internal/logger"
	"github.com/HSLdevcom/digitransit-geocoder/internal/metrics"
	"github.com/HSLdevcom/digitransit-geocoder/internal/middleware"
	"github.com/HSLdevcom/digitransit-geocoder/internal/migrate"
	"github.com/HSLdevcom/digitransit-geocoder/internal/utils"
)

func main() {
	port := flag.String("p", "8080", "listen port")
	verbose := flag.Int("v", 1, "log verbosity 0..2")
	dataDir := flag.String("data", "data", "feed cache directory")
	noSchedule := flag.Bool("no-schedule", false, "disable the nightly import")
	flag.Parse()

	// .env is optional; environment variables win either way
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
	l.Info("db_open_ok")
	if err := migrate.EnsureSchema(db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}

	rdb := utils.OpenRedisFromEnv()
	if rdb != nil {
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			l.Warn("redis_ping_error", "err", err)
			rdb = nil
		} else {
			l.Info("redis_open_ok")
		}
	}

	// the server is useless without an index; wait for one instead of
	// serving 503s forever when the first import is still running
	holder := &index.Holder{}
	ctx := context.Background()
	for {
		snap, err := index.Load(ctx, db)
		if err == nil {
			holder.Set(snap)
			break
		}
		if errors.Is(err, index.ErrNoGeneration) {
			l.Warn("index_empty", "hint", "run geocoder-import to build the first generation")
		} else {
			l.Error("index_load_error", "err", err)
		}
		time.Sleep(10 * time.Second)
	}

	opts := importer.Options{DataDir: *dataDir}
	if !*noSchedule {
		importer.StartNightly(ctx, db, holder, opts)
	}

	mux := http.NewServeMux()
	mux.Handle("/", api.NewServer(holder, rdb).Routes())
	mux.Handle("/metrics", metrics.Handler())

	handler := middleware.Wrap(logger.AccessMiddleware(l)(mux))
	l.Info("listen", "port", *port)
	if err := http.ListenAndServe(":"+*port, handler); err != nil {
		l.Error("serve_error", "err", err)
		os.Exit(1)
	}
}
