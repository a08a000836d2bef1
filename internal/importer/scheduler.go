package importer

import (
	"context"
	"database/sql"
	"time"

	"github.com/HSLdevcom/digitransit-geocoder/internal/index"
	"github.com/HSLdevcom/digitransit-geocoder/internal/logger"
)

// importHour is the local hour of the nightly run; upstream feeds refresh
// overnight and traffic is at its lowest.
const importHour = 4

// StartNightly runs the import every night at 04:00 Helsinki time and swaps
// the fresh snapshot into the holder. It returns immediately; the loop
// stops when ctx is cancelled.
func StartNightly(ctx context.Context, db *sql.DB, holder *index.Holder, opts Options) {
	loc, err := time.LoadLocation("Europe/Helsinki")
	if err != nil {
		logger.L().Error("scheduler_tz_error", "err", err)
		loc = time.UTC
	}
	go func() {
		for {
			wait := time.Until(nextRun(time.Now().In(loc)))
			logger.L().Info("scheduler_sleep", "until", time.Now().Add(wait).Format(time.RFC3339))
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			runAndSwap(ctx, db, holder, opts)
		}
	}()
}

// nextRun is the next importHour o'clock strictly after now.
func nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), importHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func runAndSwap(ctx context.Context, db *sql.DB, holder *index.Holder, opts Options) {
	report, err := Run(ctx, db, DefaultSources(), opts)
	if err != nil {
		logger.L().Error("scheduled_import_failed", "err", err)
		return
	}
	snap, err := index.Load(ctx, db)
	if err != nil {
		logger.L().Error("snapshot_reload_failed", "generation", report.Generation, "err", err)
		return
	}
	holder.Set(snap)
	logger.L().Info("snapshot_swapped", "generation", snap.Generation)
}
