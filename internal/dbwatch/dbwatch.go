// Package dbwatch reloads the editor when another process writes the
// document database: it polls a version token, waits for writes to settle
// and then runs a reload action.
package dbwatch

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Detector reads a version token. Two different values mean the data changed.
type Detector func(ctx context.Context, db *sql.DB) (int64, error)

// Options tunes a Watcher.
type Options struct {
	// Interval is the polling period. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period required after the last detected change.
	// 0 reloads on the poll that saw the change.
	Debounce time.Duration
	// Detector defaults to DataVersion.
	Detector Detector
	Logger   *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Detector == nil {
		o.Detector = DataVersion
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls one database.
type Watcher struct {
	db   *sql.DB
	opts Options

	version atomic.Int64
	checks  atomic.Int64
	reloads atomic.Int64
	errors  atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks  int64 `json:"checks"`
	Reloads int64 `json:"reloads"`
	Errors  int64 `json:"errors"`
}

// New creates a Watcher. Run starts it.
func New(db *sql.DB, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{db: db, opts: opts}
}

// Stats returns the counters.
func (w *Watcher) Stats() Stats {
	return Stats{Checks: w.checks.Load(), Reloads: w.reloads.Load(), Errors: w.errors.Load()}
}

// Run polls until ctx is cancelled. A failed reload leaves the version
// unchanged so the next poll retries it.
func (w *Watcher) Run(ctx context.Context, reload func(ctx context.Context) error) {
	log := w.opts.Logger
	if v, err := w.opts.Detector(ctx, w.db); err != nil {
		log.Warn("dbwatch: initial version", "error", err)
	} else {
		w.version.Store(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()
	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending int64 = -1
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.opts.Detector(ctx, w.db)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.errors.Add(1)
				log.Warn("dbwatch: version check", "error", err)
				continue
			}
			if cur == w.version.Load() || cur == pending {
				continue
			}
			pending = cur
			if w.opts.Debounce <= 0 {
				w.fire(ctx, reload, pending)
				pending = -1
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.opts.Debounce)
			timerC = timer.C
		case <-timerC:
			timerC = nil
			if pending >= 0 {
				w.fire(ctx, reload, pending)
				pending = -1
			}
		}
	}
}

func (w *Watcher) fire(ctx context.Context, reload func(ctx context.Context) error, v int64) {
	if err := reload(ctx); err != nil {
		w.errors.Add(1)
		w.opts.Logger.Error("dbwatch: reload failed", "version", v, "error", err)
		return
	}
	w.reloads.Add(1)
	w.version.Store(v)
	w.opts.Logger.Debug("dbwatch: reloaded", "version", v)
}

// DataVersion reads PRAGMA data_version, which moves when another
// connection commits to the same file.
func DataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}

// MaxColumn polls MAX(column) of table, for writers sharing the watcher's
// connection, where data_version does not move.
func MaxColumn(table, column string) Detector {
	query := "SELECT COALESCE(MAX(" + quoteIdent(column) + "), 0) FROM " + quoteIdent(table)
	return func(ctx context.Context, db *sql.DB) (int64, error) {
		var v int64
		err := db.QueryRowContext(ctx, query).Scan(&v)
		return v, err
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
