// Package history keeps the revision trail of every committed section.
// Writes are buffered and flushed in batches so commits never wait on
// the log.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/pagesync/idgen"
	"github.com/hazyhaar/pagesync/section"
)

// Schema creates the revisions table.
const Schema = `
CREATE TABLE IF NOT EXISTS revisions (
	rev_id     TEXT PRIMARY KEY,
	doc_id     TEXT    NOT NULL,
	section_id TEXT    NOT NULL,
	type       TEXT    NOT NULL,
	content    TEXT    NOT NULL,
	source     TEXT    NOT NULL,
	at         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS revisions_by_section ON revisions (doc_id, section_id, at DESC);`

// Revision is one committed state of a section.
type Revision struct {
	ID        string       `json:"id"`
	DocID     string       `json:"docId"`
	SectionID string       `json:"sectionId"`
	Type      section.Role `json:"type"`
	Content   string       `json:"content"`
	// Source names what produced the revision: "surface", "http" or "mcp".
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

const batchSize = 50

// Log persists revisions asynchronously.
type Log struct {
	db       *sql.DB
	logger   *slog.Logger
	newID    idgen.Generator
	interval time.Duration

	ch   chan Revision
	stop chan struct{}
	done chan struct{}
}

// Option configures a Log.
type Option func(*Log)

// WithFlushInterval sets the period of the background flush. Default: 2s.
func WithFlushInterval(d time.Duration) Option { return func(l *Log) { l.interval = d } }

// WithLogger sets the logger.
func WithLogger(lg *slog.Logger) Option {
	return func(l *Log) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// New starts a Log writing to db. The schema must already be applied.
func New(db *sql.DB, opts ...Option) *Log {
	l := &Log{
		db:       db,
		logger:   slog.Default(),
		newID:    idgen.Prefixed("rev_", idgen.UUIDv7()),
		interval: 2 * time.Second,
		ch:       make(chan Revision, 256),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	go l.flushLoop()
	return l
}

// Record queues rev. A full buffer falls back to a synchronous insert.
func (l *Log) Record(rev Revision) {
	if rev.ID == "" {
		rev.ID = l.newID()
	}
	if rev.At.IsZero() {
		rev.At = time.Now()
	}
	select {
	case l.ch <- rev:
	default:
		l.logger.Warn("history: buffer full, writing synchronously", "section", rev.SectionID)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.insert(ctx, []Revision{rev}); err != nil {
			l.logger.Error("history: insert", "error", err)
		}
	}
}

// List returns up to limit revisions of a section, newest first.
func (l *Log) List(ctx context.Context, docID, sectionID string, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT rev_id, type, content, source, at FROM revisions
		WHERE doc_id = ? AND section_id = ?
		ORDER BY at DESC, rev_id DESC LIMIT ?`, docID, sectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()
	out := []Revision{}
	for rows.Next() {
		r := Revision{DocID: docID, SectionID: sectionID}
		var role string
		var at int64
		if err := rows.Scan(&r.ID, &role, &r.Content, &r.Source, &at); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		r.Type = section.Role(role)
		r.At = time.UnixMilli(at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune keeps the newest keep revisions of a section and deletes the rest.
func (l *Log) Prune(ctx context.Context, docID, sectionID string, keep int) (int64, error) {
	res, err := l.db.ExecContext(ctx, `
		DELETE FROM revisions WHERE doc_id = ? AND section_id = ? AND rev_id NOT IN (
			SELECT rev_id FROM revisions WHERE doc_id = ? AND section_id = ?
			ORDER BY at DESC, rev_id DESC LIMIT ?)`,
		docID, sectionID, docID, sectionID, keep)
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return res.RowsAffected()
}

// Close drains the buffer and stops the flush goroutine.
func (l *Log) Close() error {
	close(l.stop)
	<-l.done
	return nil
}

func (l *Log) flushLoop() {
	defer close(l.done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	batch := make([]Revision, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := l.insert(ctx, batch); err != nil {
			l.logger.Error("history: flush", "error", err, "revisions", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-l.stop:
			for {
				select {
				case r := <-l.ch:
					batch = append(batch, r)
				default:
					flush()
					return
				}
			}
		case r := <-l.ch:
			batch = append(batch, r)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (l *Log) insert(ctx context.Context, revs []Revision) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO revisions
		(rev_id, doc_id, section_id, type, content, source, at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for _, r := range revs {
		if _, err := stmt.ExecContext(ctx, r.ID, r.DocID, r.SectionID, string(r.Type), r.Content, r.Source, r.At.UnixMilli()); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}
