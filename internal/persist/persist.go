// Package persist stores documents in SQLite: one row per section, ordered
// by position, plus the producer and product records used for hydration.
package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/pagesync/hydrate"
	"github.com/hazyhaar/pagesync/internal/dbopen"
	"github.com/hazyhaar/pagesync/section"
)

// Schema creates the tables. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS sections (
	doc_id     TEXT    NOT NULL,
	id         TEXT    NOT NULL,
	position   INTEGER NOT NULL,
	type       TEXT    NOT NULL,
	content    TEXT    NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (doc_id, id)
);
CREATE INDEX IF NOT EXISTS sections_by_position ON sections (doc_id, position);
CREATE TABLE IF NOT EXISTS records (
	doc_id     TEXT PRIMARY KEY,
	producer   TEXT NOT NULL,
	product    TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// Store reads and writes documents. It implements engine.Persister.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New wraps db. The schema must already be applied, usually through
// dbopen.WithSchema(Schema).
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Load returns a document's sections in position order. A missing document
// yields an empty slice.
func (s *Store) Load(ctx context.Context, docID string) ([]section.Section, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, content FROM sections WHERE doc_id = ? ORDER BY position, id`, docID)
	if err != nil {
		return nil, fmt.Errorf("persist: load %s: %w", docID, err)
	}
	defer rows.Close()
	out := []section.Section{}
	for rows.Next() {
		var sec section.Section
		var role string
		if err := rows.Scan(&sec.ID, &role, &sec.Content); err != nil {
			return nil, fmt.Errorf("persist: scan: %w", err)
		}
		sec.Type = section.Role(role)
		out = append(out, sec)
	}
	return out, rows.Err()
}

// Save upserts one section at position.
func (s *Store) Save(ctx context.Context, docID string, position int, sec section.Section) error {
	_, err := dbopen.Exec(ctx, s.db, `
		INSERT INTO sections (doc_id, id, position, type, content, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (doc_id, id) DO UPDATE SET
			position = excluded.position,
			type = excluded.type,
			content = excluded.content,
			updated_at = excluded.updated_at`,
		docID, sec.ID, position, string(sec.Type), sec.Content, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("persist: save %s/%s: %w", docID, sec.ID, err)
	}
	return nil
}

// SaveAll replaces a whole document.
func (s *Store) SaveAll(ctx context.Context, docID string, sections []section.Section) error {
	now := s.now().UnixMilli()
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE doc_id = ?`, docID); err != nil {
			return fmt.Errorf("persist: clear %s: %w", docID, err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO sections (doc_id, id, position, type, content, updated_at) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("persist: prepare: %w", err)
		}
		defer stmt.Close()
		for i, sec := range sections {
			if _, err := stmt.ExecContext(ctx, docID, sec.ID, i, string(sec.Type), sec.Content, now); err != nil {
				return fmt.Errorf("persist: insert %s/%s: %w", docID, sec.ID, err)
			}
		}
		return nil
	})
}

// Delete removes one section. Deleting a missing section is not an error.
func (s *Store) Delete(ctx context.Context, docID, id string) error {
	if _, err := dbopen.Exec(ctx, s.db, `DELETE FROM sections WHERE doc_id = ? AND id = ?`, docID, id); err != nil {
		return fmt.Errorf("persist: delete %s/%s: %w", docID, id, err)
	}
	return nil
}

// LoadRecords returns the hydration records of a document, zero-valued when
// none were saved.
func (s *Store) LoadRecords(ctx context.Context, docID string) (hydrate.Records, error) {
	var producer, product string
	err := s.db.QueryRowContext(ctx,
		`SELECT producer, product FROM records WHERE doc_id = ?`, docID).Scan(&producer, &product)
	if errors.Is(err, sql.ErrNoRows) {
		return hydrate.Records{}, nil
	}
	if err != nil {
		return hydrate.Records{}, fmt.Errorf("persist: load records %s: %w", docID, err)
	}
	var rec hydrate.Records
	if err := json.Unmarshal([]byte(producer), &rec.Producer); err != nil {
		return hydrate.Records{}, fmt.Errorf("persist: decode producer: %w", err)
	}
	if err := json.Unmarshal([]byte(product), &rec.Product); err != nil {
		return hydrate.Records{}, fmt.Errorf("persist: decode product: %w", err)
	}
	return rec, nil
}

// SaveRecords upserts the hydration records of a document.
func (s *Store) SaveRecords(ctx context.Context, docID string, rec hydrate.Records) error {
	producer, err := json.Marshal(rec.Producer)
	if err != nil {
		return fmt.Errorf("persist: encode producer: %w", err)
	}
	product, err := json.Marshal(rec.Product)
	if err != nil {
		return fmt.Errorf("persist: encode product: %w", err)
	}
	_, err = dbopen.Exec(ctx, s.db, `
		INSERT INTO records (doc_id, producer, product, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (doc_id) DO UPDATE SET
			producer = excluded.producer,
			product = excluded.product,
			updated_at = excluded.updated_at`,
		docID, string(producer), string(product), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("persist: save records %s: %w", docID, err)
	}
	return nil
}
