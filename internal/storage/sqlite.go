// Package storage persists a parsed bibliography in SQLite so that large
// corpora can be indexed once and queried without re-parsing.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/darisdzakwanhoesien2/research-landscape/internal/bibtex"
)

// DB wraps a SQLite database connection.
type DB struct {
	db     *sql.DB
	logger zerolog.Logger
}

// selectEntryFields contains the standard field list for entry queries.
const selectEntryFields = `key, entry_type, fields_json, external_id`

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating schema")
	}

	return &DB{db: db, logger: zerolog.Nop()}, nil
}

// SetLogger sets the logger used while ingesting.
func (d *DB) SetLogger(logger zerolog.Logger) {
	d.logger = logger
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		-- One row per definition of a key in a source file. The definition with
		-- the highest seq is the current one.
		CREATE TABLE IF NOT EXISTS entries (
			key TEXT NOT NULL,
			source TEXT NOT NULL,
			entry_type TEXT NOT NULL,
			doi TEXT,
			doi_norm TEXT,
			external_id TEXT,
			fields_json TEXT NOT NULL,
			seq INTEGER NOT NULL,
			PRIMARY KEY (key, source)
		);

		CREATE INDEX IF NOT EXISTS idx_entries_key_seq ON entries(key, seq);
		CREATE INDEX IF NOT EXISTS idx_entries_doi_norm ON entries(doi_norm) WHERE doi_norm IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_entries_external_id ON entries(external_id) WHERE external_id IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_entries_source ON entries(source);

		CREATE VIEW IF NOT EXISTS current_entries AS
			SELECT e.* FROM entries e
			WHERE e.seq = (SELECT MAX(seq) FROM entries WHERE key = e.key);

		-- Files that have been ingested, for staleness detection
		CREATE TABLE IF NOT EXISTS corpus_sources (
			path TEXT PRIMARY KEY,
			fingerprint TEXT NOT NULL,
			attempted INTEGER NOT NULL,
			parsed INTEGER NOT NULL,
			indexed_at INTEGER NOT NULL
		);
	`

	_, err := db.Exec(schema)
	return err
}

// Source identifies an ingested corpus file.
type Source struct {
	Path        string `json:"path"`
	Fingerprint string `json:"fingerprint"`
	Attempted   int    `json:"attempted"`
	Parsed      int    `json:"parsed"`
	IndexedAt   int64  `json:"indexed_at"` // Unix timestamp
}

// IngestResult summarizes one Ingest call.
type IngestResult struct {
	Batches int               `json:"batches"`
	Stats   bibtex.ParseStats `json:"stats"`
}

// Ingest reads entry spans from it in batches of batchSize, parses each
// batch and stores the entries of one source file in a single transaction.
// A non-positive batchSize ingests everything as one batch.
//
// Definitions previously ingested from the same path are replaced. Other
// sources keep their definitions; for a key defined by several sources the
// one ingested last is current, and dropping it from its file brings back the
// earlier definition.
//
// The context is checked between batches; on cancellation the transaction is
// rolled back and nothing from this call is kept.
func (d *DB) Ingest(ctx context.Context, path, fingerprint string, it *bibtex.SpanIterator, batchSize int) (*IngestResult, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE source = ?", path); err != nil {
		return nil, errors.Wrapf(err, "clearing entries from %s", path)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) FROM entries").Scan(&seq); err != nil {
		return nil, errors.Wrap(err, "reading sequence")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO entries (
			key, source, entry_type, doi, doi_norm, external_id, fields_json, seq
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, errors.Wrap(err, "preparing entry insert")
	}
	defer stmt.Close()

	result := &IngestResult{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "ingesting %s", path)
		}

		batch := nextBatch(it, batchSize)
		if len(batch) == 0 {
			break
		}
		idx, stats, err := bibtex.ParseRange(batch, 0, len(batch))
		if err != nil {
			return nil, err
		}
		for _, pe := range stats.Errors {
			d.logger.Warn().Str("source", path).Int("line", pe.Line).Str("key", pe.Key).Err(pe.Err).Msg("skipping entry")
		}
		result.Stats.Add(stats)
		result.Batches++

		// Scan order keeps seq increasing with the position in the file.
		for _, e := range idx.InOrder() {
			fieldsJSON, err := json.Marshal(e.Fields)
			if err != nil {
				return nil, errors.Wrapf(err, "marshaling fields for %s", e.Key)
			}
			seq++
			doi := e.DOI()
			_, err = stmt.ExecContext(ctx,
				e.Key, path, e.Type,
				nullableStringValue(doi), nullableStringValue(bibtex.NormalizeDOI(doi)),
				nullableStringValue(e.ExternalID), string(fieldsJSON),
				seq,
			)
			if err != nil {
				return nil, errors.Wrapf(err, "inserting entry %s", e.Key)
			}
		}
		d.logger.Debug().Str("source", path).Int("line", batch[0].Line).Int("spans", len(batch)).Int("parsed", stats.Parsed).Msg("ingested batch")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO corpus_sources (path, fingerprint, attempted, parsed, indexed_at)
		VALUES (?, ?, ?, ?, ?)
	`, path, fingerprint, result.Stats.Attempted, result.Stats.Parsed, time.Now().Unix())
	if err != nil {
		return nil, errors.Wrapf(err, "recording source %s", path)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing ingest")
	}
	return result, nil
}

// nextBatch pulls up to size spans from it; all remaining spans when size <= 0.
func nextBatch(it *bibtex.SpanIterator, size int) []bibtex.Span {
	var batch []bibtex.Span
	for size <= 0 || len(batch) < size {
		span, ok := it.Next()
		if !ok {
			break
		}
		batch = append(batch, span)
	}
	return batch
}

// IsCurrent reports whether path was ingested with the given fingerprint.
func (d *DB) IsCurrent(path, fingerprint string) (bool, error) {
	var stored string
	err := d.db.QueryRow("SELECT fingerprint FROM corpus_sources WHERE path = ?", path).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "reading fingerprint of %s", path)
	}
	return stored == fingerprint, nil
}

// Clear removes every entry and source record.
func (d *DB) Clear() error {
	if _, err := d.db.Exec("DELETE FROM entries"); err != nil {
		return errors.Wrap(err, "clearing entries")
	}
	if _, err := d.db.Exec("DELETE FROM corpus_sources"); err != nil {
		return errors.Wrap(err, "clearing sources")
	}
	return nil
}

// LookupKey returns the DOI stored for a key. Entries without a DOI are
// reported as absent.
func (d *DB) LookupKey(key string) (string, bool, error) {
	var doi string
	err := d.db.QueryRow(`SELECT doi FROM current_entries WHERE key = ? AND doi IS NOT NULL`, key).Scan(&doi)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "looking up key %s", key)
	}
	return doi, true, nil
}

// LookupDOI returns the keys sharing a DOI, compared case-insensitively and
// sorted.
func (d *DB) LookupDOI(doi string) ([]string, error) {
	rows, err := d.db.Query(`SELECT key FROM current_entries WHERE doi_norm = ? ORDER BY key`, bibtex.NormalizeDOI(doi))
	if err != nil {
		return nil, errors.Wrapf(err, "looking up DOI %s", doi)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// GetEntry retrieves an entry by key. It returns nil when the key is absent.
func (d *DB) GetEntry(key string) (*bibtex.Entry, error) {
	row := d.db.QueryRow(`SELECT `+selectEntryFields+` FROM current_entries WHERE key = ?`, key)
	return scanEntry(row)
}

// EntryByExternalID retrieves the entry carrying an anthology identifier. When
// several current entries share it, the one ingested last wins. It returns nil
// when no entry matches.
func (d *DB) EntryByExternalID(id string) (*bibtex.Entry, error) {
	row := d.db.QueryRow(`SELECT `+selectEntryFields+` FROM current_entries WHERE external_id = ? ORDER BY seq DESC LIMIT 1`, id)
	return scanEntry(row)
}

// Stats describes the indexed corpus.
type Stats struct {
	Entries     int      `json:"entries"`
	WithDOI     int      `json:"with_doi"`
	DOIs        int      `json:"distinct_dois"`
	Definitions int      `json:"definitions"` // including those shadowed by a later source
	Sources     []Source `json:"sources"`
}

// Stats returns counts over the current entries and the ingested sources
// ordered by path.
func (d *DB) Stats() (*Stats, error) {
	var s Stats
	err := d.db.QueryRow(`
		SELECT COUNT(*), COUNT(doi), COUNT(DISTINCT doi_norm) FROM current_entries
	`).Scan(&s.Entries, &s.WithDOI, &s.DOIs)
	if err != nil {
		return nil, errors.Wrap(err, "counting entries")
	}
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&s.Definitions); err != nil {
		return nil, errors.Wrap(err, "counting definitions")
	}

	rows, err := d.db.Query(`
		SELECT path, fingerprint, attempted, parsed, indexed_at
		FROM corpus_sources ORDER BY path
	`)
	if err != nil {
		return nil, errors.Wrap(err, "listing sources")
	}
	defer rows.Close()

	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.Path, &src.Fingerprint, &src.Attempted, &src.Parsed, &src.IndexedAt); err != nil {
			return nil, err
		}
		s.Sources = append(s.Sources, src)
	}
	return &s, rows.Err()
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(s scanner) (*bibtex.Entry, error) {
	var e bibtex.Entry
	var fieldsJSON string
	var externalID sql.NullString

	err := s.Scan(&e.Key, &e.Type, &fieldsJSON, &externalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.ExternalID = externalID.String

	if err := json.Unmarshal([]byte(fieldsJSON), &e.Fields); err != nil {
		return nil, errors.Wrapf(err, "parsing fields JSON for %s", e.Key)
	}
	return &e, nil
}

// nullableStringValue converts a string to sql.NullString, treating empty as NULL.
func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
