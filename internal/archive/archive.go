// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive keeps a journal of aggregation runs in SQLite and builds
// a full-text index over the archived records so past context can be
// searched and exported without calling the providers again.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/foursight/pkg/types"
)

const (
	dbFile            = "archive.db"
	defaultMaxResults = 20

	// timeLayout has fixed-width fractions so created_at sorts as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Store manages the archive SQLite database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int
}

// Open opens or creates the archive database at dir/archive.db and creates
// the schema if it does not exist.
func Open(cfg types.ArchiveConfig) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("archive directory not configured")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	s := &Store{db: db, dir: cfg.Dir, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the directory holding the database and exports.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			translated TEXT,
			context TEXT,
			created_at TEXT NOT NULL,
			duration_ms INTEGER,
			total INTEGER,
			sources TEXT,
			errors TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			source TEXT NOT NULL,
			kind TEXT,
			title TEXT NOT NULL,
			url TEXT,
			snippet TEXT,
			published_date TEXT,
			score REAL,
			extra TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_run_id ON records(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_records_source ON records(source)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='records_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		return nil
	}

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE records_fts USING fts5(title, snippet, content=records, content_rowid=rowid)`,
		`CREATE TRIGGER records_ai AFTER INSERT ON records BEGIN
			INSERT INTO records_fts(rowid, title, snippet) VALUES (new.rowid, new.title, new.snippet);
		END`,
		`CREATE TRIGGER records_ad AFTER DELETE ON records BEGIN
			INSERT INTO records_fts(records_fts, rowid, title, snippet) VALUES('delete', old.rowid, old.title, old.snippet);
		END`,
		`CREATE TRIGGER records_au AFTER UPDATE ON records BEGIN
			INSERT INTO records_fts(records_fts, rowid, title, snippet) VALUES('delete', old.rowid, old.title, old.snippet);
			INSERT INTO records_fts(rowid, title, snippet) VALUES (new.rowid, new.title, new.snippet);
		END`,
	}
	for _, stmt := range ftsStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	return nil
}

// Save archives one aggregation result and returns the new run id. The
// records are stored in the order of res.All.
func (s *Store) Save(ctx context.Context, res types.AggregationResult, now time.Time) (string, error) {
	id := uuid.NewString()

	errorsJSON, err := json.Marshal(res.Errors)
	if err != nil {
		return "", fmt.Errorf("encoding errors: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, query, translated, context, created_at, duration_ms, total, sources, errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, res.Query, res.Translated, res.Context, now.UTC().Format(timeLayout),
		res.Duration.Milliseconds(), res.Total(), joinSources(res.SourceNames()), string(errorsJSON),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (run_id, position, source, kind, title, url, snippet, published_date, score, extra)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range res.All {
		var extra []byte
		if len(r.Extra) > 0 {
			if extra, err = json.Marshal(r.Extra); err != nil {
				return "", fmt.Errorf("encoding extra of %q: %w", r.Title, err)
			}
		}
		_, err := stmt.ExecContext(ctx,
			id, i, string(r.Source), string(r.Kind), r.Title, r.URL, r.Snippet,
			r.PublishedDate, r.RelevanceScore, nullString(extra),
		)
		if err != nil {
			return "", fmt.Errorf("inserting record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return id, nil
}

// Delete removes a run and its records.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

func joinSources(sources []types.Source) string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = string(s)
	}
	return strings.Join(names, ",")
}

func nullString(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
