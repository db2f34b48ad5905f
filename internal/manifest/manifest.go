// Package manifest keeps a SQLite catalog of pipeline runs and the shards
// they produced, so an output directory stays inspectable after the fact.
package manifest

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// FileName is the catalog's filename inside the output directory.
const FileName = "manifest.db"

// Store wraps the catalog database. Shard rows are recorded as the pipeline
// flushes; run totals are filled in on completion.
type Store struct {
	db   *sql.DB
	path string
}

// Run is one pipeline invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	CorpusRoot string
	Params     string
	FilesUsed  int
	Examples   int
	Shards     int
}

// Shard is one catalog row for a flushed shard.
type Shard struct {
	RunID    string
	Index    int
	Path     string
	Examples int
}

// Open creates (or opens) the catalog in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, FileName)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure manifest database: %w", err)
	}

	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	corpus_root TEXT NOT NULL,
	params      TEXT NOT NULL,
	files_used  INTEGER NOT NULL DEFAULT 0,
	examples    INTEGER NOT NULL DEFAULT 0,
	shards      INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS shards (
	run_id     TEXT NOT NULL,
	idx        INTEGER NOT NULL,
	path       TEXT NOT NULL,
	examples   INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (run_id, idx)
);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create manifest schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// BeginRun records a new run with its corpus root and parameter JSON.
func (s *Store) BeginRun(id, corpusRoot, params string) error {
	_, err := s.db.Exec(
		"INSERT INTO runs (id, started_at, corpus_root, params) VALUES (?, ?, ?, ?)",
		id, time.Now().UTC().Format(time.RFC3339), corpusRoot, params)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// RecordShard catalogs one flushed shard.
func (s *Store) RecordShard(runID string, index int, path string, examples int) error {
	_, err := s.db.Exec(
		"INSERT INTO shards (run_id, idx, path, examples, created_at) VALUES (?, ?, ?, ?, ?)",
		runID, index, path, examples, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record shard %d: %w", index, err)
	}
	return nil
}

// FinishRun stamps the run's completion time and totals.
func (s *Store) FinishRun(runID string, filesUsed, examples, shards int) error {
	_, err := s.db.Exec(
		"UPDATE runs SET finished_at = ?, files_used = ?, examples = ?, shards = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), filesUsed, examples, shards, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// Runs lists all runs, newest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(
		"SELECT id, started_at, finished_at, corpus_root, params, files_used, examples, shards FROM runs ORDER BY started_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		var finished sql.NullString
		if err := rows.Scan(&r.ID, &started, &finished, &r.CorpusRoot, &r.Params, &r.FilesUsed, &r.Examples, &r.Shards); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, started); err == nil {
			r.StartedAt = t
		}
		if finished.Valid {
			if t, err := time.Parse(time.RFC3339, finished.String); err == nil {
				r.FinishedAt = &t
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Shards lists one run's shards in index order.
func (s *Store) Shards(runID string) ([]Shard, error) {
	rows, err := s.db.Query(
		"SELECT run_id, idx, path, examples FROM shards WHERE run_id = ? ORDER BY idx", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query shards: %w", err)
	}
	defer rows.Close()

	var shards []Shard
	for rows.Next() {
		var sh Shard
		if err := rows.Scan(&sh.RunID, &sh.Index, &sh.Path, &sh.Examples); err != nil {
			return nil, fmt.Errorf("failed to scan shard: %w", err)
		}
		shards = append(shards, sh)
	}
	return shards, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
