package app

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

func nsToTime(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

// SQLiteHistoryStore keeps the history log in SQLite. Same contract as the
// JSON file store; the cap is enforced by deleting beyond-limit rows after
// each append.
type SQLiteHistoryStore struct {
	dbPath string
	limit  int

	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteHistoryStore(dbPath string, limit int) (*SQLiteHistoryStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join(DefaultDataRoot(), "speakcoach.db")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// Keep sqlite responsive under contention.
	_, _ = db.Exec("PRAGMA busy_timeout = 5000;")
	_, _ = db.Exec("PRAGMA journal_mode = WAL;")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL;")

	schema := `CREATE TABLE IF NOT EXISTS history (
		id TEXT PRIMARY KEY,
		timestamp_ns INTEGER NOT NULL,
		transcript TEXT NOT NULL,
		analysis TEXT NOT NULL,
		level TEXT NOT NULL,
		roleplay TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_history_ts ON history(timestamp_ns DESC);`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteHistoryStore{dbPath: dbPath, limit: limit, db: db}, nil
}

func (s *SQLiteHistoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *SQLiteHistoryStore) Append(entry HistoryEntry) error {
	if entry.ID == "" {
		return errors.New("missing entry id")
	}
	analysisJSON, err := json.Marshal(entry.Analysis)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO history (id, timestamp_ns, transcript, analysis, level, roleplay) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Timestamp.UnixNano(), entry.Transcript, string(analysisJSON), entry.Level, entry.Roleplay,
	); err != nil {
		return err
	}
	// Evict the oldest rows beyond the cap.
	if _, err := tx.Exec(
		`DELETE FROM history WHERE id NOT IN (SELECT id FROM history ORDER BY timestamp_ns DESC LIMIT ?)`,
		s.limit,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteHistoryStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM history WHERE id = ?`, id)
	return err
}

func (s *SQLiteHistoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM history`)
	return err
}

func (s *SQLiteHistoryStore) List() ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, timestamp_ns, transcript, analysis, level, roleplay FROM history ORDER BY timestamp_ns DESC`)
	if err != nil {
		// Read failures degrade to an empty collection, same as the file store.
		return []HistoryEntry{}, nil
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var (
			e            HistoryEntry
			tsNS         int64
			analysisJSON string
		)
		if err := rows.Scan(&e.ID, &tsNS, &e.Transcript, &analysisJSON, &e.Level, &e.Roleplay); err != nil {
			continue
		}
		if err := json.Unmarshal([]byte(analysisJSON), &e.Analysis); err != nil {
			continue
		}
		e.Timestamp = nsToTime(tsNS)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return entries, fmt.Errorf("history scan: %w", err)
	}
	return entries, nil
}
