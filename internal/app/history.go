package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// HistoryEntry is one persisted transcript+analysis pair together with the
// settings it was produced under, so selecting it later restores the view
// exactly.
type HistoryEntry struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Transcript string         `json:"transcript"`
	Analysis   AnalysisResult `json:"analysis"`
	Level      string         `json:"level"`
	Roleplay   string         `json:"roleplay"`
}

// HistoryStore is an append-only, capacity-bounded log of practice turns,
// ordered newest-first. Mutations persist the whole collection before
// returning; readers tolerate a missing or corrupt backing store by reporting
// an empty collection.
type HistoryStore interface {
	Append(entry HistoryEntry) error
	Remove(id string) error
	Clear() error
	List() ([]HistoryEntry, error)
}

// FileHistoryStore keeps the collection in one JSON file. Overwrite is
// last-writer-wins on the whole file: a crash mid-persist loses at most the
// in-flight mutation, never prior entries.
type FileHistoryStore struct {
	Path  string
	Limit int
	Log   *logrus.Logger

	mu sync.Mutex
}

var (
	idMu   sync.Mutex
	lastID int64
)

// NewEntryID derives an id from the creation instant. Collisions within the
// same nanosecond bump forward so ids stay unique and monotonic.
func NewEntryID(now time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()
	id := now.UnixNano()
	if id <= lastID {
		id = lastID + 1
	}
	lastID = id
	return fmt.Sprintf("%d", id)
}

func NewFileHistoryStore(path string, limit int, log *logrus.Logger) *FileHistoryStore {
	if strings.TrimSpace(path) == "" {
		path = filepath.Join(DefaultDataRoot(), "history.json")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if log == nil {
		log = NewQuietLogger()
	}
	return &FileHistoryStore{Path: path, Limit: limit, Log: log}
}

func (s *FileHistoryStore) load() []HistoryEntry {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.Log.WithError(err).Warn("history read failed, treating as empty")
		}
		return []HistoryEntry{}
	}
	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		// Corrupt history must never take the app down.
		s.Log.WithError(err).Warn("history parse failed, treating as empty")
		return []HistoryEntry{}
	}
	return entries
}

func (s *FileHistoryStore) persist(entries []HistoryEntry) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, data, 0o644)
}

// Append inserts at the head and truncates to the cap.
func (s *FileHistoryStore) Append(entry HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		return errors.New("missing entry id")
	}
	entries := append([]HistoryEntry{entry}, s.load()...)
	if len(entries) > s.Limit {
		entries = entries[:s.Limit]
	}
	return s.persist(entries)
}

func (s *FileHistoryStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.load()
	out := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return s.persist(out)
}

func (s *FileHistoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist([]HistoryEntry{})
}

func (s *FileHistoryStore) List() ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

// OpenHistoryStore picks the backend from config.
func OpenHistoryStore(cfg Config, log *logrus.Logger) (HistoryStore, error) {
	switch cfg.HistoryBackend {
	case "", "file":
		return NewFileHistoryStore("", cfg.HistoryLimit, log), nil
	case "sqlite":
		return NewSQLiteHistoryStore(filepath.Join(DefaultDataRoot(), "speakcoach.db"), cfg.HistoryLimit)
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.HistoryBackend)
	}
}
