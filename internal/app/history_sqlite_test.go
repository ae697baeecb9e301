package app

import (
	"path/filepath"
	"testing"
)

func newTestSQLiteStore(t *testing.T, limit int) *SQLiteHistoryStore {
	t.Helper()
	store, err := NewSQLiteHistoryStore(filepath.Join(t.TempDir(), "speakcoach.db"), limit)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteHistoryAppendCapsNewestFirst(t *testing.T) {
	store := newTestSQLiteStore(t, 3)

	for i := 0; i < 6; i++ {
		if err := store.Append(sampleEntry(i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	entries, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len = %d, want cap 3", len(entries))
	}
	if entries[0].Transcript != "transcript 5" || entries[2].Transcript != "transcript 3" {
		t.Fatalf("unexpected order: %s .. %s", entries[0].Transcript, entries[2].Transcript)
	}
}

func TestSQLiteHistoryRemoveAndClear(t *testing.T) {
	store := newTestSQLiteStore(t, 10)

	a, b := sampleEntry(1), sampleEntry(2)
	for _, e := range []HistoryEntry{a, b} {
		if err := store.Append(e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if err := store.Remove(a.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	entries, _ := store.List()
	if len(entries) != 1 || entries[0].ID != b.ID {
		t.Fatalf("after remove: %+v", entries)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, _ = store.List()
	if len(entries) != 0 {
		t.Fatalf("after clear: %+v", entries)
	}
}

func TestSQLiteHistoryRoundTripPreservesAnalysis(t *testing.T) {
	store := newTestSQLiteStore(t, 10)

	entry := sampleEntry(0)
	entry.Analysis.GrammarCorrections = []GrammarCorrection{
		{Original: "i has", Correction: "I have", Explanation: "verb agreement"},
	}
	entry.Level = LevelAdvanced
	entry.Roleplay = RoleplayInterview
	if err := store.Append(entry); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := entries[0]
	if got.Level != LevelAdvanced || got.Roleplay != RoleplayInterview {
		t.Fatalf("settings not restored: %+v", got)
	}
	if len(got.Analysis.GrammarCorrections) != 1 || got.Analysis.GrammarCorrections[0].Correction != "I have" {
		t.Fatalf("analysis not restored: %+v", got.Analysis)
	}
	if !got.Timestamp.Equal(entry.Timestamp) {
		t.Fatalf("timestamp = %v, want %v", got.Timestamp, entry.Timestamp)
	}
}

func TestSQLiteHistoryReopenKeepsEntries(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "speakcoach.db")

	store, err := NewSQLiteHistoryStore(dbPath, 10)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	entry := sampleEntry(0)
	if err := store.Append(entry); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewSQLiteHistoryStore(dbPath, 10)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	entries, err := reopened.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != entry.ID {
		t.Fatalf("entries after reopen: %+v", entries)
	}
}
