package app

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleEntry(i int) HistoryEntry {
	return HistoryEntry{
		ID:         NewEntryID(time.Now()),
		Timestamp:  time.Unix(1700000000+int64(i), 0).UTC(),
		Transcript: fmt.Sprintf("transcript %d", i),
		Analysis: AnalysisResult{
			GrammarCorrections: []GrammarCorrection{},
			FluencyScore:       70 + i%30,
			Tips:               []string{"keep going"},
			PositiveFeedback:   "nice",
		},
		Level:    LevelIntermediate,
		Roleplay: RoleplayGeneral,
	}
}

func TestFileHistoryAppendCapsNewestFirst(t *testing.T) {
	store := NewFileHistoryStore(filepath.Join(t.TempDir(), "history.json"), 5, nil)

	var last HistoryEntry
	for i := 0; i < 8; i++ {
		last = sampleEntry(i)
		if err := store.Append(last); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	entries, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("len = %d, want cap 5", len(entries))
	}
	if entries[0].ID != last.ID {
		t.Fatalf("head = %s, want newest %s", entries[0].ID, last.ID)
	}
	if entries[0].Transcript != "transcript 7" || entries[4].Transcript != "transcript 3" {
		t.Fatalf("unexpected order: %s .. %s", entries[0].Transcript, entries[4].Transcript)
	}
}

func TestFileHistoryRemoveAndClear(t *testing.T) {
	store := NewFileHistoryStore(filepath.Join(t.TempDir(), "history.json"), 10, nil)

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

	// Removing an unknown id is a no-op, not an error.
	if err := store.Remove("does-not-exist"); err != nil {
		t.Fatalf("remove unknown: %v", err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, _ = store.List()
	if len(entries) != 0 {
		t.Fatalf("after clear: %+v", entries)
	}
}

func TestFileHistoryRoundTripPreservesAnalysis(t *testing.T) {
	store := NewFileHistoryStore(filepath.Join(t.TempDir(), "history.json"), 10, nil)

	entry := sampleEntry(0)
	entry.Analysis.GrammarCorrections = []GrammarCorrection{
		{Original: "She go", Correction: "She goes", Explanation: "subject-verb agreement"},
	}
	entry.Level = LevelBeginner
	entry.Roleplay = RoleplayRestaurant
	if err := store.Append(entry); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := entries[0]
	if got.Level != LevelBeginner || got.Roleplay != RoleplayRestaurant {
		t.Fatalf("settings not restored: %+v", got)
	}
	if len(got.Analysis.GrammarCorrections) != 1 || got.Analysis.GrammarCorrections[0].Correction != "She goes" {
		t.Fatalf("analysis not restored: %+v", got.Analysis)
	}
	if !got.Timestamp.Equal(entry.Timestamp) {
		t.Fatalf("timestamp = %v, want %v", got.Timestamp, entry.Timestamp)
	}
}

func TestFileHistoryCorruptFileTreatedAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	store := NewFileHistoryStore(path, 10, nil)
	entries, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("corrupt file should read as empty, got %+v", entries)
	}

	// A fresh append replaces the corrupt file.
	if err := store.Append(sampleEntry(0)); err != nil {
		t.Fatalf("append: %v", err)
	}
	entries, _ = store.List()
	if len(entries) != 1 {
		t.Fatalf("after append: %+v", entries)
	}
}

func TestFileHistoryMissingFileIsEmpty(t *testing.T) {
	store := NewFileHistoryStore(filepath.Join(t.TempDir(), "nope", "history.json"), 10, nil)
	entries, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("missing file should read as empty, got %+v", entries)
	}
}

func TestNewEntryIDMonotonic(t *testing.T) {
	now := time.Now()
	seen := map[string]bool{}
	prev := ""
	for i := 0; i < 100; i++ {
		id := NewEntryID(now)
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		if prev != "" && len(id) == len(prev) && id <= prev {
			t.Fatalf("id %s not after %s", id, prev)
		}
		seen[id] = true
		prev = id
	}
}
