package storage_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Tiliavir/ttr/internal/storage"
)

type doc struct {
	Name string `json:"name"`
}

func TestReadJSONNotExist(t *testing.T) {
	var d doc
	found, err := storage.ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &d)
	if err != nil {
		t.Fatalf("ReadJSON on missing file: %v", err)
	}
	if found {
		t.Error("ReadJSON reported a missing file as found")
	}
}

func TestWriteJSONAndReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "doc.json")
	if err := storage.WriteJSON(path, doc{Name: "alice"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("WriteJSON perm = %v, want 0600", perm)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	var d doc
	found, err := storage.ReadJSON(path, &d)
	if err != nil || !found {
		t.Fatalf("ReadJSON after write: found=%v err=%v", found, err)
	}
	if d.Name != "alice" {
		t.Errorf("ReadJSON name = %q, want %q", d.Name, "alice")
	}
}

func TestReadJSONCorruptIsBackedUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	if err := os.WriteFile(path, []byte("{bad json"), 0o600); err != nil {
		t.Fatal(err)
	}

	var d doc
	if _, err := storage.ReadJSON(path, &d); err == nil {
		t.Fatal("expected error for corrupt JSON, got nil")
	}
	if _, err := os.Stat(path + ".corrupt"); os.IsNotExist(err) {
		t.Error("expected backup file to exist after corrupt JSON")
	}
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	if err := storage.Remove(path); err != nil {
		t.Errorf("Remove on missing file: %v", err)
	}
	if err := storage.WriteJSON(path, doc{}); err != nil {
		t.Fatal(err)
	}
	if err := storage.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file still exists after Remove")
	}
}

func TestPresetFilter(t *testing.T) {
	// 2026-02-27 is a Friday.
	now := time.Date(2026, 2, 27, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		preset   string
		from, to time.Time
	}{
		{"today", time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 27, 23, 59, 59, 0, time.UTC)},
		{"week", time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC)},
		{"Month", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 28, 23, 59, 59, 0, time.UTC)},
	}
	for _, tt := range tests {
		f, err := storage.PresetFilter(tt.preset, now)
		if err != nil {
			t.Fatalf("PresetFilter(%q): %v", tt.preset, err)
		}
		if !f.StartDate.Equal(tt.from) || !f.EndDate.Equal(tt.to) {
			t.Errorf("PresetFilter(%q) = %v..%v, want %v..%v", tt.preset, f.StartDate, f.EndDate, tt.from, tt.to)
		}
	}
	if _, err := storage.PresetFilter("year", now); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestLoadFilterDefaultsToMonth(t *testing.T) {
	now := time.Date(2026, 2, 27, 10, 0, 0, 0, time.UTC)
	f, err := storage.LoadFilter(t.TempDir(), now)
	if err != nil {
		t.Fatalf("LoadFilter: %v", err)
	}
	if !f.StartDate.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("default start = %v", f.StartDate)
	}
	if f.SearchText != "" {
		t.Errorf("default search = %q", f.SearchText)
	}
}

func TestSaveAndLoadFilter(t *testing.T) {
	base := t.TempDir()
	now := time.Date(2026, 2, 27, 10, 0, 0, 0, time.UTC)
	want := storage.Filter{
		StartDate:  time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 1, 9, 23, 59, 59, 0, time.UTC),
		SearchText: "review",
	}
	if err := storage.SaveFilter(base, want); err != nil {
		t.Fatalf("SaveFilter: %v", err)
	}
	got, err := storage.LoadFilter(base, now)
	if err != nil {
		t.Fatalf("LoadFilter: %v", err)
	}
	if !got.StartDate.Equal(want.StartDate) || !got.EndDate.Equal(want.EndDate) || got.SearchText != want.SearchText {
		t.Errorf("LoadFilter = %+v, want %+v", got, want)
	}
}

func TestSaveFilterRejectsInvertedRange(t *testing.T) {
	f := storage.Filter{
		StartDate: time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	if err := storage.SaveFilter(t.TempDir(), f); err == nil {
		t.Error("expected error for end before start")
	}
}
