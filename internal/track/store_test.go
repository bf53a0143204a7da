package track

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStoreLoad_FirstRun(t *testing.T) {
	store := NewStore(t.TempDir())

	snap, err := store.Load()
	if err != nil {
		t.Fatalf("Load() on a fresh directory should not fail: %v", err)
	}
	if len(snap.Apps) != 0 {
		t.Errorf("expected empty registry, got %d apps", len(snap.Apps))
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	app := NewApp("Firefox", SourceWinget)
	app.WingetID = "Mozilla.Firefox"
	app.InstalledVersion = "120.0"
	snap := &Snapshot{Apps: []*App{app}}

	before := time.Now()
	if err := store.Save(snap); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if snap.LastUpdated.Before(before) {
		t.Error("Save should stamp LastUpdated")
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(loaded.Apps) != 1 {
		t.Fatalf("expected 1 app, got %d", len(loaded.Apps))
	}
	got := loaded.Apps[0]
	if got.ID != app.ID || got.Name != app.Name || got.WingetID != app.WingetID ||
		got.InstalledVersion != app.InstalledVersion || got.Source != app.Source {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, app)
	}
}

func TestStoreSave_KeepsBackup(t *testing.T) {
	store := NewStore(t.TempDir())

	first := &Snapshot{Apps: []*App{NewApp("first", SourceCustom)}}
	if err := store.Save(first); err != nil {
		t.Fatalf("first Save() failed: %v", err)
	}
	second := &Snapshot{Apps: []*App{NewApp("second", SourceCustom)}}
	if err := store.Save(second); err != nil {
		t.Fatalf("second Save() failed: %v", err)
	}

	backup, err := readSnapshot(store.BackupPath())
	if err != nil {
		t.Fatalf("backup should exist after second save: %v", err)
	}
	if len(backup.Apps) != 1 || backup.Apps[0].Name != "first" {
		t.Errorf("backup should hold the previous write, got %+v", backup.Apps)
	}
}

func TestStoreSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	if err := store.Save(&Snapshot{}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestStoreLoad_CorruptPrimary_RecoversFromBackup(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	good := &Snapshot{Apps: []*App{NewApp("survivor", SourceHomebrew)}}
	if err := store.Save(good); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	// Move the valid document into backup position and damage the primary.
	if err := os.Rename(store.Path(), store.BackupPath()); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	snap, err := store.Load()
	if err == nil {
		t.Fatal("Load() should report the corruption")
	}
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("error should wrap ErrCorrupt, got %v", err)
	}
	if len(snap.Apps) != 1 || snap.Apps[0].Name != "survivor" {
		t.Errorf("expected backup contents, got %+v", snap.Apps)
	}
}

func TestStoreLoad_CorruptPrimaryAndBackup_StartsEmpty(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.Path(), []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.BackupPath(), []byte("also garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	snap, err := store.Load()
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("error should wrap ErrCorrupt, got %v", err)
	}
	if snap == nil || len(snap.Apps) != 0 {
		t.Errorf("expected an empty but usable registry, got %+v", snap)
	}
}

func TestStoreLoad_UnknownSourceTag(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	doc := `{"apps":[{"id":"x","name":"odd","source":"floppynet"}],"last_updated":"2024-01-01T00:00:00Z"}`
	if err := os.WriteFile(filepath.Join(dir, registryFile), []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	snap, err := store.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if snap.Apps[0].Source != SourceCustom {
		t.Errorf("unknown source should fall back to custom, got %q", snap.Apps[0].Source)
	}
}
