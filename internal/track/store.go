package track

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const (
	registryFile = "apps.json"
	backupFile   = "apps.json.bak"
)

// ErrCorrupt indicates the primary registry file was unreadable or
// unparseable. Load still returns a usable snapshot (recovered from the
// backup, or empty) so that the error never blocks a run.
var ErrCorrupt = errors.New("registry file is corrupt")

// Snapshot is the whole registry: the unit of persistence. It is loaded
// once per invocation, mutated in memory and written back atomically.
type Snapshot struct {
	Apps        []*App    `json:"apps"`
	LastUpdated time.Time `json:"last_updated"`
}

// Get returns the app with the given ID, or nil.
func (s *Snapshot) Get(id string) *App {
	for _, a := range s.Apps {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// Add appends an app to the registry.
func (s *Snapshot) Add(a *App) {
	s.Apps = append(s.Apps, a)
}

// Remove deletes the app with the given ID. Returns false if no app
// carries that ID.
func (s *Snapshot) Remove(id string) bool {
	for i, a := range s.Apps {
		if a.ID == id {
			s.Apps = append(s.Apps[:i], s.Apps[i+1:]...)
			return true
		}
	}
	return false
}

// Replace swaps the stored app carrying the same ID. Returns false if no
// app carries that ID.
func (s *Snapshot) Replace(a *App) bool {
	for i, existing := range s.Apps {
		if existing.ID == a.ID {
			s.Apps[i] = a
			return true
		}
	}
	return false
}

// Merge folds other into the snapshot: entries sharing an ID are replaced,
// the rest are appended. Used by `appwatch import --merge`.
func (s *Snapshot) Merge(other *Snapshot) (replaced, added int) {
	for _, a := range other.Apps {
		if s.Replace(a) {
			replaced++
			continue
		}
		s.Add(a)
		added++
	}
	return replaced, added
}

// Identifiers returns the set of populated source-specific identifiers,
// keyed by source. Scan deduplication looks entries up here.
func (s *Snapshot) Identifiers() map[Source]map[string]bool {
	ids := make(map[Source]map[string]bool)
	for _, a := range s.Apps {
		id := a.Identifier()
		if id == "" {
			continue
		}
		if ids[a.Source] == nil {
			ids[a.Source] = make(map[string]bool)
		}
		ids[a.Source][id] = true
	}
	return ids
}

// Store persists the registry as a single JSON document with a sibling
// backup of the previous successful write. The data directory is an
// explicit constructor argument; there is no ambient default.
//
// The store assumes one process per registry file. Concurrent external
// writers are out of scope and may corrupt data.
type Store struct {
	dir string
}

// NewStore creates a store rooted at the given data directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the primary registry file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, registryFile)
}

// BackupPath returns the backup file path.
func (s *Store) BackupPath() string {
	return filepath.Join(s.dir, backupFile)
}

// Load reads the persisted registry. A missing file is a normal first run
// and yields an empty registry. An unreadable or unparseable primary file
// is recovered from the backup when possible; the returned error (wrapping
// ErrCorrupt) reports what happened, but the snapshot is always usable.
func (s *Store) Load() (*Snapshot, error) {
	snap, err := readSnapshot(s.Path())
	if err == nil {
		return snap, nil
	}
	if os.IsNotExist(err) {
		return &Snapshot{}, nil
	}

	// Primary is damaged: fall back to the last-known-good backup.
	backup, backupErr := readSnapshot(s.BackupPath())
	if backupErr == nil {
		return backup, fmt.Errorf("%w: recovered %d apps from backup: %v",
			ErrCorrupt, len(backup.Apps), err)
	}
	return &Snapshot{}, fmt.Errorf("%w: backup unavailable, starting empty: %v",
		ErrCorrupt, err)
}

func readSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for _, a := range snap.Apps {
		a.Source = ParseSource(string(a.Source))
	}
	return &snap, nil
}

// Save writes the full registry atomically: marshal to a temp file in the
// same directory, copy the current primary to the backup, then rename the
// temp file over the primary in one step. A concurrent reader never
// observes a half-written file. LastUpdated is stamped on every save.
func (s *Store) Save(snap *Snapshot) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	snap.LastUpdated = time.Now()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, registryFile+".tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp registry file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp registry file: %w", err)
	}

	// Preserve the previous successful write before replacing it.
	if err := copyFile(s.Path(), s.BackupPath()); err != nil && !os.IsNotExist(err) {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to back up registry: %w", err)
	}

	if err := os.Rename(tmpPath, s.Path()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace registry file: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
