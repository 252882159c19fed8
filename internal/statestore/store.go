package statestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"crmsync_backend/internal/reconcile"
)

// State is the persisted memory of one tenant's sync job: when it last ran
// and the last observed stage per record key.
type State struct {
	LastRunAt *string                       `json:"last_run_at"`
	ByClave   map[string]reconcile.Snapshot `json:"by_clave"`
}

// Store reads and writes one tenant's state file under the state directory.
type Store struct {
	path string
}

// NewStore builds a store for the given job name. Each job gets its own
// file so tenants never contend on state.
func NewStore(stateDir, job string) *Store {
	return &Store{path: filepath.Join(stateDir, fmt.Sprintf("sync_state_%s.json", job))}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state file. A missing or unreadable file yields an empty
// state rather than an error: losing state only means one quiet run while
// snapshots repopulate, which beats refusing to run at all.
func (s *Store) Load() State {
	empty := State{ByClave: map[string]reconcile.Snapshot{}}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return empty
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return empty
	}
	if st.ByClave == nil {
		st.ByClave = map[string]reconcile.Snapshot{}
	}
	return st
}

// Save writes the state atomically: a temp file in the same directory is
// renamed over the target, so a crash mid-write never leaves a truncated
// state file behind.
func (s *Store) Save(st State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".sync_state_*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
