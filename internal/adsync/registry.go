package adsync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EntryStatus records why an event id is in the registry.
const (
	StatusSent          = "sent"
	StatusFailContact   = "fail_contact"
	StatusFailSend      = "fail_send"
	StatusSkipNotAdLead = "skip_not_ad_lead"
	StatusSkipNoUser    = "skip_no_user_data"
)

// RegistryEntry records the outcome for one conversion event id.
type RegistryEntry struct {
	Status        string `json:"status"`
	Timestamp     int64  `json:"ts"`
	OpportunityID string `json:"oppId"`
	ContactID     string `json:"contactId"`
	Error         string `json:"error,omitempty"`
}

// Registry is the idempotency ledger for conversion events. Every event id
// ever attempted has an entry; seen ids are never re-sent, so re-running the
// backfill over an overlapping window is safe.
type Registry struct {
	path    string
	entries map[string]RegistryEntry
}

// LoadRegistry reads the registry file. Missing or corrupt files start an
// empty registry.
func LoadRegistry(stateDir, name string) *Registry {
	r := &Registry{
		path:    filepath.Join(stateDir, fmt.Sprintf("conversion_registry_%s.json", name)),
		entries: map[string]RegistryEntry{},
	}

	raw, err := os.ReadFile(r.path)
	if err != nil {
		return r
	}
	var entries map[string]RegistryEntry
	if err := json.Unmarshal(raw, &entries); err == nil && entries != nil {
		r.entries = entries
	}
	return r
}

// Seen reports whether the event id was already attempted.
func (r *Registry) Seen(eventID string) bool {
	_, ok := r.entries[eventID]
	return ok
}

// Record stores the outcome for an event id.
func (r *Registry) Record(eventID, status, oppID, contactID, errText string) {
	r.entries[eventID] = RegistryEntry{
		Status:        status,
		Timestamp:     time.Now().Unix(),
		OpportunityID: oppID,
		ContactID:     contactID,
		Error:         errText,
	}
}

// Len returns the number of registry entries.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Save writes the registry atomically, statestore style.
func (r *Registry) Save() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}

	raw, err := json.MarshalIndent(r.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".conversion_registry_*.tmp")
	if err != nil {
		return fmt.Errorf("create temp registry file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp registry file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace registry file: %w", err)
	}
	return nil
}
