package monitor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"moveguard/internal/drift"
)

// RegistryEntry is one monitored target. Entries are created and removed only
// by explicit operator commands; the scheduler touches last-run fields and
// nothing else.
type RegistryEntry struct {
	Kind         string     `json:"kind"`
	Target       string     `json:"target"`
	Enabled      bool       `json:"enabled"`
	CadenceHours int        `json:"cadence_hours"`
	AddedUTC     time.Time  `json:"added_utc"`
	LastRunUTC   *time.Time `json:"last_run_utc,omitempty"`
	LastScanID   string     `json:"last_scan_id,omitempty"`
}

func registryKey(kind, target string) string {
	return strings.ToLower(kind) + ":" + strings.ToLower(target)
}

// Registry is the on-disk JSON map of monitored targets.
type Registry struct {
	path    string
	Entries map[string]*RegistryEntry
}

// LoadRegistry reads the registry file; a missing file yields an empty
// registry.
func LoadRegistry(path string) (*Registry, error) {
	reg := &Registry{path: path, Entries: map[string]*RegistryEntry{}}
	if _, err := drift.ReadJSON(path, &reg.Entries); err != nil {
		return nil, fmt.Errorf("failed to load monitor registry: %w", err)
	}
	return reg, nil
}

func (r *Registry) Save() error {
	return drift.WriteJSONAtomic(r.path, r.Entries)
}

// Enable registers or re-enables a target. Re-enabling keeps the original
// added timestamp.
func (r *Registry) Enable(kind, target string, cadenceHours int) *RegistryEntry {
	if cadenceHours <= 0 {
		cadenceHours = 24
	}
	key := registryKey(kind, target)
	if entry, ok := r.Entries[key]; ok {
		entry.Enabled = true
		entry.CadenceHours = cadenceHours
		return entry
	}
	entry := &RegistryEntry{
		Kind:         kind,
		Target:       strings.ToLower(target),
		Enabled:      true,
		CadenceHours: cadenceHours,
		AddedUTC:     time.Now().UTC(),
	}
	r.Entries[key] = entry
	return entry
}

// Disable marks a target disabled without removing its history fields.
func (r *Registry) Disable(kind, target string) bool {
	entry, ok := r.Entries[registryKey(kind, target)]
	if !ok {
		return false
	}
	entry.Enabled = false
	return true
}

// Due returns enabled entries whose cadence has elapsed, in stable key order.
func (r *Registry) Due(now time.Time) []*RegistryEntry {
	keys := make([]string, 0, len(r.Entries))
	for key := range r.Entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out []*RegistryEntry
	for _, key := range keys {
		entry := r.Entries[key]
		if !entry.Enabled {
			continue
		}
		if entry.LastRunUTC != nil {
			next := entry.LastRunUTC.Add(time.Duration(entry.CadenceHours) * time.Hour)
			if now.Before(next) {
				continue
			}
		}
		out = append(out, entry)
	}
	return out
}

// All returns every entry in stable key order.
func (r *Registry) All() []*RegistryEntry {
	keys := make([]string, 0, len(r.Entries))
	for key := range r.Entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]*RegistryEntry, 0, len(keys))
	for _, key := range keys {
		out = append(out, r.Entries[key])
	}
	return out
}

// Touch updates the scheduler-owned fields on an enabled entry.
func (r *Registry) Touch(entry *RegistryEntry, ranAt time.Time, scanID string) {
	t := ranAt.UTC()
	entry.LastRunUTC = &t
	if scanID != "" {
		entry.LastScanID = scanID
	}
}
