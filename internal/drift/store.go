package drift

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SnapshotStore persists one JSON snapshot per target under a directory. The
// path derives deterministically from target kind + normalized identifier,
// and writes are atomic so a crash mid-run cannot leave a torn snapshot
// visible to the next run.
type SnapshotStore struct {
	Dir string
}

func NewSnapshotStore(dir string) *SnapshotStore {
	if dir == "" {
		dir = filepath.Join("data", "snapshots")
	}
	return &SnapshotStore{Dir: dir}
}

func sanitizeFilenameComponent(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') ||
			(r >= '0' && r <= '9') ||
			r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	out := strings.Trim(b.String(), "._-")
	if out == "" {
		return "unknown"
	}
	return out
}

// Path returns the snapshot file for a target.
func (s *SnapshotStore) Path(kind, target string) string {
	name := fmt.Sprintf("%s_%s.json", sanitizeFilenameComponent(kind), sanitizeFilenameComponent(target))
	return filepath.Join(s.Dir, name)
}

func (s *SnapshotStore) EnsureDir() error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return nil
}

// Load returns the current snapshot for a target, or nil when none exists.
func (s *SnapshotStore) Load(kind, target string) (*PingSnapshot, error) {
	var snap PingSnapshot
	found, err := ReadJSON(s.Path(kind, target), &snap)
	if err != nil || !found {
		return nil, err
	}
	return &snap, nil
}

// Save overwrites the target's current snapshot.
func (s *SnapshotStore) Save(snap *PingSnapshot) error {
	if err := s.EnsureDir(); err != nil {
		return err
	}
	return WriteJSONAtomic(s.Path(snap.Identity.Kind, snap.Identity.Target), snap)
}

// ReadJSON decodes one JSON document into out. A missing file is not an
// error; found reports whether anything was read.
func ReadJSON(path string, out any) (found bool, err error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return true, nil
}

// WriteJSONAtomic writes value as indented JSON via a temp file in the same
// directory, then renames it into place.
func WriteJSONAtomic(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Chmod(0644); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return nil
}
