package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"moveguard/internal/verify"
)

// Storage persists rendered report artifacts.
type Storage interface {
	Save(rep *verify.VerificationReport, content string) (string, error)
}

type FileStorage struct {
	OutputDir string
}

func NewFileStorage(outputDir string) *FileStorage {
	return &FileStorage{OutputDir: outputDir}
}

func sanitizeFilenameComponent(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') ||
			r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	out := b.String()
	out = strings.Trim(out, "._-")
	if out == "" {
		return "unknown"
	}
	return out
}

// Save writes the markdown rendering plus a machine-readable JSON sibling.
// Both go through a temp file in the target directory and a rename.
func (s *FileStorage) Save(rep *verify.VerificationReport, content string) (string, error) {
	if s.OutputDir == "" {
		s.OutputDir = "reports"
	}
	if err := os.MkdirAll(s.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().UnixNano()
	target := sanitizeFilenameComponent(rep.Target.ID())
	base := fmt.Sprintf("verify_%s_%s_%d", rep.Target.Kind, target, timestamp)

	mdPath := filepath.Join(s.OutputDir, base+".md")
	if err := writeAtomic(s.OutputDir, mdPath, []byte(content)); err != nil {
		return "", err
	}

	raw, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	jsonPath := filepath.Join(s.OutputDir, base+".json")
	if err := writeAtomic(s.OutputDir, jsonPath, raw); err != nil {
		return "", err
	}

	return mdPath, nil
}

func writeAtomic(dir, path string, data []byte) error {
	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp report file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to write temp report file: %w", err)
	}
	if err := tmpFile.Chmod(0644); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to chmod temp report file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp report file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to finalize report file: %w", err)
	}
	return nil
}
