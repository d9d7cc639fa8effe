package report

import (
	"fmt"

	"moveguard/internal/verify"
)

type Reporter struct {
	generator Generator
	storage   Storage
}

func NewReporter(generator Generator, storage Storage) *Reporter {
	return &Reporter{
		generator: generator,
		storage:   storage,
	}
}

// GenerateAndSave renders the report and persists its artifacts, returning
// the markdown path.
func (r *Reporter) GenerateAndSave(rep *verify.VerificationReport) (string, error) {
	content, err := r.generator.Generate(rep)
	if err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}

	path, err := r.storage.Save(rep, content)
	if err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	return path, nil
}
